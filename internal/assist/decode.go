package assist

import (
	"math"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/erazemk/zapuscina/internal/model"
)

// SearchLink is a web source the model consulted.
type SearchLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Identification is the model's appraisal of an item photo.
type Identification struct {
	Name        string       `json:"name"`
	Maker       string       `json:"maker"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Condition   string       `json:"condition"`
	Tags        []string     `json:"tags"`
	Price       *float64     `json:"price,omitempty"`
	SearchLinks []SearchLink `json:"search_links,omitempty"`
}

type wireIdentification struct {
	Name        string   `json:"name"`
	Maker       string   `json:"maker"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Tags        []string `json:"tags"`
	Price       any      `json:"price"`
}

var (
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	quoted        = regexp.MustCompile(`"(.*?)"`)
)

// ParseTags reads a {"tags": [...]} answer. Text that is not valid JSON
// falls back to every double-quoted substring. Empty text yields no tags.
func ParseTags(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}
	var parsed struct {
		Tags []string `json:"tags"`
	}
	if err := sonic.UnmarshalString(text, &parsed); err != nil {
		out := []string{}
		for _, m := range quoted.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1])
		}
		return out
	}
	if parsed.Tags == nil {
		return []string{}
	}
	return parsed.Tags
}

// DecodeIdentification extracts the JSON object from free-form model text.
// It strips line breaks and trailing commas, then makes one attempt at
// escaping stray quotes inside strings before giving up.
func DecodeIdentification(text string) (*Identification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &Error{Kind: KindEmpty, Message: "AI returned empty response"}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &Error{Kind: KindUnparseable, Message: "AI failed to generate a structured report", Raw: text}
	}

	candidate := text[start : end+1]
	candidate = strings.NewReplacer("\n", " ", "\r", " ").Replace(candidate)
	candidate = trailingComma.ReplaceAllString(candidate, "$1")

	var w wireIdentification
	if err := sonic.UnmarshalString(candidate, &w); err != nil {
		w = wireIdentification{}
		if err := sonic.UnmarshalString(repairQuotes(candidate), &w); err != nil {
			return nil, &Error{Kind: KindUnparseable, Message: "Failed to parse AI Overview", Raw: text, Err: err}
		}
	}

	id := &Identification{
		Name:        strings.TrimSpace(w.Name),
		Maker:       strings.TrimSpace(w.Maker),
		Description: strings.TrimSpace(w.Description),
		Category:    w.Category,
		Condition:   w.Condition,
		Tags:        w.Tags,
	}
	if id.Tags == nil {
		id.Tags = []string{}
	}
	switch p := w.Price.(type) {
	case float64:
		if p >= 0 && !math.IsInf(p, 0) {
			id.Price = &p
		}
	case string:
		id.Price = model.ParsePrice(p)
	}
	return id, nil
}

// repairQuotes escapes double quotes that appear inside a string value but
// do not terminate it. A quote terminates a string when the next
// non-space character is a colon, a closing bracket, the end of input, or a
// comma followed by the start of another JSON value.
func repairQuotes(s string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString && c == '\\' && i+1 < len(s) {
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
			continue
		}
		if c != '"' {
			b.WriteByte(c)
			continue
		}
		if !inString {
			inString = true
			b.WriteByte(c)
			continue
		}
		if closesString(s[i+1:]) {
			inString = false
			b.WriteByte(c)
		} else {
			b.WriteString(`\"`)
		}
	}
	return b.String()
}

func closesString(rest string) bool {
	rest = strings.TrimLeft(rest, " \t")
	if rest == "" {
		return true
	}
	switch rest[0] {
	case ':', '}', ']':
		return true
	case ',':
		next := strings.TrimLeft(rest[1:], " \t")
		if next == "" {
			return true
		}
		return strings.ContainsRune(`"{[}]-0123456789`, rune(next[0]))
	}
	return false
}
