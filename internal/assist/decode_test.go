package assist

import (
	"errors"
	"testing"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"json", `{"tags":["vintage","brass","lamp"]}`, []string{"vintage", "brass", "lamp"}},
		{"fallback", `Here you go: "vintage", "brass"`, []string{"vintage", "brass"}},
		{"empty", "   ", []string{}},
		{"no tags key", `{"other":1}`, []string{}},
		{"plain text", `nothing quoted here`, []string{}},
	}
	for _, tt := range tests {
		got := ParseTags(tt.in)
		if got == nil {
			t.Errorf("%s: expected non-nil slice", tt.name)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s: tag %d expected %q, got %q", tt.name, i, tt.want[i], got[i])
			}
		}
	}
}

func TestDecodeIdentificationTolerant(t *testing.T) {
	text := "Here is the report:\n```json\n{\n  \"name\": \"Lamp\",\n  \"maker\": \"Acme\",\n  \"tags\": [\"brass\",],\n  \"price\": 45,\n}\n```"
	id, err := DecodeIdentification(text)
	if err != nil {
		t.Fatalf("DecodeIdentification: %v", err)
	}
	if id.Name != "Lamp" || id.Maker != "Acme" {
		t.Errorf("unexpected identification %+v", id)
	}
	if id.Price == nil || *id.Price != 45 {
		t.Errorf("expected price 45, got %v", id.Price)
	}
	if len(id.Tags) != 1 || id.Tags[0] != "brass" {
		t.Errorf("unexpected tags %v", id.Tags)
	}
}

func TestDecodeIdentificationRepairsStrayQuotes(t *testing.T) {
	text := `{"name": "Fenton "Hobnail" Vase", "description": "A 6" vase, milk glass", "tags": ["glass", "fenton"], "price": "$30"}`
	id, err := DecodeIdentification(text)
	if err != nil {
		t.Fatalf("DecodeIdentification: %v", err)
	}
	if id.Name != `Fenton "Hobnail" Vase` {
		t.Errorf("unexpected name %q", id.Name)
	}
	if id.Description != `A 6" vase, milk glass` {
		t.Errorf("unexpected description %q", id.Description)
	}
	if id.Price == nil || *id.Price != 30 {
		t.Errorf("expected price from string, got %v", id.Price)
	}
	if len(id.Tags) != 2 {
		t.Errorf("unexpected tags %v", id.Tags)
	}
}

func TestDecodeIdentificationErrors(t *testing.T) {
	_, err := DecodeIdentification("  ")
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}

	_, err = DecodeIdentification("I could not identify this item.")
	if !errors.Is(err, ErrUnparseable) {
		t.Errorf("expected ErrUnparseable, got %v", err)
	}

	raw := `{"name": [unclosed}`
	_, err = DecodeIdentification(raw)
	var ae *Error
	if !errors.As(err, &ae) || ae.Kind != KindUnparseable {
		t.Fatalf("expected unparseable error, got %v", err)
	}
	if ae.Raw != raw {
		t.Errorf("expected raw text to be kept, got %q", ae.Raw)
	}
	if !ae.Retryable() {
		t.Error("parse errors should be retryable")
	}
}

func TestRepairQuotesLeavesValidJSON(t *testing.T) {
	in := `{"a": "x, \"y\"", "b": ["c", "d"]}`
	if got := repairQuotes(in); got != in {
		t.Errorf("valid JSON changed: %s", got)
	}
}

func TestNegativePriceDropped(t *testing.T) {
	id, err := DecodeIdentification(`{"name":"x","price":-4}`)
	if err != nil {
		t.Fatalf("DecodeIdentification: %v", err)
	}
	if id.Price != nil {
		t.Errorf("expected nil price, got %v", *id.Price)
	}
}
