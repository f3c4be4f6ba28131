// Package gemini runs image analysis prompts against the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/erazemk/zapuscina/internal/assist"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrNoAPIKey is returned by New when the key is empty.
var ErrNoAPIKey = errors.New("gemini API key missing")

// Model sends analysis prompts to one Gemini model.
type Model struct {
	client *genai.Client
	name   string
}

// New creates a Gemini API client.
func New(ctx context.Context, apiKey, model string) (*Model, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Model{client: client, name: model}, nil
}

var tagsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"tags": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A category tag for the warehouse item.",
			},
		},
	},
	Required: []string{"tags"},
}

// Tags returns the raw JSON answer for a tag suggestion prompt.
func (m *Model) Tags(ctx context.Context, image []byte, tc assist.TagContext) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(image, "image/jpeg"),
		genai.NewPartFromText(TagsPrompt(tc)),
	}, genai.RoleUser)}

	result, err := m.client.Models.GenerateContent(ctx, m.name, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   tagsSchema,
	})
	if err != nil {
		return "", fmt.Errorf("generating tags: %w", err)
	}
	return result.Text(), nil
}

// Identify returns the model's free-form appraisal text and the web pages
// it grounded the answer on.
func (m *Model) Identify(ctx context.Context, image []byte) (string, []assist.SearchLink, error) {
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(image, "image/jpeg"),
		genai.NewPartFromText(IdentifyPrompt),
	}, genai.RoleUser)}

	result, err := m.client.Models.GenerateContent(ctx, m.name, contents, &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return "", nil, fmt.Errorf("identifying item: %w", err)
	}
	return result.Text(), searchLinks(result), nil
}

func searchLinks(result *genai.GenerateContentResponse) []assist.SearchLink {
	links := []assist.SearchLink{}
	if len(result.Candidates) == 0 || result.Candidates[0].GroundingMetadata == nil {
		return links
	}
	for _, chunk := range result.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		links = append(links, assist.SearchLink{Title: chunk.Web.Title, URL: chunk.Web.URI})
	}
	return links
}
