package imagestore

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/erazemk/zapuscina/internal/airtable"
)

// FieldImageData holds the JSON array of images for the inline strategy.
const FieldImageData = "ImageData"

// FieldLimit is the character capacity of one long-text field.
const FieldLimit = 100_000

// Inline stores compressed data: URLs directly in one long-text field.
type Inline struct {
	// Limit overrides FieldLimit.
	Limit int
}

func (*Inline) Name() string { return NameInline }

func (in *Inline) Encode(_ context.Context, images []string) (airtable.Fields, error) {
	raw, err := encodeList(images)
	if err != nil {
		return nil, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = FieldLimit
	}
	if n := utf8.RuneCountInString(raw); n > limit {
		return nil, fmt.Errorf("%w: %d characters, field holds %d", ErrPayloadTooLarge, n, limit)
	}
	return airtable.Fields{FieldImageData: raw}, nil
}

func (*Inline) Decode(fields airtable.Fields) ([]string, error) {
	return decodeList(stringField(fields, FieldImageData))
}
