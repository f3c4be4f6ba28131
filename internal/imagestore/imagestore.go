// Package imagestore maps an item's image list onto record store fields.
package imagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/zapuscina/internal/airtable"
)

// Strategy persists image lists in record fields. A deployment uses exactly one.
type Strategy interface {
	Name() string
	// Encode returns the fields to write for images. It may clear fields a
	// previous write left behind.
	Encode(ctx context.Context, images []string) (airtable.Fields, error)
	// Decode reads images back from a record. A malformed value yields an
	// error and whatever could be recovered.
	Decode(fields airtable.Fields) ([]string, error)
}

// Strategy names accepted by New.
const (
	NameInline  = "inline"
	NameHosted  = "hosted"
	NameChunked = "chunked"
)

// ErrPayloadTooLarge is returned when images do not fit the available fields.
var ErrPayloadTooLarge = errors.New("image payload exceeds field capacity")

// New returns the strategy registered under name.
func New(name string, uploader Uploader) (Strategy, error) {
	switch name {
	case NameInline, "":
		return &Inline{}, nil
	case NameChunked:
		return &Chunked{}, nil
	case NameHosted:
		if uploader == nil {
			return nil, errors.New("hosted image strategy needs an uploader")
		}
		return &Hosted{Uploader: uploader}, nil
	}
	return nil, fmt.Errorf("unknown image strategy %q", name)
}

// IsDataURL reports whether s is an embedded image rather than a link.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

func encodeList(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encoding image list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	var images []string
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		return []string{}, fmt.Errorf("decoding image list: %w", err)
	}
	return images, nil
}

func stringField(fields airtable.Fields, name string) string {
	s, _ := fields[name].(string)
	return s
}
