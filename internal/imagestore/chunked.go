package imagestore

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/erazemk/zapuscina/internal/airtable"
)

// Chunked field layout.
const (
	FieldChunkPrefix = "ImageData"
	FieldChunkCount  = "ImageChunks"

	DefaultChunkSize = 95_000
	DefaultMaxChunks = 5
)

// Chunked splits the JSON image list across ImageData1..ImageDataN and
// records the number of chunks in ImageChunks.
type Chunked struct {
	ChunkSize int
	MaxChunks int
}

func (c *Chunked) Name() string { return NameChunked }

func (c *Chunked) limits() (size, max int) {
	size, max = c.ChunkSize, c.MaxChunks
	if size <= 0 {
		size = DefaultChunkSize
	}
	if max <= 0 {
		max = DefaultMaxChunks
	}
	return size, max
}

func chunkField(i int) string {
	return fmt.Sprintf("%s%d", FieldChunkPrefix, i+1)
}

// Encode writes every chunk field. Fields past the last used chunk are set
// to nil so a shorter payload never leaves stale data behind.
func (c *Chunked) Encode(_ context.Context, images []string) (airtable.Fields, error) {
	raw, err := encodeList(images)
	if err != nil {
		return nil, err
	}
	size, max := c.limits()

	chunks := split(raw, size)
	if len(chunks) > max {
		return nil, fmt.Errorf("%w: %d chunks needed, %d available", ErrPayloadTooLarge, len(chunks), max)
	}

	fields := airtable.Fields{FieldChunkCount: len(chunks)}
	for i := range max {
		if i < len(chunks) {
			fields[chunkField(i)] = chunks[i]
		} else {
			fields[chunkField(i)] = nil
		}
	}
	return fields, nil
}

// split cuts s into pieces of at most size characters, never inside a rune.
func split(s string, size int) []string {
	var chunks []string
	for utf8.RuneCountInString(s) > size {
		cut, n := 0, 0
		for n < size {
			_, w := utf8.DecodeRuneInString(s[cut:])
			cut += w
			n++
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	return append(chunks, s)
}

// Decode concatenates the chunk fields in order. Without a count field it
// reads until the first missing chunk.
func (c *Chunked) Decode(fields airtable.Fields) ([]string, error) {
	_, max := c.limits()
	n := max
	if v, ok := fields[FieldChunkCount].(float64); ok {
		n = min(int(v), max)
	} else if v, ok := fields[FieldChunkCount].(int); ok {
		n = min(v, max)
	}

	var b strings.Builder
	for i := range n {
		s, ok := fields[chunkField(i)].(string)
		if !ok {
			break
		}
		b.WriteString(s)
	}
	return decodeList(b.String())
}
