package imagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/erazemk/zapuscina/internal/airtable"
)

// roundTrip simulates the record store by passing fields through JSON.
func roundTrip(t *testing.T, f airtable.Fields) airtable.Fields {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out airtable.Fields
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestInline(t *testing.T) {
	s := &Inline{}
	images := []string{"data:image/jpeg;base64,AAA", "https://example.com/a.jpg"}
	fields, err := s.Encode(context.Background(), images)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := s.Decode(roundTrip(t, fields))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 2 || got[1] != images[1] {
		t.Errorf("unexpected images %v", got)
	}

	got, err = s.Decode(airtable.Fields{FieldImageData: "[not json"})
	if err == nil || len(got) != 0 {
		t.Errorf("expected error and empty list for malformed data, got %v %v", got, err)
	}

	got, err = s.Decode(airtable.Fields{})
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty list for missing field, got %v %v", got, err)
	}
}

func TestInlineTooLarge(t *testing.T) {
	s := &Inline{}
	img := "data:image/jpeg;base64," + strings.Repeat("A", 60_000)
	_, err := s.Encode(context.Background(), []string{img, img})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if _, err := s.Encode(context.Background(), []string{img}); err != nil {
		t.Errorf("one image should fit: %v", err)
	}
}

func TestChunkedKeepsRunesWhole(t *testing.T) {
	s := &Chunked{ChunkSize: 4, MaxChunks: 10}
	images := []string{"https://i.example/čaša-ž.jpg"}
	f, err := s.Encode(context.Background(), images)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for k, v := range f {
		if str, ok := v.(string); ok {
			if !utf8.ValidString(str) || utf8.RuneCountInString(str) > 4 {
				t.Errorf("%s: bad chunk %q", k, str)
			}
		}
	}
	got, err := s.Decode(roundTrip(t, f))
	if err != nil || len(got) != 1 || got[0] != images[0] {
		t.Errorf("round trip: %v %v", got, err)
	}
}

func TestChunkedSplitsAndReassembles(t *testing.T) {
	s := &Chunked{ChunkSize: 10, MaxChunks: 5}
	images := []string{strings.Repeat("x", 25)}
	fields, err := s.Encode(context.Background(), images)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// ["xxx...x"] is 29 characters: three chunks.
	if fields[FieldChunkCount] != 3 {
		t.Errorf("expected 3 chunks, got %v", fields[FieldChunkCount])
	}
	for _, name := range []string{"ImageData4", "ImageData5"} {
		v, ok := fields[name]
		if !ok || v != nil {
			t.Errorf("expected %s to be cleared, got %v (present=%v)", name, v, ok)
		}
	}

	got, err := s.Decode(roundTrip(t, fields))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 1 || got[0] != images[0] {
		t.Errorf("unexpected images %v", got)
	}
}

func TestChunkedShrinkClearsTrailingFields(t *testing.T) {
	s := &Chunked{ChunkSize: 10, MaxChunks: 3}
	fields, err := s.Encode(context.Background(), []string{"ab"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if fields["ImageData1"] != `["ab"]` {
		t.Errorf("unexpected first chunk %v", fields["ImageData1"])
	}
	if fields["ImageData2"] != nil || fields["ImageData3"] != nil {
		t.Error("expected unused chunks to be nil")
	}
}

func TestChunkedTooLarge(t *testing.T) {
	s := &Chunked{ChunkSize: 4, MaxChunks: 2}
	_, err := s.Encode(context.Background(), []string{"abcdefgh"})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestChunkedDecodeWithoutCount(t *testing.T) {
	s := &Chunked{}
	got, err := s.Decode(airtable.Fields{"ImageData1": `["a",`, "ImageData2": `"b"]`})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 2 || got[1] != "b" {
		t.Errorf("unexpected images %v", got)
	}
}

type fakeUploader struct {
	calls []string
}

func (f *fakeUploader) Upload(_ context.Context, name, data string) (string, error) {
	f.calls = append(f.calls, data)
	return "https://img.example/" + name, nil
}

func TestHostedUploadsOnlyDataURLs(t *testing.T) {
	up := &fakeUploader{}
	s := &Hosted{Uploader: up}
	fields, err := s.Encode(context.Background(), []string{
		"https://img.example/old",
		"data:image/jpeg;base64,QUJD",
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(up.calls) != 1 || up.calls[0] != "QUJD" {
		t.Errorf("expected one upload of the base64 payload, got %v", up.calls)
	}
	got, _ := s.Decode(roundTrip(t, fields))
	if len(got) != 2 || got[0] != "https://img.example/old" || got[1] != "https://img.example/image-2" {
		t.Errorf("unexpected urls %v", got)
	}
}

func TestImgBBUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k1" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"success":false,"error":{"message":"Invalid API v1 key."}}`)
			return
		}
		if r.FormValue("image") != "QUJD" {
			t.Errorf("unexpected image field %q", r.FormValue("image"))
		}
		fmt.Fprint(w, `{"data":{"url":"https://i.ibb.co/x/a.jpg"},"success":true,"status":200}`)
	}))
	defer server.Close()

	u := NewImgBB("k1")
	u.Endpoint = server.URL
	link, err := u.Upload(context.Background(), "a", "QUJD")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if link != "https://i.ibb.co/x/a.jpg" {
		t.Errorf("unexpected link %s", link)
	}

	u.APIKey = "wrong"
	if _, err := u.Upload(context.Background(), "a", "QUJD"); err == nil || !strings.Contains(err.Error(), "Invalid API v1 key") {
		t.Errorf("expected host error message, got %v", err)
	}
}

func TestNewStrategy(t *testing.T) {
	if _, err := New("hosted", nil); err == nil {
		t.Error("expected error for hosted without uploader")
	}
	if _, err := New("bogus", nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
	s, err := New("", nil)
	if err != nil || s.Name() != NameInline {
		t.Errorf("expected inline default, got %v %v", s, err)
	}
}
