package demo

import (
	"strings"
	"testing"

	"github.com/erazemk/zapuscina/internal/imaging"
)

func TestItemsAreValid(t *testing.T) {
	items, err := New(42, nil).Items(5)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	for i, it := range items {
		if err := it.Validate(); err != nil {
			t.Errorf("item %d invalid: %v", i, err)
		}
		if len(it.Tags) < 3 || len(it.Tags) > 6 {
			t.Errorf("item %d: expected 3-6 tags, got %d", i, len(it.Tags))
		}
		if !strings.HasPrefix(it.Images[0], "data:image/jpeg;base64,") {
			t.Errorf("item %d: expected inline placeholder", i)
		}
		if len(it.Images[0]) >= imaging.MaxEncodedSize {
			t.Errorf("item %d: placeholder too large", i)
		}
		if !it.Consigned && it.Consignee != "" {
			t.Errorf("item %d: consignee set on unconsigned item", i)
		}
	}
}

func TestSameSeedSameNames(t *testing.T) {
	a, _ := New(7, nil).Items(3)
	b, _ := New(7, nil).Items(3)
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Maker != b[i].Maker {
			t.Errorf("item %d differs: %q/%q", i, a[i].Name, b[i].Name)
		}
	}
}

func TestPlaceholderColourFollowsLabel(t *testing.T) {
	a := Placeholder(20, 20, "Lamp 1").At(0, 0)
	b := Placeholder(20, 20, "Lamp 1").At(0, 0)
	if a != b {
		t.Error("same label should give the same colour")
	}
}
