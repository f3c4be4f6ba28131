package model

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Item categories.
const (
	CategoryApparel      = "Apparel"
	CategoryHomeGoods    = "Home Goods"
	CategoryElectronics  = "Electronics"
	CategoryCollectibles = "Collectibles"
	CategoryOther        = "Other"
)

// Categories lists the item categories in display order.
var Categories = []string{
	CategoryApparel,
	CategoryHomeGoods,
	CategoryElectronics,
	CategoryCollectibles,
	CategoryOther,
}

// Item conditions.
const (
	ConditionNew     = "New"
	ConditionLikeNew = "Like New"
	ConditionGood    = "Good"
	ConditionFair    = "Fair"
	ConditionPoor    = "Poor"
)

// Conditions lists the item conditions from best to worst.
var Conditions = []string{
	ConditionNew,
	ConditionLikeNew,
	ConditionGood,
	ConditionFair,
	ConditionPoor,
}

// Item is a single sellable object in the estate inventory.
type Item struct {
	ID       string `json:"id"`
	RecordID string `json:"record_id,omitempty"`
	// Owner is the staff user the record belongs to. It is set by the store.
	Owner string `json:"owner,omitempty"`

	Name        string   `json:"name" validate:"required"`
	Maker       string   `json:"maker"`
	Description string   `json:"description"`
	Category    string   `json:"category" validate:"category"`
	Condition   string   `json:"condition" validate:"condition"`
	Size        string   `json:"size"`
	Flaws       string   `json:"flaws"`
	Tags        []string `json:"tags"`
	Price       *float64 `json:"price" validate:"omitempty,finite,gte=0"`
	SKU         string   `json:"sku"`

	Consigned bool     `json:"consigned"`
	Consignee string   `json:"consignee"`
	Shippable bool     `json:"shippable"`
	Weight    *float64 `json:"weight" validate:"omitempty,finite,gte=0"`
	Listed    bool     `json:"listed"`
	Flagged   bool     `json:"flagged"`

	// Images holds hosted URLs or data: URLs. The first one is the primary image.
	Images []string `json:"images" validate:"min=1"`

	AuctionEndsAt *time.Time `json:"auction_ends_at,omitempty"`
	CurrentBid    *float64   `json:"current_bid,omitempty"`
	BidCount      int        `json:"bid_count,omitempty"`
	Winning       bool       `json:"winning,omitempty"`
}

// NewItem returns an empty item with a fresh id and SKU.
func NewItem(now time.Time) *Item {
	return &Item{
		ID:        uuid.NewString(),
		SKU:       GenerateSKU(now),
		Category:  CategoryOther,
		Condition: ConditionGood,
		Tags:      []string{},
		Images:    []string{},
	}
}

// Persisted reports whether the item has been written to the record store.
func (it *Item) Persisted() bool {
	return it.RecordID != ""
}

// AddTag appends tag unless it is empty or already present.
func (it *Item) AddTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}
	for _, t := range it.Tags {
		if t == tag {
			return false
		}
	}
	it.Tags = append(it.Tags, tag)
	return true
}

// RemoveTag removes tag if present.
func (it *Item) RemoveTag(tag string) {
	out := it.Tags[:0]
	for _, t := range it.Tags {
		if t != tag {
			out = append(out, t)
		}
	}
	it.Tags = out
}

// MergeTags adds every tag not already present, keeping the existing order.
// It returns the number of tags added.
func (it *Item) MergeTags(tags []string) int {
	added := 0
	for _, t := range tags {
		if it.AddTag(t) {
			added++
		}
	}
	return added
}

// ConsigneeName returns the consignee only for consigned items.
func (it *Item) ConsigneeName() string {
	if !it.Consigned {
		return ""
	}
	return it.Consignee
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	c := *it
	c.Tags = append([]string(nil), it.Tags...)
	c.Images = append([]string(nil), it.Images...)
	if it.Price != nil {
		p := *it.Price
		c.Price = &p
	}
	if it.Weight != nil {
		w := *it.Weight
		c.Weight = &w
	}
	if it.CurrentBid != nil {
		b := *it.CurrentBid
		c.CurrentBid = &b
	}
	if it.AuctionEndsAt != nil {
		e := *it.AuctionEndsAt
		c.AuctionEndsAt = &e
	}
	return &c
}

// ParsePrice converts user input into a price. Empty, unparseable, negative
// and non-finite input yields nil.
func ParsePrice(s string) *float64 {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidCondition reports whether c is one of the known conditions.
func ValidCondition(c string) bool {
	for _, v := range Conditions {
		if v == c {
			return true
		}
	}
	return false
}

// Filter values besides the categories.
const (
	FilterAll     = "All"
	FilterFlagged = "Flagged"
)

// InFilter reports whether the item belongs under a dashboard filter: All, a
// category name or Flagged. An empty filter means All.
func (it *Item) InFilter(filter string) bool {
	switch filter {
	case "", FilterAll:
		return true
	case FilterFlagged:
		return it.Flagged
	default:
		return it.Category == filter
	}
}

// Matches reports whether query occurs, ignoring case, in the name, maker,
// description, SKU or any tag. An empty query matches everything.
func (it *Item) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, s := range []string{it.Name, it.Maker, it.Description, it.SKU} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	for _, t := range it.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}
