package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/erazemk/zapuscina/internal/airtable"
	"github.com/erazemk/zapuscina/internal/model"
)

// Record store field names. They are case-sensitive.
const (
	FieldAppID       = "AppId"
	FieldName        = "Name"
	FieldMaker       = "Maker"
	FieldDescription = "Description"
	FieldPrice       = "Price"
	FieldCategory    = "Category"
	FieldTags        = "Tags"
	FieldConsigned   = "Consigned"
	FieldConsignee   = "Consignee"
	FieldShippable   = "Shippable"
	FieldWeight      = "Weight"
	FieldCondition   = "Condition"
	FieldFlaws       = "Flaws"
	FieldSize        = "Size"
	FieldListed      = "Listed"
	FieldFlagged     = "Flagged"
	FieldSKU         = "SKU"
	FieldUser        = "User"
	FieldAuctionEnd  = "AuctionEnd"
	FieldCurrentBid  = "CurrentBid"
	FieldBidCount    = "BidCount"
)

// toFields builds the record for item. Updates send nil for absent numbers
// so stale values are cleared; creates omit them. The app id and SKU are
// written once on create and never sent with an update.
func (r *Repository) toFields(ctx context.Context, item *model.Item, owner string, update bool) (airtable.Fields, error) {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	f := airtable.Fields{
		FieldName:        item.Name,
		FieldMaker:       item.Maker,
		FieldDescription: item.Description,
		FieldCategory:    item.Category,
		FieldTags:        string(tagsJSON),
		FieldConsigned:   item.Consigned,
		FieldConsignee:   item.ConsigneeName(),
		FieldShippable:   item.Shippable,
		FieldCondition:   item.Condition,
		FieldFlaws:       item.Flaws,
		FieldSize:        item.Size,
		FieldListed:      item.Listed,
		FieldFlagged:     item.Flagged,
		FieldUser:        owner,
	}
	if !update {
		f[FieldAppID] = item.ID
		f[FieldSKU] = item.SKU
	}
	setNumber(f, FieldPrice, item.Price, update)
	setNumber(f, FieldWeight, item.Weight, update)
	if item.AuctionEndsAt != nil {
		f[FieldAuctionEnd] = item.AuctionEndsAt.UTC().Format(time.RFC3339)
		setNumber(f, FieldCurrentBid, item.CurrentBid, update)
		f[FieldBidCount] = item.BidCount
	}

	imageFields, err := r.Images.Encode(ctx, item.Images)
	if err != nil {
		return nil, err
	}
	for k, v := range imageFields {
		f[k] = v
	}
	return f, nil
}

func setNumber(f airtable.Fields, name string, v *float64, update bool) {
	switch {
	case v != nil:
		f[name] = *v
	case update:
		f[name] = nil
	}
}

// fromRecord maps a record defensively: missing or mistyped values become
// zero values and malformed JSON sub-fields degrade to empty lists.
func (r *Repository) fromRecord(rec airtable.Record) *model.Item {
	f := rec.Fields
	item := &model.Item{
		ID:          str(f, FieldAppID),
		RecordID:    rec.ID,
		Owner:       str(f, FieldUser),
		Name:        str(f, FieldName),
		Maker:       str(f, FieldMaker),
		Description: str(f, FieldDescription),
		Category:    str(f, FieldCategory),
		Condition:   str(f, FieldCondition),
		Size:        str(f, FieldSize),
		Flaws:       str(f, FieldFlaws),
		SKU:         str(f, FieldSKU),
		Consigned:   boolean(f, FieldConsigned),
		Consignee:   str(f, FieldConsignee),
		Shippable:   boolean(f, FieldShippable),
		Listed:      boolean(f, FieldListed),
		Flagged:     boolean(f, FieldFlagged),
		Price:       number(f, FieldPrice),
		Weight:      number(f, FieldWeight),
		CurrentBid:  number(f, FieldCurrentBid),
		Tags:        tags(rec.ID, f[FieldTags]),
	}
	if item.ID == "" {
		item.ID = rec.ID
	}
	if item.Category == "" {
		item.Category = model.CategoryOther
	}
	if item.Condition == "" {
		item.Condition = model.ConditionGood
	}
	if n := number(f, FieldBidCount); n != nil {
		item.BidCount = int(*n)
	}
	if s := str(f, FieldAuctionEnd); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			item.AuctionEndsAt = &t
		}
	}

	images, err := r.Images.Decode(f)
	if err != nil {
		slog.Warn("malformed image data", "record", rec.ID, "error", err)
	}
	item.Images = images
	if item.Images == nil {
		item.Images = []string{}
	}
	return item
}

func str(f airtable.Fields, name string) string {
	s, _ := f[name].(string)
	return s
}

func boolean(f airtable.Fields, name string) bool {
	b, _ := f[name].(bool)
	return b
}

func number(f airtable.Fields, name string) *float64 {
	switch v := f[name].(type) {
	case float64:
		return &v
	case int:
		n := float64(v)
		return &n
	}
	return nil
}

// tags accepts a JSON-encoded string or a native list.
func tags(recordID string, v any) []string {
	out := []string{}
	switch t := v.(type) {
	case string:
		if t == "" {
			return out
		}
		if err := json.Unmarshal([]byte(t), &out); err != nil {
			slog.Warn("malformed tags", "record", recordID, "error", err)
			return []string{}
		}
		if out == nil {
			out = []string{}
		}
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
