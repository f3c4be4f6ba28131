// Package repository persists inventory items in the external record store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/zapuscina/internal/airtable"
	"github.com/erazemk/zapuscina/internal/imagestore"
	"github.com/erazemk/zapuscina/internal/model"
)

var (
	// ErrNotPersisted is returned for updates and deletes of items that have
	// no record id yet.
	ErrNotPersisted = errors.New("item has no record id")
	ErrNotFound     = errors.New("item not found")
)

// RecordStore is the subset of the records API the repository needs.
type RecordStore interface {
	List(ctx context.Context, opts airtable.ListOptions) ([]airtable.Record, error)
	Get(ctx context.Context, id string) (*airtable.Record, error)
	Create(ctx context.Context, fields []airtable.Fields) ([]airtable.Record, error)
	Update(ctx context.Context, records []airtable.Record) ([]airtable.Record, error)
	Delete(ctx context.Context, ids []string) error
}

// Filter narrows a List call.
type Filter struct {
	Owner string
}

// Repository reads and writes items.
type Repository struct {
	Store  RecordStore
	Images imagestore.Strategy
}

// New returns a repository using the given image strategy.
func New(store RecordStore, images imagestore.Strategy) *Repository {
	if images == nil {
		images = &imagestore.Inline{}
	}
	return &Repository{Store: store, Images: images}
}

// List returns the items visible under f.
func (r *Repository) List(ctx context.Context, f Filter) ([]*model.Item, error) {
	opts := airtable.ListOptions{}
	if f.Owner != "" {
		opts.Formula = airtable.FieldEquals(FieldUser, f.Owner)
	}
	records, err := r.Store.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	items := make([]*model.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, r.fromRecord(rec))
	}
	return items, nil
}

// Get returns the item stored under recordID.
func (r *Repository) Get(ctx context.Context, recordID string) (*model.Item, error) {
	if recordID == "" {
		return nil, ErrNotPersisted
	}
	rec, err := r.Store.Get(ctx, recordID)
	var apiErr *airtable.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return r.fromRecord(*rec), nil
}

// Create writes a new item for owner and returns it with its record id.
func (r *Repository) Create(ctx context.Context, item *model.Item, owner string) (*model.Item, error) {
	fields, err := r.toFields(ctx, item, owner, false)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	records, err := r.Store.Create(ctx, []airtable.Fields{fields})
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("creating item: record store returned no record")
	}
	out := item.Clone()
	out.RecordID = records[0].ID
	out.Owner = owner
	return out, nil
}

// Update overwrites an existing item. It fails without contacting the store
// when the item was never persisted. The returned item carries the stored
// app id and SKU whatever the caller sent.
func (r *Repository) Update(ctx context.Context, item *model.Item, owner string) (*model.Item, error) {
	if !item.Persisted() {
		return nil, ErrNotPersisted
	}
	fields, err := r.toFields(ctx, item, owner, true)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	records, err := r.Store.Update(ctx, []airtable.Record{{ID: item.RecordID, Fields: fields}})
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	out := item.Clone()
	out.Owner = owner
	if len(records) > 0 {
		if id := str(records[0].Fields, FieldAppID); id != "" {
			out.ID = id
		}
		if sku := str(records[0].Fields, FieldSKU); sku != "" {
			out.SKU = sku
		}
	}
	return out, nil
}

// Delete removes the record with the given id.
func (r *Repository) Delete(ctx context.Context, recordID string) error {
	if recordID == "" {
		return ErrNotPersisted
	}
	if err := r.Store.Delete(ctx, []string{recordID}); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	slog.Debug("item record deleted", "record", recordID)
	return nil
}
