package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/schema"

	"github.com/erazemk/zapuscina/internal/cache"
	"github.com/erazemk/zapuscina/internal/events"
	"github.com/erazemk/zapuscina/internal/imagestore"
	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/repository"
)

// ItemStore persists items. *repository.Repository implements it.
type ItemStore interface {
	List(ctx context.Context, f repository.Filter) ([]*model.Item, error)
	Get(ctx context.Context, recordID string) (*model.Item, error)
	Create(ctx context.Context, item *model.Item, owner string) (*model.Item, error)
	Update(ctx context.Context, item *model.Item, owner string) (*model.Item, error)
	Delete(ctx context.Context, recordID string) error
}

// DefaultItemCacheTTL is used when no TTL is configured.
const DefaultItemCacheTTL = 30 * time.Second

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	Items    ItemStore
	Cache    cache.Cache
	CacheTTL time.Duration
	Events   events.Publisher
}

// itemQuery is the GET /api/items query string.
type itemQuery struct {
	Query    string `schema:"q"`
	Category string `schema:"category"`
	Flagged  bool   `schema:"flagged"`
	// Owner lets admins list another user's items; "*" lists everything.
	Owner string `schema:"owner"`
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

const allOwners = "*"

func itemsCacheKey(owner string) string {
	if owner == "" {
		owner = allOwners
	}
	return "items:" + owner
}

func (h *ItemsHandler) ready(w http.ResponseWriter) bool {
	if h.Items == nil {
		jsonError(w, http.StatusServiceUnavailable, "record store is not configured")
		return false
	}
	return true
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var q itemQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid query")
		return
	}

	claims := GetClaims(r.Context())
	owner := claims.Username
	if q.Owner != "" && claims.Role == model.RoleAdmin {
		owner = q.Owner
		if owner == allOwners {
			owner = ""
		}
	}

	items, err := h.list(r.Context(), owner)
	if err != nil {
		slog.Error("failed to list items", "error", err, "request_id", GetRequestID(r.Context()))
		jsonError(w, http.StatusBadGateway, "failed to list items")
		return
	}

	filter := q.Category
	if q.Flagged {
		filter = model.FilterFlagged
	}
	out := make([]*model.Item, 0, len(items))
	for _, it := range items {
		if it.InFilter(filter) && it.Matches(q.Query) {
			out = append(out, it)
		}
	}
	jsonResponse(w, http.StatusOK, out)
}

// list reads through the cache. Cache failures fall back to the store.
func (h *ItemsHandler) list(ctx context.Context, owner string) ([]*model.Item, error) {
	key := itemsCacheKey(owner)
	if h.Cache != nil {
		data, err := h.Cache.Get(ctx, key)
		switch {
		case err == nil:
			var items []*model.Item
			if jerr := json.Unmarshal(data, &items); jerr == nil {
				itemCacheLookups.WithLabelValues("hit").Inc()
				return items, nil
			}
		case !errors.Is(err, cache.ErrCacheMiss):
			slog.Warn("item cache unavailable", "error", err)
		}
		itemCacheLookups.WithLabelValues("miss").Inc()
	}

	items, err := h.Items.List(ctx, repository.Filter{Owner: owner})
	if err != nil {
		return nil, err
	}

	if h.Cache != nil {
		ttl := h.CacheTTL
		if ttl <= 0 {
			ttl = DefaultItemCacheTTL
		}
		if data, err := json.Marshal(items); err == nil {
			if err := h.Cache.Set(ctx, key, data, ttl); err != nil {
				slog.Warn("caching item list", "error", err)
			}
		}
	}
	return items, nil
}

func (h *ItemsHandler) invalidate(ctx context.Context, owners ...string) {
	if h.Cache == nil {
		return
	}
	keys := []string{itemsCacheKey("")}
	for _, o := range owners {
		if o != "" {
			keys = append(keys, itemsCacheKey(o))
		}
	}
	if err := h.Cache.Delete(ctx, keys...); err != nil {
		slog.Warn("invalidating item cache", "error", err)
	}
}

func (h *ItemsHandler) publish(ctx context.Context, topic events.Topic, actor string, data any) {
	if err := h.Events.Publish(ctx, topic, actor, data); err != nil {
		slog.Warn("publishing event", "topic", topic, "error", err)
	}
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var item model.Item
	if err := decodeJSON(r, &item); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now()
	fresh := model.NewItem(now)
	if item.ID == "" {
		item.ID = fresh.ID
	}
	if item.SKU == "" {
		item.SKU = fresh.SKU
	}
	if item.Category == "" {
		item.Category = fresh.Category
	}
	if item.Condition == "" {
		item.Condition = fresh.Condition
	}
	item.RecordID = ""

	if !validItem(w, &item) {
		return
	}

	claims := GetClaims(r.Context())
	created, err := h.Items.Create(r.Context(), &item, claims.Username)
	if errors.Is(err, imagestore.ErrPayloadTooLarge) {
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to create item", "error", err, "request_id", GetRequestID(r.Context()))
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.invalidate(r.Context(), claims.Username)
	h.publish(r.Context(), events.ItemCreated, claims.Username, created)
	slog.Info("item created", "user", claims.Username, "item", created.ID, "record", created.RecordID)
	jsonResponse(w, http.StatusCreated, created)
}

// stored loads the record behind a write. Staff may only touch their own
// items; other records look missing to them.
func (h *ItemsHandler) stored(w http.ResponseWriter, r *http.Request, recordID string) (*model.Item, bool) {
	claims := GetClaims(r.Context())
	item, err := h.Items.Get(r.Context(), recordID)
	if errors.Is(err, repository.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	if err != nil {
		slog.Error("failed to get item", "error", err, "request_id", GetRequestID(r.Context()))
		jsonError(w, http.StatusBadGateway, err.Error())
		return nil, false
	}
	if claims.Role != model.RoleAdmin && item.Owner != claims.Username {
		slog.Warn("item write by non-owner refused", "user", claims.Username, "record", recordID)
		jsonError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	return item, true
}

// Update handles PUT /api/items/{id}, where id is the record id. The app id,
// SKU and owner always come from the stored record.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var item model.Item
	if err := decodeJSON(r, &item); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item.RecordID = r.PathValue("id")

	if !validItem(w, &item) {
		return
	}

	existing, ok := h.stored(w, r, item.RecordID)
	if !ok {
		return
	}
	item.ID = existing.ID
	item.SKU = existing.SKU
	owner := existing.Owner
	claims := GetClaims(r.Context())
	if owner == "" {
		owner = claims.Username
	}

	updated, err := h.Items.Update(r.Context(), &item, owner)
	if errors.Is(err, repository.ErrNotPersisted) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, imagestore.ErrPayloadTooLarge) {
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to update item", "error", err, "request_id", GetRequestID(r.Context()))
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.invalidate(r.Context(), owner, claims.Username)
	h.publish(r.Context(), events.ItemUpdated, claims.Username, updated)
	slog.Info("item updated", "user", claims.Username, "owner", owner, "record", updated.RecordID)
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/items/{id}, where id is the record id.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	recordID := r.PathValue("id")
	existing, ok := h.stored(w, r, recordID)
	if !ok {
		return
	}
	claims := GetClaims(r.Context())
	if err := h.Items.Delete(r.Context(), recordID); err != nil {
		slog.Error("failed to delete item", "error", err, "request_id", GetRequestID(r.Context()))
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.invalidate(r.Context(), existing.Owner, claims.Username)
	h.publish(r.Context(), events.ItemDeleted, claims.Username, map[string]string{"record_id": recordID})
	slog.Info("item deleted", "user", claims.Username, "record", recordID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

func validItem(w http.ResponseWriter, item *model.Item) bool {
	err := item.Validate()
	if err == nil {
		return true
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		jsonFieldErrors(w, verr.Fields)
	} else {
		jsonError(w, http.StatusBadRequest, err.Error())
	}
	return false
}
