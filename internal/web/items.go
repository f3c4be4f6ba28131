package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/repository"
	"github.com/erazemk/zapuscina/internal/store"
)

// ItemLister reads items from the record store.
type ItemLister interface {
	List(ctx context.Context, f repository.Filter) ([]*model.Item, error)
}

type itemsData struct {
	PageData
	Items      []*model.Item
	Auctioned  map[string]bool
	Filters    []string
	Filter     string
	Query      string
	Configured bool
}

// ItemsPage handles GET /items. Staff see their own items; admins see all.
func (s *Server) ItemsPage(w http.ResponseWriter, r *http.Request) {
	s.renderItems(w, r, http.StatusOK, "", "")
}

func (s *Server) renderItems(w http.ResponseWriter, r *http.Request, status int, errMsg, success string) {
	claims := GetWebClaims(r.Context())
	filter := r.FormValue("filter")
	if filter == "" {
		filter = model.FilterAll
	}
	query := strings.TrimSpace(r.FormValue("q"))

	data := &itemsData{
		PageData:   PageData{Title: "Items", User: claims, Error: errMsg, Success: success},
		Auctioned:  map[string]bool{},
		Filters:    append([]string{model.FilterAll, model.FilterFlagged}, model.Categories...),
		Filter:     filter,
		Query:      query,
		Configured: s.Items != nil,
	}

	if s.Items != nil {
		f := repository.Filter{Owner: claims.Username}
		if claims.Role == model.RoleAdmin {
			f.Owner = ""
		}
		items, err := s.Items.List(r.Context(), f)
		if err != nil {
			slog.Error("failed to list items", "error", err)
			data.Error = "Could not load items: " + err.Error()
		}
		for _, it := range items {
			if it.InFilter(filter) && it.Matches(query) {
				data.Items = append(data.Items, it)
			}
		}
	}

	if auctions, err := store.ListAuctions(r.Context(), s.DB); err == nil {
		for _, a := range auctions {
			data.Auctioned[a.ItemID] = true
		}
	} else {
		slog.Error("failed to list auctions", "error", err)
	}

	s.Templates.Render(w, status, "items.html", data)
}

// AuctionSubmit handles POST /items/{id}/auction.
func (s *Server) AuctionSubmit(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = itemID
	}

	startingBid, err := strconv.ParseFloat(r.FormValue("starting_bid"), 64)
	if err != nil || startingBid <= 0 {
		s.renderItems(w, r, http.StatusBadRequest, "Starting bid must be a positive amount.", "")
		return
	}
	hours, err := strconv.Atoi(r.FormValue("hours"))
	if err != nil || hours <= 0 {
		s.renderItems(w, r, http.StatusBadRequest, "Duration must be at least one hour.", "")
		return
	}

	endsAt := s.now().Add(time.Duration(hours) * time.Hour)
	_, err = store.CreateAuction(r.Context(), s.DB, itemID, title, endsAt, startingBid)
	if errors.Is(err, store.ErrAuctionExists) {
		s.renderItems(w, r, http.StatusConflict, "That item is already up for auction.", "")
		return
	}
	if err != nil {
		slog.Error("failed to create auction", "error", err)
		s.renderItems(w, r, http.StatusInternalServerError, "Could not start the auction.", "")
		return
	}

	slog.Info("auction started", "item", itemID, "ends_at", endsAt, "by", GetWebClaims(r.Context()).Username)
	s.renderItems(w, r, http.StatusOK, "", "Auction started for "+title+".")
}
