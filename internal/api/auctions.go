package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/zapuscina/internal/events"
	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/store"
)

// AuctionsHandler handles auction and bid endpoints.
type AuctionsHandler struct {
	DB     *sql.DB
	Events events.Publisher
	// Now is used for closing decisions; nil means time.Now.
	Now func() time.Time
}

type createAuctionRequest struct {
	ItemID      string    `json:"item_id"`
	Title       string    `json:"title"`
	EndsAt      time.Time `json:"ends_at"`
	StartingBid float64   `json:"starting_bid"`
}

type placeBidRequest struct {
	Amount float64 `json:"amount"`
}

func (h *AuctionsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// status presents a for the requesting user.
func (h *AuctionsHandler) status(a *model.Auction, username string) model.AuctionStatus {
	return model.AuctionStatus{
		Auction: *a,
		Winning: a.BidCount > 0 && a.HighBidder == username,
		Closed:  a.Closed(h.now()),
	}
}

// List handles GET /api/auctions.
func (h *AuctionsHandler) List(w http.ResponseWriter, r *http.Request) {
	auctions, err := store.ListAuctions(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list auctions", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list auctions")
		return
	}

	claims := GetClaims(r.Context())
	out := make([]model.AuctionStatus, 0, len(auctions))
	for i := range auctions {
		out = append(out, h.status(&auctions[i], claims.Username))
	}
	jsonResponse(w, http.StatusOK, out)
}

// Create handles POST /api/auctions.
func (h *AuctionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.ItemID = strings.TrimSpace(req.ItemID)
	if req.ItemID == "" || req.EndsAt.IsZero() {
		jsonError(w, http.StatusBadRequest, "item_id and ends_at required")
		return
	}
	if !req.EndsAt.After(h.now()) {
		jsonError(w, http.StatusBadRequest, "ends_at must be in the future")
		return
	}
	if req.StartingBid <= 0 || math.IsInf(req.StartingBid, 0) || math.IsNaN(req.StartingBid) {
		jsonError(w, http.StatusBadRequest, "starting_bid must be positive")
		return
	}

	a, err := store.CreateAuction(r.Context(), h.DB, req.ItemID, req.Title, req.EndsAt, req.StartingBid)
	if errors.Is(err, store.ErrAuctionExists) {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to create auction", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create auction")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("auction opened", "user", claims.Username, "item", a.ItemID, "ends_at", a.EndsAt)
	jsonResponse(w, http.StatusCreated, h.status(a, claims.Username))
}

// Get handles GET /api/auctions/{id}.
func (h *AuctionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := store.GetAuction(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get auction", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get auction")
		return
	}
	if a == nil {
		jsonError(w, http.StatusNotFound, store.ErrAuctionNotFound.Error())
		return
	}
	jsonResponse(w, http.StatusOK, h.status(a, GetClaims(r.Context()).Username))
}

// Delete handles DELETE /api/auctions/{id}.
func (h *AuctionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	err := store.DeleteAuction(r.Context(), h.DB, itemID)
	if errors.Is(err, store.ErrAuctionNotFound) {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to delete auction", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete auction")
		return
	}
	slog.Info("auction removed", "user", GetClaims(r.Context()).Username, "item", itemID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "auction deleted"})
}

// ListBids handles GET /api/auctions/{id}/bids.
func (h *AuctionsHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	bids, err := store.ListBids(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to list bids", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list bids")
		return
	}
	if bids == nil {
		bids = []model.Bid{}
	}
	jsonResponse(w, http.StatusOK, bids)
}

// PlaceBid handles POST /api/auctions/{id}/bids.
func (h *AuctionsHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if math.IsInf(req.Amount, 0) || math.IsNaN(req.Amount) {
		jsonError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	claims := GetClaims(r.Context())
	itemID := r.PathValue("id")
	a, err := store.PlaceBid(r.Context(), h.DB, itemID, claims.Username, req.Amount, h.now())

	var tooLow *store.BidTooLowError
	switch {
	case errors.Is(err, store.ErrAuctionNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, store.ErrAuctionClosed):
		jsonError(w, http.StatusConflict, err.Error())
		return
	case errors.As(err, &tooLow):
		jsonError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("failed to place bid", "error", err, "request_id", GetRequestID(r.Context()))
		jsonError(w, http.StatusInternalServerError, "failed to place bid")
		return
	}

	if err := h.Events.Publish(r.Context(), events.BidPlaced, claims.Username, map[string]any{
		"item_id":   itemID,
		"amount":    req.Amount,
		"bid_count": a.BidCount,
	}); err != nil {
		slog.Warn("publishing event", "topic", events.BidPlaced, "error", err)
	}

	slog.Info("bid placed", "bidder", claims.Username, "item", itemID, "amount", req.Amount)
	jsonResponse(w, http.StatusOK, h.status(a, claims.Username))
}
