package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/zapuscina/internal/auction"
	"github.com/erazemk/zapuscina/internal/events"
	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/store"
)

type boardData struct {
	PageData
	Auctions []model.AuctionStatus
}

// Board handles GET /. It lists every auction as the signed-in user sees it.
func (s *Server) Board(w http.ResponseWriter, r *http.Request) {
	s.renderBoard(w, r, http.StatusOK, "", "")
}

func (s *Server) renderBoard(w http.ResponseWriter, r *http.Request, status int, errMsg, success string) {
	claims := GetWebClaims(r.Context())
	auctions, err := store.ListAuctions(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list auctions", "error", err)
		errMsg = "Could not load auctions."
	}

	now := s.now()
	out := make([]model.AuctionStatus, 0, len(auctions))
	for i := range auctions {
		a := &auctions[i]
		out = append(out, model.AuctionStatus{
			Auction: *a,
			Winning: a.BidCount > 0 && a.HighBidder == claims.Username,
			Closed:  a.Closed(now),
		})
	}

	s.Templates.Render(w, status, "board.html", &boardData{
		PageData: PageData{Title: "Auctions", User: claims, Error: errMsg, Success: success},
		Auctions: out,
	})
}

// BidSubmit handles POST /auctions/{id}/bid. It places the next increment
// above the current bid as of this request, so a stale page cannot bid an
// old amount.
func (s *Server) BidSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	itemID := r.PathValue("id")

	a, err := store.GetAuction(r.Context(), s.DB, itemID)
	if err != nil {
		slog.Error("failed to get auction", "error", err)
		s.renderBoard(w, r, http.StatusInternalServerError, "Bid failed, please try again.", "")
		return
	}
	if a == nil {
		s.renderBoard(w, r, http.StatusNotFound, "That auction no longer exists.", "")
		return
	}
	if a.BidCount > 0 && a.HighBidder == claims.Username {
		s.renderBoard(w, r, http.StatusConflict, "You are already the highest bidder.", "")
		return
	}

	amount := auction.NextBid(a.CurrentBid)
	updated, err := store.PlaceBid(r.Context(), s.DB, itemID, claims.Username, amount, s.now())
	var tooLow *store.BidTooLowError
	switch {
	case errors.Is(err, store.ErrAuctionClosed):
		s.renderBoard(w, r, http.StatusConflict, "Bidding on this item has closed.", "")
		return
	case errors.As(err, &tooLow):
		s.renderBoard(w, r, http.StatusConflict, "Someone bid first, the price has gone up.", "")
		return
	case err != nil:
		slog.Error("failed to place bid", "error", err)
		s.renderBoard(w, r, http.StatusInternalServerError, "Bid failed, please try again.", "")
		return
	}

	if err := s.Events.Publish(r.Context(), events.BidPlaced, claims.Username, updated); err != nil {
		slog.Warn("failed to publish bid", "item", itemID, "error", err)
	}
	slog.Info("bid placed", "item", itemID, "bidder", claims.Username, "amount", amount)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
