package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/zapuscina/internal/model"
)

var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrAuctionClosed   = errors.New("auction closed")
	ErrAuctionExists   = errors.New("auction already exists")
)

// BidTooLowError is returned when a bid does not beat the current price.
type BidTooLowError struct {
	Minimum float64
	// Inclusive is true when Minimum itself is accepted (the first bid).
	Inclusive bool
}

func (e *BidTooLowError) Error() string {
	if e.Inclusive {
		return fmt.Sprintf("bid must be at least %.2f", e.Minimum)
	}
	return fmt.Sprintf("bid must be higher than %.2f", e.Minimum)
}

const auctionColumns = `item_id, title, ends_at, starting_bid, current_bid, bid_count, high_bidder, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*model.Auction, error) {
	a := &model.Auction{}
	err := row.Scan(&a.ItemID, &a.Title, &a.EndsAt, &a.StartingBid, &a.CurrentBid, &a.BidCount, &a.HighBidder, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAuction opens bidding on an item.
func CreateAuction(ctx context.Context, db *sql.DB, itemID, title string, endsAt time.Time, startingBid float64) (*model.Auction, error) {
	existing, err := GetAuction(ctx, db, itemID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAuctionExists
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO auctions (item_id, title, ends_at, starting_bid, current_bid) VALUES (?, ?, ?, ?, ?)`,
		itemID, title, endsAt.UTC(), startingBid, startingBid,
	)
	if err != nil {
		return nil, fmt.Errorf("creating auction: %w", err)
	}
	return GetAuction(ctx, db, itemID)
}

// GetAuction returns an auction by item id, or nil if there is none.
func GetAuction(ctx context.Context, db *sql.DB, itemID string) (*model.Auction, error) {
	a, err := scanAuction(db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE item_id = ?`, itemID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting auction: %w", err)
	}
	return a, nil
}

// ListAuctions returns all auctions, soonest ending first.
func ListAuctions(ctx context.Context, db *sql.DB) ([]model.Auction, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions ORDER BY ends_at, item_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing auctions: %w", err)
	}
	defer rows.Close()

	var auctions []model.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning auction: %w", err)
		}
		auctions = append(auctions, *a)
	}
	return auctions, rows.Err()
}

// DeleteAuction removes an auction and its bids.
func DeleteAuction(ctx context.Context, db *sql.DB, itemID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM auctions WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("deleting auction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAuctionNotFound
	}
	return nil
}

// PlaceBid records a bid if the auction is open and the amount beats the
// current bid. The first bid may equal the starting bid.
func PlaceBid(ctx context.Context, db *sql.DB, itemID, bidder string, amount float64, now time.Time) (*model.Auction, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := scanAuction(tx.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE item_id = ?`, itemID,
	))
	if err == sql.ErrNoRows {
		return nil, ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting auction: %w", err)
	}
	if a.Closed(now) {
		return nil, ErrAuctionClosed
	}
	if a.BidCount == 0 {
		if amount < a.StartingBid || amount <= 0 {
			return nil, &BidTooLowError{Minimum: a.StartingBid, Inclusive: true}
		}
	} else if amount <= a.CurrentBid {
		return nil, &BidTooLowError{Minimum: a.CurrentBid}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bids (id, item_id, bidder, amount, placed_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), itemID, bidder, amount, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting bid: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE auctions SET current_bid = ?, bid_count = bid_count + 1, high_bidder = ? WHERE item_id = ?`,
		amount, bidder, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating auction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing bid: %w", err)
	}

	a.CurrentBid = amount
	a.BidCount++
	a.HighBidder = bidder
	return a, nil
}

// ListBids returns the bids on an item, oldest first.
func ListBids(ctx context.Context, db *sql.DB, itemID string) ([]model.Bid, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id, bidder, amount, placed_at FROM bids WHERE item_id = ? ORDER BY placed_at, rowid`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.ItemID, &b.Bidder, &b.Amount, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("scanning bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}
