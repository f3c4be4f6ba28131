package model

import "time"

// Auction is the server-side bidding state of one item.
type Auction struct {
	ItemID      string    `json:"item_id"`
	Title       string    `json:"title"`
	EndsAt      time.Time `json:"ends_at"`
	StartingBid float64   `json:"starting_bid"`
	CurrentBid  float64   `json:"current_bid"`
	BidCount    int       `json:"bid_count"`
	HighBidder  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Closed reports whether bidding has ended at now.
func (a *Auction) Closed(now time.Time) bool {
	return !now.Before(a.EndsAt)
}

// Bid is a single accepted bid.
type Bid struct {
	ID       string    `json:"id"`
	ItemID   string    `json:"item_id"`
	Bidder   string    `json:"bidder"`
	Amount   float64   `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// AuctionStatus is an auction as seen by one bidder.
type AuctionStatus struct {
	Auction
	Winning bool `json:"winning"`
	Closed  bool `json:"closed"`
}
