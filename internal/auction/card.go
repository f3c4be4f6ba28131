// Package auction keeps a bidder's view of live auctions in step with the
// server while showing bids optimistically.
package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is what a bidder sees on an auction card.
type State int

const (
	StateIdle State = iota
	StateBidding
	StateWinning
	StateOutbid
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBidding:
		return "bidding"
	case StateWinning:
		return "winning"
	case StateOutbid:
		return "outbid"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrClosed         = errors.New("auction closed")
	ErrAlreadyWinning = errors.New("already the highest bidder")
	ErrBidFailed      = errors.New("bid failed, please try again")
)

// NextBid returns the minimum next bid above b: steps of 5 below 100 and
// steps of 25 from 100 up.
func NextBid(b float64) float64 {
	if b < 100 {
		return b + 5
	}
	return b + 25
}

// Update is authoritative state received from the server.
type Update struct {
	CurrentBid float64
	BidCount   int
	// Winning is nil when the server did not say.
	Winning *bool
	EndsAt  time.Time
}

// View is a snapshot of a card for display.
type View struct {
	ItemID     string
	CurrentBid float64
	NextBid    float64
	BidCount   int
	State      State
	EndsAt     time.Time
}

// Card reconciles one item's optimistic bid with server updates.
type Card struct {
	mu            sync.Mutex
	itemID        string
	endsAt        time.Time
	authoritative float64
	optimistic    float64
	bidCount      int
	state         State
	seq           uint64
	// inflight is the amount of the newest bid still awaiting the server, or 0.
	inflight float64
}

// NewCard starts a card from the last known server state.
func NewCard(itemID string, currentBid float64, bidCount int, endsAt time.Time) *Card {
	return &Card{
		itemID:        itemID,
		endsAt:        endsAt,
		authoritative: currentBid,
		optimistic:    currentBid,
		bidCount:      bidCount,
	}
}

// ItemID returns the item the card tracks.
func (c *Card) ItemID() string { return c.itemID }

// View returns the card's current state.
func (c *Card) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Card) viewLocked() View {
	return View{
		ItemID:     c.itemID,
		CurrentBid: c.optimistic,
		NextBid:    NextBid(c.optimistic),
		BidCount:   c.bidCount,
		State:      c.state,
		EndsAt:     c.endsAt,
	}
}

// CanBid reports whether the bid action is enabled at now.
func (c *Card) CanBid(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeIfEndedLocked(now)
	return c.state != StateWinning && c.state != StateClosed && c.state != StateBidding
}

// Bid places the next bid optimistically and submits it. On success the
// card stays winning. On failure it falls back to the last server value
// and idle, unless a newer bid was started in the meantime.
func (c *Card) Bid(ctx context.Context, now time.Time, submit func(ctx context.Context, amount float64) error) error {
	c.mu.Lock()
	c.closeIfEndedLocked(now)
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateWinning, StateBidding:
		c.mu.Unlock()
		return ErrAlreadyWinning
	}
	amount := NextBid(c.optimistic)
	c.optimistic = amount
	c.state = StateWinning
	c.seq++
	token := c.seq
	c.inflight = amount
	c.mu.Unlock()

	err := submit(ctx, amount)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.seq {
		// A newer bid owns the card now.
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBidFailed, err)
		}
		return nil
	}
	c.inflight = 0
	if err != nil {
		c.optimistic = c.authoritative
		if c.state != StateClosed {
			c.state = StateIdle
		}
		return fmt.Errorf("%w: %v", ErrBidFailed, err)
	}
	if amount > c.authoritative {
		c.authoritative = amount
	}
	return nil
}

// Observe applies server state. A server bid above the shown bid is adopted
// and marks the card outbid, as does a server report that this bidder is no
// longer winning. A not-winning report below a bid still in flight predates
// that bid and leaves the card winning. A winning report at the shown bid
// restores the winning state.
func (c *Card) Observe(u Update) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !u.EndsAt.IsZero() {
		c.endsAt = u.EndsAt
	}
	if u.BidCount > c.bidCount {
		c.bidCount = u.BidCount
	}
	c.authoritative = u.CurrentBid
	if u.CurrentBid > c.optimistic {
		c.optimistic = u.CurrentBid
		if c.state != StateClosed {
			c.state = StateOutbid
		}
	}
	if u.Winning != nil && c.state != StateClosed {
		switch {
		case *u.Winning && u.CurrentBid == c.optimistic:
			c.state = StateWinning
		case !*u.Winning && c.state == StateWinning:
			if c.inflight == 0 || u.CurrentBid >= c.inflight {
				c.state = StateOutbid
			}
		}
	}
	return c.viewLocked()
}

// Countdown returns the time left as display text and closes the card once
// the end time passes.
func (c *Card) Countdown(now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeIfEndedLocked(now)
	return FormatCountdown(c.endsAt.Sub(now))
}

func (c *Card) closeIfEndedLocked(now time.Time) {
	if !c.endsAt.IsZero() && !now.Before(c.endsAt) {
		c.state = StateClosed
	}
}

// FormatCountdown renders d as "Xd Yh" above a day, "Hh Mm Ss" otherwise and
// "CLOSED" once it is no longer positive.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "CLOSED"
	}
	hours := int(d / time.Hour)
	minutes := int(d%time.Hour) / int(time.Minute)
	seconds := int(d%time.Minute) / int(time.Second)
	if hours > 24 {
		return fmt.Sprintf("%dd %dh", hours/24, hours%24)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
