package auction

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/zapuscina/internal/model"
)

// DefaultPollInterval is how often watched auctions are refreshed.
const DefaultPollInterval = 5 * time.Second

// Fetcher loads the authoritative state of one auction.
type Fetcher interface {
	Auction(ctx context.Context, itemID string) (*model.AuctionStatus, error)
}

// Poller refreshes watched cards on a fixed interval until stopped.
type Poller struct {
	Fetcher  Fetcher
	Interval time.Duration
	// OnUpdate, if set, is called after each card is refreshed.
	OnUpdate func(View)

	mu     sync.Mutex
	cards  map[string]*Card
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller returns a poller using f.
func NewPoller(f Fetcher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{Fetcher: f, Interval: interval, cards: map[string]*Card{}}
}

// Watch adds a card to the polling set.
func (p *Poller) Watch(c *Card) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cards == nil {
		p.cards = map[string]*Card{}
	}
	p.cards[c.ItemID()] = c
}

// Unwatch removes a card from the polling set.
func (p *Poller) Unwatch(itemID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cards, itemID)
}

// Start begins polling in the background. Calling Start twice is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.PollOnce(ctx)
			}
		}
	}()
}

// Stop cancels the ticker and waits for an in-flight poll to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// PollOnce refreshes every watched card once.
func (p *Poller) PollOnce(ctx context.Context) {
	p.mu.Lock()
	cards := make([]*Card, 0, len(p.cards))
	for _, c := range p.cards {
		cards = append(cards, c)
	}
	p.mu.Unlock()

	for _, c := range cards {
		if ctx.Err() != nil {
			return
		}
		status, err := p.Fetcher.Auction(ctx, c.ItemID())
		if err != nil {
			slog.Warn("auction refresh failed", "item", c.ItemID(), "error", err)
			continue
		}
		v := c.Observe(UpdateFrom(status))
		if p.OnUpdate != nil {
			p.OnUpdate(v)
		}
	}
}
