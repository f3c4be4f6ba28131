package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/erazemk/zapuscina/internal/auction"
	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/session"
)

func (a *app) bidder(ctx context.Context, args []string) error {
	fs := newFlagSet("bidder", "bidder -phone <number> [-name n]")
	phone := fs.String("phone", "", "phone number, at least 10 digits")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *phone == "" {
		fs.Usage()
		return errors.New("a phone number is required")
	}

	user, token, err := a.remote.BidderLogin(ctx, *phone, *name)
	if err != nil {
		return err
	}
	if err := a.sessions.Save(&session.Session{Username: user.Username, Role: user.Role, Token: token}); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	fmt.Printf("Signed in as bidder %s.\n", user.Username)
	return nil
}

// auctionClient returns a client carrying the saved session's token.
func (a *app) auctionClient() (*auction.Client, error) {
	s, err := a.sessions.Load()
	if err != nil {
		return nil, err
	}
	if s == nil || s.Token == "" {
		return nil, errors.New("not signed in, run: zctl bidder -phone <number>")
	}
	return auction.NewClient(a.cfg.Client.ServerURL, s.Token), nil
}

func (a *app) auctions(ctx context.Context, _ []string) error {
	client, err := a.auctionClient()
	if err != nil {
		return err
	}
	list, err := client.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No auctions.")
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tTITLE\tBID\tBIDS\tNEXT\tENDS\tSTATUS")
	for _, s := range list {
		status := ""
		if s.Winning {
			status = "winning"
		}
		if s.Closed {
			status = "closed"
		}
		fmt.Fprintf(tw, "%s\t%s\t$%.2f\t%d\t$%.2f\t%s\t%s\n",
			s.ItemID, s.Title, s.CurrentBid, s.BidCount, auction.NextBid(s.CurrentBid),
			auction.FormatCountdown(s.EndsAt.Sub(now)), status)
	}
	tw.Flush()
	return nil
}

func (a *app) bid(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: zctl bid <item id>")
	}
	client, err := a.auctionClient()
	if err != nil {
		return err
	}
	status, err := client.Auction(ctx, args[0])
	if err != nil {
		return err
	}

	card := auction.NewCard(status.ItemID, status.CurrentBid, status.BidCount, status.EndsAt)
	if status.Winning {
		fmt.Printf("You are already the highest bidder at $%.2f.\n", status.CurrentBid)
		return nil
	}

	var accepted *model.AuctionStatus
	err = card.Bid(ctx, time.Now(), func(ctx context.Context, amount float64) error {
		s, err := client.PlaceBid(ctx, status.ItemID, amount)
		if err != nil {
			return err
		}
		accepted = s
		card.Observe(auction.UpdateFrom(s))
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("Bid of $%.2f accepted (%d bids).\n", accepted.CurrentBid, accepted.BidCount)
	return nil
}

// watch polls the given auctions and prints each change until interrupted.
func (a *app) watch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: zctl watch <item id>...")
	}
	client, err := a.auctionClient()
	if err != nil {
		return err
	}

	poller := auction.NewPoller(client, auction.DefaultPollInterval)
	for _, id := range args {
		s, err := client.Auction(ctx, id)
		if err != nil {
			return err
		}
		card := auction.NewCard(s.ItemID, s.CurrentBid, s.BidCount, s.EndsAt)
		card.Observe(auction.UpdateFrom(s))
		poller.Watch(card)
	}

	last := map[string]auction.View{}
	poller.OnUpdate = func(v auction.View) {
		prev, seen := last[v.ItemID]
		if seen && prev.CurrentBid == v.CurrentBid && prev.State == v.State {
			return
		}
		last[v.ItemID] = v
		fmt.Printf("%s  %-8s $%.2f  %d bids  next $%.2f  %s\n",
			v.ItemID, v.State, v.CurrentBid, v.BidCount, v.NextBid,
			auction.FormatCountdown(time.Until(v.EndsAt)))
	}

	poller.PollOnce(ctx)
	poller.Start(ctx)
	<-ctx.Done()
	poller.Stop()
	return nil
}
