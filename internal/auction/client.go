package auction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erazemk/zapuscina/internal/model"
)

// Client calls the auction endpoints of the server.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// List returns all auctions.
func (c *Client) List(ctx context.Context) ([]model.AuctionStatus, error) {
	var out []model.AuctionStatus
	if err := c.do(ctx, http.MethodGet, "/api/auctions", nil, &out); err != nil {
		return nil, fmt.Errorf("listing auctions: %w", err)
	}
	return out, nil
}

// Auction returns one auction as seen by the caller.
func (c *Client) Auction(ctx context.Context, itemID string) (*model.AuctionStatus, error) {
	var out model.AuctionStatus
	if err := c.do(ctx, http.MethodGet, "/api/auctions/"+url.PathEscape(itemID), nil, &out); err != nil {
		return nil, fmt.Errorf("getting auction: %w", err)
	}
	return &out, nil
}

// PlaceBid submits amount for itemID.
func (c *Client) PlaceBid(ctx context.Context, itemID string, amount float64) (*model.AuctionStatus, error) {
	var out model.AuctionStatus
	body := map[string]float64{"amount": amount}
	if err := c.do(ctx, http.MethodPost, "/api/auctions/"+url.PathEscape(itemID)+"/bids", body, &out); err != nil {
		return nil, fmt.Errorf("placing bid: %w", err)
	}
	return &out, nil
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Status: resp.StatusCode, Message: e.Error}
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// UpdateFrom converts a server status into a card update.
func UpdateFrom(s *model.AuctionStatus) Update {
	winning := s.Winning
	return Update{
		CurrentBid: s.CurrentBid,
		BidCount:   s.BidCount,
		Winning:    &winning,
		EndsAt:     s.EndsAt,
	}
}
