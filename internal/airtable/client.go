// Package airtable is a small client for an Airtable-style records API.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.airtable.com"

// BatchSize is the most records the API accepts per write request.
const BatchSize = 10

// Fields holds a record's column values keyed by field name.
type Fields map[string]any

// Record is one table row.
type Record struct {
	ID          string `json:"id,omitempty"`
	CreatedTime string `json:"createdTime,omitempty"`
	Fields      Fields `json:"fields"`
}

// APIError is a non-2xx response from the records API.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return "Airtable Error: " + e.Message
	}
	if e.Type != "" {
		return "Airtable Error: " + e.Type
	}
	return fmt.Sprintf("Airtable API Error: %d %s", e.Status, http.StatusText(e.Status))
}

// ErrNotConfigured is returned when credentials or table coordinates are missing.
var ErrNotConfigured = errors.New("record store is not configured")

// Client talks to one table.
type Client struct {
	BaseURL string
	BaseID  string
	Table   string
	Token   string
	HTTP    *http.Client
}

// New returns a client for the given base and table.
func New(token, baseID, table string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		BaseID:  baseID,
		Table:   table,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListOptions filters a List call.
type ListOptions struct {
	Formula  string
	PageSize int
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type writeRequest struct {
	Records  []Record `json:"records"`
	Typecast bool     `json:"typecast"`
}

type writeResponse struct {
	Records []Record `json:"records"`
}

// List returns every record matching opts, following pagination.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	var all []Record
	offset := ""
	for {
		q := url.Values{}
		if opts.Formula != "" {
			q.Set("filterByFormula", opts.Formula)
		}
		if opts.PageSize > 0 {
			q.Set("pageSize", fmt.Sprint(opts.PageSize))
		}
		if offset != "" {
			q.Set("offset", offset)
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, "", q, nil, &page); err != nil {
			return nil, fmt.Errorf("listing records: %w", err)
		}
		all = append(all, page.Records...)
		if page.Offset == "" {
			return all, nil
		}
		offset = page.Offset
	}
}

// Get fetches one record by id.
func (c *Client) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("getting record: record id required")
	}
	var rec Record
	if err := c.do(ctx, http.MethodGet, id, nil, nil, &rec); err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return &rec, nil
}

// Create inserts records and returns them with their assigned ids.
func (c *Client) Create(ctx context.Context, fields []Fields) ([]Record, error) {
	records := make([]Record, len(fields))
	for i, f := range fields {
		records[i] = Record{Fields: f}
	}
	out, err := c.write(ctx, http.MethodPost, records)
	if err != nil {
		return nil, fmt.Errorf("creating records: %w", err)
	}
	return out, nil
}

// Update patches existing records. Fields set to nil are cleared.
func (c *Client) Update(ctx context.Context, records []Record) ([]Record, error) {
	for _, r := range records {
		if r.ID == "" {
			return nil, errors.New("updating records: record id required")
		}
	}
	out, err := c.write(ctx, http.MethodPatch, records)
	if err != nil {
		return nil, fmt.Errorf("updating records: %w", err)
	}
	return out, nil
}

// Delete removes records by id.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += BatchSize {
		end := min(start+BatchSize, len(ids))
		q := url.Values{}
		for _, id := range ids[start:end] {
			q.Add("records[]", id)
		}
		if err := c.do(ctx, http.MethodDelete, "", q, nil, nil); err != nil {
			return fmt.Errorf("deleting records: %w", err)
		}
	}
	return nil
}

func (c *Client) write(ctx context.Context, method string, records []Record) ([]Record, error) {
	var out []Record
	for start := 0; start < len(records); start += BatchSize {
		end := min(start+BatchSize, len(records))
		var resp writeResponse
		body := writeRequest{Records: records[start:end], Typecast: false}
		if err := c.do(ctx, method, "", nil, body, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Records...)
	}
	return out, nil
}

func (c *Client) endpoint() string {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/v0/" + url.PathEscape(c.BaseID) + "/" + url.PathEscape(c.Table)
}

func (c *Client) do(ctx context.Context, method, recordID string, q url.Values, body, target any) error {
	if c.Token == "" || c.BaseID == "" || c.Table == "" {
		return ErrNotConfigured
	}

	u := c.endpoint()
	if recordID != "" {
		u += "/" + url.PathEscape(recordID)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeError reads the {error: {type, message}} envelope. The API also
// sends a bare string for some errors.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Error) == 0 {
		return apiErr
	}
	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		apiErr.Type = detail.Type
		apiErr.Message = detail.Message
		return apiErr
	}
	var s string
	if err := json.Unmarshal(envelope.Error, &s); err == nil {
		apiErr.Type = s
	}
	return apiErr
}

// Quote escapes s for use as a string literal inside a formula.
func Quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// FieldEquals builds a formula matching records whose field equals value.
func FieldEquals(field, value string) string {
	return "{" + field + "} = " + Quote(value)
}
