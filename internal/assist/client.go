// Package assist calls the image analysis endpoint for tag suggestions and
// item identification.
package assist

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AnalyzePath is where the server mounts the analysis proxy.
const AnalyzePath = "/api/analyze"

// Analysis modes.
const (
	ModeTags     = "tags"
	ModeIdentify = "identify"
)

// TagContext describes the item alongside its photo.
type TagContext struct {
	Name        string `json:"name"`
	Maker       string `json:"maker"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Request is the body of an analysis call.
type Request struct {
	Mode    string      `json:"mode"`
	Image   string      `json:"image"`
	Context *TagContext `json:"context,omitempty"`
}

// Response is the body of a successful analysis call.
type Response struct {
	Text        string       `json:"text"`
	SearchLinks []SearchLink `json:"searchLinks,omitempty"`
}

// Client talks to the analysis endpoint.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 90 * time.Second},
	}
}

// GenerateTags asks for search keywords for the photographed item.
func (c *Client) GenerateTags(ctx context.Context, image []byte, tc TagContext) ([]string, error) {
	resp, err := c.analyze(ctx, Request{
		Mode:    ModeTags,
		Image:   base64.StdEncoding.EncodeToString(image),
		Context: &tc,
	})
	if err != nil {
		return nil, err
	}
	return ParseTags(resp.Text), nil
}

// IdentifyItem asks for a structured appraisal of the photographed item.
func (c *Client) IdentifyItem(ctx context.Context, image []byte) (*Identification, error) {
	resp, err := c.analyze(ctx, Request{
		Mode:  ModeIdentify,
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, err
	}
	id, err := DecodeIdentification(resp.Text)
	if err != nil {
		return nil, err
	}
	id.SearchLinks = resp.SearchLinks
	return id, nil
}

func (c *Client) analyze(ctx context.Context, body Request) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+AnalyzePath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
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
		return nil, &Error{Kind: KindUnavailable, Message: "analysis service unreachable", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Message: "reading analysis response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, raw)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Kind: KindUnavailable, Message: fmt.Sprintf("Server Error (%d)", resp.StatusCode), Err: err}
	}
	return &out, nil
}

// credentialMessage is what the server answers when it has no model key.
const credentialMessage = "Server API Key configuration missing."

func statusError(status int, raw []byte) error {
	msg := fmt.Sprintf("Server Error (%d)", status)
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	kind := KindUnavailable
	if status == http.StatusUnauthorized || status == http.StatusForbidden || msg == credentialMessage {
		kind = KindCredential
	}
	return &Error{Kind: kind, Message: msg}
}

// LoadImage returns the bytes behind an item image reference, which is
// either a data: URL or a hosted link.
func LoadImage(ctx context.Context, client *http.Client, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "data:") {
		_, payload, ok := strings.Cut(ref, ",")
		if !ok {
			return nil, errors.New("malformed data URL")
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding data URL: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("building image request: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}
