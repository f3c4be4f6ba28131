package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/zapuscina/internal/model"
)

// TokenAuthenticator is an Authenticator that also hands out a bearer token
// for later requests.
type TokenAuthenticator interface {
	Authenticator
	Login(ctx context.Context, username, password string) (*model.User, string, error)
}

// Remote checks credentials against a server's login endpoint.
type Remote struct {
	BaseURL string
	HTTP    *http.Client
}

// NewRemote returns an authenticator for the server at baseURL.
func NewRemote(baseURL string) *Remote {
	return &Remote{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *Remote) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, _, err := r.Login(ctx, username, password)
	return user, err
}

// Login posts the credentials and returns the signed-in user and token.
func (r *Remote) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user, token, err := r.post(ctx, "/api/auth/login", map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, "", err
	}
	if user.Username == "" {
		user.Username = username
	}
	return user, token, nil
}

// BidderLogin signs in a bidder by phone number. The server keys the
// account on the phone's digits.
func (r *Remote) BidderLogin(ctx context.Context, phone, name string) (*model.User, string, error) {
	return r.post(ctx, "/api/auth/bidder", map[string]string{"phone": phone, "name": name})
}

func (r *Remote) post(ctx context.Context, path string, payload map[string]string) (*model.User, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("logging in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, "", ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return nil, "", fmt.Errorf("logging in: %s", e.Error)
	}

	var out struct {
		Token    string `json:"token"`
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, "", fmt.Errorf("decoding login response: %w", err)
	}
	return &model.User{Username: out.Username, Role: out.Role}, out.Token, nil
}
