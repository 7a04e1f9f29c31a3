// Package people talks to Google's user-info and People APIs on behalf of a
// signed-in user.
//
// Every request is authorised with the user's bearer token through an
// oauth2 transport; this package never sees the OAuth flow itself.
package people

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/contact-insight/internal/apperror"
	"github.com/sakif/contact-insight/internal/metrics"
	"github.com/sakif/contact-insight/internal/model"
)

const (
	DefaultUserInfoURL    = "https://www.googleapis.com/oauth2/v1/userinfo"
	DefaultConnectionsURL = "https://people.googleapis.com/v1/people/me/connections"

	// PageSize is the number of connections requested per listing page.
	PageSize = 100
	// DefaultMaxPages bounds one aggregation. At PageSize it allows a million
	// contacts, far beyond Google's own per-account limit.
	DefaultMaxPages = 10000
)

// Config holds the endpoints and limits used by Client.
type Config struct {
	UserInfoURL    string
	ConnectionsURL string
	// MaxPages is the most listing pages one aggregation may request.
	MaxPages int
	// HTTPClient is the base transport wrapped by the bearer-token transport.
	// Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// DefaultConfig returns the production Google endpoints.
func DefaultConfig() Config {
	return Config{
		UserInfoURL:    DefaultUserInfoURL,
		ConnectionsURL: DefaultConnectionsURL,
		MaxPages:       DefaultMaxPages,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Client fetches the profile and contacts of the credential's owner.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Client. m may be nil.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	return &Client{cfg: cfg, logger: logger, metrics: m}
}

// userInfo is the portion of the user-info response we care about.
type userInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// FetchProfile retrieves the display name, email and avatar URL of the
// credential's owner with a single request. It does not retry.
func (c *Client) FetchProfile(ctx context.Context, cred *model.Credential) (*model.Profile, error) {
	if !cred.Valid() {
		return nil, apperror.AuthFailed("not signed in", nil)
	}

	var info userInfo
	err := getJSON(ctx, c.httpClient(ctx, cred), c.cfg.UserInfoURL, &info)
	c.metrics.Profile(err)
	if err != nil {
		return nil, apperror.FetchFailed("profile", err)
	}

	return &model.Profile{
		Name:    info.Name,
		Email:   info.Email,
		Picture: info.Picture,
	}, nil
}

// httpClient returns an *http.Client that adds "Authorization: Bearer <token>"
// to every request.
func (c *Client) httpClient(ctx context.Context, cred *model.Credential) *http.Client {
	if c.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.cfg.HTTPClient)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
	}))
}

// getJSON issues a GET and decodes a 200 JSON response into v.
func getJSON(ctx context.Context, hc *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("people: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("people: GET %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("people: GET %s returned status %d", req.URL.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("people: decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}
