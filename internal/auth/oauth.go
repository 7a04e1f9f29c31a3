package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sakif/contact-insight/internal/apperror"
	"github.com/sakif/contact-insight/internal/model"
)

// Scopes requested from Google: basic profile, email, and read-only contacts.
const (
	ScopeProfile  = "https://www.googleapis.com/auth/userinfo.profile"
	ScopeEmail    = "https://www.googleapis.com/auth/userinfo.email"
	ScopeContacts = "https://www.googleapis.com/auth/contacts.readonly"
)

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. We redirect the user to Google's consent screen with our ClientID and scopes.
// 2. The user approves (or cancels) on Google.
// 3. Google redirects back to the callback URL with a short-lived "code".
// 4. We exchange the code for an access token (server-to-server call).
//
// Unlike a browser-only client, the access token never reaches the browser:
// the server keeps it and calls the People API on the user's behalf.
type GoogleProvider struct {
	config *oauth2.Config
}

// ProviderOption customises a GoogleProvider.
type ProviderOption func(*oauth2.Config)

// WithEndpoint overrides Google's OAuth endpoints. Used by tests to point the
// exchange at an httptest server.
func WithEndpoint(ep oauth2.Endpoint) ProviderOption {
	return func(c *oauth2.Config) { c.Endpoint = ep }
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// callbackURL must match one of the "Authorized redirect URIs" of the OAuth
// client in the Google Cloud console exactly.
// Example: "http://localhost:8080/auth/google/callback"
func NewGoogleProvider(clientID, clientSecret, callbackURL string, opts ...ProviderOption) *GoogleProvider {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{ScopeProfile, ScopeEmail, ScopeContacts},
		Endpoint:     google.Endpoint, // pre-defined Google OAuth endpoints
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &GoogleProvider{config: cfg}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// STATE PARAMETER:
// The state is an unguessable value stored in a short-lived cookie before the
// redirect. The callback verifies Google echoed the same value back, which
// proves the flow was started by this browser (CSRF protection).
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// Credential. Any failure is reported as an apperror.ErrAuth kind.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*model.Credential, error) {
	if code == "" {
		return nil, apperror.AuthFailed("missing authorization code", nil)
	}

	// This makes a POST to Google's token endpoint using our ClientSecret.
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.AuthFailed("sign-in with Google failed",
			fmt.Errorf("auth: exchanging OAuth code: %w", err))
	}
	if tok.AccessToken == "" {
		return nil, apperror.AuthFailed("sign-in with Google failed",
			fmt.Errorf("auth: token endpoint returned no access token"))
	}

	return &model.Credential{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}
