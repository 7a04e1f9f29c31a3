package auth

import (
	"context"
	"net/http"

	"github.com/rs/xid"
)

// SessionCookie is the name of the cookie carrying the signed session ID.
const SessionCookie = "session"

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow our values.
type contextKey string

const sessionIDKey contextKey = "sessionID"

// Session is a middleware that guarantees every request belongs to a browser
// session.
//
// It reads the JWT from the "session" HttpOnly cookie and validates it. If the
// cookie is missing, expired, or tampered with, a fresh session ID is minted
// and a new cookie is set on the response. Either way the session ID is stored
// in the request context for handlers to read with SessionIDFromContext.
//
// A new session starts signed out with an empty view, just like opening the
// page for the first time.
func Session(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, err := extractSessionID(r, tokens)
			if err != nil {
				sessionID = xid.New().String()
				tokenStr, err := tokens.Generate(sessionID)
				if err != nil {
					http.Error(w, `{"error":"internal_error","message":"could not start session"}`, http.StatusInternalServerError)
					return
				}
				// Secure should be true in production (HTTPS only).
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    tokenStr,
					Path:     "/",
					MaxAge:   int(tokens.TTL().Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSessionID returns a copy of ctx carrying sessionID. Handlers normally
// get this from the Session middleware; tests call it directly.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext retrieves the browser session ID from the request context.
//
// Returns ("", false) if the request did not pass through the Session middleware.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// extractSessionID reads the session cookie and validates it.
func extractSessionID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}

	return tokens.Validate(cookie.Value)
}
