package handler

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/sakif/contact-insight/internal/session"
)

const stateCookie = "oauth_state"

// newState returns 16 bytes from crypto/rand, hex-encoded.
func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// AuthHandler drives the Google sign-in flow and sign-out.
//
//   - HandleGoogleLogin    → redirect the browser to Google's consent screen
//   - HandleGoogleCallback → receive the code and complete the sign-in
//   - HandleLogout         → drop the credential and clear the view
//
// Outcomes are reported through notices on the view-model, so every route
// ends by sending the browser back to the page.
type AuthHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sessions *session.Manager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, logger: logger}
}

// HandleGoogleLogin redirects the user to Google's authorization page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// An unguessable state value goes into a short-lived HttpOnly cookie and into the
// authorization URL. HandleGoogleCallback only accepts a callback echoing the
// same value.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := newState()
	if err != nil {
		h.logger.Error("login: generating state", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.sessions.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the sign-in.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. If Google reports an error (user cancelled), record a failed sign-in
//  3. Otherwise exchange the code; the session manager stores the credential
//     and starts loading profile and contacts in the background
//  4. Redirect to the page, which shows the outcome notice
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", cookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// --- Step 2: user denied authorization ---
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.sessions.DenySignIn(sessionID, errParam)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	// --- Step 3: exchange the code ---
	// A failure has already been recorded as a notice on the view.
	if err := h.sessions.SignIn(r.Context(), sessionID, r.URL.Query().Get("code")); err != nil {
		h.logger.Error("auth callback: sign-in failed", slog.String("error", err.Error()))
	}

	// --- Step 4: back to the page ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout signs the session out.
//
// HTTP: POST /auth/logout
//
// Logout is a state-changing operation, so it is POST only. The session
// cookie itself is kept: the browser stays on the same (now signed-out) page.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.sessions.SignOut(r.Context(), sessionID); err != nil {
		h.logger.Error("logout: deleting credential failed", slog.String("error", err.Error()))
	}

	respond(w, r, h.sessions.View(sessionID))
}
