package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSession runs one request through the Session middleware and returns
// the session ID the handler saw plus the recorded response.
func captureSession(t *testing.T, ts *TokenService, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var seen string
	h := Session(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := SessionIDFromContext(r.Context())
		require.True(t, ok, "handler should always see a session ID")
		seen = id
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return seen, rr
}

func TestSession_MintsCookieOnFirstVisit(t *testing.T) {
	ts := newTestTokenService(t)

	id, rr := captureSession(t, ts, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, id)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	got, err := ts.Validate(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestSession_ReusesValidCookie(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("existing-session")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})

	id, rr := captureSession(t, ts, req)

	assert.Equal(t, "existing-session", id)
	assert.Empty(t, rr.Result().Cookies(), "no new cookie for a valid session")
}

func TestSession_ReplacesExpiredCookie(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.GenerateWithDuration("stale-session", -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})

	id, rr := captureSession(t, ts, req)

	assert.NotEqual(t, "stale-session", id)
	assert.Len(t, rr.Result().Cookies(), 1)
}

func TestSessionIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := SessionIDFromContext(req.Context())
	assert.False(t, ok)
}
