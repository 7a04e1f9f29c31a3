package people

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/contact-insight/internal/apperror"
	"github.com/sakif/contact-insight/internal/model"
)

var testCred = &model.Credential{AccessToken: "ya29.test", TokenType: "Bearer"}

// fakeGoogle serves user-info and a scripted connections listing. Page i is
// served for cursor "" (i == 0) or "cursor-<i>"; every page except the last
// points at the next one.
type fakeGoogle struct {
	t *testing.T

	mu       sync.Mutex
	pages    [][]person
	cursors  []string // cursors received, in order ("" for the first page)
	failPage int      // 1-based page to fail with a 500; 0 never fails
	endless  bool     // always hand out another cursor
	profile  string   // raw user-info body
}

func (f *fakeGoogle) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ya29.test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, f.profile)
	})
	mux.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(f.t, "Bearer ya29.test", r.Header.Get("Authorization"))
		assert.Equal(f.t, "names,phoneNumbers", q.Get("personFields"))
		assert.Equal(f.t, "100", q.Get("pageSize"))

		f.mu.Lock()
		cursor := q.Get("pageToken")
		f.cursors = append(f.cursors, cursor)
		n := len(f.cursors)
		f.mu.Unlock()

		if f.failPage == n {
			http.Error(w, "backend error", http.StatusInternalServerError)
			return
		}

		resp := connectionsPage{}
		if f.endless {
			resp.NextPageToken = fmt.Sprintf("cursor-%d", n)
		} else {
			idx := n - 1
			if idx < len(f.pages) {
				resp.Connections = f.pages[idx]
			}
			if idx+1 < len(f.pages) {
				resp.NextPageToken = fmt.Sprintf("cursor-%d", idx+1)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeGoogle, maxPages int) *Client {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{
		UserInfoURL:    srv.URL + "/userinfo",
		ConnectionsURL: srv.URL + "/connections",
		MaxPages:       maxPages,
		HTTPClient:     srv.Client(),
	}, logger, nil)
}

// makePage builds n people named "<prefix>-<i>" with a phone each.
func makePage(prefix string, n int) []person {
	out := make([]person, n)
	for i := range out {
		out[i].ResourceName = fmt.Sprintf("people/%s-%d", prefix, i)
		out[i].Names = append(out[i].Names, struct {
			DisplayName string `json:"displayName"`
		}{DisplayName: fmt.Sprintf("%s-%d", prefix, i)})
		out[i].PhoneNumbers = append(out[i].PhoneNumbers, struct {
			Value string `json:"value"`
		}{Value: fmt.Sprintf("+1-555-%04d", i)})
	}
	return out
}

// =========================================================================
// AGGREGATION TESTS
// =========================================================================

func TestFetchAllContacts_SinglePageIssuesOneRequest(t *testing.T) {
	f := &fakeGoogle{pages: [][]person{makePage("a", 3)}}
	c := newTestClient(t, f, 0)

	res, err := c.FetchAllContacts(context.Background(), testCred)
	require.NoError(t, err)

	assert.Equal(t, []string{""}, f.cursors, "exactly one request, without a cursor")
	assert.Equal(t, 1, res.Pages)
	assert.Len(t, res.Contacts, 3)
}

func TestFetchAllContacts_FollowsCursorsInOrder(t *testing.T) {
	pages := [][]person{makePage("a", 100), makePage("b", 100), makePage("c", 50)}
	f := &fakeGoogle{pages: pages}
	c := newTestClient(t, f, 0)

	res, err := c.FetchAllContacts(context.Background(), testCred)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "cursor-1", "cursor-2"}, f.cursors)
	assert.Equal(t, 3, res.Pages)
	require.Len(t, res.Contacts, 250)

	// Concatenation in request order.
	assert.Equal(t, "a-0", res.Contacts[0].Name)
	assert.Equal(t, "a-99", res.Contacts[99].Name)
	assert.Equal(t, "b-0", res.Contacts[100].Name)
	assert.Equal(t, "c-49", res.Contacts[249].Name)
	assert.Equal(t, "people/c-49", res.Contacts[249].ResourceName)
}

func TestFetchAllContacts_PagesWithoutItems(t *testing.T) {
	// A page may omit "connections" entirely and still carry a cursor.
	f := &fakeGoogle{pages: [][]person{nil, makePage("b", 2), nil}}
	c := newTestClient(t, f, 0)

	res, err := c.FetchAllContacts(context.Background(), testCred)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)
	assert.Len(t, res.Contacts, 2)
}

func TestFetchAllContacts_ZeroContactsIsNotAnError(t *testing.T) {
	f := &fakeGoogle{pages: [][]person{nil}}
	c := newTestClient(t, f, 0)

	res, err := c.FetchAllContacts(context.Background(), testCred)
	require.NoError(t, err)
	assert.Empty(t, res.Contacts)
	assert.Equal(t, 1, res.Pages)
}

func TestFetchAllContacts_KeepsFirstNameAndPhoneOnly(t *testing.T) {
	var p person
	require.NoError(t, json.Unmarshal([]byte(`{
		"resourceName": "people/c1",
		"names": [{"displayName": "Ada"}, {"displayName": "Countess"}],
		"phoneNumbers": [{"value": "+44 1"}, {"value": "+44 2"}]
	}`), &p))
	var empty person
	require.NoError(t, json.Unmarshal([]byte(`{"resourceName": "people/c2"}`), &empty))

	f := &fakeGoogle{pages: [][]person{{p, empty}}}
	c := newTestClient(t, f, 0)

	res, err := c.FetchAllContacts(context.Background(), testCred)
	require.NoError(t, err)
	require.Len(t, res.Contacts, 2)

	assert.Equal(t, model.Contact{ResourceName: "people/c1", Name: "Ada", Phone: "+44 1"}, res.Contacts[0])
	assert.Equal(t, model.NoName, res.Contacts[1].DisplayName())
	assert.Equal(t, model.NoPhone, res.Contacts[1].DisplayPhone())
}

func TestFetchAllContacts_MidwayFailureKeepsProgress(t *testing.T) {
	f := &fakeGoogle{
		pages:    [][]person{makePage("a", 100), makePage("b", 100), makePage("c", 10)},
		failPage: 2,
	}
	c := newTestClient(t, f, 0)

	res, err := c.FetchAllContacts(context.Background(), testCred)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrFetch)

	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, 1, aggErr.Pages)
	assert.Equal(t, 100, aggErr.Fetched)

	assert.Equal(t, 1, res.Pages)
	assert.Len(t, res.Contacts, 100)
	assert.Len(t, f.cursors, 2, "no request after the failure")
}

func TestFetchAllContacts_CapStopsEndlessCursor(t *testing.T) {
	f := &fakeGoogle{endless: true}
	c := newTestClient(t, f, 5)

	res, err := c.FetchAllContacts(context.Background(), testCred)
	assert.ErrorIs(t, err, apperror.ErrPaginationExhausted)
	assert.NotErrorIs(t, err, apperror.ErrFetch)
	assert.Equal(t, 5, res.Pages)
	assert.Len(t, f.cursors, 5)
}

func TestFetchAllContacts_NoCredential(t *testing.T) {
	f := &fakeGoogle{}
	c := newTestClient(t, f, 0)

	_, err := c.FetchAllContacts(context.Background(), &model.Credential{})
	assert.ErrorIs(t, err, apperror.ErrAuth)
	assert.Empty(t, f.cursors)
}

// =========================================================================
// PROFILE TESTS
// =========================================================================

func TestFetchProfile(t *testing.T) {
	f := &fakeGoogle{profile: `{"id":"1","name":"Ada Lovelace","email":"ada@example.com","picture":"https://example.com/ada.png"}`}
	c := newTestClient(t, f, 0)

	p, err := c.FetchProfile(context.Background(), testCred)
	require.NoError(t, err)
	assert.Equal(t, &model.Profile{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Picture: "https://example.com/ada.png",
	}, p)
}

func TestFetchProfile_Unauthorized(t *testing.T) {
	f := &fakeGoogle{}
	c := newTestClient(t, f, 0)

	p, err := c.FetchProfile(context.Background(), &model.Credential{AccessToken: "revoked"})
	assert.Nil(t, p)
	assert.ErrorIs(t, err, apperror.ErrFetch)
}

func TestFetchProfile_BadJSON(t *testing.T) {
	f := &fakeGoogle{profile: `{not json`}
	c := newTestClient(t, f, 0)

	_, err := c.FetchProfile(context.Background(), testCred)
	assert.ErrorIs(t, err, apperror.ErrFetch)
}

// Failures are returned, not logged: the caller decides how to report them.
func TestFailuresAreLeftToTheCaller(t *testing.T) {
	f := &fakeGoogle{
		pages:    [][]person{makePage("a", 100), makePage("b", 1)},
		failPage: 2,
	}
	c := newTestClient(t, f, 0)
	var buf bytes.Buffer
	c.logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	_, err := c.FetchProfile(context.Background(), &model.Credential{AccessToken: "revoked"})
	require.Error(t, err)
	_, err = c.FetchAllContacts(context.Background(), testCred)
	require.Error(t, err)

	assert.Empty(t, buf.String())
}
