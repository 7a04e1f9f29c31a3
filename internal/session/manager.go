// Package session manages sign-in state and the view-model of every browser
// session.
//
// Each browser session has one view.State, kept in an expiring in-memory
// cache, and at most one Credential, kept in a CredentialRepository. All state
// changes go through Dispatch, which applies one view event under the
// manager's lock.
//
// After a successful sign-in the profile fetch and the contact aggregation run
// in the background, concurrently with each other. Their results are tagged
// with the generation of the sign-in that started them; view.Reduce drops
// results whose generation is no longer current, so a fetch that finishes after
// sign-out (or after a newer sign-in) never leaks into the view.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sakif/contact-insight/internal/apperror"
	"github.com/sakif/contact-insight/internal/metrics"
	"github.com/sakif/contact-insight/internal/model"
	"github.com/sakif/contact-insight/internal/people"
	"github.com/sakif/contact-insight/internal/repository"
	"github.com/sakif/contact-insight/internal/view"
)

// DefaultViewTTL is how long an untouched view-model is kept in memory.
const DefaultViewTTL = 24 * time.Hour

// fetchTimeout bounds one background load (profile or full aggregation).
const fetchTimeout = 5 * time.Minute

// Provider runs the interactive sign-in flow. *auth.GoogleProvider implements it.
type Provider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*model.Credential, error)
}

// Fetcher retrieves the data shown after sign-in. *people.Client implements it.
type Fetcher interface {
	FetchProfile(ctx context.Context, cred *model.Credential) (*model.Profile, error)
	FetchAllContacts(ctx context.Context, cred *model.Credential) (people.Result, error)
}

// Manager is the identity session manager.
type Manager struct {
	provider Provider
	fetcher  Fetcher
	creds    repository.CredentialRepository
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	generation atomic.Uint64

	mu      sync.Mutex
	views   *gocache.Cache
	loading map[string]*load // in-flight loads, by session ID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Manager. viewTTL <= 0 selects DefaultViewTTL. m may be nil.
func New(
	provider Provider,
	fetcher Fetcher,
	creds repository.CredentialRepository,
	viewTTL time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Manager {
	if viewTTL <= 0 {
		viewTTL = DefaultViewTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		provider: provider,
		fetcher:  fetcher,
		creds:    creds,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		views:    gocache.New(viewTTL, viewTTL/4),
		loading:  make(map[string]*load),
		ctx:      ctx,
		cancel:   cancel,
	}
	mgr.views.OnEvicted(mgr.expire)
	return mgr
}

// expire runs when an idle session's view-model is evicted. The session can
// no longer be seen as signed in, so its credential and any load it still
// runs go with it.
func (m *Manager) expire(sessionID string, _ interface{}) {
	m.mu.Lock()
	if l, ok := m.loading[sessionID]; ok {
		l.cancel()
		delete(m.loading, sessionID)
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.creds.Delete(ctx, sessionID); err != nil {
		m.logger.Error("deleting credential of expired session",
			slog.String("session", sessionID),
			slog.String("error", err.Error()),
		)
		return
	}
	m.logger.Info("session expired", slog.String("session", sessionID))
}

// AuthURL is where the browser is sent to start signing in.
func (m *Manager) AuthURL(state string) string {
	return m.provider.AuthURL(state)
}

// View returns the current view-model of sessionID. Unknown sessions get the
// signed-out state.
func (m *Manager) View(sessionID string) view.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked(sessionID)
}

// Dispatch applies ev to the view-model of sessionID and returns the result.
func (m *Manager) Dispatch(sessionID string, ev view.Event) view.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := view.Reduce(m.viewLocked(sessionID), ev)
	m.views.SetDefault(sessionID, next)
	return next
}

func (m *Manager) viewLocked(sessionID string) view.State {
	if v, ok := m.views.Get(sessionID); ok {
		return v.(view.State)
	}
	return view.New()
}

// SignIn completes the interactive flow with the authorization code returned
// by the provider. On success the credential is stored, a success notice is
// raised, and the profile and contacts start loading in the background. On
// failure nothing is stored, an error notice is raised, and an
// apperror.ErrAuth kind is returned. There is no retry.
func (m *Manager) SignIn(ctx context.Context, sessionID, code string) error {
	cred, err := m.provider.Exchange(ctx, code)
	if err == nil {
		err = m.creds.Save(ctx, sessionID, cred)
	}
	m.metrics.SignIn(err)
	if err != nil {
		m.logger.Warn("sign-in failed",
			slog.String("session", sessionID),
			slog.String("error", err.Error()),
		)
		m.Dispatch(sessionID, view.SignInFailed{Reason: err.Error(), At: m.now()})
		if errors.Is(err, apperror.ErrAuth) {
			return err
		}
		return apperror.AuthFailed("sign-in failed", err)
	}

	gen := m.generation.Add(1)
	m.Dispatch(sessionID, view.SignInSucceeded{Generation: gen, At: m.now()})
	m.logger.Info("signed in", slog.String("session", sessionID), slog.Uint64("generation", gen))

	m.startLoad(sessionID, gen, cred)
	return nil
}

// DenySignIn records a sign-in the user cancelled (or the provider refused)
// before any code was issued.
func (m *Manager) DenySignIn(sessionID, reason string) {
	m.metrics.SignIn(errors.New(reason))
	m.logger.Info("sign-in denied", slog.String("session", sessionID), slog.String("reason", reason))
	m.Dispatch(sessionID, view.SignInFailed{Reason: reason, At: m.now()})
}

// SignOut drops the session's credential, cancels its in-flight fetches, and
// clears profile, contacts and paging. It always clears the view, even when
// deleting the stored credential fails; that error is still returned.
func (m *Manager) SignOut(ctx context.Context, sessionID string) error {
	err := m.creds.Delete(ctx, sessionID)

	m.mu.Lock()
	if l, ok := m.loading[sessionID]; ok {
		l.cancel()
		delete(m.loading, sessionID)
	}
	m.mu.Unlock()

	m.Dispatch(sessionID, view.SignedOut{At: m.now()})
	m.logger.Info("signed out", slog.String("session", sessionID))

	if err != nil {
		return fmt.Errorf("session: signing out %s: %w", sessionID, err)
	}
	return nil
}

// Credential returns the credential currently held by sessionID, or an
// apperror.ErrAuth kind when the session is signed out.
func (m *Manager) Credential(ctx context.Context, sessionID string) (*model.Credential, error) {
	cred, err := m.creds.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.AuthFailed("not signed in", nil)
		}
		return nil, fmt.Errorf("session: loading credential: %w", err)
	}
	return cred, nil
}

// Refresh re-runs the profile fetch and contact aggregation for the current
// sign-in. A load already in flight for the session is cancelled first.
func (m *Manager) Refresh(ctx context.Context, sessionID string) error {
	st := m.View(sessionID)
	if !st.SignedIn {
		return apperror.AuthFailed("not signed in", nil)
	}
	cred, err := m.Credential(ctx, sessionID)
	if err != nil {
		return err
	}

	m.Dispatch(sessionID, view.Refreshing{Generation: st.Generation})
	m.startLoad(sessionID, st.Generation, cred)
	return nil
}

// Wait blocks until every background load has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels all background loads and waits for them to return.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// load is one in-flight background load. Its address identifies it in
// Manager.loading.
type load struct {
	cancel context.CancelFunc
}

// startLoad runs the profile fetch and the contact aggregation for gen in the
// background, replacing any load in flight for the same session.
func (m *Manager) startLoad(sessionID string, gen uint64, cred *model.Credential) {
	ctx, cancel := context.WithTimeout(m.ctx, fetchTimeout)
	l := &load{cancel: cancel}

	m.mu.Lock()
	if prev, ok := m.loading[sessionID]; ok {
		prev.cancel()
	}
	m.loading[sessionID] = l
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.finishLoad(sessionID, l)

		var jobs sync.WaitGroup
		jobs.Add(2)
		go func() {
			defer jobs.Done()
			m.loadProfile(ctx, sessionID, l, gen, cred)
		}()
		go func() {
			defer jobs.Done()
			m.loadContacts(ctx, sessionID, l, gen, cred)
		}()
		jobs.Wait()
	}()
}

// finishLoad releases l, leaving a newer load for the session untouched.
func (m *Manager) finishLoad(sessionID string, l *load) {
	l.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loading[sessionID] == l {
		delete(m.loading, sessionID)
	}
}

// dispatchFrom applies a result of l. Results of a load that was cancelled or
// replaced are dropped: a newer load of the same generation owns the view.
func (m *Manager) dispatchFrom(sessionID string, l *load, ev view.Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loading[sessionID] != l {
		return false
	}
	m.views.SetDefault(sessionID, view.Reduce(m.viewLocked(sessionID), ev))
	return true
}

func (m *Manager) loadProfile(ctx context.Context, sessionID string, l *load, gen uint64, cred *model.Credential) {
	profile, err := m.fetcher.FetchProfile(ctx, cred)
	if err != nil {
		if m.dispatchFrom(sessionID, l, view.ProfileFailed{Generation: gen, Err: message(err)}) {
			m.logger.Warn("profile fetch failed",
				slog.String("session", sessionID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	m.dispatchFrom(sessionID, l, view.ProfileLoaded{Generation: gen, Profile: profile})
}

func (m *Manager) loadContacts(ctx context.Context, sessionID string, l *load, gen uint64, cred *model.Credential) {
	res, err := m.fetcher.FetchAllContacts(ctx, cred)
	if err != nil {
		if m.dispatchFrom(sessionID, l, view.ContactsFailed{Generation: gen, Err: message(err), Pages: res.Pages}) {
			m.logger.Warn("contact aggregation failed",
				slog.String("session", sessionID),
				slog.Int("pages", res.Pages),
				slog.Int("partial", len(res.Contacts)),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if m.dispatchFrom(sessionID, l, view.ContactsLoaded{Generation: gen, Contacts: res.Contacts}) {
		m.logger.Info("contacts loaded",
			slog.String("session", sessionID),
			slog.Int("contacts", len(res.Contacts)),
			slog.Int("pages", res.Pages),
		)
	}
}

// message is the user-facing text for err: the AppError message when there
// is one, since raw transport errors may leak URLs or tokens.
func message(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an internal error occurred"
}
