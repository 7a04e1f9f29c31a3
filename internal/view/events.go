package view

import (
	"time"

	"github.com/sakif/contact-insight/internal/model"
)

// Event is anything Reduce knows how to apply.
type Event interface {
	event()
}

// SignInSucceeded starts a new generation. Profile and contacts begin loading.
type SignInSucceeded struct {
	Generation uint64
	At         time.Time
}

// SignInFailed leaves the state signed out and raises an error notice.
type SignInFailed struct {
	Reason string
	At     time.Time
}

// SignedOut clears everything except the sign-out notice.
type SignedOut struct {
	At time.Time
}

// ProfileLoaded delivers the profile fetched for Generation.
type ProfileLoaded struct {
	Generation uint64
	Profile    *model.Profile
}

// ProfileFailed reports a failed profile fetch for Generation.
type ProfileFailed struct {
	Generation uint64
	Err        string
}

// Refreshing marks a retry of Generation's fetches as in flight. A profile
// that already loaded is kept.
type Refreshing struct {
	Generation uint64
}

// ContactsLoaded delivers the complete contact list for Generation.
type ContactsLoaded struct {
	Generation uint64
	Contacts   []model.Contact
}

// ContactsFailed reports a failed aggregation for Generation. Partial results
// are not shown; Pages records how far the listing got.
type ContactsFailed struct {
	Generation uint64
	Err        string
	Pages      int
}

// NextPage moves one page forward.
type NextPage struct{}

// PrevPage moves one page back.
type PrevPage struct{}

// ToggleShowAll switches between paginated and show-all rendering.
type ToggleShowAll struct{}

func (SignInSucceeded) event() {}
func (SignInFailed) event() {}
func (SignedOut) event() {}
func (ProfileLoaded) event() {}
func (ProfileFailed) event() {}
func (Refreshing) event() {}
func (ContactsLoaded) event() {}
func (ContactsFailed) event() {}
func (NextPage) event() {}
func (PrevPage) event() {}
func (ToggleShowAll) event() {}

// Reduce applies ev to s and returns the resulting state. s is not modified.
//
// Out-of-range page moves and results from a stale generation leave the state
// unchanged.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case SignInSucceeded:
		next := New()
		next.Generation = ev.Generation
		next.SignedIn = true
		next.ProfileStatus = StatusLoading
		next.ContactsStatus = StatusLoading
		next.Notices = notify(s.Notices, ev.At, LevelSuccess, "You successfully logged in")
		return next

	case SignInFailed:
		s.Notices = notify(s.Notices, ev.At, LevelError, "Login Failed!")
		return s

	case SignedOut:
		next := New()
		next.Notices = notify(s.Notices, ev.At, LevelSuccess, "You have been logged out!")
		return next

	case ProfileLoaded:
		if !current(s, ev.Generation) {
			return s
		}
		s.Profile = ev.Profile
		s.ProfileStatus = StatusReady
		s.ProfileError = ""
		return s

	case ProfileFailed:
		if !current(s, ev.Generation) {
			return s
		}
		s.ProfileStatus = StatusFailed
		s.ProfileError = ev.Err
		return s

	case Refreshing:
		if !current(s, ev.Generation) {
			return s
		}
		s.ContactsStatus = StatusLoading
		s.ContactsError = ""
		s.PagesFetched = 0
		if s.ProfileStatus != StatusReady {
			s.ProfileStatus = StatusLoading
			s.ProfileError = ""
		}
		return s

	case ContactsLoaded:
		if !current(s, ev.Generation) {
			return s
		}
		s.Contacts = ev.Contacts
		s.ContactsStatus = StatusReady
		s.ContactsError = ""
		s.PagesFetched = 0
		if s.Page > s.TotalPages() {
			s.Page = s.TotalPages()
		}
		return s

	case ContactsFailed:
		if !current(s, ev.Generation) {
			return s
		}
		s.Contacts = nil
		s.ContactsStatus = StatusFailed
		s.ContactsError = ev.Err
		s.PagesFetched = ev.Pages
		s.Page = 1
		return s

	case NextPage:
		if s.HasNext() {
			s.Page++
		}
		return s

	case PrevPage:
		if s.HasPrev() {
			s.Page--
		}
		return s

	case ToggleShowAll:
		s.ShowAll = !s.ShowAll
		return s
	}
	return s
}

func current(s State, gen uint64) bool {
	return s.SignedIn && s.Generation == gen
}

// notify returns a new slice with expired notices dropped and one appended.
func notify(notices []Notice, at time.Time, level Level, text string) []Notice {
	out := make([]Notice, 0, len(notices)+1)
	for _, n := range notices {
		if at.Before(n.ExpiresAt) {
			out = append(out, n)
		}
	}
	return append(out, Notice{Level: level, Text: text, ExpiresAt: at.Add(NoticeTTL)})
}
