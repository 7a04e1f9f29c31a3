// Package view holds the per-browser view-model and its transitions.
//
// State is a plain value. Reduce is the only way to change it: it takes the
// current state and one event and returns the next state without side effects.
// The session manager owns one State per browser session and applies events to
// it as user actions and fetch results arrive.
package view

import (
	"time"

	"github.com/sakif/contact-insight/internal/model"
)

// PageSize is the number of contacts shown per page in paginated mode.
const PageSize = 100

// NoticeTTL is how long a notice stays visible after it is raised.
const NoticeTTL = 2 * time.Second

// Status tracks one asynchronous load.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// MarshalText makes Status render as its name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Level is the severity of a Notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a transient message shown to the user.
type Notice struct {
	Level     Level     `json:"level"`
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// State is the view-model of one browser session.
//
// Generation identifies the sign-in whose data the state currently shows. It
// is zero while signed out. Results tagged with any other generation belong to
// a superseded sign-in and are discarded.
type State struct {
	Generation uint64

	SignedIn      bool
	Profile       *model.Profile
	ProfileStatus Status
	ProfileError  string

	Contacts       []model.Contact
	ContactsStatus Status
	ContactsError  string
	// PagesFetched is the listing progress reported with a failed load.
	PagesFetched int

	Page    int // 1-indexed
	ShowAll bool

	Notices []Notice
}

// New returns the signed-out state of a fresh session.
func New() State {
	return State{Page: 1}
}

// TotalPages is the number of pages in paginated mode. It is at least 1 so
// that page 1 is always valid, even with no contacts.
func (s State) TotalPages() int {
	n := (len(s.Contacts) + PageSize - 1) / PageSize
	if n < 1 {
		return 1
	}
	return n
}

// HasPrev reports whether the "previous" control is enabled.
func (s State) HasPrev() bool {
	return !s.ShowAll && s.Page > 1
}

// HasNext reports whether the "next" control is enabled.
func (s State) HasNext() bool {
	return !s.ShowAll && s.Page < s.TotalPages()
}

// Window returns the half-open index range [start, end) of the contacts
// currently visible.
func (s State) Window() (start, end int) {
	total := len(s.Contacts)
	if s.ShowAll {
		return 0, total
	}
	start = (s.Page - 1) * PageSize
	end = start + PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return start, end
}

// Visible returns the contacts in the current window.
func (s State) Visible() []model.Contact {
	start, end := s.Window()
	return s.Contacts[start:end]
}

// ActiveNotices returns the notices that have not expired at now.
func (s State) ActiveNotices(now time.Time) []Notice {
	var out []Notice
	for _, n := range s.Notices {
		if now.Before(n.ExpiresAt) {
			out = append(out, n)
		}
	}
	return out
}
