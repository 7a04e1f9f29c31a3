package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/contact-insight/internal/apperror"
	"github.com/sakif/contact-insight/internal/auth"
	"github.com/sakif/contact-insight/internal/export"
	"github.com/sakif/contact-insight/internal/metrics"
	"github.com/sakif/contact-insight/internal/model"
	"github.com/sakif/contact-insight/internal/session"
	"github.com/sakif/contact-insight/internal/view"
)

// ContactsHandler serves the contact list view, its transitions, and the
// spreadsheet export.
type ContactsHandler struct {
	sessions *session.Manager
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewContactsHandler creates a ContactsHandler. m may be nil.
func NewContactsHandler(sessions *session.Manager, m *metrics.Metrics, logger *slog.Logger) *ContactsHandler {
	return &ContactsHandler{sessions: sessions, metrics: m, logger: logger}
}

// ContactRow is one rendered contact, placeholders applied.
type ContactRow struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// StateResponse is the visible part of the view-model, as JSON and as the
// data of the page template.
type StateResponse struct {
	SignedIn      bool           `json:"signedIn"`
	Profile       *model.Profile `json:"profile,omitempty"`
	ProfileStatus view.Status    `json:"profileStatus"`
	ProfileError  string         `json:"profileError,omitempty"`

	ContactsStatus view.Status  `json:"contactsStatus"`
	ContactsError  string       `json:"contactsError,omitempty"`
	PagesFetched   int          `json:"pagesFetched,omitempty"`
	TotalContacts  int          `json:"totalContacts"`
	Contacts       []ContactRow `json:"contacts"`

	Page       int  `json:"page"`
	TotalPages int  `json:"totalPages"`
	ShowAll    bool `json:"showAll"`
	HasPrev    bool `json:"hasPrev"`
	HasNext    bool `json:"hasNext"`
	// Paginate is false when everything fits on one page; the controls are
	// then not rendered at all.
	Paginate bool `json:"paginate"`

	Notices []view.Notice `json:"notices"`
}

// newStateResponse renders st as seen at now.
func newStateResponse(st view.State, now time.Time) StateResponse {
	visible := st.Visible()
	rows := make([]ContactRow, len(visible))
	for i, c := range visible {
		rows[i] = ContactRow{Name: c.DisplayName(), Phone: c.DisplayPhone()}
	}

	notices := st.ActiveNotices(now)
	if notices == nil {
		notices = []view.Notice{}
	}

	return StateResponse{
		SignedIn:       st.SignedIn,
		Profile:        st.Profile,
		ProfileStatus:  st.ProfileStatus,
		ProfileError:   st.ProfileError,
		ContactsStatus: st.ContactsStatus,
		ContactsError:  st.ContactsError,
		PagesFetched:   st.PagesFetched,
		TotalContacts:  len(st.Contacts),
		Contacts:       rows,
		Page:           st.Page,
		TotalPages:     st.TotalPages(),
		ShowAll:        st.ShowAll,
		HasPrev:        st.HasPrev(),
		HasNext:        st.HasNext(),
		Paginate:       !st.ShowAll && len(st.Contacts) > view.PageSize,
		Notices:        notices,
	}
}

// HandleState returns the current view-model.
//
// HTTP: GET /api/state
func (h *ContactsHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(h.sessions.View(sessionID), time.Now()))
}

// HandleNext moves to the next page. On the last page it is a no-op, mirroring
// the disabled control.
//
// HTTP: POST /view/next
func (h *ContactsHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, view.NextPage{})
}

// HandlePrev moves to the previous page.
//
// HTTP: POST /view/prev
func (h *ContactsHandler) HandlePrev(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, view.PrevPage{})
}

// HandleToggle switches between paginated and show-all rendering. Nothing is
// refetched.
//
// HTTP: POST /view/toggle
func (h *ContactsHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, view.ToggleShowAll{})
}

func (h *ContactsHandler) dispatch(w http.ResponseWriter, r *http.Request, ev view.Event) {
	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}
	respond(w, r, h.sessions.Dispatch(sessionID, ev))
}

// HandleRefresh retries loading profile and contacts after a failure.
//
// HTTP: POST /contacts/refresh
func (h *ContactsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Refresh(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, h.sessions.View(sessionID))
}

// HandleExport downloads every contact as contacts.xlsx.
//
// HTTP: GET /contacts.xlsx
//
// The workbook is encoded into memory first, so an encoding failure can
// still be reported as a JSON error instead of a truncated download.
func (h *ContactsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	st := h.sessions.View(sessionID)
	if !st.SignedIn {
		writeError(w, apperror.AuthFailed("sign in to export contacts", nil))
		return
	}
	if st.ContactsStatus != view.StatusReady {
		writeError(w, &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: fmt.Sprintf("contacts are %s, not ready for export", st.ContactsStatus),
		})
		return
	}

	var buf bytes.Buffer
	err := export.Write(&buf, st.Contacts)
	h.metrics.Export(err)
	if err != nil {
		h.logger.Error("export failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("export: writing response", slog.String("error", err.Error()))
	}
}

// sessionFromRequest reads the session ID set by auth.Session. A missing ID
// means the route was mounted without the middleware.
func sessionFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.SessionIDFromContext(r.Context())
	if !ok {
		writeError(w, fmt.Errorf("handler: no session on request to %s", r.URL.Path))
		return "", false
	}
	return id, true
}

// respond answers a state-changing request: JSON clients get the new state,
// HTML form posts are redirected back to the page (post/redirect/get).
func respond(w http.ResponseWriter, r *http.Request, st view.State) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, newStateResponse(st, time.Now()))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
