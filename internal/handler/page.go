// Package handler contains HTTP request handlers for the contact browser.
//
// Handlers parse the request, call the session manager, and write the
// response. They hold no state of their own: the view-model of every browser
// lives in the session manager.
package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/contact-insight/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageHandler renders the single HTML page.
type PageHandler struct {
	templates *template.Template
	sessions  *session.Manager
	logger    *slog.Logger
}

// NewPageHandler parses the embedded templates once at startup.
func NewPageHandler(sessions *session.Manager, logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, err
	}

	return &PageHandler{
		templates: tmpl,
		sessions:  sessions,
		logger:    logger,
	}, nil
}

// HandlePage renders the current view-model of the caller's session.
//
// HTTP: GET /
func (h *PageHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	data := newStateResponse(h.sessions.View(sessionID), time.Now())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "page", data); err != nil {
		// Headers may already be sent, so only log.
		h.logger.Error("failed to render page", slog.String("error", err.Error()))
	}
}
