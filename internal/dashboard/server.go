// Package dashboard serves the server-rendered dashboard UI on top of the
// two stores: a public data view (series filters, measurement table,
// measurement chart) and a login form. Page loads drive the stores the same
// way UI events would.
package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"sensordash/internal/data"
	"sensordash/internal/session"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Server renders the dashboard pages.
type Server struct {
	sessions *session.Store
	store    *data.Store
	log      *zap.Logger
	tmpl     *template.Template
}

// New creates the dashboard server.
func New(sessions *session.Store, store *data.Store, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Server{sessions: sessions, store: store, log: log, tmpl: tmpl}, nil
}

// Router returns the HTTP handler for the dashboard.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/toggle/{id:[0-9]+}", s.handleToggle).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/range", s.handleRange).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	return r
}

// handleIndex refreshes both collections and renders the data view. A failed
// refresh keeps whatever the stores already hold; the page renders stale
// data rather than an error screen.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.store.FetchSeries(ctx); err != nil {
		s.log.Warn("dashboard: series refresh failed", zap.Error(err))
	}
	if err := s.store.FetchMeasurements(ctx); err != nil {
		s.log.Warn("dashboard: measurements refresh failed", zap.Error(err))
	}

	vm := buildView(s.sessions, s.store.Snapshot())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "dashboard.html.tmpl", vm); err != nil {
		s.log.Error("render dashboard", zap.Error(err))
	}
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	s.store.ToggleSeriesSelection(id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	s.store.SetDateRange(r.PostFormValue("start"), r.PostFormValue("end"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "login.html.tmpl", map[string]any{}); err != nil {
		s.log.Error("render login", zap.Error(err))
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if err := s.sessions.Login(r.Context(), username, password); err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_ = s.tmpl.ExecuteTemplate(w, "login.html.tmpl", map[string]any{
			"Error": "Invalid username or password",
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
