// Package devapi is an in-memory implementation of the dashboard backend's
// HTTP surface. It backs `sensordash serve`, the store tests, and the visual
// checks, so none of them need a real deployment.
package devapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"sensordash/internal/types"
)

type userRecord struct {
	user         types.User
	passwordHash []byte
}

// Server holds the in-memory backend state.
type Server struct {
	log *zap.Logger

	mu           sync.Mutex
	users        map[string]*userRecord // keyed by username
	tokens       map[string]string      // token -> username
	series       []types.Series
	measurements []types.Measurement
	sensors      []types.Sensor

	nextUserID        int
	nextSeriesID      int
	nextMeasurementID int
	nextSensorID      int
}

// New creates an empty backend.
func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:               log,
		users:             map[string]*userRecord{},
		tokens:            map[string]string{},
		nextUserID:        1,
		nextSeriesID:      1,
		nextMeasurementID: 1,
		nextSensorID:      1,
	}
}

// Router returns the HTTP handler for the full API surface.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", s.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/me", s.handleUpdateMe).Methods(http.MethodPut)

	r.HandleFunc("/api/series/", s.handleListSeries).Methods(http.MethodGet)
	r.HandleFunc("/api/series/", s.handleCreateSeries).Methods(http.MethodPost)
	r.HandleFunc("/api/series/{id:[0-9]+}", s.handleUpdateSeries).Methods(http.MethodPut)
	r.HandleFunc("/api/series/{id:[0-9]+}", s.handleDeleteSeries).Methods(http.MethodDelete)

	r.HandleFunc("/api/measurements/", s.handleListMeasurements).Methods(http.MethodGet)
	r.HandleFunc("/api/measurements/", s.handleCreateMeasurement).Methods(http.MethodPost)
	r.HandleFunc("/api/measurements/{id:[0-9]+}", s.handleUpdateMeasurement).Methods(http.MethodPut)
	r.HandleFunc("/api/measurements/{id:[0-9]+}", s.handleDeleteMeasurement).Methods(http.MethodDelete)

	r.HandleFunc("/api/sensors/", s.handleListSensors).Methods(http.MethodGet)
	r.HandleFunc("/api/sensors/", s.handleCreateSensor).Methods(http.MethodPost)
	r.HandleFunc("/api/sensors/data", s.handleSensorData).Methods(http.MethodPost)
	r.HandleFunc("/api/sensors/{id:[0-9]+}", s.handleDeleteSensor).Methods(http.MethodDelete)

	return r
}

// SeedUser creates an account directly, bypassing the HTTP surface. Used by
// serve --seed and by tests.
func (s *Server) SeedUser(username, email, password string, admin bool) types.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	s.mu.Lock()
	defer s.mu.Unlock()
	u := types.User{
		ID:        s.nextUserID,
		Username:  username,
		Email:     email,
		IsAdmin:   admin,
		CreatedAt: time.Now().UTC(),
	}
	s.nextUserID++
	s.users[username] = &userRecord{user: u, passwordHash: hash}
	return u
}

// IssueToken mints a valid bearer token for an existing user. Test helper.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = username
	return token
}

// RevokeToken invalidates a previously issued token. Test helper.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// SeedSeries inserts a series directly.
func (s *Server) SeedSeries(d types.NewSeries) types.Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSeriesLocked(d, nil)
}

// SeedMeasurement inserts a measurement directly.
func (s *Server) SeedMeasurement(seriesID int, value float64, at time.Time) types.Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := types.Measurement{
		ID:        s.nextMeasurementID,
		SeriesID:  seriesID,
		Value:     value,
		Timestamp: at.UTC(),
	}
	s.nextMeasurementID++
	s.measurements = append(s.measurements, m)
	return m
}

func (s *Server) insertSeriesLocked(d types.NewSeries, createdBy *int) types.Series {
	color := d.Color
	if color == "" {
		color = "#3B82F6"
	}
	sr := types.Series{
		ID:          s.nextSeriesID,
		Name:        d.Name,
		Description: d.Description,
		MinValue:    d.MinValue,
		MaxValue:    d.MaxValue,
		Color:       color,
		Unit:        d.Unit,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   createdBy,
	}
	s.nextSeriesID++
	s.series = append(s.series, sr)
	return sr
}

// currentUser resolves the bearer token on r, if any.
func (s *Server) currentUser(r *http.Request) *types.User {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.tokens[auth[len(prefix):]]
	if !ok {
		return nil
	}
	rec, ok := s.users[username]
	if !ok {
		return nil
	}
	u := rec.user
	return &u
}

// requireUser writes a 401 and returns nil when the request carries no valid
// token.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) *types.User {
	u := s.currentUser(r)
	if u == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
	}
	return u
}

// requireAdmin additionally enforces the admin flag.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) *types.User {
	u := s.currentUser(r)
	if u == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return nil
	}
	if !u.IsAdmin {
		writeDetail(w, http.StatusForbidden, "Admin access required")
		return nil
	}
	return u
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	return true
}
