package devapi

import (
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"sensordash/internal/types"
)

// parseDate accepts YYYY-MM-DD or RFC3339.
func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var ids []int
	if raw := q.Get("series_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				writeDetail(w, http.StatusUnprocessableEntity, "Invalid series_ids")
				return
			}
			ids = append(ids, id)
		}
	}

	var start, end time.Time
	var hasStart, hasEnd bool
	if raw := q.Get("start_date"); raw != "" {
		if start, hasStart = parseDate(raw); !hasStart {
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid start_date")
			return
		}
	}
	if raw := q.Get("end_date"); raw != "" {
		if end, hasEnd = parseDate(raw); !hasEnd {
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid end_date")
			return
		}
	}

	s.mu.Lock()
	out := make([]types.Measurement, 0, len(s.measurements))
	for _, m := range s.measurements {
		if len(ids) > 0 && !slices.Contains(ids, m.SeriesID) {
			continue
		}
		if hasStart && m.Timestamp.Before(start) {
			continue
		}
		if hasEnd && m.Timestamp.After(end) {
			continue
		}
		out = append(out, m)
	}
	s.mu.Unlock()

	// Most recent first, like the real backend.
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateMeasurement(w http.ResponseWriter, r *http.Request) {
	u := s.requireAdmin(w, r)
	if u == nil {
		return
	}
	var d types.NewMeasurement
	if !readJSON(w, r, &d) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.ContainsFunc(s.series, func(sr types.Series) bool { return sr.ID == d.SeriesID }) {
		writeDetail(w, http.StatusNotFound, "Series not found")
		return
	}
	ts := time.Now().UTC()
	if d.Timestamp != nil {
		ts = d.Timestamp.UTC()
	}
	m := types.Measurement{
		ID:        s.nextMeasurementID,
		SeriesID:  d.SeriesID,
		Value:     d.Value,
		Timestamp: ts,
		CreatedBy: &u.ID,
	}
	s.nextMeasurementID++
	s.measurements = append(s.measurements, m)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMeasurement(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	var up types.MeasurementUpdate
	if !readJSON(w, r, &up) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.measurements {
		if s.measurements[i].ID != id {
			continue
		}
		if up.Value != nil {
			s.measurements[i].Value = *up.Value
		}
		if up.Timestamp != nil {
			s.measurements[i].Timestamp = up.Timestamp.UTC()
		}
		writeJSON(w, http.StatusOK, s.measurements[i])
		return
	}
	writeDetail(w, http.StatusNotFound, "Measurement not found")
}

func (s *Server) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.measurements)
	s.measurements = slices.DeleteFunc(s.measurements, func(m types.Measurement) bool { return m.ID == id })
	if len(s.measurements) == before {
		writeDetail(w, http.StatusNotFound, "Measurement not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
