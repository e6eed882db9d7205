package devapi

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/mux"

	"sensordash/internal/types"
)

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := slices.Clone(s.series)
	s.mu.Unlock()
	if out == nil {
		out = []types.Series{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	u := s.requireAdmin(w, r)
	if u == nil {
		return
	}
	var d types.NewSeries
	if !readJSON(w, r, &d) {
		return
	}
	if d.Name == "" || d.MaxValue <= d.MinValue {
		writeDetail(w, http.StatusUnprocessableEntity, "max_value must be greater than min_value")
		return
	}

	s.mu.Lock()
	created := s.insertSeriesLocked(d, &u.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateSeries(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	var up types.SeriesUpdate
	if !readJSON(w, r, &up) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.series {
		if s.series[i].ID != id {
			continue
		}
		sr := &s.series[i]
		if up.Name != nil {
			sr.Name = *up.Name
		}
		if up.Description != nil {
			sr.Description = *up.Description
		}
		if up.MinValue != nil {
			sr.MinValue = *up.MinValue
		}
		if up.MaxValue != nil {
			sr.MaxValue = *up.MaxValue
		}
		if up.Color != nil {
			sr.Color = *up.Color
		}
		if up.Unit != nil {
			sr.Unit = *up.Unit
		}
		writeJSON(w, http.StatusOK, *sr)
		return
	}
	writeDetail(w, http.StatusNotFound, "Series not found")
}

func (s *Server) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.series)
	s.series = slices.DeleteFunc(s.series, func(sr types.Series) bool { return sr.ID == id })
	if len(s.series) == before {
		writeDetail(w, http.StatusNotFound, "Series not found")
		return
	}
	// Cascade: measurements of a removed series disappear with it.
	s.measurements = slices.DeleteFunc(s.measurements, func(m types.Measurement) bool { return m.SeriesID == id })
	w.WriteHeader(http.StatusNoContent)
}
