package devapi

import (
	"net/http"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"sensordash/internal/types"
)

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	s.mu.Lock()
	out := slices.Clone(s.sensors)
	s.mu.Unlock()
	if out == nil {
		out = []types.Sensor{}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSensor(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	var d types.NewSensor
	if !readJSON(w, r, &d) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.ContainsFunc(s.series, func(sr types.Series) bool { return sr.ID == d.SeriesID }) {
		writeDetail(w, http.StatusNotFound, "Series not found")
		return
	}
	sensor := types.Sensor{
		ID:        s.nextSensorID,
		Name:      d.Name,
		APIKey:    uuid.NewString(),
		SeriesID:  d.SeriesID,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	s.nextSensorID++
	s.sensors = append(s.sensors, sensor)
	writeJSON(w, http.StatusCreated, sensor)
}

func (s *Server) handleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.sensors)
	s.sensors = slices.DeleteFunc(s.sensors, func(sn types.Sensor) bool { return sn.ID == id })
	if len(s.sensors) == before {
		writeDetail(w, http.StatusNotFound, "Sensor not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSensorData ingests a reading authenticated by the sensor's API key.
// Value and timestamp arrive as query parameters.
func (s *Server) handleSensorData(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		writeDetail(w, http.StatusUnauthorized, "Missing API key")
		return
	}

	q := r.URL.Query()
	value, err := strconv.ParseFloat(q.Get("value"), 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid value")
		return
	}
	ts := time.Now().UTC()
	if raw := q.Get("timestamp"); raw != "" {
		parsed, ok := parseDate(raw)
		if !ok {
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid timestamp")
			return
		}
		ts = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.sensors, func(sn types.Sensor) bool { return sn.APIKey == key })
	if idx < 0 {
		writeDetail(w, http.StatusUnauthorized, "Invalid API key")
		return
	}
	if !s.sensors[idx].IsActive {
		writeDetail(w, http.StatusForbidden, "Sensor is inactive")
		return
	}
	now := time.Now().UTC()
	s.sensors[idx].LastSeen = &now

	m := types.Measurement{
		ID:        s.nextMeasurementID,
		SeriesID:  s.sensors[idx].SeriesID,
		Value:     value,
		Timestamp: ts,
	}
	s.nextMeasurementID++
	s.measurements = append(s.measurements, m)
	writeJSON(w, http.StatusCreated, m)
}
