// Package data owns the dashboard's domain collections (series,
// measurements, sensors) and the UI-facing selection state (selected series,
// date range). Every operation is a thin call against the backend; on success
// the local collection is updated to mirror the server's response.
package data

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"sensordash/internal/api"
	"sensordash/internal/observe"
	"sensordash/internal/types"
)

// Store holds the domain collections. All exported methods are safe for
// concurrent use. Concurrent fetches of one collection are last-write-wins;
// no request ordering is enforced.
type Store struct {
	client *api.Client
	log    *zap.Logger

	notifier observe.Notifier

	mu           sync.RWMutex
	series       []types.Series
	measurements []types.Measurement
	sensors      []types.Sensor
	selected     []int
	dateRange    types.DateRange
	inflight     int

	// Set once the user toggles a selection by hand, so an intentionally
	// emptied selection is not overridden by the fetch-time default.
	manualSelection bool
}

// New constructs an empty store backed by client.
func New(client *api.Client, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, log: log}
}

// Subscribe registers fn to run after every state change.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	return s.notifier.Subscribe(fn)
}

// Snapshot is an immutable copy of the store's state.
type Snapshot struct {
	Series            []types.Series
	Measurements      []types.Measurement
	Sensors           []types.Sensor
	SelectedSeriesIDs []int
	DateRange         types.DateRange
	Loading           bool
}

// Snapshot returns a copy of the full store state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Series:            slices.Clone(s.series),
		Measurements:      slices.Clone(s.measurements),
		Sensors:           slices.Clone(s.sensors),
		SelectedSeriesIDs: slices.Clone(s.selected),
		DateRange:         s.dateRange,
		Loading:           s.inflight > 0,
	}
}

// Series returns a copy of the series collection.
func (s *Store) Series() []types.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.series)
}

// Measurements returns a copy of the measurements collection.
func (s *Store) Measurements() []types.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.measurements)
}

// Sensors returns a copy of the sensors collection.
func (s *Store) Sensors() []types.Sensor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sensors)
}

// SelectedSeriesIDs returns a copy of the selected series ids.
func (s *Store) SelectedSeriesIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.selected)
}

// DateRange returns the current date-range filter.
func (s *Store) DateRange() types.DateRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dateRange
}

// Loading reports whether any fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

func (s *Store) beginFetch() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	s.notifier.Notify()
}

func (s *Store) endFetch() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	s.notifier.Notify()
}

// FetchSeries replaces the series collection with the server's response.
// When nothing is selected and the user has never toggled a selection, all
// fetched series become selected as a first-load default.
func (s *Store) FetchSeries(ctx context.Context) error {
	s.beginFetch()
	defer s.endFetch()

	series, err := s.client.ListSeries(ctx)
	if err != nil {
		s.log.Error("fetch series failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.series = series
	if len(s.selected) == 0 && !s.manualSelection {
		ids := make([]int, len(series))
		for i, sr := range series {
			ids[i] = sr.ID
		}
		s.selected = ids
	}
	s.mu.Unlock()
	s.notifier.Notify()
	return nil
}

// CreateSeries creates a series and appends the server's record.
func (s *Store) CreateSeries(ctx context.Context, d types.NewSeries) (*types.Series, error) {
	created, err := s.client.CreateSeries(ctx, d)
	if err != nil {
		s.log.Error("create series failed", zap.Error(err))
		return nil, err
	}
	s.mu.Lock()
	s.series = append(s.series, *created)
	s.mu.Unlock()
	s.notifier.Notify()
	return created, nil
}

// UpdateSeries applies a partial update and replaces the local record.
func (s *Store) UpdateSeries(ctx context.Context, id int, up types.SeriesUpdate) (*types.Series, error) {
	updated, err := s.client.UpdateSeries(ctx, id, up)
	if err != nil {
		s.log.Error("update series failed", zap.Int("id", id), zap.Error(err))
		return nil, err
	}
	s.mu.Lock()
	for i := range s.series {
		if s.series[i].ID == id {
			s.series[i] = *updated
			break
		}
	}
	s.mu.Unlock()
	s.notifier.Notify()
	return updated, nil
}

// DeleteSeries removes a series from the collection and from the selection,
// so a deleted series cannot linger as a stale filter.
func (s *Store) DeleteSeries(ctx context.Context, id int) error {
	if err := s.client.DeleteSeries(ctx, id); err != nil {
		s.log.Error("delete series failed", zap.Int("id", id), zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.series = slices.DeleteFunc(s.series, func(sr types.Series) bool { return sr.ID == id })
	s.selected = slices.DeleteFunc(s.selected, func(sel int) bool { return sel == id })
	s.mu.Unlock()
	s.notifier.Notify()
	return nil
}

// ToggleSeriesSelection adds id to the selection if absent, removes it if
// present.
func (s *Store) ToggleSeriesSelection(id int) {
	s.mu.Lock()
	s.manualSelection = true
	if i := slices.Index(s.selected, id); i >= 0 {
		s.selected = slices.Delete(s.selected, i, i+1)
	} else {
		s.selected = append(s.selected, id)
	}
	s.mu.Unlock()
	s.notifier.Notify()
}

// SetDateRange replaces the date-range filter wholesale.
func (s *Store) SetDateRange(start, end string) {
	s.mu.Lock()
	s.dateRange = types.DateRange{Start: start, End: end}
	s.mu.Unlock()
	s.notifier.Notify()
}

// MeasurementQuery assembles the request filter from the current selection
// and date range.
func (s *Store) MeasurementQuery() types.MeasurementQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.MeasurementQuery{
		SeriesIDs: slices.Clone(s.selected),
		StartDate: s.dateRange.Start,
		EndDate:   s.dateRange.End,
	}
}

// FetchMeasurements queries measurements for the current selection and date
// range and replaces the collection with the response.
func (s *Store) FetchMeasurements(ctx context.Context) error {
	s.beginFetch()
	defer s.endFetch()

	measurements, err := s.client.ListMeasurements(ctx, s.MeasurementQuery())
	if err != nil {
		s.log.Error("fetch measurements failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.measurements = measurements
	s.mu.Unlock()
	s.notifier.Notify()
	return nil
}

// CreateMeasurement records a measurement and prepends the server's record,
// keeping the collection most-recent-first.
func (s *Store) CreateMeasurement(ctx context.Context, d types.NewMeasurement) (*types.Measurement, error) {
	created, err := s.client.CreateMeasurement(ctx, d)
	if err != nil {
		s.log.Error("create measurement failed", zap.Error(err))
		return nil, err
	}
	s.mu.Lock()
	s.measurements = append([]types.Measurement{*created}, s.measurements...)
	s.mu.Unlock()
	s.notifier.Notify()
	return created, nil
}

// UpdateMeasurement applies a partial update and replaces the local record.
func (s *Store) UpdateMeasurement(ctx context.Context, id int, up types.MeasurementUpdate) (*types.Measurement, error) {
	updated, err := s.client.UpdateMeasurement(ctx, id, up)
	if err != nil {
		s.log.Error("update measurement failed", zap.Int("id", id), zap.Error(err))
		return nil, err
	}
	s.mu.Lock()
	for i := range s.measurements {
		if s.measurements[i].ID == id {
			s.measurements[i] = *updated
			break
		}
	}
	s.mu.Unlock()
	s.notifier.Notify()
	return updated, nil
}

// DeleteMeasurement removes a measurement.
func (s *Store) DeleteMeasurement(ctx context.Context, id int) error {
	if err := s.client.DeleteMeasurement(ctx, id); err != nil {
		s.log.Error("delete measurement failed", zap.Int("id", id), zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.measurements = slices.DeleteFunc(s.measurements, func(m types.Measurement) bool { return m.ID == id })
	s.mu.Unlock()
	s.notifier.Notify()
	return nil
}

// FetchSensors replaces the sensors collection with the server's response.
func (s *Store) FetchSensors(ctx context.Context) error {
	s.beginFetch()
	defer s.endFetch()

	sensors, err := s.client.ListSensors(ctx)
	if err != nil {
		s.log.Error("fetch sensors failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.sensors = sensors
	s.mu.Unlock()
	s.notifier.Notify()
	return nil
}

// CreateSensor registers a sensor and appends the server's record.
func (s *Store) CreateSensor(ctx context.Context, d types.NewSensor) (*types.Sensor, error) {
	created, err := s.client.CreateSensor(ctx, d)
	if err != nil {
		s.log.Error("create sensor failed", zap.Error(err))
		return nil, err
	}
	s.mu.Lock()
	s.sensors = append(s.sensors, *created)
	s.mu.Unlock()
	s.notifier.Notify()
	return created, nil
}

// DeleteSensor removes a sensor. Sensors have no update operation; a device
// is replaced by deleting and re-registering it.
func (s *Store) DeleteSensor(ctx context.Context, id int) error {
	if err := s.client.DeleteSensor(ctx, id); err != nil {
		s.log.Error("delete sensor failed", zap.Int("id", id), zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.sensors = slices.DeleteFunc(s.sensors, func(sn types.Sensor) bool { return sn.ID == id })
	s.mu.Unlock()
	s.notifier.Notify()
	return nil
}
