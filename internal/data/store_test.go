package data_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"sensordash/internal/api"
	"sensordash/internal/data"
	"sensordash/internal/devapi"
	"sensordash/internal/types"
)

type env struct {
	backend *devapi.Server
	client  *api.Client
	store   *data.Store
}

// newEnv wires a store to an in-memory backend with an admin token already
// set, so write operations succeed.
func newEnv(t *testing.T) *env {
	t.Helper()
	backend := devapi.New(nil)
	backend.SeedUser("admin", "admin@example.com", "admin-pass", true)
	ts := httptest.NewServer(backend.Router())
	client := api.New(ts.URL, nil)
	client.SetToken(backend.IssueToken("admin"))
	t.Cleanup(func() {
		client.CloseIdleConnections()
		ts.Close()
	})
	return &env{backend: backend, client: client, store: data.New(client, nil)}
}

func TestFetchSeriesReplacesAndAutoSelects(t *testing.T) {
	e := newEnv(t)
	a := e.backend.SeedSeries(types.NewSeries{Name: "Temperature", MinValue: -10, MaxValue: 40})
	b := e.backend.SeedSeries(types.NewSeries{Name: "Humidity", MinValue: 0, MaxValue: 100})

	require.NoError(t, e.store.FetchSeries(context.Background()))

	require.Len(t, e.store.Series(), 2)
	require.Equal(t, []int{a.ID, b.ID}, e.store.SelectedSeriesIDs())
}

func TestFetchSeriesKeepsPriorSelection(t *testing.T) {
	e := newEnv(t)
	a := e.backend.SeedSeries(types.NewSeries{Name: "Temperature", MinValue: -10, MaxValue: 40})
	e.backend.SeedSeries(types.NewSeries{Name: "Humidity", MinValue: 0, MaxValue: 100})

	e.store.ToggleSeriesSelection(a.ID)
	require.NoError(t, e.store.FetchSeries(context.Background()))

	// A manual selection is not overridden by the fetch-time default.
	require.Equal(t, []int{a.ID}, e.store.SelectedSeriesIDs())
}

func TestFetchSeriesRespectsManuallyEmptiedSelection(t *testing.T) {
	e := newEnv(t)
	a := e.backend.SeedSeries(types.NewSeries{Name: "Temperature", MinValue: -10, MaxValue: 40})

	require.NoError(t, e.store.FetchSeries(context.Background()))
	require.Equal(t, []int{a.ID}, e.store.SelectedSeriesIDs())

	// Deselect everything by hand, then fetch again: the empty selection
	// must survive.
	e.store.ToggleSeriesSelection(a.ID)
	require.Empty(t, e.store.SelectedSeriesIDs())

	require.NoError(t, e.store.FetchSeries(context.Background()))
	require.Empty(t, e.store.SelectedSeriesIDs())
}

func TestToggleSeriesSelection(t *testing.T) {
	e := newEnv(t)

	before := e.store.SelectedSeriesIDs()
	e.store.ToggleSeriesSelection(5)
	e.store.ToggleSeriesSelection(5)
	require.Equal(t, before, e.store.SelectedSeriesIDs())

	e.store.ToggleSeriesSelection(5)
	require.Equal(t, []int{5}, e.store.SelectedSeriesIDs())

	e.store.ToggleSeriesSelection(9)
	e.store.ToggleSeriesSelection(5)
	require.Equal(t, []int{9}, e.store.SelectedSeriesIDs())
}

func TestCreateSeriesRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.backend.SeedSeries(types.NewSeries{Name: "Existing", MinValue: 0, MaxValue: 1})
	require.NoError(t, e.store.FetchSeries(context.Background()))

	created, err := e.store.CreateSeries(context.Background(), types.NewSeries{
		Name: "Pressure", MinValue: 900, MaxValue: 1100, Unit: "hPa",
	})
	require.NoError(t, err)
	require.Positive(t, created.ID)

	// The new record is appended to the end.
	local := e.store.Series()
	require.Equal(t, created.ID, local[len(local)-1].ID)

	// A fresh fetch yields the server-assigned record.
	require.NoError(t, e.store.FetchSeries(context.Background()))
	var found bool
	for _, s := range e.store.Series() {
		if s.ID == created.ID {
			found = true
			require.Equal(t, "Pressure", s.Name)
			require.Equal(t, "hPa", s.Unit)
		}
	}
	require.True(t, found)
}

func TestUpdateSeriesInPlace(t *testing.T) {
	e := newEnv(t)
	a := e.backend.SeedSeries(types.NewSeries{Name: "Temperature", MinValue: -10, MaxValue: 40})
	e.backend.SeedSeries(types.NewSeries{Name: "Humidity", MinValue: 0, MaxValue: 100})
	require.NoError(t, e.store.FetchSeries(context.Background()))

	name := "Outdoor Temperature"
	updated, err := e.store.UpdateSeries(context.Background(), a.ID, types.SeriesUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)

	local := e.store.Series()
	require.Len(t, local, 2)
	require.Equal(t, name, local[0].Name) // position preserved
}

func TestDeleteSeriesClearsSelection(t *testing.T) {
	e := newEnv(t)
	a := e.backend.SeedSeries(types.NewSeries{Name: "Temperature", MinValue: -10, MaxValue: 40})
	b := e.backend.SeedSeries(types.NewSeries{Name: "Humidity", MinValue: 0, MaxValue: 100})
	require.NoError(t, e.store.FetchSeries(context.Background()))
	require.Equal(t, []int{a.ID, b.ID}, e.store.SelectedSeriesIDs())

	require.NoError(t, e.store.DeleteSeries(context.Background(), a.ID))

	require.Len(t, e.store.Series(), 1)
	require.Equal(t, []int{b.ID}, e.store.SelectedSeriesIDs())
}

func TestFetchMeasurementsSendsSelectionAndRange(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer ts.Close()

	client := api.New(ts.URL, nil)
	defer client.CloseIdleConnections()
	store := data.New(client, nil)

	store.ToggleSeriesSelection(3)
	store.ToggleSeriesSelection(7)
	store.SetDateRange("2024-01-01", "")

	require.NoError(t, store.FetchMeasurements(context.Background()))
	require.Equal(t, "series_ids=3,7&start_date=2024-01-01", gotQuery)
}

func TestFetchMeasurementsEmptySelectionSendsNoParams(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer ts.Close()

	client := api.New(ts.URL, nil)
	defer client.CloseIdleConnections()
	store := data.New(client, nil)

	require.NoError(t, store.FetchMeasurements(context.Background()))
	require.Equal(t, "", gotQuery)
}

func TestCreateMeasurementPrepends(t *testing.T) {
	e := newEnv(t)
	sr := e.backend.SeedSeries(types.NewSeries{Name: "Temperature", MinValue: -10, MaxValue: 40})
	e.backend.SeedMeasurement(sr.ID, 1.0, time.Now().UTC().Add(-time.Hour))

	require.NoError(t, e.store.FetchMeasurements(context.Background()))
	require.Len(t, e.store.Measurements(), 1)
	prior := e.store.Measurements()[0]

	created, err := e.store.CreateMeasurement(context.Background(), types.NewMeasurement{
		SeriesID: sr.ID, Value: 5,
	})
	require.NoError(t, err)

	ms := e.store.Measurements()
	require.Len(t, ms, 2)
	require.Equal(t, created.ID, ms[0].ID)
	require.Equal(t, 5.0, ms[0].Value)
	require.Equal(t, prior.ID, ms[1].ID) // shifted, not replaced
}

func TestUpdateAndDeleteMeasurement(t *testing.T) {
	e := newEnv(t)
	sr := e.backend.SeedSeries(types.NewSeries{Name: "Temperature", MinValue: -10, MaxValue: 40})
	m := e.backend.SeedMeasurement(sr.ID, 1.0, time.Now().UTC())
	require.NoError(t, e.store.FetchMeasurements(context.Background()))

	v := 2.5
	updated, err := e.store.UpdateMeasurement(context.Background(), m.ID, types.MeasurementUpdate{Value: &v})
	require.NoError(t, err)
	require.Equal(t, 2.5, updated.Value)
	require.Equal(t, 2.5, e.store.Measurements()[0].Value)

	require.NoError(t, e.store.DeleteMeasurement(context.Background(), m.ID))
	require.Empty(t, e.store.Measurements())
}

func TestSensorLifecycle(t *testing.T) {
	e := newEnv(t)
	sr := e.backend.SeedSeries(types.NewSeries{Name: "Temperature", MinValue: -10, MaxValue: 40})

	created, err := e.store.CreateSensor(context.Background(), types.NewSensor{Name: "roof-probe", SeriesID: sr.ID})
	require.NoError(t, err)
	require.NotEmpty(t, created.APIKey)
	require.True(t, created.IsActive)

	require.NoError(t, e.store.FetchSensors(context.Background()))
	require.Len(t, e.store.Sensors(), 1)

	require.NoError(t, e.store.DeleteSensor(context.Background(), created.ID))
	require.Empty(t, e.store.Sensors())
}

func TestLoadingFlag(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer ts.Close()

	client := api.New(ts.URL, nil)
	defer client.CloseIdleConnections()
	store := data.New(client, nil)

	require.False(t, store.Loading())

	done := make(chan error, 1)
	go func() { done <- store.FetchMeasurements(context.Background()) }()

	require.Eventually(t, store.Loading, 5*time.Second, 10*time.Millisecond)

	close(release)
	require.NoError(t, <-done)
	require.False(t, store.Loading())
}

func TestLoadingClearedOnFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := api.New(ts.URL, nil)
	defer client.CloseIdleConnections()
	store := data.New(client, nil)

	require.Error(t, store.FetchSeries(context.Background()))
	require.False(t, store.Loading())

	// A failed fetch leaves the previous collection in place.
	require.Empty(t, store.Series())
}

func TestSnapshotIsACopy(t *testing.T) {
	e := newEnv(t)
	e.backend.SeedSeries(types.NewSeries{Name: "Temperature", MinValue: -10, MaxValue: 40})
	require.NoError(t, e.store.FetchSeries(context.Background()))

	snap := e.store.Snapshot()
	snap.Series[0].Name = "mutated"
	snap.SelectedSeriesIDs[0] = -1

	require.Equal(t, "Temperature", e.store.Series()[0].Name)
	require.NotEqual(t, -1, e.store.SelectedSeriesIDs()[0])

	if diff := cmp.Diff(e.store.Snapshot(), e.store.Snapshot()); diff != "" {
		t.Errorf("consecutive snapshots differ (-first +second):\n%s", diff)
	}
}

func TestSubscribeFiresOnMutation(t *testing.T) {
	e := newEnv(t)
	var calls int
	cancel := e.store.Subscribe(func() { calls++ })
	defer cancel()

	e.store.ToggleSeriesSelection(1)
	e.store.SetDateRange("2024-01-01", "2024-02-01")
	require.Equal(t, 2, calls)
}
