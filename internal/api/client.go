// Package api implements the HTTP client for the dashboard backend. The
// client owns the bearer token attached to outgoing requests; the session
// store decides when that token is set or cleared.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sensordash/internal/types"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for a local backend.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000",
		Timeout: 30 * time.Second,
	}
}

// Client performs authenticated requests against the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger

	mu    sync.RWMutex
	token string
}

// New creates a client with default configuration.
func New(baseURL string, log *zap.Logger) *Client {
	cfg := DefaultConfig()
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewWithConfig(cfg, log)
}

// NewWithConfig creates a client with custom configuration.
func NewWithConfig(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// SetToken stores the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the stored bearer token.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// Token returns the currently stored bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CloseIdleConnections closes idle keep-alive connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// do performs one request. rawQuery is appended verbatim when non-empty, body
// is JSON-encoded when non-nil, and a 2xx response is decoded into out when
// out is non-nil.
func (c *Client) do(ctx context.Context, method, path, rawQuery string, body, out any) error {
	// Auto-apply timeout if the context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	url := c.baseURL + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("query", rawQuery))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*types.Token, error) {
	var tok types.Token
	creds := types.Credentials{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", creds, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Register creates a new account. It does not log the account in.
func (c *Client) Register(ctx context.Context, reg types.Registration) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register", "", reg, nil)
}

// CurrentUser fetches the profile of the token's owner.
func (c *Client) CurrentUser(ctx context.Context) (*types.User, error) {
	var user types.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", "", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateCurrentUser applies a partial profile update and returns the full
// updated record.
func (c *Client) UpdateCurrentUser(ctx context.Context, up types.ProfileUpdate) (*types.User, error) {
	var user types.User
	if err := c.do(ctx, http.MethodPut, "/api/auth/me", "", up, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListSeries returns all series.
func (c *Client) ListSeries(ctx context.Context) ([]types.Series, error) {
	var series []types.Series
	if err := c.do(ctx, http.MethodGet, "/api/series/", "", nil, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// CreateSeries creates a series and returns the server's record.
func (c *Client) CreateSeries(ctx context.Context, data types.NewSeries) (*types.Series, error) {
	var s types.Series
	if err := c.do(ctx, http.MethodPost, "/api/series/", "", data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSeries applies a partial update to a series.
func (c *Client) UpdateSeries(ctx context.Context, id int, up types.SeriesUpdate) (*types.Series, error) {
	var s types.Series
	if err := c.do(ctx, http.MethodPut, "/api/series/"+strconv.Itoa(id), "", up, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSeries removes a series.
func (c *Client) DeleteSeries(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/api/series/"+strconv.Itoa(id), "", nil, nil)
}

// ListMeasurements returns measurements matching the query.
func (c *Client) ListMeasurements(ctx context.Context, q types.MeasurementQuery) ([]types.Measurement, error) {
	var ms []types.Measurement
	if err := c.do(ctx, http.MethodGet, "/api/measurements/", EncodeMeasurementQuery(q), nil, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

// CreateMeasurement records a measurement and returns the server's record.
func (c *Client) CreateMeasurement(ctx context.Context, data types.NewMeasurement) (*types.Measurement, error) {
	var m types.Measurement
	if err := c.do(ctx, http.MethodPost, "/api/measurements/", "", data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMeasurement applies a partial update to a measurement.
func (c *Client) UpdateMeasurement(ctx context.Context, id int, up types.MeasurementUpdate) (*types.Measurement, error) {
	var m types.Measurement
	if err := c.do(ctx, http.MethodPut, "/api/measurements/"+strconv.Itoa(id), "", up, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMeasurement removes a measurement.
func (c *Client) DeleteMeasurement(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/api/measurements/"+strconv.Itoa(id), "", nil, nil)
}

// ListSensors returns all registered sensors.
func (c *Client) ListSensors(ctx context.Context) ([]types.Sensor, error) {
	var sensors []types.Sensor
	if err := c.do(ctx, http.MethodGet, "/api/sensors/", "", nil, &sensors); err != nil {
		return nil, err
	}
	return sensors, nil
}

// CreateSensor registers a sensor and returns its record, API key included.
func (c *Client) CreateSensor(ctx context.Context, data types.NewSensor) (*types.Sensor, error) {
	var s types.Sensor
	if err := c.do(ctx, http.MethodPost, "/api/sensors/", "", data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSensor removes a sensor.
func (c *Client) DeleteSensor(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/api/sensors/"+strconv.Itoa(id), "", nil, nil)
}

// SubmitReading pushes a measurement on behalf of a sensor, authenticated by
// the sensor's API key rather than a bearer token. Value and timestamp travel
// as query parameters, matching the backend's ingestion endpoint.
func (c *Client) SubmitReading(ctx context.Context, apiKey string, value float64, at *time.Time) (*types.Measurement, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	query := "value=" + strconv.FormatFloat(value, 'f', -1, 64)
	if at != nil {
		query += "&timestamp=" + at.UTC().Format(time.RFC3339)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sensors/data?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST /api/sensors/data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp)
	}
	var m types.Measurement
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode reading response: %w", err)
	}
	return &m, nil
}

// EncodeMeasurementQuery renders the query string for measurement listing.
// series_ids is comma-joined and only present when non-empty; start_date and
// end_date only when set. The order is fixed so the wire format is stable.
func EncodeMeasurementQuery(q types.MeasurementQuery) string {
	var parts []string
	if len(q.SeriesIDs) > 0 {
		ids := make([]string, len(q.SeriesIDs))
		for i, id := range q.SeriesIDs {
			ids[i] = strconv.Itoa(id)
		}
		parts = append(parts, "series_ids="+strings.Join(ids, ","))
	}
	if q.StartDate != "" {
		parts = append(parts, "start_date="+q.StartDate)
	}
	if q.EndDate != "" {
		parts = append(parts, "end_date="+q.EndDate)
	}
	return strings.Join(parts, "&")
}
