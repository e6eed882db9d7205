// Package types holds the domain models shared by the API client, the state
// stores, and the dev backend. Records mirror the server's JSON payloads and
// are replaced wholesale on every fetch, never merged field by field.
package types

import "time"

// User is the server's user record.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the account-creation payload.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate is a partial update of the current user. Nil fields are
// omitted from the request body and left untouched by the server.
type ProfileUpdate struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Series is a named grouping that measurements belong to.
type Series struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	MinValue    float64   `json:"min_value"`
	MaxValue    float64   `json:"max_value"`
	Color       string    `json:"color"`
	Unit        string    `json:"unit"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   *int      `json:"created_by,omitempty"`
}

// NewSeries is the series-creation payload.
type NewSeries struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	MinValue    float64 `json:"min_value"`
	MaxValue    float64 `json:"max_value"`
	Color       string  `json:"color,omitempty"`
	Unit        string  `json:"unit,omitempty"`
}

// SeriesUpdate is a partial update of a series.
type SeriesUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	MinValue    *float64 `json:"min_value,omitempty"`
	MaxValue    *float64 `json:"max_value,omitempty"`
	Color       *string  `json:"color,omitempty"`
	Unit        *string  `json:"unit,omitempty"`
}

// Measurement is a single recorded data point belonging to a series.
type Measurement struct {
	ID        int       `json:"id"`
	SeriesID  int       `json:"series_id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	CreatedBy *int      `json:"created_by,omitempty"`
}

// NewMeasurement is the measurement-creation payload. A nil Timestamp lets
// the server assign the current time.
type NewMeasurement struct {
	SeriesID  int        `json:"series_id"`
	Value     float64    `json:"value"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// MeasurementUpdate is a partial update of a measurement.
type MeasurementUpdate struct {
	Value     *float64   `json:"value,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Sensor is a registered data-producing device.
type Sensor struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	APIKey    string     `json:"api_key"`
	SeriesID  int        `json:"series_id"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// NewSensor is the sensor-registration payload. The server assigns the API key.
type NewSensor struct {
	Name     string `json:"name"`
	SeriesID int    `json:"series_id"`
}

// DateRange bounds a measurement query. Dates travel as opaque strings
// (YYYY-MM-DD or RFC3339); an empty string means unbounded on that side.
type DateRange struct {
	Start string
	End   string
}

// MeasurementQuery is the filter the data store assembles from its selection
// state and date range when listing measurements.
type MeasurementQuery struct {
	SeriesIDs []int
	StartDate string
	EndDate   string
}
