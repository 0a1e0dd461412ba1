package openmeteo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bbernstein/weatherdash/internal/models"
	"github.com/bbernstein/weatherdash/pkg/http/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forecastFixture = `{
	"latitude": 1.2929,
	"longitude": 103.8547,
	"utc_offset_seconds": 28800,
	"timezone": "Asia/Singapore",
	"timezone_abbreviation": "+08",
	"hourly": {
		"time": ["2024-11-01T00:00", "2024-11-01T01:00", "2024-11-01T02:00"],
		"relativehumidity_2m": [88, 90, null],
		"direct_radiation": [0.0, 0.0, 12.5]
	},
	"daily": {
		"time": ["2024-11-01", "2024-11-02"],
		"temperature_2m_max": [31.2, 30.8],
		"temperature_2m_min": [25.1, 24.9]
	}
}`

func testParams() models.FetchParams {
	return models.FetchParams{
		Location: models.Location{
			Latitude:  1.29,
			Longitude: 103.85,
			Timezone:  "Asia/Singapore",
		},
		StartDate: "2024-11-01",
		EndDate:   "2024-11-10",
	}
}

func newTestClient(baseURL string) *Client {
	return NewClient(client.New(client.Options{
		BaseURL:        baseURL,
		Timeout:        5 * time.Second,
		InitialBackoff: time.Millisecond,
	}))
}

func TestFetchSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1.29", q.Get("latitude"))
		assert.Equal(t, "103.85", q.Get("longitude"))
		assert.Equal(t, "relativehumidity_2m,direct_radiation", q.Get("hourly"))
		assert.Equal(t, "temperature_2m_max,temperature_2m_min", q.Get("daily"))
		assert.Equal(t, "Asia/Singapore", q.Get("timezone"))
		assert.Equal(t, "2024-11-01", q.Get("start_date"))
		assert.Equal(t, "2024-11-10", q.Get("end_date"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastFixture))
	}))
	defer server.Close()

	snapshot, err := newTestClient(server.URL).FetchSnapshot(context.Background(), testParams())
	require.NoError(t, err)
	require.True(t, snapshot.Valid())
	require.Len(t, snapshot.Hourly, 3)
	require.Len(t, snapshot.Daily, 2)

	sgt := time.FixedZone("Asia/Singapore", 8*60*60)
	assert.True(t, time.Date(2024, 11, 1, 1, 0, 0, 0, sgt).Equal(snapshot.Hourly[1].Time))
	assert.Equal(t, "2024-10-31T17:00:00Z", snapshot.Hourly[1].Time.UTC().Format(time.RFC3339))
	assert.Equal(t, 90.0, snapshot.Hourly[1].RelativeHumidity)
	assert.Equal(t, 0.0, snapshot.Hourly[2].RelativeHumidity, "null reading becomes zero")
	assert.Equal(t, 12.5, snapshot.Hourly[2].DirectRadiation)

	_, offset := snapshot.Daily[0].Time.Zone()
	assert.Equal(t, 28800, offset)
	assert.Equal(t, 31.2, snapshot.Daily[0].MaxTemp)
	assert.Equal(t, 24.9, snapshot.Daily[1].MinTemp)
}

func TestFetchSnapshotErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "server error",
			status:     http.StatusInternalServerError,
			body:       `{"error":true}`,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "unexpected status code: 500",
		},
		{
			name:       "bad request",
			status:     http.StatusBadRequest,
			body:       `{"error":true,"reason":"Parameter 'start_date' is out of allowed range"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "unexpected status code: 400",
		},
		{
			name:    "invalid json",
			status:  http.StatusOK,
			body:    `{"hourly":`,
			wantMsg: "decoding response",
		},
		{
			name:   "unequal hourly arrays",
			status: http.StatusOK,
			body: `{"utc_offset_seconds":0,"hourly":{"time":["2024-11-01T00:00","2024-11-01T01:00"],
				"relativehumidity_2m":[1],"direct_radiation":[1,2]},
				"daily":{"time":["2024-11-01"],"temperature_2m_max":[1],"temperature_2m_min":[1]}}`,
			wantMsg: "hourly arrays differ in length",
		},
		{
			name:   "unequal daily arrays",
			status: http.StatusOK,
			body: `{"utc_offset_seconds":0,"hourly":{"time":["2024-11-01T00:00"],
				"relativehumidity_2m":[1],"direct_radiation":[1]},
				"daily":{"time":["2024-11-01","2024-11-02"],"temperature_2m_max":[1,2],"temperature_2m_min":[1]}}`,
			wantMsg: "daily arrays differ in length",
		},
		{
			name:   "unparseable time",
			status: http.StatusOK,
			body: `{"utc_offset_seconds":0,"hourly":{"time":["yesterday"],
				"relativehumidity_2m":[1],"direct_radiation":[1]},
				"daily":{"time":["2024-11-01"],"temperature_2m_max":[1],"temperature_2m_min":[1]}}`,
			wantMsg: "parsing hourly time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			snapshot, err := newTestClient(server.URL).FetchSnapshot(context.Background(), testParams())
			assert.Nil(t, snapshot)

			var netErr *NetworkError
			require.ErrorAs(t, err, &netErr)
			assert.Equal(t, tt.wantStatus, netErr.StatusCode)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestFetchSnapshotTransportFailure(t *testing.T) {
	httpClient := client.New(client.Options{})
	httpClient.GetFunc = func(ctx context.Context, path string) (*client.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	_, err := NewClient(httpClient).FetchSnapshot(context.Background(), testParams())

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFetchSnapshotRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(forecastFixture))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server.URL).FetchSnapshot(ctx, testParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetchSnapshotInvalidParams(t *testing.T) {
	called := false
	httpClient := client.New(client.Options{})
	httpClient.GetFunc = func(ctx context.Context, path string) (*client.Response, error) {
		called = true
		return nil, nil
	}

	params := testParams()
	params.Location.Latitude = 123
	_, err := NewClient(httpClient).FetchSnapshot(context.Background(), params)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid fetch params")
	assert.False(t, called)
}
