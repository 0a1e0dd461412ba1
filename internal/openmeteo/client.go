// Package openmeteo fetches the hourly and daily series the dashboard shows
// from the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/bbernstein/weatherdash/internal/models"
	"github.com/bbernstein/weatherdash/pkg/http/client"
	"github.com/rs/zerolog/log"
)

const (
	forecastPath = "/v1/forecast"
	hourlyFields = "relativehumidity_2m,direct_radiation"
	dailyFields  = "temperature_2m_max,temperature_2m_min"

	hourlyLayout = "2006-01-02T15:04"
)

type Client struct {
	httpClient client.Interface
}

func NewClient(httpClient client.Interface) *Client {
	return &Client{httpClient: httpClient}
}

// forecastResponse is the subset of the forecast body we read. Missing
// readings arrive as null.
type forecastResponse struct {
	Timezone         string `json:"timezone"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	Hourly           struct {
		Time             []string   `json:"time"`
		RelativeHumidity []*float64 `json:"relativehumidity_2m"`
		DirectRadiation  []*float64 `json:"direct_radiation"`
	} `json:"hourly"`
	Daily struct {
		Time    []string   `json:"time"`
		MaxTemp []*float64 `json:"temperature_2m_max"`
		MinTemp []*float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

func forecastQuery(params models.FetchParams) string {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(params.Location.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(params.Location.Longitude, 'f', -1, 64))
	values.Set("hourly", hourlyFields)
	values.Set("daily", dailyFields)
	values.Set("timezone", params.Location.Timezone)
	values.Set("start_date", params.StartDate)
	values.Set("end_date", params.EndDate)
	return forecastPath + "?" + values.Encode()
}

// FetchSnapshot retrieves the configured date range in one request
func (c *Client) FetchSnapshot(ctx context.Context, params models.FetchParams) (*models.WeatherSnapshot, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	path := forecastQuery(params)
	log.Debug().Str("path", path).Msg("Fetching forecast from Open-Meteo")

	resp, err := c.httpClient.Get(ctx, path)
	if err != nil {
		return nil, NewNetworkError("request failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		netErr := NewNetworkError(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
		netErr.StatusCode = resp.StatusCode
		return nil, netErr
	}

	var forecast forecastResponse
	if err := json.Unmarshal(resp.Body, &forecast); err != nil {
		return nil, NewNetworkError("decoding response", err)
	}

	snapshot, err := forecast.snapshot()
	if err != nil {
		return nil, NewNetworkError("malformed response", err)
	}

	log.Debug().
		Int("hourly", len(snapshot.Hourly)).
		Int("daily", len(snapshot.Daily)).
		Str("timezone", forecast.Timezone).
		Msg("Fetched forecast from Open-Meteo")

	return snapshot, nil
}

// snapshot zips the column arrays into records. Columns of one group must
// have equal lengths.
func (f *forecastResponse) snapshot() (*models.WeatherSnapshot, error) {
	name := f.Timezone
	if name == "" {
		name = "UTC"
	}
	loc := time.FixedZone(name, f.UTCOffsetSeconds)

	h := f.Hourly
	if len(h.RelativeHumidity) != len(h.Time) || len(h.DirectRadiation) != len(h.Time) {
		return nil, fmt.Errorf("hourly arrays differ in length: time=%d humidity=%d radiation=%d",
			len(h.Time), len(h.RelativeHumidity), len(h.DirectRadiation))
	}

	d := f.Daily
	if len(d.MaxTemp) != len(d.Time) || len(d.MinTemp) != len(d.Time) {
		return nil, fmt.Errorf("daily arrays differ in length: time=%d max=%d min=%d",
			len(d.Time), len(d.MaxTemp), len(d.MinTemp))
	}

	snapshot := &models.WeatherSnapshot{
		Hourly: make([]models.HourlyRecord, 0, len(h.Time)),
		Daily:  make([]models.DailyRecord, 0, len(d.Time)),
	}

	for i, ts := range h.Time {
		t, err := time.ParseInLocation(hourlyLayout, ts, loc)
		if err != nil {
			return nil, fmt.Errorf("parsing hourly time %q: %w", ts, err)
		}
		snapshot.Hourly = append(snapshot.Hourly, models.HourlyRecord{
			Time:             t,
			RelativeHumidity: value(h.RelativeHumidity[i]),
			DirectRadiation:  value(h.DirectRadiation[i]),
		})
	}

	for i, ts := range d.Time {
		t, err := time.ParseInLocation(models.DateLayout, ts, loc)
		if err != nil {
			return nil, fmt.Errorf("parsing daily time %q: %w", ts, err)
		}
		snapshot.Daily = append(snapshot.Daily, models.DailyRecord{
			Time:    t,
			MaxTemp: value(d.MaxTemp[i]),
			MinTemp: value(d.MinTemp[i]),
		})
	}

	return snapshot, nil
}

// value maps a null reading to zero
func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
