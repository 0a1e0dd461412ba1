package models

import (
	"time"
)

type Source string

const (
	SourceOffline Source = "offline"
	SourceNetwork Source = "network"
)

// HourlyRecord is one hour of the hourly series
type HourlyRecord struct {
	Time             time.Time `json:"time"`
	RelativeHumidity float64   `json:"relativeHumidity"`
	DirectRadiation  float64   `json:"directRadiation"`
}

// DailyRecord is one day of the daily series
type DailyRecord struct {
	Time    time.Time `json:"time"`
	MaxTemp float64   `json:"maxTemp"`
	MinTemp float64   `json:"minTemp"`
}

// WeatherSnapshot is the shape shared by the remote source, the local store
// and the presentation layer. Both series keep source order.
type WeatherSnapshot struct {
	Hourly []HourlyRecord `json:"hourly"`
	Daily  []DailyRecord  `json:"daily"`
}

// Valid reports whether the snapshot can be served. A snapshot with either
// series empty is treated as absent.
func (s *WeatherSnapshot) Valid() bool {
	return s != nil && len(s.Hourly) > 0 && len(s.Daily) > 0
}
