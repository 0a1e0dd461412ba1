package api

import (
	"fmt"

	"github.com/bbernstein/weatherdash/internal/models"
)

// Chart names served under /charts/{name}
const (
	ChartHumidity    = "humidity"
	ChartRadiation   = "radiation"
	ChartTemperature = "temperature"
)

const (
	hourlyLabelLayout = "2006-01-02T15:04"
	dailyLabelLayout  = models.DateLayout
)

type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// ChartResponse is the series data of one chart, ready for a charting library
type ChartResponse struct {
	APIResponse
	Chart    string    `json:"chart"`
	LoadID   string    `json:"loadId"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type UnknownChartError struct {
	Name string
}

func (e UnknownChartError) Error() string {
	return fmt.Sprintf("unknown chart: %s", e.Name)
}

// BuildChart shapes one chart from the snapshot. Labels are local times of
// the forecast location.
func BuildChart(name, loadID string, snapshot *models.WeatherSnapshot) (*ChartResponse, error) {
	if snapshot == nil {
		snapshot = &models.WeatherSnapshot{}
	}

	resp := &ChartResponse{
		APIResponse: APIResponse{ResponseType: "chart"},
		Chart:       name,
		LoadID:      loadID,
	}

	switch name {
	case ChartHumidity, ChartRadiation:
		labels := make([]string, len(snapshot.Hourly))
		data := make([]float64, len(snapshot.Hourly))
		for i, h := range snapshot.Hourly {
			labels[i] = h.Time.Format(hourlyLabelLayout)
			if name == ChartHumidity {
				data[i] = h.RelativeHumidity
			} else {
				data[i] = h.DirectRadiation
			}
		}
		label := "Relative Humidity (%)"
		if name == ChartRadiation {
			label = "Direct Radiation (W/m²)"
		}
		resp.Labels = labels
		resp.Datasets = []Dataset{{Label: label, Data: data}}

	case ChartTemperature:
		labels := make([]string, len(snapshot.Daily))
		maxTemp := make([]float64, len(snapshot.Daily))
		minTemp := make([]float64, len(snapshot.Daily))
		for i, d := range snapshot.Daily {
			labels[i] = d.Time.Format(dailyLabelLayout)
			maxTemp[i] = d.MaxTemp
			minTemp[i] = d.MinTemp
		}
		resp.Labels = labels
		resp.Datasets = []Dataset{
			{Label: "Max Temperature (°C)", Data: maxTemp},
			{Label: "Min Temperature (°C)", Data: minTemp},
		}

	default:
		return nil, UnknownChartError{Name: name}
	}

	return resp, nil
}
