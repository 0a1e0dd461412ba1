package api

import (
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/weatherdash/internal/models"
	"github.com/bbernstein/weatherdash/internal/weather"
)

type APIResponse struct {
	ResponseType string `json:"responseType"`
}

// SnapshotResponse tells the dashboard whether to show a loading indicator,
// an error message or the charts
type SnapshotResponse struct {
	APIResponse
	Status string                `json:"status"`
	Source models.Source         `json:"source,omitempty"`
	LoadID string                `json:"loadId,omitempty"`
	Hourly []models.HourlyRecord `json:"hourly"`
	Daily  []models.DailyRecord  `json:"daily"`
	Error  string                `json:"error,omitempty"`
}

type ErrorResponse struct {
	APIResponse
	Error string `json:"error"`
}

func NewSnapshotResponse(result weather.Result) *SnapshotResponse {
	resp := &SnapshotResponse{
		APIResponse: APIResponse{ResponseType: "snapshot"},
		Status:      string(result.Status),
		Source:      result.Source,
		LoadID:      result.LoadID,
		Hourly:      []models.HourlyRecord{},
		Daily:       []models.DailyRecord{},
	}

	if result.Snapshot != nil {
		resp.Hourly = result.Snapshot.Hourly
		resp.Daily = result.Snapshot.Daily
	}

	if result.Err != nil {
		resp.Error = weather.Reason(result.Err)
	}

	return resp
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		APIResponse: APIResponse{ResponseType: "error"},
		Error:       message,
	}
}

// Marshal encodes body, falling back to an error document
func Marshal(body interface{}) (int, []byte) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		errBody, _ := json.Marshal(NewErrorResponse("Internal Server Error"))
		return http.StatusInternalServerError, errBody
	}
	return http.StatusOK, jsonBody
}

// Response helpers
func Success(body interface{}) (events.APIGatewayProxyResponse, error) {
	statusCode, jsonBody := Marshal(body)
	return Raw(statusCode, jsonBody)
}

func Error(message string, statusCode int) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(NewErrorResponse(message))
	return Raw(statusCode, body)
}

// Raw wraps an already encoded JSON body
func Raw(statusCode int, body []byte) (events.APIGatewayProxyResponse, error) {
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}, nil
}
