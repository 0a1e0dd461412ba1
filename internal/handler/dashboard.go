package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/weatherdash/internal/api"
	"github.com/bbernstein/weatherdash/internal/cache"
	"github.com/bbernstein/weatherdash/internal/weather"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const chartsPrefix = "/charts/"

type DashboardHandler struct {
	loader weather.Loader
	charts *cache.ChartCache
}

// NewDashboardHandler serves the loader's snapshot. charts may be nil to disable chart caching.
func NewDashboardHandler(loader weather.Loader, charts *cache.ChartCache) *DashboardHandler {
	return &DashboardHandler{
		loader: loader,
		charts: charts,
	}
}

// HandleRequest routes API Gateway proxy requests
func (h *DashboardHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := strings.TrimSuffix(request.Path, "/")

	switch {
	case path == "/snapshot":
		wait := request.QueryStringParameters["wait"] != "false"
		return api.Raw(h.Snapshot(ctx, wait))

	case strings.HasPrefix(path, chartsPrefix) || request.PathParameters["chart"] != "":
		name := request.PathParameters["chart"]
		if name == "" {
			name = strings.TrimPrefix(path, chartsPrefix)
		}
		return api.Raw(h.Chart(ctx, name))

	default:
		return api.Error("Not Found", http.StatusNotFound)
	}
}

// Register mounts the dashboard routes on a fiber router
func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("/snapshot", func(c *fiber.Ctx) error {
		status, body := h.Snapshot(c.UserContext(), c.Query("wait") != "false")
		return sendJSON(c, status, body)
	})

	router.Get("/charts/:chart", func(c *fiber.Ctx) error {
		status, body := h.Chart(c.UserContext(), c.Params("chart"))
		return sendJSON(c, status, body)
	})
}

func sendJSON(c *fiber.Ctx, status int, body []byte) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	return c.Status(status).Send(body)
}

// Snapshot returns the status code and body of the snapshot document. Without
// wait the current state is reported and a load is started if none ran yet.
func (h *DashboardHandler) Snapshot(ctx context.Context, wait bool) (int, []byte) {
	var result weather.Result
	if wait {
		loaded, err := h.loader.Load(ctx)
		if err != nil {
			result = weather.Result{Status: weather.StatusError, Err: err}
		} else {
			result = *loaded
		}
	} else {
		if h.loader.State().Status == weather.StatusIdle {
			// a cancelled context starts the load without waiting for it
			kick, cancel := context.WithCancel(ctx)
			cancel()
			_, _ = h.loader.Load(kick)
		}
		result = h.loader.State()
	}

	code, body := api.Marshal(api.NewSnapshotResponse(result))
	if code != http.StatusOK {
		return code, body
	}
	return snapshotStatusCode(result), body
}

func snapshotStatusCode(result weather.Result) int {
	switch result.Status {
	case weather.StatusReady:
		return http.StatusOK
	case weather.StatusLoading, weather.StatusIdle:
		return http.StatusAccepted
	}

	var noData *weather.NoDataError
	var fetchErr *weather.FetchError
	if errors.As(result.Err, &noData) || errors.As(result.Err, &fetchErr) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Chart returns the status code and body of one chart document
func (h *DashboardHandler) Chart(ctx context.Context, name string) (int, []byte) {
	switch name {
	case api.ChartHumidity, api.ChartRadiation, api.ChartTemperature:
	default:
		return errorBody("Chart not found", http.StatusNotFound)
	}

	result, err := h.loader.Load(ctx)
	if err != nil {
		code := snapshotStatusCode(weather.Result{Status: weather.StatusError, Err: err})
		return errorBody(weather.Reason(err), code)
	}

	key := cache.ChartKey(name, result.LoadID)
	if h.charts != nil {
		if body, ok := h.charts.Get(key); ok {
			log.Debug().Str("key", key).Msg("Chart cache HIT")
			return http.StatusOK, body
		}
	}

	chart, err := api.BuildChart(name, result.LoadID, result.Snapshot)
	if err != nil {
		return errorBody(err.Error(), http.StatusNotFound)
	}

	code, body := api.Marshal(chart)
	if code == http.StatusOK && h.charts != nil {
		h.charts.Add(key, body)
	}
	return code, body
}

func errorBody(message string, code int) (int, []byte) {
	_, body := api.Marshal(api.NewErrorResponse(message))
	return code, body
}
