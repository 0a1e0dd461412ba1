package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/bbernstein/weatherdash/internal/cache"
	"github.com/bbernstein/weatherdash/internal/config"
	"github.com/bbernstein/weatherdash/internal/handler"
	"github.com/bbernstein/weatherdash/internal/weather"
	"github.com/rs/zerolog/log"
)

var (
	lambdaStart      = lambda.Start // Allow mocking of lambda.Start in tests
	dashboardHandler *handler.DashboardHandler
	setupOnce        sync.Once
	serviceFactory   weather.ServiceFactory = &weather.DefaultServiceFactory{}
	initHandler                             = defaultInitHandler
)

func defaultInitHandler(ctx context.Context) (*handler.DashboardHandler, error) {
	cfg := config.LoadFromEnv()
	cfg.InitializeLogging()
	cacheCfg := config.GetCacheConfig()

	service, err := serviceFactory.NewService(ctx, cfg, cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing weather service: %w", err)
	}

	var charts *cache.ChartCache
	if cacheCfg.EnableChartCache {
		charts, err = cache.NewChartCache(cacheCfg)
		if err != nil {
			return nil, fmt.Errorf("initializing chart cache: %w", err)
		}
	}

	return handler.NewDashboardHandler(service, charts), nil
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if dashboardHandler == nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"responseType": "error", "error": "Handler not initialized"}`,
		}, fmt.Errorf("handler not initialized")
	}
	return dashboardHandler.HandleRequest(ctx, request)
}

func InitializeService() error {
	var initError error
	setupOnce.Do(func() {
		if serviceFactory == nil {
			serviceFactory = &weather.DefaultServiceFactory{}
		}
		log.Debug().Msg("Initializing dashboard service...")
		h, err := initHandler(context.Background())
		if err != nil {
			initError = fmt.Errorf("failed to initialize handler: %v", err)
			log.Error().Err(err).Msg("Failed to initialize handler")
			return
		}
		dashboardHandler = h
		log.Debug().Msg("Dashboard service initialized successfully")
	})
	return initError
}

func init() {
	if err := InitializeService(); err != nil {
		log.Error().Err(err).Msg("Dashboard requests will fail until the function is redeployed")
	}
}

func main() {
	lambdaStart(handleRequest)
}
