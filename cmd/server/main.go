package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/bbernstein/weatherdash/internal/api"
	"github.com/bbernstein/weatherdash/internal/cache"
	"github.com/bbernstein/weatherdash/internal/config"
	"github.com/bbernstein/weatherdash/internal/handler"
	"github.com/bbernstein/weatherdash/internal/weather"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
)

var serviceFactory weather.ServiceFactory = &weather.DefaultServiceFactory{}

func newApp(service *weather.Service, charts *cache.ChartCache) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weatherdash",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// a waiting snapshot request may outlive one fetch timeout
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(api.NewErrorResponse(err.Error()))
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		state := service.State()
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weatherdash",
			"load":    state.Status,
			"loadId":  state.LoadID,
			"stats":   service.Stats(),
		})
	})

	handler.NewDashboardHandler(service, charts).Register(app)
	return app
}

// warmUp runs the first load so the dashboard finds data ready
func warmUp(ctx context.Context, service *weather.Service) {
	result, err := service.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Str("reason", weather.Reason(err)).Msg("Initial load failed")
		return
	}
	log.Info().
		Str("loadId", result.LoadID).
		Str("source", string(result.Source)).
		Int("hourly", len(result.Snapshot.Hourly)).
		Int("daily", len(result.Snapshot.Daily)).
		Msg("Initial load complete")
}

func run(ctx context.Context, cfg *config.Config, cacheCfg *config.CacheConfig) error {
	service, err := serviceFactory.NewService(ctx, cfg, cacheCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := service.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing weather service")
		}
	}()

	var charts *cache.ChartCache
	if cacheCfg.EnableChartCache {
		if charts, err = cache.NewChartCache(cacheCfg); err != nil {
			return err
		}
	}

	app := newApp(service, charts)
	go warmUp(ctx, service)

	listenErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting dashboard server")
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return app.ShutdownWithContext(shutdownCtx)
}

func main() {
	cfg := config.LoadFromEnv()
	cfg.InitializeLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, config.GetCacheConfig()); err != nil {
		log.Fatal().Err(err).Msg("Dashboard server stopped")
	}
}
