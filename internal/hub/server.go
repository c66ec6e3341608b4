package hub

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trail-go/internal/metrics"
)

// Server is the trailhub HTTP server.
type Server struct {
	App      *fiber.App
	Cfg      Config
	Registry *prometheus.Registry
}

// NewServer builds the fiber app. store may be backed by a pool or a mock.
func NewServer(cfg Config, store RouteStore) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "trailhub",
		BodyLimit:             cfg.BodyLimitBytes,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
	reg := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg, cfg.MetricsNamespace)

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(metricsMiddleware(httpMetrics))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	RegisterRoutes(app, store, APIKeyMiddleware(cfg.APIKey))

	return &Server{App: app, Cfg: cfg, Registry: reg}
}

// metricsMiddleware records every request under its route pattern so ids do
// not explode label cardinality.
func metricsMiddleware(m *metrics.HTTPMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		m.ObserveRequest(c.Route().Path, status, time.Since(start))
		return err
	}
}
