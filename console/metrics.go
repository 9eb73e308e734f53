package console

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// MetricsPath is where NewMetricsServer exposes the scrape handler.
const MetricsPath = "/metrics"

// NewMetricsServer serves h on its own listener, apart from the console
// routes, so scrapes never pass through the session guard.
func NewMetricsServer(h http.Handler) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			AppName:               "console-metrics",
			DisableStartupMessage: true,
		})
	})
	srv.Router().Get(MetricsPath, router.HandlerFromHTTP(h))
	return srv
}
