package api

import (
	"github.com/datallboy/resample/internal/api/controllers"
	"github.com/datallboy/resample/internal/app"
	"github.com/datallboy/resample/internal/bridge"
	"github.com/datallboy/resample/internal/events"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the pieces the HTTP surface needs beyond the app context.
type Deps struct {
	Registry *bridge.Registry
	Bus      *events.Bus
	Gatherer prometheus.Gatherer
}

func RegisterRoutes(e *echo.Echo, app *app.Context, deps Deps) {

	e.Use(middleware.Recover())

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Debug("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	bridgeCtrl := &controllers.BridgeController{App: app, Registry: deps.Registry}
	eventsCtrl := &controllers.EventsController{App: app, Bus: deps.Bus}

	// Command invocation, one command per request
	e.POST("/invoke/:command", bridgeCtrl.Invoke)
	e.GET("/commands", bridgeCtrl.List)

	// Progress stream
	e.GET("/events/:channel", eventsCtrl.Stream)

	e.GET("/health", bridgeCtrl.Health)

	if deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
}
