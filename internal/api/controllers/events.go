package controllers

import (
	"net/http"
	"time"

	"github.com/datallboy/resample/internal/app"
	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/events"
	"github.com/labstack/echo/v5"
)

type EventsController struct {
	App       *app.Context
	Bus       *events.Bus
	KeepAlive time.Duration
}

func knownChannel(name string) bool {
	switch name {
	case domain.ChannelProgress, domain.ChannelDownloadProgress, domain.ChannelSeparationProgress:
		return true
	}
	return false
}

// Stream holds the request open and forwards every event published on the
// channel as a server-sent event until the client goes away.
func (ctrl *EventsController) Stream(c *echo.Context) error {
	channel := c.Param("channel")
	if !knownChannel(channel) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown channel: " + channel})
	}

	ch, unsubscribe := ctrl.Bus.Subscribe(channel)
	defer unsubscribe()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctrl.App.Logger.Debug("Event subscriber attached to %s", channel)
	defer ctrl.App.Logger.Debug("Event subscriber detached from %s", channel)

	err := events.Serve(c.Request().Context(), w, http.NewResponseController(w), ch, ctrl.KeepAlive)
	if err != nil {
		ctrl.App.Logger.Debug("Event stream on %s ended: %v", channel, err)
	}
	return nil
}
