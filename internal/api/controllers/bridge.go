package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/datallboy/resample/internal/app"
	"github.com/datallboy/resample/internal/bridge"
	"github.com/labstack/echo/v5"
)

// BridgeController exposes the command registry over HTTP.
type BridgeController struct {
	App      *app.Context
	Registry *bridge.Registry
}

// maxArgsSize bounds a single invocation body.
const maxArgsSize = 1 << 20

// Invoke runs the named command with the JSON request body as its arguments.
// Command failures are part of the envelope and still answer 200; only
// malformed requests get a 4xx.
func (ctrl *BridgeController) Invoke(c *echo.Context) error {
	command := c.Param("command")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxArgsSize+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
	}
	if len(body) > maxArgsSize {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "arguments too large"})
	}
	if len(body) > 0 && !json.Valid(body) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "arguments must be JSON"})
	}

	value, err := ctrl.Registry.Invoke(c.Request().Context(), command, body)
	if err != nil {
		ctrl.App.Logger.Debug("Command %s failed: %v", command, err)
		return c.JSON(http.StatusOK, bridge.Response{Error: err.Error()})
	}

	raw, err := json.Marshal(value)
	if err != nil {
		ctrl.App.Logger.Error("Failed to encode %s result: %v", command, err)
		return c.JSON(http.StatusOK, bridge.Response{Error: errors.Join(errors.New("failed to encode result"), err).Error()})
	}
	return c.JSON(http.StatusOK, bridge.Response{Value: raw})
}

// List returns the registered command names.
func (ctrl *BridgeController) List(c *echo.Context) error {
	return c.JSON(http.StatusOK, CommandList{Commands: ctrl.Registry.Commands()})
}

// Health reports liveness and the current job.
func (ctrl *BridgeController) Health(c *echo.Context) error {
	resp := HealthResponse{
		Status:   "ok",
		Commands: len(ctrl.Registry.Commands()),
	}
	if ctrl.App.Jobs != nil {
		resp.ActiveJob = ctrl.App.Jobs.Active()
	}
	return c.JSON(http.StatusOK, resp)
}
