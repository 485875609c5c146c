package controllers

import "github.com/datallboy/resample/internal/domain"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string      `json:"status"`
	Commands  int         `json:"commands"`
	ActiveJob *domain.Job `json:"active_job,omitempty"`
}

// CommandList is returned by GET /commands.
type CommandList struct {
	Commands []string `json:"commands"`
}

// ErrorResponse is used for requests rejected before reaching a command.
type ErrorResponse struct {
	Error string `json:"error"`
}
