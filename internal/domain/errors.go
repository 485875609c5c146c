package domain

import "errors"

// ErrBusy indicates a job is already in flight
var ErrBusy = errors.New("another operation is already running")

// ErrNoActiveJob indicates a stop request found nothing to cancel
var ErrNoActiveJob = errors.New("no active process to stop")

// ErrJobTimeout indicates the job exceeded its deadline
var ErrJobTimeout = errors.New("job timed out")

// ErrUnknownCommand is returned by the bridge for unregistered command names
var ErrUnknownCommand = errors.New("unknown command")

// ErrUnsupportedInput indicates the input type cannot be handled by the backend
var ErrUnsupportedInput = errors.New("unsupported input type")

// ErrInvalidSettings indicates a settings blob that is not valid JSON
var ErrInvalidSettings = errors.New("invalid settings")

// ErrOutsideLibrary guards file deletion to the managed directories
var ErrOutsideLibrary = errors.New("path is outside the managed directories")

// ErrToolMissing indicates an external executable could not be located
var ErrToolMissing = errors.New("required tool not found")
