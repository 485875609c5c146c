package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datallboy/resample/internal/bridge"
	"github.com/datallboy/resample/internal/confirm"
	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/infra/logger"
	"github.com/datallboy/resample/internal/models"
	"github.com/datallboy/resample/internal/settings"
)

var (
	// ErrNoInput is returned by Start when the input is blank.
	ErrNoInput = errors.New("no input provided")
	// ErrUnknownInput is returned by Start for inputs of type Unknown.
	ErrUnknownInput = errors.New("unknown input type")
)

// Status labels shown next to the progress gauge.
const (
	StatusIdle        = "idle"
	StatusDownloading = string(domain.ProgressDownloading)
	StatusProcessing  = string(domain.ProgressProcessing)
	StatusCompleted   = string(domain.ProgressCompleted)
)

// State is what a frontend renders: the busy flag that disables the start
// control, the gauge and its label.
type State struct {
	Busy       bool
	Separating bool
	Progress   float64
	Status     string
	JobID      string
}

// operation is one start call, possibly chained into a separation step.
// Only the operation a.op points at may change state.
type operation struct {
	jobID   string
	input   string
	lastSeq uint64
	done    bool // the current step's job has reported its terminal event
}

// Options configures an Adapter. Only Invoker is required.
type Options struct {
	Invoker          bridge.Invoker
	Logger           *logger.Logger
	Models           *models.Cache
	OperationTimeout time.Duration
	ConfirmWindow    time.Duration
	AfterFunc        confirm.AfterFunc
	NewJobID         func() string
}

// Adapter turns bridge calls and progress events into UI state. Calls and
// events arrive from independent goroutines in any order.
type Adapter struct {
	inv        bridge.Invoker
	log        *logger.Logger
	models     *models.Cache
	timeout    time.Duration
	newJobID   func() string
	console    *ConsoleLog
	fileGuard  *confirm.Guard
	modelGuard *confirm.Guard

	mu        sync.Mutex
	state     State
	op        *operation
	history   []domain.AudioFileInfo
	listeners map[uint64]func(State)
	nextID    uint64
	following bool
}

func New(opts Options) *Adapter {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.NewJobID == nil {
		opts.NewJobID = newJobID
	}

	var guardOpts []confirm.Option
	if opts.AfterFunc != nil {
		guardOpts = append(guardOpts, confirm.WithAfterFunc(opts.AfterFunc))
	}

	return &Adapter{
		inv:        opts.Invoker,
		log:        opts.Logger,
		models:     opts.Models,
		timeout:    opts.OperationTimeout,
		newJobID:   opts.NewJobID,
		console:    NewConsoleLog(),
		fileGuard:  confirm.New(opts.ConfirmWindow, guardOpts...),
		modelGuard: confirm.New(opts.ConfirmWindow, guardOpts...),
		state:      State{Status: StatusIdle},
		listeners:  make(map[uint64]func(State)),
	}
}

func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (a *Adapter) Console() *ConsoleLog { return a.console }

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Subscribe calls fn with the new state after every change.
func (a *Adapter) Subscribe(fn func(State)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

// Close stops pending delete confirmations.
func (a *Adapter) Close() {
	a.fileGuard.Close()
	a.modelGuard.Close()
}

// commit applies fn while op is still current. It reports false, changing
// nothing, when op was superseded by a stop or a newer start.
func (a *Adapter) commit(op *operation, fn func(s *State, op *operation)) bool {
	a.mu.Lock()
	if op != nil && a.op != op {
		a.mu.Unlock()
		return false
	}
	fn(&a.state, a.op)
	s := a.state
	fns := a.listenerFuncs()
	a.mu.Unlock()

	for _, f := range fns {
		f(s)
	}
	return true
}

func (a *Adapter) listenerFuncs() []func(State) {
	fns := make([]func(State), 0, len(a.listeners))
	for _, f := range a.listeners {
		fns = append(fns, f)
	}
	return fns
}

func (a *Adapter) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

// StartRequest describes a unified download, optionally followed by stem
// separation.
type StartRequest struct {
	Input          string
	InputType      domain.InputType
	Mode           domain.ProcessingMode
	StartTime      *int
	EndTime        *int
	Model          string
	Stems          []string
	Separation     settings.SeparationSettings
	ModelDirectory string
}

// Outcome is the authoritative result of Start.
type Outcome struct {
	Download   domain.DownloadResult
	Separation *domain.SeparationResult
}

// Start runs unified_download and, when the mode asks for it and a model is
// selected, separate_audio on the produced file. The adapter stays busy until
// the last step returns.
func (a *Adapter) Start(ctx context.Context, req StartRequest) (Outcome, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		a.console.Append("No input provided")
		return Outcome{}, ErrNoInput
	}
	if req.InputType == domain.InputUnknown || req.InputType == "" {
		a.console.Append("Unknown input type. Please select a valid input or specify the type manually.")
		return Outcome{}, ErrUnknownInput
	}

	op := &operation{jobID: a.newJobID(), input: input}
	if !a.begin(op) {
		return Outcome{}, domain.ErrBusy
	}
	a.console.Append(fmt.Sprintf("Starting %s processing...", strings.ToLower(string(req.InputType))))

	args := domain.DownloadRequest{
		JobID:          op.jobID,
		Input:          input,
		InputType:      req.InputType,
		ProcessingMode: req.Mode,
	}
	if req.StartTime != nil && req.EndTime != nil && *req.EndTime > *req.StartTime {
		args.StartTime = req.StartTime
		args.EndTime = req.EndTime
	}

	var result domain.DownloadResult
	callCtx, cancel := a.callCtx(ctx)
	err := a.inv.Invoke(callCtx, bridge.UnifiedDownload, args, &result)
	cancel()

	if err != nil {
		a.console.Append(fmt.Sprintf("Processing failed: %v", err))
		a.finish(op, 0, StatusIdle)
		return Outcome{}, err
	}

	out := Outcome{Download: result}
	if !result.Success {
		a.console.Append("Processing failed: " + result.Message)
		a.finish(op, 0, StatusIdle)
		return out, nil
	}

	a.console.Append("File processed successfully")

	chain := req.Mode.WantsSeparation() && req.Model != "" && result.FilePath != ""
	if !chain {
		a.finish(op, 100, StatusCompleted)
		return out, nil
	}

	// Gauge shows the finished download while separation spins up
	if !a.commit(op, func(s *State, _ *operation) { s.Progress = 100 }) {
		return out, nil
	}

	sep := req.Separation
	sep.ModelFilename = req.Model
	sep.SingleStem = nil
	if len(req.Stems) == 1 {
		stem := req.Stems[0]
		sep.SingleStem = &stem
	}

	res, err := a.separateStep(ctx, op, result.FilePath, sep, req.ModelDirectory)
	if err == nil {
		out.Separation = &res
	}
	return out, nil
}

// SeparateRequest runs separation on an existing file.
type SeparateRequest struct {
	InputFile      string
	Settings       settings.SeparationSettings
	ModelDirectory string
}

// Separate runs separate_audio on its own.
func (a *Adapter) Separate(ctx context.Context, req SeparateRequest) (domain.SeparationResult, error) {
	if strings.TrimSpace(req.InputFile) == "" {
		a.console.Append("No input provided")
		return domain.SeparationResult{}, ErrNoInput
	}

	op := &operation{input: req.InputFile}
	if !a.begin(op) {
		return domain.SeparationResult{}, domain.ErrBusy
	}
	return a.separateStep(ctx, op, req.InputFile, req.Settings, req.ModelDirectory)
}

func (a *Adapter) separateStep(ctx context.Context, op *operation, file string, sep settings.SeparationSettings, modelDir string) (domain.SeparationResult, error) {
	a.console.Append("Starting automatic stem separation...")

	jobID := a.newJobID()
	if !a.commit(op, func(s *State, op *operation) {
		op.jobID = jobID
		op.input = file
		op.lastSeq = 0
		op.done = false
		s.Busy = true
		s.Separating = true
		s.Status = StatusProcessing
		s.JobID = jobID
	}) {
		return domain.SeparationResult{}, context.Canceled
	}

	args := struct {
		JobID          string                      `json:"jobId"`
		InputFile      string                      `json:"inputFile"`
		Settings       settings.SeparationSettings `json:"settings"`
		ModelDirectory string                      `json:"modelDirectory"`
	}{jobID, file, sep, modelDir}

	var result domain.SeparationResult
	callCtx, cancel := a.callCtx(ctx)
	err := a.inv.Invoke(callCtx, bridge.SeparateAudio, args, &result)
	cancel()

	switch {
	case err != nil:
		a.console.Append(fmt.Sprintf("Stem separation error: %v", err))
		a.finish(op, 0, StatusIdle)
		return result, err
	case !result.Success:
		a.console.Append("Stem separation failed: " + result.Message)
		a.finish(op, 0, StatusIdle)
	default:
		a.console.Append("Stem separation completed successfully!")
		a.finish(op, 100, StatusCompleted)
	}
	return result, nil
}

// begin claims the adapter for op. It fails while another operation runs.
func (a *Adapter) begin(op *operation) bool {
	a.mu.Lock()
	if a.op != nil {
		a.mu.Unlock()
		return false
	}
	a.op = op
	a.state = State{
		Busy:     true,
		Progress: 0,
		Status:   StatusDownloading,
		JobID:    op.jobID,
	}
	s := a.state
	fns := a.listenerFuncs()
	a.mu.Unlock()

	for _, f := range fns {
		f(s)
	}
	return true
}

// finish releases the adapter with the final gauge value. A stopped or
// superseded operation leaves state alone.
func (a *Adapter) finish(op *operation, progress float64, status string) {
	a.commit(op, func(s *State, _ *operation) {
		s.Busy = false
		s.Separating = false
		s.Progress = progress
		s.Status = status
		s.JobID = ""
	})

	a.mu.Lock()
	if a.op == op {
		a.op = nil
	}
	a.mu.Unlock()
}

// Stop cancels the running job. Local state goes idle before the backend is
// asked. An empty target stops whatever step is current.
func (a *Adapter) Stop(ctx context.Context, target string) (string, error) {
	target = strings.TrimSpace(target)

	a.mu.Lock()
	if target == "" && a.op != nil {
		target = a.op.input
	}
	a.mu.Unlock()

	if target == "" {
		a.console.Append("No active process to stop")
		return "", nil
	}

	a.console.Append("Stopping process...")
	a.commit(nil, func(s *State, _ *operation) {
		a.op = nil
		*s = State{Status: StatusIdle}
	})

	var msg string
	callCtx, cancel := a.callCtx(ctx)
	defer cancel()
	if err := a.inv.Invoke(callCtx, bridge.StopDownload, map[string]string{"url": target}, &msg); err != nil {
		a.console.Append(fmt.Sprintf("Failed to stop process: %v", err))
		return "", err
	}
	a.console.Append(msg)
	return msg, nil
}
