package adapter

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/datallboy/resample/internal/bridge"
)

type handlerFunc func(ctx context.Context, args map[string]any) (any, error)

type recordedCall struct {
	Command string
	Args    map[string]any
}

// fakeInvoker dispatches to per-command handlers. Values and arguments go
// through JSON like the real bridge.
type fakeInvoker struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    []recordedCall
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{handlers: make(map[string]handlerFunc)}
}

func (f *fakeInvoker) on(command string, h handlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[command] = h
}

func (f *fakeInvoker) Invoke(ctx context.Context, command string, args any, out any) error {
	var decoded map[string]any
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Command: command, Args: decoded})
	h := f.handlers[command]
	f.mu.Unlock()

	if h == nil {
		return &bridge.CallError{Command: command, Message: "unknown command: " + command}
	}

	v, err := h(ctx, decoded)
	if err != nil {
		return &bridge.CallError{Command: command, Message: err.Error()}
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeInvoker) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.Command
	}
	return names
}

func (f *fakeInvoker) call(command string) (recordedCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Command == command {
			return c, true
		}
	}
	return recordedCall{}, false
}
