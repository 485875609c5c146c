package confirm

import (
	"sync"
	"time"
)

// DefaultWindow is how long a first click stays armed.
const DefaultWindow = 3 * time.Second

// State of a single item.
type State int

const (
	Idle State = iota
	PendingConfirm
)

func (s State) String() string {
	if s == PendingConfirm {
		return "pending_confirm"
	}
	return "idle"
}

// Timer is the part of *time.Timer the guard needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests inject a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfter(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type entry struct {
	timer Timer
	gen   uint64
}

// Guard implements two-click confirmation per item id. The first click arms
// the item; a second click within the window confirms it. An armed item
// reverts to Idle on its own when the window lapses.
type Guard struct {
	mu      sync.Mutex
	window  time.Duration
	after   AfterFunc
	pending map[string]entry
	gen     uint64
	closed  bool

	onChange func(id string, s State)
}

type Option func(*Guard)

// WithAfterFunc replaces the timer factory.
func WithAfterFunc(f AfterFunc) Option {
	return func(g *Guard) { g.after = f }
}

// WithOnChange registers a callback fired on every state transition. It runs
// outside the guard lock.
func WithOnChange(fn func(id string, s State)) Option {
	return func(g *Guard) { g.onChange = fn }
}

func New(window time.Duration, opts ...Option) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	g := &Guard{
		window:  window,
		after:   realAfter,
		pending: make(map[string]entry),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Click registers a click on id and reports whether it confirmed the action.
func (g *Guard) Click(id string) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}

	if e, ok := g.pending[id]; ok {
		e.timer.Stop()
		delete(g.pending, id)
		g.mu.Unlock()
		g.notify(id, Idle)
		return true
	}

	g.gen++
	gen := g.gen
	g.pending[id] = entry{
		gen:   gen,
		timer: g.after(g.window, func() { g.expire(id, gen) }),
	}
	g.mu.Unlock()
	g.notify(id, PendingConfirm)
	return false
}

func (g *Guard) expire(id string, gen uint64) {
	g.mu.Lock()
	e, ok := g.pending[id]
	// A stale timer for an item that was confirmed and re-armed must not
	// clear the new arming
	if !ok || e.gen != gen {
		g.mu.Unlock()
		return
	}
	delete(g.pending, id)
	g.mu.Unlock()
	g.notify(id, Idle)
}

// Reset disarms id without confirming it.
func (g *Guard) Reset(id string) {
	g.mu.Lock()
	e, ok := g.pending[id]
	if ok {
		e.timer.Stop()
		delete(g.pending, id)
	}
	g.mu.Unlock()
	if ok {
		g.notify(id, Idle)
	}
}

func (g *Guard) State(id string) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pending[id]; ok {
		return PendingConfirm
	}
	return Idle
}

// Pending reports whether id is armed.
func (g *Guard) Pending(id string) bool {
	return g.State(id) == PendingConfirm
}

// Close stops every timer. Further clicks never confirm.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	for id, e := range g.pending {
		e.timer.Stop()
		delete(g.pending, id)
	}
}

func (g *Guard) notify(id string, s State) {
	if g.onChange != nil {
		g.onChange(id, s)
	}
}
