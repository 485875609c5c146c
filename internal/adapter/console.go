package adapter

import "sync"

// ClearedLine is what the console holds right after Clear.
const ClearedLine = "Console cleared"

// ConsoleLog is the append-only message log shown to the user.
type ConsoleLog struct {
	mu        sync.Mutex
	lines     []string
	listeners map[uint64]func(string)
	nextID    uint64
}

func NewConsoleLog() *ConsoleLog {
	return &ConsoleLog{listeners: make(map[uint64]func(string))}
}

// Append adds a line and hands it to every subscriber.
func (c *ConsoleLog) Append(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	fns := make([]func(string), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(line)
	}
}

// Clear drops the history, leaving a single marker line.
func (c *ConsoleLog) Clear() {
	c.mu.Lock()
	c.lines = []string{ClearedLine}
	c.mu.Unlock()
}

func (c *ConsoleLog) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Subscribe calls fn for each line appended from now on.
func (c *ConsoleLog) Subscribe(fn func(line string)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}
