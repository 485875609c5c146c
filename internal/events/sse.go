package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/datallboy/resample/internal/domain"
)

// EventName is the SSE event type used for progress payloads.
const EventName = "progress"

// Flusher is satisfied by http.ResponseController and http.Flusher adapters.
type Flusher interface {
	Flush() error
}

// Serve streams events from ch to w as server-sent events until ctx is done
// or ch is closed. A comment line is sent every keepAlive to hold idle
// connections open through proxies.
func Serve(ctx context.Context, w io.Writer, f Flusher, ch <-chan domain.ProgressEvent, keepAlive time.Duration) error {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	// Initial comment so the client sees the stream is open
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return err
	}
	if err := f.Flush(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return err
			}
			if err := f.Flush(); err != nil {
				return err
			}
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := WriteEvent(w, ev); err != nil {
				return err
			}
			if err := f.Flush(); err != nil {
				return err
			}
		}
	}
}

// WriteEvent writes a single progress frame.
func WriteEvent(w io.Writer, ev domain.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventName, data)
	return err
}

// Stream connects to an SSE endpoint and calls fn for every progress frame
// until ctx is cancelled or the server closes the stream. Frames that are
// not valid progress events are skipped.
func Stream(ctx context.Context, client *http.Client, url string, fn func(domain.ProgressEvent)) error {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	err = readFrames(resp.Body, func(event, data string) {
		if event != "" && event != EventName {
			return
		}
		var ev domain.ProgressEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return
		}
		fn(ev)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readFrames splits an SSE body into (event, data) frames. Multi-line data
// fields are joined with newlines; comment lines are ignored.
func readFrames(r io.Reader, fn func(event, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event string
	var data []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if len(data) > 0 {
				fn(event, strings.Join(data, "\n"))
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	return scanner.Err()
}
