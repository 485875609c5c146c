package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Invoker is the caller side of the bridge. out may be nil when the result
// is not needed.
type Invoker interface {
	Invoke(ctx context.Context, command string, args any, out any) error
}

// Response is the wire envelope of an invocation. Exactly one of Value or
// Error is set.
type Response struct {
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// CallError is a command failure reported by the backend. The message is
// opaque.
type CallError struct {
	Command string
	Message string
}

func (e *CallError) Error() string {
	return e.Message
}

// Client invokes commands on a remote backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		// Calls block for the whole job; per-call deadlines come from ctx
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Invoke(ctx context.Context, command string, args any, out any) error {
	if args == nil {
		args = struct{}{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal %s arguments: %w", command, err)
	}

	endpoint := fmt.Sprintf("%s/invoke/%s", c.baseURL, url.PathEscape(command))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", command, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: backend returned status %d: %s", command, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", command, err)
	}

	if envelope.Error != "" {
		return &CallError{Command: command, Message: envelope.Error}
	}

	if out == nil || len(envelope.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Value, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", command, err)
	}
	return nil
}

// Local adapts a Registry to the Invoker interface without a network hop.
// Arguments and results still go through JSON so both paths behave the same.
type Local struct {
	Registry *Registry
}

func (l Local) Invoke(ctx context.Context, command string, args any, out any) error {
	if args == nil {
		args = struct{}{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal %s arguments: %w", command, err)
	}

	v, err := l.Registry.Invoke(ctx, command, raw)
	if err != nil {
		return &CallError{Command: command, Message: err.Error()}
	}

	if out == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s result: %w", command, err)
	}
	return json.Unmarshal(data, out)
}
