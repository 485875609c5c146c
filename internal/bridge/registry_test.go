package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/resample/internal/domain"
)

type echoArgs struct {
	Input string `json:"input"`
}

func TestRegistry_Invoke(t *testing.T) {
	reg := NewRegistry()
	var calls []string
	reg.OnCall = func(command string, err error) { calls = append(calls, command) }

	reg.Register("echo", Bind(func(ctx context.Context, a echoArgs) (any, error) {
		return a.Input, nil
	}))
	reg.Register("ping", NoArgs(func(ctx context.Context) (any, error) {
		return "pong", nil
	}))

	v, err := reg.Invoke(context.Background(), "echo", json.RawMessage(`{"input":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = reg.Invoke(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", v)

	assert.Equal(t, []string{"echo", "ping"}, reg.Commands())
	assert.Equal(t, []string{"echo", "ping"}, calls)
}

func TestRegistry_UnknownCommand(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Invoke(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownCommand))
	assert.Contains(t, err.Error(), "nope")
}

func TestRegistry_BadArguments(t *testing.T) {
	reg := NewRegistry()
	reg.Register("echo", Bind(func(ctx context.Context, a echoArgs) (any, error) {
		return a.Input, nil
	}))

	_, err := reg.Invoke(context.Background(), "echo", json.RawMessage(`{"input":5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments")
}

func TestLocal_Invoke(t *testing.T) {
	reg := NewRegistry()
	reg.Register("echo", Bind(func(ctx context.Context, a echoArgs) (any, error) {
		return domain.DownloadResult{Success: true, Message: a.Input}, nil
	}))
	reg.Register("fail", NoArgs(func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	}))

	inv := Local{Registry: reg}

	var res domain.DownloadResult
	require.NoError(t, inv.Invoke(context.Background(), "echo", echoArgs{Input: "ok"}, &res))
	assert.Equal(t, domain.DownloadResult{Success: true, Message: "ok"}, res)

	err := inv.Invoke(context.Background(), "fail", nil, nil)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "boom", callErr.Message)
	assert.Equal(t, "fail", callErr.Command)
}
