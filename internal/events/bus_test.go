package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/resample/internal/domain"
)

func receive(t *testing.T, ch <-chan domain.ProgressEvent) domain.ProgressEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.ProgressEvent{}
}

func TestBus_PublishFansOut(t *testing.T) {
	bus := NewBus(4)
	a, unsubA := bus.Subscribe(domain.ChannelProgress)
	b, unsubB := bus.Subscribe(domain.ChannelProgress)
	defer unsubA()
	defer unsubB()

	ev := domain.ProgressEvent{JobID: "j1", Seq: 1, Progress: 10, Status: domain.ProgressDownloading}
	bus.Publish(domain.ChannelProgress, ev)

	assert.Equal(t, ev, receive(t, a))
	assert.Equal(t, ev, receive(t, b))
}

func TestBus_ChannelsAreIsolated(t *testing.T) {
	bus := NewBus(4)
	ch, unsub := bus.Subscribe(domain.ChannelDownloadProgress)
	defer unsub()

	bus.Publish(domain.ChannelSeparationProgress, domain.ProgressEvent{Message: "other"})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus(1)
	ch, unsub := bus.Subscribe("c")
	defer unsub()

	bus.Publish("c", domain.ProgressEvent{Seq: 1})
	bus.Publish("c", domain.ProgressEvent{Seq: 2})

	assert.Equal(t, uint64(1), receive(t, ch).Seq)
	assert.Len(t, ch, 0)
}

func TestBus_UnsubscribeClosesOnce(t *testing.T) {
	bus := NewBus(1)
	ch, unsub := bus.Subscribe("c")
	assert.Equal(t, 1, bus.Subscribers("c"))

	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Subscribers("c"))

	// Publishing to a channel with no listeners is a no-op
	bus.Publish("c", domain.ProgressEvent{})
}

func TestBus_Close(t *testing.T) {
	bus := NewBus(1)
	ch, unsub := bus.Subscribe("c")
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)

	// Unsubscribe after Close must not double-close
	unsub()

	late, _ := bus.Subscribe("c")
	_, ok = <-late
	assert.False(t, ok)
}
