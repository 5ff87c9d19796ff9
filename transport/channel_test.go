package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingobridge/lingobridge/core"
)

func TestChannelAdapterDeliversInOrder(t *testing.T) {
	a := NewChannelAdapter()
	events, cancel := a.Subscribe("sess-1")
	defer cancel()

	ctx := context.Background()
	require.NoError(t, a.SendFragment(ctx, "sess-1", "Hello, "))
	require.NoError(t, a.SendFragment(ctx, "sess-1", "world"))
	require.NoError(t, a.TurnComplete(ctx, "sess-1"))

	first := <-events
	assert.Equal(t, EventFragment, first.Type)
	assert.Equal(t, "Hello, ", first.Chunk)

	second := <-events
	assert.Equal(t, "world", second.Chunk)

	third := <-events
	assert.Equal(t, EventTurnComplete, third.Type)
	assert.Equal(t, "sess-1", third.SessionID)
}

func TestChannelAdapterSessionFailedCarriesKind(t *testing.T) {
	a := NewChannelAdapter()
	events, cancel := a.Subscribe("sess-1")
	defer cancel()

	require.NoError(t, a.SessionFailed(context.Background(), "sess-1", core.KindStepBudgetExceeded))

	ev := <-events
	assert.Equal(t, EventSessionFailed, ev.Type)
	assert.Equal(t, core.KindStepBudgetExceeded, ev.ErrorKind)
	assert.Empty(t, ev.Chunk)
}

func TestChannelAdapterIsolatesSessions(t *testing.T) {
	a := NewChannelAdapter()
	eventsA, cancelA := a.Subscribe("sess-a")
	defer cancelA()
	eventsB, cancelB := a.Subscribe("sess-b")
	defer cancelB()

	require.NoError(t, a.SendFragment(context.Background(), "sess-a", "only for a"))

	ev := <-eventsA
	assert.Equal(t, "only for a", ev.Chunk)

	select {
	case <-eventsB:
		t.Fatal("event leaked to another session")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestChannelAdapterDropsWithoutSubscribers(t *testing.T) {
	a := NewChannelAdapter()
	assert.NoError(t, a.SendFragment(context.Background(), "nobody", "lost"))
	assert.NoError(t, a.TurnComplete(context.Background(), "nobody"))
}

func TestChannelAdapterSendTimeout(t *testing.T) {
	a := NewChannelAdapter(func(o *ChannelAdapterOptions) {
		o.Buffer = 1
		o.SendTimeout = 20 * time.Millisecond
	})
	_, cancel := a.Subscribe("sess-1")
	defer cancel()

	ctx := context.Background()
	require.NoError(t, a.SendFragment(ctx, "sess-1", "fills the buffer"))

	err := a.SendFragment(ctx, "sess-1", "nobody is draining")
	var timeoutErr *core.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, core.KindTimeout, core.KindOf(err))
}

func TestChannelAdapterSendHonoursContext(t *testing.T) {
	a := NewChannelAdapter(func(o *ChannelAdapterOptions) {
		o.Buffer = 1
		o.SendTimeout = time.Minute
	})
	_, cancel := a.Subscribe("sess-1")
	defer cancel()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelCtx()

	require.NoError(t, a.SendFragment(ctx, "sess-1", "fills the buffer"))
	err := a.SendFragment(ctx, "sess-1", "blocked")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChannelAdapterUnsubscribe(t *testing.T) {
	a := NewChannelAdapter()
	events, cancel := a.Subscribe("sess-1")

	cancel()
	cancel() // idempotent

	_, open := <-events
	assert.False(t, open, "channel closes on unsubscribe")

	// Delivery after unsubscribe silently drops.
	assert.NoError(t, a.SendFragment(context.Background(), "sess-1", "gone"))
}
