package transport

import (
	"context"
	"sync"
	"time"

	"github.com/lingobridge/lingobridge/core"
	"github.com/lingobridge/lingobridge/logging"
)

// ChannelAdapter is an in-process Adapter delivering events over Go channels.
// Front-ends subscribe per session and receive a buffered event stream; the
// send side blocks at most SendTimeout per event so a stalled consumer cannot
// wedge the orchestrator.
type ChannelAdapter struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	buffer      int
	sendTimeout time.Duration
	logger      logging.Logger
}

// ChannelAdapterOptions configures a ChannelAdapter.
type ChannelAdapterOptions struct {
	// Buffer is the per-subscriber channel capacity.
	Buffer int
	// SendTimeout bounds each event delivery once the buffer is full.
	SendTimeout time.Duration
	// Logger receives structured delivery records.
	Logger logging.Logger
}

// NewChannelAdapter constructs an adapter with no subscribers.
func NewChannelAdapter(optFns ...func(o *ChannelAdapterOptions)) *ChannelAdapter {
	opts := ChannelAdapterOptions{
		Buffer:      64,
		SendTimeout: 5 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ChannelAdapter{
		subscribers: make(map[string][]chan Event),
		buffer:      opts.Buffer,
		sendTimeout: opts.SendTimeout,
		logger:      opts.Logger,
	}
}

// Subscribe registers a consumer for one session's events. The returned
// cancel function removes the subscription and closes the channel; it is safe
// to call more than once.
func (a *ChannelAdapter) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, a.buffer)

	a.mu.Lock()
	a.subscribers[sessionID] = append(a.subscribers[sessionID], ch)
	a.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			a.mu.Lock()
			subs := a.subscribers[sessionID]
			for i, sub := range subs {
				if sub == ch {
					a.subscribers[sessionID] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(a.subscribers[sessionID]) == 0 {
				delete(a.subscribers, sessionID)
			}
			a.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// SendFragment implements Adapter.
func (a *ChannelAdapter) SendFragment(ctx context.Context, sessionID, chunk string) error {
	return a.deliver(ctx, Event{Type: EventFragment, SessionID: sessionID, Chunk: chunk})
}

// TurnComplete implements Adapter.
func (a *ChannelAdapter) TurnComplete(ctx context.Context, sessionID string) error {
	return a.deliver(ctx, Event{Type: EventTurnComplete, SessionID: sessionID})
}

// SessionFailed implements Adapter.
func (a *ChannelAdapter) SessionFailed(ctx context.Context, sessionID string, kind core.ErrorKind) error {
	return a.deliver(ctx, Event{Type: EventSessionFailed, SessionID: sessionID, ErrorKind: kind})
}

// deliver fans an event out to every subscriber of its session. Delivery to
// each subscriber is bounded; a full buffer past the deadline is an error so
// the orchestrator can fail the session instead of hanging.
func (a *ChannelAdapter) deliver(ctx context.Context, ev Event) error {
	a.mu.RLock()
	subs := make([]chan Event, len(a.subscribers[ev.SessionID]))
	copy(subs, a.subscribers[ev.SessionID])
	a.mu.RUnlock()

	if len(subs) == 0 {
		// Nobody listening; drop silently so headless runs still work.
		return nil
	}

	var timeout <-chan time.Time
	if a.sendTimeout > 0 {
		timer := time.NewTimer(a.sendTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for _, ch := range subs {
		select {
		case ch <- ev:
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			a.logger.Warn("transport.deliver.timeout", "session_id", ev.SessionID, "event", string(ev.Type))
			return &core.TimeoutError{Op: "transport send", Timeout: a.sendTimeout}
		}
	}
	return nil
}
