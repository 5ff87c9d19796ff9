package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lingobridge/lingobridge/core"
	"github.com/lingobridge/lingobridge/logging"
	"github.com/lingobridge/lingobridge/reason"
	"github.com/lingobridge/lingobridge/tool"
	"github.com/lingobridge/lingobridge/transport"
)

// Service manages one orchestrator per session and the shared idle sweep.
// Sessions are created lazily on first message and removed when ended,
// cancelled by the front-end or idle past the configured timeout.
type Service struct {
	cfg          core.Config
	executor     *reason.Executor
	registry     *tool.Registry
	store        core.SessionStore
	out          transport.Adapter
	instructions string
	logger       logging.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState
	closed   bool

	done chan struct{}
	wg   sync.WaitGroup
}

type sessionState struct {
	orch       *Orchestrator
	cancel     context.CancelFunc
	lastActive time.Time
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// Instructions is the system prompt applied to every session.
	Instructions string
	// Logger receives structured service records.
	Logger logging.Logger
}

// NewService constructs a service and starts the idle sweep when configured.
func NewService(
	cfg core.Config,
	executor *reason.Executor,
	registry *tool.Registry,
	store core.SessionStore,
	out transport.Adapter,
	optFns ...func(o *ServiceOptions),
) *Service {
	opts := ServiceOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Service{
		cfg:          cfg,
		executor:     executor,
		registry:     registry,
		store:        store,
		out:          out,
		instructions: opts.Instructions,
		logger:       opts.Logger,
		sessions:     make(map[string]*sessionState),
		done:         make(chan struct{}),
	}

	if cfg.IdleTimeout > 0 {
		s.wg.Add(1)
		go s.sweepIdle()
	}

	return s
}

// Send routes one user message to its session, creating the session on first
// contact. It blocks until the turn completes or terminally fails.
func (s *Service) Send(ctx context.Context, sessionID, text string) error {
	st, err := s.sessionFor(sessionID)
	if err != nil {
		return err
	}

	turnCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	st.cancel = cancel
	st.lastActive = time.Now()
	s.mu.Unlock()
	defer cancel()

	return st.orch.HandleMessage(turnCtx, text)
}

// Cancel aborts the session's in-flight turn, modelling a front-end
// disconnect. The orchestrator fails the session with the cancelled kind.
func (s *Service) Cancel(sessionID string) {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	var cancel context.CancelFunc
	if ok {
		cancel = st.cancel
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// EndSession completes a session normally and releases its orchestrator.
func (s *Service) EndSession(sessionID string) error {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown session %q", sessionID)
	}

	if st.orch.State() != StateFailed {
		if err := s.store.SetStatus(sessionID, core.StatusCompleted); err != nil {
			return err
		}
	}

	s.logger.Info("service.session.ended", "session_id", sessionID)
	return nil
}

// State reports the state machine position of a live session.
func (s *Service) State(sessionID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return "", false
	}
	return st.orch.State(), true
}

// Close stops the idle sweep and ends every live session.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	for _, id := range ids {
		if err := s.EndSession(id); err != nil {
			s.logger.Warn("service.close.end_session", "session_id", id, "error", err.Error())
		}
	}
	return nil
}

// sessionFor returns the live orchestrator for a session, creating it when
// absent.
func (s *Service) sessionFor(sessionID string) (*sessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("service is closed")
	}
	if st, ok := s.sessions[sessionID]; ok {
		return st, nil
	}

	orch, err := New(sessionID, s.cfg, s.executor, s.registry, s.store, s.out,
		func(o *Options) {
			o.Instructions = s.instructions
			o.Logger = s.logger
		},
	)
	if err != nil {
		return nil, err
	}

	st := &sessionState{orch: orch, lastActive: time.Now()}
	s.sessions[sessionID] = st
	s.logger.Info("service.session.created", "session_id", sessionID)
	return st, nil
}

// sweepIdle periodically ends sessions with no activity past IdleTimeout.
func (s *Service) sweepIdle() {
	defer s.wg.Done()

	interval := s.cfg.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.IdleTimeout)

			s.mu.Lock()
			var idle []string
			for id, st := range s.sessions {
				if st.lastActive.Before(cutoff) {
					idle = append(idle, id)
				}
			}
			s.mu.Unlock()

			for _, id := range idle {
				s.logger.Info("service.session.idle", "session_id", id)
				if err := s.EndSession(id); err != nil {
					s.logger.Warn("service.session.idle_end", "session_id", id, "error", err.Error())
				}
			}
		}
	}
}
