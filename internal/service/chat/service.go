package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/events"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/turn"
)

var ErrSessionNotFound = errors.New("session not found")

// Service keeps the live widget sessions. Sessions exist only in memory and vanish
// when deleted or when the process exits.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*turn.Orchestrator

	engine       *turn.Engine
	listener     events.Listener
	delays       turn.Delays
	newScheduler func() turn.Scheduler
	logger       *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithListener routes every session's events to l.
func WithListener(l events.Listener) Option {
	return func(s *Service) { s.listener = l }
}

// WithDelays sets the pacing used by new sessions.
func WithDelays(d turn.Delays) Option {
	return func(s *Service) { s.delays = d }
}

// WithSchedulerFactory sets how each session gets its scheduler.
func WithSchedulerFactory(fn func() turn.Scheduler) Option {
	return func(s *Service) { s.newScheduler = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService bootstraps the in-memory session registry around a shared engine.
func NewService(engine *turn.Engine, opts ...Option) *Service {
	s := &Service{
		sessions:     make(map[string]*turn.Orchestrator),
		engine:       engine,
		listener:     events.Discard,
		delays:       turn.DefaultDelays,
		newScheduler: func() turn.Scheduler { return turn.NewTimerScheduler() },
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens a session greeted by the default persona.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	id := uuid.NewString()
	o := turn.NewOrchestrator(id, s.engine,
		turn.WithScheduler(s.newScheduler()),
		turn.WithListener(s.listener),
		turn.WithDelays(s.delays),
		turn.WithLogger(s.logger),
	)

	s.mu.Lock()
	s.sessions[id] = o
	s.mu.Unlock()

	s.logger.Info("session created", "session_id", id)
	return o.Snapshot(), nil
}

// Get returns the orchestrator driving sessionID.
func (s *Service) Get(_ context.Context, sessionID string) (*turn.Orchestrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return o, nil
}

// GetSession retrieves a session snapshot by identifier.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	o, err := s.Get(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return o.Snapshot(), nil
}

// SendMessage runs one turn in sessionID.
func (s *Service) SendMessage(ctx context.Context, sessionID, text string) (turn.TurnResult, error) {
	o, err := s.Get(ctx, sessionID)
	if err != nil {
		return turn.TurnResult{}, err
	}
	result, err := o.Send(ctx, text)
	if err != nil {
		return turn.TurnResult{}, fmt.Errorf("send message: %w", err)
	}
	return result, nil
}

// DeleteSession abandons sessionID: pending transitions are dropped and live
// subscribers are disconnected.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	o, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	o.Close()
	if closer, ok := s.listener.(interface{ CloseSession(string) }); ok {
		closer.CloseSession(sessionID)
	}
	s.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close abandons every session. Used on shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*turn.Orchestrator)
	s.mu.Unlock()

	for _, o := range sessions {
		o.Close()
	}
}
