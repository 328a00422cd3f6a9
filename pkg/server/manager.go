package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/treeline-dev/treeline/pkg/session"
)

// Manager errors.
var (
	ErrTooManySessions = errors.New("server: session limit reached")
	ErrUnknownSession  = errors.New("server: unknown session")
)

// Manager owns all live sessions for one server process. It hands out
// ids, enforces the session limit, and reaps sessions whose client has
// gone quiet past the idle timeout.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	app     *App
	config  *SessionConfig
	logger  *slog.Logger
	metrics *Metrics
	store   session.SnapshotStore

	created atomic.Uint64
	resumed atomic.Uint64
	reaped  atomic.Uint64

	stopOnce sync.Once
	stop     chan struct{}
}

// Stats is a point-in-time view of the manager's counters.
type Stats struct {
	Active  int
	Created uint64
	Resumed uint64
	Reaped  uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics enables Prometheus instrumentation on all sessions.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithSnapshotStore enables session resume backed by the given store.
func WithSnapshotStore(store session.SnapshotStore) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// NewManager creates a session manager for the given app.
func NewManager(app *App, config *SessionConfig, opts ...ManagerOption) *Manager {
	if config == nil {
		config = DefaultSessionConfig()
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		app:      app,
		config:   config,
		logger:   slog.Default(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.reapLoop()
	return m
}

// Create starts a fresh session over the given transport and returns
// it with its actor already running.
func (m *Manager) Create(t Transport) (*Session, error) {
	s := newSession(generateSessionID(), t, m.app, m.config, m.logger, m.metrics, m.store, m.remove)

	m.mu.Lock()
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.created.Add(1)
	m.metrics.sessionOpened()
	s.Start()
	m.logger.Info("session created", "session", s.ID)
	return s, nil
}

// Resume restores a session from its persisted snapshot under the same
// id. The actor starts with the committed baseline already in place,
// so the first render after resume produces a minimal diff against the
// state the client last applied.
func (m *Manager) Resume(ctx context.Context, id string, t Transport) (*Session, error) {
	if m.store == nil {
		return nil, ErrUnknownSession
	}

	m.mu.RLock()
	_, live := m.sessions[id]
	m.mu.RUnlock()
	if live {
		return nil, fmt.Errorf("server: session %s already connected", id)
	}

	snap, err := m.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrUnknownSession
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	s := newSession(id, t, m.app, m.config, m.logger, m.metrics, m.store, m.remove)
	if err := s.restore(snap); err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}

	m.mu.Lock()
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.resumed.Add(1)
	m.metrics.sessionOpened()
	s.Start()
	m.logger.Info("session resumed", "session", id, "seq", snap.Seq)
	return s, nil
}

// Get returns the live session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Stats returns the manager's session counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Active:  m.Len(),
		Created: m.created.Load(),
		Resumed: m.resumed.Load(),
		Reaped:  m.reaped.Load(),
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
}

func (m *Manager) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func (m *Manager) reapIdle() {
	cutoff := time.Now().Add(-m.config.IdleTimeout)

	m.mu.RLock()
	var idle []*Session
	for _, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range idle {
		m.logger.Info("reaping idle session", "session", s.ID, "last_active", s.LastActive())
		s.Close()
		m.reaped.Add(1)
	}
}

// Shutdown closes every live session and stops the reaper.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	for _, s := range all {
		s.Close()
	}
	return ctx.Err()
}
