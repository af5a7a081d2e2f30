package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/localnerve/vaxtrack/internal/session"
	"go.uber.org/zap"
)

const reinitTimeout = 30 * time.Second

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithIdleTimeout releases dashboards not used for idle. Zero keeps them
// until sign-out.
func WithIdleTimeout(idle time.Duration) ManagerOption {
	return func(m *Manager) { m.idle = idle }
}

// OnEvict is called with the session id of every dashboard released for idleness
func OnEvict(fn func(sessionID string)) ManagerOption {
	return func(m *Manager) { m.onEvict = fn }
}

// WithManagerClock overrides the clock used for idle tracking
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

type board struct {
	d        *Dashboard
	lastUsed time.Time
}

// Manager keeps one dashboard per session
type Manager struct {
	factory func() *Dashboard
	log     *zap.Logger
	now     func() time.Time
	idle    time.Duration
	onEvict func(sessionID string)

	mu     sync.Mutex
	boards map[string]*board
}

// NewManager creates a manager building dashboards with factory
func NewManager(factory func() *Dashboard, log *zap.Logger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		factory: factory,
		log:     log,
		now:     time.Now,
		boards:  make(map[string]*board),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the dashboard of sess, creating and initializing it on first use.
// ctx must carry sess. The dashboard is returned even when initialization fails
// so the caller can render its error state.
func (m *Manager) Get(ctx context.Context, sess *session.Session) (*Dashboard, error) {
	m.mu.Lock()
	b, ok := m.boards[sess.ID]
	if !ok {
		b = &board{d: m.factory()}
		m.boards[sess.ID] = b
	}
	b.lastUsed = m.now()
	d := b.d
	m.mu.Unlock()

	return d, d.Ensure(ctx)
}

// Lookup returns the dashboard of a session without creating one
func (m *Manager) Lookup(sessionID string) (*Dashboard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[sessionID]
	if !ok {
		return nil, false
	}
	return b.d, true
}

// Len is the number of live dashboards
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.boards)
}

// Sweep releases every dashboard idle for longer than the idle timeout and
// returns how many were released.
func (m *Manager) Sweep() int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	evicted := make(map[string]*Dashboard)
	for id, b := range m.boards {
		if b.lastUsed.Before(cutoff) {
			evicted[id] = b.d
			delete(m.boards, id)
		}
	}
	m.mu.Unlock()

	for id, d := range evicted {
		d.SignOut()
		if m.onEvict != nil {
			m.onEvict(id)
		}
	}
	if len(evicted) > 0 {
		m.log.Info("released idle dashboards", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Run sweeps at half the idle timeout until ctx is done
func (m *Manager) Run(ctx context.Context) {
	if m.idle <= 0 {
		return
	}
	ticker := time.NewTicker(m.idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// HandleEvent follows session lifecycle events. It is a session.Listener.
func (m *Manager) HandleEvent(ctx context.Context, ev session.Event) {
	switch ev.Type {
	case session.SignedIn:
		d, ok := m.Lookup(ev.Session.ID)
		if !ok {
			return
		}
		// Dashboards still initializing, or not yet started, load fresh data
		// on their own. A redis echo of this instance's sign-in lands here.
		switch d.State() {
		case Ready, Error:
		default:
			return
		}
		// Events from other instances arrive on a bare context.
		sess := ev.Session
		ctx, cancel := context.WithTimeout(session.NewContext(ctx, &sess), reinitTimeout)
		defer cancel()
		if err := d.Init(ctx); err != nil {
			m.log.Warn("re-initialization after sign-in failed",
				zap.String("session_id", ev.Session.ID), zap.Error(err))
		}

	case session.SignedOut:
		m.mu.Lock()
		b, ok := m.boards[ev.Session.ID]
		delete(m.boards, ev.Session.ID)
		m.mu.Unlock()

		if ok {
			b.d.SignOut()
			m.log.Info("dashboard cleared on sign-out", zap.String("session_id", ev.Session.ID))
		}
	}
}
