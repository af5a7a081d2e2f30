package session

import (
	"context"
	"sync"

	"github.com/localnerve/vaxtrack/internal/types"
	"go.uber.org/zap"
)

// Bridge resolves sessions and publishes their lifecycle events
type Bridge struct {
	auth Authenticator
	bus  Bus
	log  *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}

	unsubscribe func()
}

// NewBridge wires an authenticator to a bus
func NewBridge(auth Authenticator, bus Bus, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bridge{
		auth: auth,
		bus:  bus,
		log:  log,
		seen: make(map[string]struct{}),
	}
	// Sign-outs published by other instances must also be forgotten here.
	b.unsubscribe = bus.Subscribe(func(_ context.Context, ev Event) {
		if ev.Type == SignedOut {
			b.Forget(ev.Session.ID)
		}
	})
	return b
}

// Resume validates token and publishes SIGNED_IN the first time a session is seen
func (b *Bridge) Resume(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, types.ErrUnauthenticated
	}

	sess, err := b.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, &types.Error{Sentinel: types.ErrUnauthenticated, Message: "invalid session", Cause: err}
	}

	b.mu.Lock()
	_, known := b.seen[sess.ID]
	if !known {
		b.seen[sess.ID] = struct{}{}
	}
	b.mu.Unlock()

	if !known {
		if err := b.bus.Publish(ctx, Event{Type: SignedIn, Session: *sess}); err != nil {
			b.log.Warn("failed to publish sign-in", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
	return sess, nil
}

// SignOut forgets sess and publishes SIGNED_OUT
func (b *Bridge) SignOut(ctx context.Context, sess *Session) error {
	if sess == nil {
		return types.ErrUnauthenticated
	}
	b.Forget(sess.ID)
	return b.bus.Publish(ctx, Event{Type: SignedOut, Session: *sess})
}

// Forget drops a session from the seen set so its next Resume publishes
// SIGNED_IN again
func (b *Bridge) Forget(id string) {
	b.mu.Lock()
	delete(b.seen, id)
	b.mu.Unlock()
}

// CurrentSession returns the session attached to ctx
func (b *Bridge) CurrentSession(ctx context.Context) (*Session, error) {
	sess, ok := FromContext(ctx)
	if !ok {
		return nil, types.ErrUnauthenticated
	}
	return sess, nil
}

// CurrentIdentity returns the identity attached to ctx
func (b *Bridge) CurrentIdentity(ctx context.Context) (Identity, error) {
	sess, err := b.CurrentSession(ctx)
	if err != nil {
		return Identity{}, err
	}
	if sess.Identity.ID == "" {
		return Identity{}, types.ErrUnauthenticated
	}
	return sess.Identity, nil
}

// Subscribe registers a lifecycle listener
func (b *Bridge) Subscribe(l Listener) func() {
	return b.bus.Subscribe(l)
}

// Close detaches the bridge from its bus
func (b *Bridge) Close() {
	b.unsubscribe()
}
