package session

import (
	"context"
	"sync"
)

// EventType names a session lifecycle change
type EventType string

const (
	SignedIn  EventType = "SIGNED_IN"
	SignedOut EventType = "SIGNED_OUT"
)

// Event is published on the Bus for every lifecycle change
type Event struct {
	Type    EventType `json:"type"`
	Session Session   `json:"session"`
}

// Listener receives events; ctx carries the event's session
type Listener func(ctx context.Context, ev Event)

// Bus fans events out to listeners
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(l Listener) (unsubscribe func())
	Close() error
}

// listeners is the subscriber set shared by the bus implementations
type listeners struct {
	mu   sync.RWMutex
	next int
	set  map[int]Listener
}

func (ls *listeners) add(l Listener) func() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.set == nil {
		ls.set = make(map[int]Listener)
	}
	id := ls.next
	ls.next++
	ls.set[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			ls.mu.Lock()
			delete(ls.set, id)
			ls.mu.Unlock()
		})
	}
}

func (ls *listeners) dispatch(ctx context.Context, ev Event) {
	ls.mu.RLock()
	snapshot := make([]Listener, 0, len(ls.set))
	for _, l := range ls.set {
		snapshot = append(snapshot, l)
	}
	ls.mu.RUnlock()

	sess := ev.Session
	ctx = NewContext(ctx, &sess)
	for _, l := range snapshot {
		l(ctx, ev)
	}
}

// LocalBus delivers events synchronously within the process
type LocalBus struct {
	ls listeners
}

// NewLocalBus creates an in-process bus
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	b.ls.dispatch(ctx, ev)
	return nil
}

func (b *LocalBus) Subscribe(l Listener) func() {
	return b.ls.add(l)
}

func (b *LocalBus) Close() error {
	return nil
}
