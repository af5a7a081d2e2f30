package dashboard

import (
	"sync"
	"time"
)

// NoticeKind is the tone of a transient notice
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
)

// Notice is a transient message shown above the dashboard
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Expires time.Time  `json:"expires"`
}

// Notifier holds at most one notice, dropped after a fixed TTL
type Notifier struct {
	ttl time.Duration

	mu      sync.Mutex
	current *Notice
	timer   *time.Timer
}

// NewNotifier creates a notifier whose notices live for ttl
func NewNotifier(ttl time.Duration) *Notifier {
	return &Notifier{ttl: ttl}
}

// Show replaces the current notice and restarts the expiry timer
func (n *Notifier) Show(kind NoticeKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
	}
	notice := &Notice{Kind: kind, Message: message, Expires: time.Now().Add(n.ttl)}
	n.current = notice
	n.timer = time.AfterFunc(n.ttl, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.current == notice {
			n.current = nil
			n.timer = nil
		}
	})
}

// Current returns a copy of the live notice, or nil
func (n *Notifier) Current() *Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return nil
	}
	c := *n.current
	return &c
}

// Clear drops the notice and its timer
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.current = nil
}
