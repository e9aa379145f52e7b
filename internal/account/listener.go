package account

import (
	"context"
	"sync"
	"time"

	"credit-service/internal/idp"
	"credit-service/internal/logger"
)

type Subscriber interface {
	OnAuthStateChange(fn idp.Listener) idp.Subscription
}

// Listener holds the process's one subscription to identity-state changes.
type Listener struct {
	events    Subscriber
	activator *Activator
	timeout   time.Duration

	once sync.Once
	mu   sync.Mutex
	sub  idp.Subscription
}

func NewListener(events Subscriber, activator *Activator) *Listener {
	return &Listener{
		events:    events,
		activator: activator,
		timeout:   10 * time.Second,
	}
}

// Start subscribes once; later calls are no-ops.
func (l *Listener) Start() {
	l.once.Do(func() {
		sub := l.events.OnAuthStateChange(l.handle)

		l.mu.Lock()
		l.sub = sub
		l.mu.Unlock()

		logger.Info("auth listener started", nil)
	})
}

func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sub != nil {
		l.sub.Unsubscribe()
		l.sub = nil
	}
}

func (l *Listener) handle(change idp.StateChange) {
	switch change.Event {
	case idp.EventSignedIn:
		if change.Session == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()

		act, err := l.activator.Activate(ctx, change.Session)
		if err != nil {
			return
		}
		logger.Debug("listener activation", map[string]any{
			"session_id": change.SID,
			"applied":    act.Applied,
			"created":    act.Created,
		})

	case idp.EventSignedOut:
		l.activator.Release(change.SID)
		logger.Info("session ledger released", map[string]any{"session_id": change.SID})

	case idp.EventTokenRefreshed:
		logger.Debug("token refreshed", map[string]any{"session_id": change.SID})
	}
}
