package idp

import (
	"sync"

	"credit-service/internal/auth"
	"credit-service/internal/logger"
)

type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// StateChange is delivered to subscribers. Session is nil for SIGNED_OUT.
type StateChange struct {
	Event   Event
	SID     string
	Session *auth.Session
}

type Listener func(StateChange)

type Subscription interface {
	Unsubscribe()
}

// Broadcaster fans state changes out to subscribers. Each delivery runs on
// its own goroutine so a slow subscriber never blocks the publishing flow.
type Broadcaster struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]Listener

	inflight sync.WaitGroup
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]Listener)}
}

func (b *Broadcaster) OnAuthStateChange(fn Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	b.subs[b.next] = fn
	return &subscription{b: b, id: b.next}
}

func (b *Broadcaster) Publish(change StateChange) {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.subs))
	for _, fn := range b.subs {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		b.inflight.Add(1)
		go func(fn Listener) {
			defer b.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("auth state listener panicked", map[string]any{
						"event": string(change.Event),
						"panic": r,
					})
				}
			}()
			fn(change)
		}(fn)
	}
}

// Wait blocks until every delivery published so far has returned.
func (b *Broadcaster) Wait() {
	b.inflight.Wait()
}

func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

type subscription struct {
	b    *Broadcaster
	id   uint64
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s.id)
		s.b.mu.Unlock()
	})
}
