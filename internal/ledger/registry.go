package ledger

import (
	"context"
	"sync"
	"time"

	"credit-service/internal/logger"
)

// tombstoneTTL bounds how long a released session id is remembered.
// Identity events for a session are delivered well within it.
const tombstoneTTL = time.Hour

// Registry keeps one Synchronizer per browser session id. A released id
// is never bound again: sign-in events that arrive after the sign-out
// get a closed synchronizer whose writes are discarded.
type Registry struct {
	mu       sync.Mutex
	syncs    map[string]*Synchronizer
	seen     map[string]time.Time // last For or Peek per session
	released map[string]time.Time
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		syncs:    make(map[string]*Synchronizer),
		seen:     make(map[string]time.Time),
		released: make(map[string]time.Time),
		now:      time.Now,
	}
}

// For returns the synchronizer for sid, creating it on first use.
func (r *Registry) For(sid string) *Synchronizer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, gone := r.released[sid]; gone {
		s := New()
		s.closed = true
		return s
	}

	s, ok := r.syncs[sid]
	if !ok {
		s = New()
		r.syncs[sid] = s
	}
	r.seen[sid] = r.now()
	return s
}

func (r *Registry) Peek(sid string) (*Synchronizer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.syncs[sid]
	if ok {
		r.seen[sid] = r.now()
	}
	return s, ok
}

// Release clears the session's ledger and forgets it. Flows still holding
// the synchronizer see their writes discarded.
func (r *Registry) Release(sid string) {
	r.mu.Lock()
	s, ok := r.syncs[sid]
	delete(r.syncs, sid)
	delete(r.seen, sid)

	now := r.now()
	for id, at := range r.released {
		if now.Sub(at) > tombstoneTTL {
			delete(r.released, id)
		}
	}
	r.released[sid] = now
	r.mu.Unlock()

	if ok {
		s.close()
	}
}

// Prune forgets sessions nobody has touched for longer than maxIdle.
// Unlike Release it leaves no tombstone: a session that is still live
// gets a fresh synchronizer on its next activation.
func (r *Registry) Prune(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n := 0
	for sid, at := range r.seen {
		if now.Sub(at) > maxIdle {
			delete(r.syncs, sid)
			delete(r.seen, sid)
			n++
		}
	}
	return n
}

// Sweep prunes idle sessions every interval until ctx is done.
func (r *Registry) Sweep(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Prune(maxIdle); n > 0 {
				logger.Debug("idle session ledgers pruned", map[string]any{"count": n})
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.syncs)
}
