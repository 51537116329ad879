package session

import (
	"sync"
	"time"
)

// Key identifies a subscription stream. Intentionally (channel, requestId)
// only: a new request on a reused connection must never inherit messages
// queued for a previous one, so session identity stays out of the key.
func Key(channel Channel, requestID string) string {
	return string(channel) + ":" + requestID
}

// pendingSub is a subscribe accepted before its job exists. Promoted when
// the job registers (with an ownership re-check) or expired silently.
type pendingSub struct {
	sub       Subscriber
	channel   Channel
	requestID string
	expiresAt time.Time
}

// SubscriptionManager tracks active subscriptions in both directions plus
// pending subscriptions for jobs that do not exist yet. All methods are
// constant-time map work under the lock; no I/O happens while it is held.
type SubscriptionManager struct {
	mu      sync.RWMutex
	forward map[string]map[Subscriber]struct{}
	inverse map[Subscriber]map[string]struct{}
	pending map[string][]pendingSub
	ttl     time.Duration
	done    chan struct{}
}

func NewSubscriptionManager(pendingTTL time.Duration) *SubscriptionManager {
	m := &SubscriptionManager{
		forward: make(map[string]map[Subscriber]struct{}),
		inverse: make(map[Subscriber]map[string]struct{}),
		pending: make(map[string][]pendingSub),
		ttl:     pendingTTL,
		done:    make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Add activates a subscription. Idempotent.
func (m *SubscriptionManager) Add(sub Subscriber, channel Channel, requestID string) {
	key := Key(channel, requestID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forward[key] == nil {
		m.forward[key] = make(map[Subscriber]struct{})
	}
	m.forward[key][sub] = struct{}{}

	if m.inverse[sub] == nil {
		m.inverse[sub] = make(map[string]struct{})
	}
	m.inverse[sub][key] = struct{}{}
}

// Remove deactivates one subscription. Idempotent; reports whether the
// subscription existed.
func (m *SubscriptionManager) Remove(sub Subscriber, channel Channel, requestID string) bool {
	key := Key(channel, requestID)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(sub, key)
}

// RemoveAll detaches a subscriber from every key (connection close) and
// returns how many active subscriptions it held.
func (m *SubscriptionManager) RemoveAll(sub Subscriber) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.inverse[sub] {
		if m.removeLocked(sub, key) {
			removed++
		}
	}
	for requestID, pendings := range m.pending {
		kept := pendings[:0]
		for _, p := range pendings {
			if p.sub != sub {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(m.pending, requestID)
		} else {
			m.pending[requestID] = kept
		}
	}
	return removed
}

func (m *SubscriptionManager) removeLocked(sub Subscriber, key string) bool {
	existed := false
	if subs, ok := m.forward[key]; ok {
		if _, existed = subs[sub]; existed {
			delete(subs, sub)
		}
		if len(subs) == 0 {
			delete(m.forward, key)
		}
	}
	if keys, ok := m.inverse[sub]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(m.inverse, sub)
		}
	}
	return existed
}

// Subscribers snapshots the subscriber set for a key.
func (m *SubscriptionManager) Subscribers(channel Channel, requestID string) []Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.forward[Key(channel, requestID)]
	if len(set) == 0 {
		return nil
	}
	subs := make([]Subscriber, 0, len(set))
	for s := range set {
		subs = append(subs, s)
	}
	return subs
}

// RegisterPending stores a subscribe for a job that does not exist yet.
func (m *SubscriptionManager) RegisterPending(sub Subscriber, channel Channel, requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[requestID] = append(m.pending[requestID], pendingSub{
		sub:       sub,
		channel:   channel,
		requestID: requestID,
		expiresAt: time.Now().Add(m.ttl),
	})
}

// TakePending removes and returns the unexpired pending subscribes for a
// requestId, in arrival order.
func (m *SubscriptionManager) TakePending(requestID string) []pendingSub {
	m.mu.Lock()
	defer m.mu.Unlock()

	pendings, ok := m.pending[requestID]
	if !ok {
		return nil
	}
	delete(m.pending, requestID)

	now := time.Now()
	alive := make([]pendingSub, 0, len(pendings))
	for _, p := range pendings {
		if p.expiresAt.After(now) {
			alive = append(alive, p)
		}
	}
	return alive
}

func (m *SubscriptionManager) Stop() {
	close(m.done)
}

func (m *SubscriptionManager) cleanup() {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for requestID, pendings := range m.pending {
				kept := pendings[:0]
				for _, p := range pendings {
					if p.expiresAt.After(now) {
						kept = append(kept, p)
					}
				}
				if len(kept) == 0 {
					delete(m.pending, requestID)
				} else {
					m.pending[requestID] = kept
				}
			}
			m.mu.Unlock()
		}
	}
}
