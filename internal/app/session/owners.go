package session

import (
	"sync"
	"time"
)

// ownerTTL bounds how long job ownership records are kept after creation.
// Long enough to outlive the request and its enrichment patches.
const ownerTTL = 30 * time.Minute

// OwnerRegistry stores which user/session created each job. Ownership is
// checked at subscribe time; the subscription key itself never carries
// session identity.
type OwnerRegistry struct {
	mu     sync.RWMutex
	owners map[string]OwnerRecord
	done   chan struct{}
}

func NewOwnerRegistry() *OwnerRegistry {
	r := &OwnerRegistry{
		owners: make(map[string]OwnerRecord),
		done:   make(chan struct{}),
	}
	go r.cleanup()
	return r
}

// RegisterJob records ownership at job creation. Idempotent: the first
// record for a requestId wins.
func (r *OwnerRegistry) RegisterJob(requestID string, owner OwnerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.owners[requestID]; exists {
		return
	}
	owner.CreatedAt = time.Now()
	r.owners[requestID] = owner
}

// Owner returns the job's owner record, if the job is known.
func (r *OwnerRegistry) Owner(requestID string) (OwnerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.owners[requestID]
	return rec, ok
}

func (r *OwnerRegistry) Stop() {
	close(r.done)
}

func (r *OwnerRegistry) cleanup() {
	ticker := time.NewTicker(ownerTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-ownerTTL)
			r.mu.Lock()
			for id, rec := range r.owners {
				if rec.CreatedAt.Before(cutoff) {
					delete(r.owners, id)
				}
			}
			r.mu.Unlock()
		}
	}
}
