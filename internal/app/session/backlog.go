package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type backlogEntry struct {
	msg        ServerMessage
	enqueuedAt time.Time
}

// Backlog retains messages published for keys that currently have no
// subscriber. Per-key FIFO with a size cap (oldest dropped) and entry
// expiry; a janitor evicts keys whose entries all expired.
type Backlog struct {
	mu      sync.Mutex
	entries map[string][]backlogEntry
	cap     int
	ttl     time.Duration
	dropped int64
	logger  *zap.Logger
	done    chan struct{}
}

func NewBacklog(cap int, ttl time.Duration, logger *zap.Logger) *Backlog {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backlog{
		entries: make(map[string][]backlogEntry),
		cap:     cap,
		ttl:     ttl,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go b.cleanup()
	return b
}

// Append stores a message for a subscriber-less key, dropping the oldest
// entry when the cap is hit.
func (b *Backlog) Append(key string, msg ServerMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.entries[key]
	if len(queue) >= b.cap {
		queue = queue[1:]
		b.dropped++
		b.logger.Warn("backlog_dropped_oldest",
			zap.String("key", key),
			zap.Int64("dropped_total", b.dropped),
		)
	}
	b.entries[key] = append(queue, backlogEntry{msg: msg, enqueuedAt: time.Now()})
}

// Drain removes and returns the key's unexpired messages in enqueue order.
func (b *Backlog) Drain(key string) []ServerMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue, ok := b.entries[key]
	if !ok {
		return nil
	}
	delete(b.entries, key)

	cutoff := time.Now().Add(-b.ttl)
	msgs := make([]ServerMessage, 0, len(queue))
	for _, e := range queue {
		if e.enqueuedAt.After(cutoff) {
			msgs = append(msgs, e.msg)
		}
	}
	return msgs
}

// Len reports the pending entry count for a key.
func (b *Backlog) Len(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries[key])
}

func (b *Backlog) Stop() {
	close(b.done)
}

func (b *Backlog) cleanup() {
	ticker := time.NewTicker(b.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.evictExpired()
		}
	}
}

func (b *Backlog) evictExpired() {
	cutoff := time.Now().Add(-b.ttl)
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, queue := range b.entries {
		kept := queue[:0]
		for _, e := range queue {
			if e.enqueuedAt.After(cutoff) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(b.entries, key)
			continue
		}
		b.entries[key] = kept
	}
}
