package middleware

import (
	"sync"
)

// ConnLimiter caps concurrent websocket connections per client IP. Callers
// must pair every successful Acquire with a Release when the connection ends.
type ConnLimiter struct {
	mu    sync.Mutex
	conns map[string]int
	max   int
}

func NewConnLimiter(maxPerIP int) *ConnLimiter {
	return &ConnLimiter{
		conns: make(map[string]int),
		max:   maxPerIP,
	}
}

// Acquire reserves a connection slot for ip. Returns false when the cap is
// reached. A non-positive cap disables limiting.
func (l *ConnLimiter) Acquire(ip string) bool {
	if l.max <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conns[ip] >= l.max {
		return false
	}
	l.conns[ip]++
	return true
}

// Release frees a slot previously acquired for ip.
func (l *ConnLimiter) Release(ip string) {
	if l.max <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := l.conns[ip]; n <= 1 {
		delete(l.conns, ip)
	} else {
		l.conns[ip] = n - 1
	}
}
