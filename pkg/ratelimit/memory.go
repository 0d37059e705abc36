package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per client in process. The bucket holds
// Requests tokens and refills at Requests per Window. Clients idle for a full
// window are forgotten.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	config   Config
	now      func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryLimiter creates an in-process limiter and starts its cleanup loop.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg = cfg.withDefaults()

	m := &MemoryLimiter{
		visitors: make(map[string]*visitor),
		config:   cfg,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go m.cleanup()

	return m
}

// Allow implements Limiter. It never returns an error.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.visitors[key]
	if !ok {
		every := m.config.Window / time.Duration(m.config.Requests)
		v = &visitor{limiter: rate.NewLimiter(rate.Every(every), m.config.Requests)}
		m.visitors[key] = v
		trackedClients.Set(float64(len(m.visitors)))
	}
	v.lastSeen = now

	d := Decision{Limit: m.config.Requests}

	reservation := v.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		d.RetryAfter = delay
	} else {
		d.Allowed = true
		d.Remaining = max(int(v.limiter.TokensAt(now)), 0)
	}

	record(backendMemory, d)
	return d, nil
}

// Close stops the cleanup loop. It is safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	return nil
}

func (m *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(m.config.Window)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.removeIdle()
		}
	}
}

func (m *MemoryLimiter) removeIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, v := range m.visitors {
		if now.Sub(v.lastSeen) >= m.config.Window {
			delete(m.visitors, key)
		}
	}
	trackedClients.Set(float64(len(m.visitors)))
}
