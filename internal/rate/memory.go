package rate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryLimiter es el fixed-window en proceso para dev y tests.
// Misma semántica de ventana que RedisLimiter, sin dependencia externa.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu   sync.Mutex
	hits map[string]int64
	now  func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:    int64(max),
		Window: window,
		hits:   make(map[string]int64),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.Window)
	winKey := fmt.Sprintf("%s:%d", strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	l.mu.Lock()
	defer l.mu.Unlock()

	// Ventanas viejas se purgan al rotar; el mapa no crece sin límite.
	if _, ok := l.hits[winKey]; !ok {
		for k := range l.hits {
			if !strings.HasSuffix(k, fmt.Sprintf(":%d", winStart.Unix())) {
				delete(l.hits, k)
			}
		}
	}

	l.hits[winKey]++
	hits := l.hits[winKey]

	allowed := hits <= l.Max
	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   winStart.Add(l.Window).Sub(now),
	}
	if !allowed {
		res.RetryAfter = res.WindowTTL
	}
	return res, nil
}
