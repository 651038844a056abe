package rate

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	mu    sync.Mutex
	start time.Time
	count int64
}

// MemoryCounter is an in-process [Counter] for single-instance deployments.
// Each key owns its own lock; there is no global lock across keys. Expired
// windows are reused in place, so memory stays bounded by the live key set.
type MemoryCounter struct {
	windows sync.Map // key -> *memoryWindow
	now     func() time.Time
}

// NewMemoryCounter creates an in-process [Counter].
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{now: time.Now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	entry, _ := c.windows.LoadOrStore(key, &memoryWindow{})
	w := entry.(*memoryWindow)

	now := c.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.start.IsZero() || now.Sub(w.start) >= window {
		w.start = now
		w.count = 0
	}
	w.count++

	return w.count, nil
}

func (c *MemoryCounter) Reset(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.windows.Delete(key)
	}
	return nil
}

// Sweep drops windows whose lifetime has fully elapsed. Housekeeping only:
// correctness never depends on it because Incr treats stale windows as absent.
func (c *MemoryCounter) Sweep(olderThan time.Duration) {
	cutoff := c.now().Add(-olderThan)
	c.windows.Range(func(key, entry any) bool {
		w := entry.(*memoryWindow)
		w.mu.Lock()
		stale := !w.start.IsZero() && w.start.Before(cutoff)
		w.mu.Unlock()
		if stale {
			c.windows.Delete(key)
		}
		return true
	})
}
