package limitx

import (
	"context"
	"sync"
)

type memoryRow struct {
	windowStart int64
	count       int64
}

// MemoryCounter is an in-process Counter backed by a mutex-guarded map.
// Useful for development and single-instance deployments; counters do not
// survive restarts and are not shared across replicas.
type MemoryCounter struct {
	mu   sync.Mutex
	rows map[string]*memoryRow
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{rows: make(map[string]*memoryRow)}
}

// Increment bumps the counter for (key, windowStart), discarding any stale
// window. The mutex makes the read-check-write sequence atomic.
func (c *MemoryCounter) Increment(_ context.Context, key string, windowStart int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, ok := c.rows[key]
	if !ok || row.windowStart != windowStart {
		c.rows[key] = &memoryRow{windowStart: windowStart, count: 1}
		return 1, nil
	}
	row.count++
	return row.count, nil
}
