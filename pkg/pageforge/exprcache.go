package pageforge

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/expr-lang/expr/vm"
)

// CachedExpression is the compiled form of one expression text. Entries are
// immutable once inserted except for access bookkeeping; a logical update is
// always remove-then-insert.
type CachedExpression struct {
	// Source is the expression text the program was compiled from.
	Source string
	// Program is the compiled virtual-machine program.
	Program *vm.Program
	// Params lists the identifiers the expression references, so callers can
	// check data availability up front.
	Params []string

	createdAt   time.Time
	lastAccess  atomic.Int64
	accessCount atomic.Int64
}

func newCachedExpression(source string, program *vm.Program, params []string) *CachedExpression {
	entry := &CachedExpression{
		Source:    source,
		Program:   program,
		Params:    params,
		createdAt: time.Now(),
	}
	entry.lastAccess.Store(entry.createdAt.UnixNano())
	return entry
}

// CreatedAt returns the entry's creation time.
func (e *CachedExpression) CreatedAt() time.Time {
	return e.createdAt
}

// AccessCount returns how often the entry has been served from the cache.
func (e *CachedExpression) AccessCount() int64 {
	return e.accessCount.Load()
}

func (e *CachedExpression) touch() {
	e.lastAccess.Store(time.Now().UnixNano())
	e.accessCount.Add(1)
}

// CacheStats is a point-in-time snapshot of a cache's counters.
type CacheStats struct {
	Size           int
	HitCount       int64
	MissCount      int64
	HitRatio       float64
	MemoryEstimate int64
}

func hitRatio(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// ExpressionCache is a thread-safe store of compiled expressions shared by
// all concurrent renders. It is bounded by entry count with approximate LRU
// eviction and by TTL with a periodic background sweep.
//
// Eviction removes a batch (about 10% of capacity) of the least recently
// accessed entries. The batch runs behind a non-blocking try-lock: when
// several renders hit the capacity limit at once, one performs the eviction
// and the rest skip it for this round. Correctness only requires that the
// cache eventually stays under budget, never that any single insertion
// evicts exactly the right amount.
type ExpressionCache struct {
	mu      sync.RWMutex
	entries map[string]*CachedExpression

	maxSize int
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	evictMu sync.Mutex

	sweepStop chan struct{}
	closeOnce sync.Once
}

// NewExpressionCache creates an expression cache. maxSize 0 disables
// caching: every lookup misses and compiles fresh. A positive sweepInterval
// starts a background goroutine removing expired entries; Close stops it.
func NewExpressionCache(maxSize int, ttl, sweepInterval time.Duration) *ExpressionCache {
	cache := &ExpressionCache{
		entries:   make(map[string]*CachedExpression),
		maxSize:   maxSize,
		ttl:       ttl,
		sweepStop: make(chan struct{}),
	}
	if sweepInterval > 0 {
		go cache.sweepLoop(sweepInterval)
	}
	return cache
}

// GetOrCompile returns the cached compiled form for key, invoking compile on
// a miss. Compile failures propagate to the caller and nothing is inserted,
// so a malformed expression is never cached (no negative caching).
func (c *ExpressionCache) GetOrCompile(key string, compile func() (*CachedExpression, error)) (*CachedExpression, error) {
	if c.maxSize == 0 {
		c.misses.Add(1)
		return compile()
	}

	if entry, ok := c.lookup(key); ok {
		c.hits.Add(1)
		entry.touch()
		return entry, nil
	}
	c.misses.Add(1)

	entry, err := compile()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.entries[key]; ok && !c.expiredLocked(existing) {
		// Another render compiled the same expression first; keep the
		// established entry so all callers share one program.
		c.mu.Unlock()
		existing.touch()
		return existing, nil
	}
	if len(c.entries) >= c.maxSize {
		c.mu.Unlock()
		c.evictBatch()
		c.mu.Lock()
	}
	c.entries[key] = entry
	c.mu.Unlock()

	return entry, nil
}

// TryGet returns the cached entry for key without compiling on a miss.
func (c *ExpressionCache) TryGet(key string) (*CachedExpression, bool) {
	if c.maxSize == 0 {
		c.misses.Add(1)
		return nil, false
	}
	entry, ok := c.lookup(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	entry.touch()
	return entry, true
}

func (c *ExpressionCache) lookup(key string) (*CachedExpression, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	expired := ok && c.expiredLocked(entry)
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if expired {
		c.Remove(key)
		return nil, false
	}
	return entry, true
}

func (c *ExpressionCache) expiredLocked(entry *CachedExpression) bool {
	return c.ttl > 0 && time.Since(entry.createdAt) > c.ttl
}

// Remove removes the entry for key.
func (c *ExpressionCache) Remove(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries and resets the hit/miss counters.
func (c *ExpressionCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*CachedExpression)
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Size returns the current number of cached expressions.
func (c *ExpressionCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters. The memory estimate is a
// rough per-entry figure; compiled programs are small and count-bounded.
func (c *ExpressionCache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	size := c.Size()
	return CacheStats{
		Size:           size,
		HitCount:       hits,
		MissCount:      misses,
		HitRatio:       hitRatio(hits, misses),
		MemoryEstimate: int64(size) * approxExpressionEntryBytes,
	}
}

// approxExpressionEntryBytes is a coarse sizing figure for statistics only.
const approxExpressionEntryBytes = 1024

// evictBatch removes roughly 10% of capacity, least recently accessed first.
// The try-lock collapses concurrent eviction attempts into one winner; the
// losers simply skip eviction this round.
func (c *ExpressionCache) evictBatch() {
	if !c.evictMu.TryLock() {
		return
	}
	defer c.evictMu.Unlock()

	batch := c.maxSize / 10
	if batch < 1 {
		batch = 1
	}

	type aged struct {
		key        string
		lastAccess int64
	}

	c.mu.RLock()
	candidates := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		candidates = append(candidates, aged{key: key, lastAccess: entry.lastAccess.Load()})
	}
	c.mu.RUnlock()

	if len(candidates) < c.maxSize {
		return
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccess < candidates[j].lastAccess
	})
	if batch > len(candidates) {
		batch = len(candidates)
	}

	c.mu.Lock()
	for _, victim := range candidates[:batch] {
		delete(c.entries, victim.key)
	}
	c.mu.Unlock()
}

func (c *ExpressionCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.sweepStop:
			return
		}
	}
}

func (c *ExpressionCache) sweepExpired() {
	if c.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-c.ttl)

	c.mu.Lock()
	for key, entry := range c.entries {
		if entry.createdAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Close stops the background sweep. The cache remains usable afterwards.
func (c *ExpressionCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.sweepStop)
	})
	return nil
}
