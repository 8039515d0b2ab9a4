package pageforge

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// ImageOptions fingerprints how a source image is processed before caching.
// The same source processed two different ways occupies two cache slots.
type ImageOptions struct {
	Width   int
	Height  int
	Quality int
	Format  string
}

func (o ImageOptions) isZero() bool {
	return o == ImageOptions{}
}

func (o ImageOptions) fingerprint() string {
	if o.isZero() {
		return ""
	}
	canonical := fmt.Sprintf("w=%d;h=%d;q=%d;f=%s", o.Width, o.Height, o.Quality, strings.ToLower(o.Format))
	return fmt.Sprintf("+opts:%016x", xxhash.Sum64String(canonical))
}

// ImageKeyForData derives a cache key for embedded/inline image data from a
// content hash, so identical embedded images across nodes and documents
// share one cache slot.
func ImageKeyForData(data []byte, opts ImageOptions) string {
	return fmt.Sprintf("inline:%016x%s", xxhash.Sum64(data), opts.fingerprint())
}

// ImageKeyForSource derives a cache key for a URL or path source from the
// normalized source string.
func ImageKeyForSource(source string, opts ImageOptions) string {
	return strings.ToLower(strings.TrimSpace(source)) + opts.fingerprint()
}

// CachedImage holds decoded image bytes plus metadata. Entries are immutable
// once inserted except for access bookkeeping.
type CachedImage struct {
	// Key is the cache key the image was stored under.
	Key string
	// Source identifies where the image came from (URL, path or "inline").
	Source string
	// Format is the decoded format name (png, jpeg, gif, webp, bmp, tiff).
	Format string
	// Width and Height are the pixel dimensions.
	Width  int
	Height int
	// HasAlpha reports whether the image carries transparency.
	HasAlpha bool
	// Data is the decoded (and possibly processed) image bytes.
	Data []byte

	createdAt   time.Time
	accessCount int64
}

// SizeBytes returns the byte weight the entry counts against the budget.
func (img *CachedImage) SizeBytes() int64 {
	return int64(len(img.Data))
}

type imageEntry struct {
	key     string
	img     *CachedImage
	element *list.Element
}

// ImageCache is a thread-safe store of decoded images shared by all
// concurrent renders. It is bounded by entry count and by a total byte
// budget; insertion evicts least-recently-used entries one at a time until
// both budgets hold, guaranteeing the post-condition before returning. A
// single item larger than the per-item cap is rejected up front and never
// cached.
type ImageCache struct {
	mu      sync.Mutex
	entries map[string]*imageEntry
	lru     *list.List // front = most recently used

	totalBytes   int64
	maxEntries   int
	maxBytes     int64
	maxItemBytes int64
	ttl          time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	group singleflight.Group

	sweepStop chan struct{}
	closeOnce sync.Once
}

// NewImageCache creates an image cache. maxEntries 0 disables caching.
func NewImageCache(maxEntries int, maxBytes, maxItemBytes int64, ttl, sweepInterval time.Duration) *ImageCache {
	cache := &ImageCache{
		entries:      make(map[string]*imageEntry),
		lru:          list.New(),
		maxEntries:   maxEntries,
		maxBytes:     maxBytes,
		maxItemBytes: maxItemBytes,
		ttl:          ttl,
		sweepStop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go cache.sweepLoop(sweepInterval)
	}
	return cache
}

// GetOrAdd returns the cached image for key, invoking fetch on a miss.
// Concurrent misses for the same key run fetch once and share the result.
// Fetch failures propagate to every waiting caller and nothing is inserted.
// An image larger than the per-item cap is returned but not cached.
func (c *ImageCache) GetOrAdd(key string, fetch func() (*CachedImage, error)) (*CachedImage, error) {
	if c.maxEntries == 0 {
		c.misses.Add(1)
		return fetch()
	}

	if img, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return img, nil
	}
	c.misses.Add(1)

	result, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent call may have finished the insert while this caller
		// was queued on the flight group.
		if img, ok := c.lookup(key); ok {
			return img, nil
		}
		img, err := fetch()
		if err != nil {
			return nil, err
		}
		img.Key = key
		c.TryAdd(img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*CachedImage), nil
}

// TryGet returns the cached image for key without fetching on a miss.
func (c *ImageCache) TryGet(key string) (*CachedImage, bool) {
	if c.maxEntries == 0 {
		c.misses.Add(1)
		return nil, false
	}
	img, ok := c.lookup(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return img, true
}

func (c *ImageCache) lookup(key string) (*CachedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.expiredLocked(entry.img) {
		c.removeLocked(entry)
		return nil, false
	}
	c.lru.MoveToFront(entry.element)
	entry.img.accessCount++
	return entry.img, true
}

// TryAdd inserts an image, evicting least-recently-used entries until both
// the entry-count and byte budgets hold. It returns false when the image
// cannot be cached: caching disabled, image over the per-item cap, or the
// byte budget too small even with everything else evicted.
func (c *ImageCache) TryAdd(img *CachedImage) bool {
	if c.maxEntries == 0 || img == nil {
		return false
	}
	size := img.SizeBytes()
	if c.maxItemBytes > 0 && size > c.maxItemBytes {
		return false
	}
	if c.maxBytes > 0 && size > c.maxBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[img.Key]; ok {
		// Logical update is always remove-then-insert.
		c.removeLocked(existing)
	}

	for c.lru.Len() > 0 &&
		(c.lru.Len() >= c.maxEntries || (c.maxBytes > 0 && c.totalBytes+size > c.maxBytes)) {
		oldest := c.lru.Back()
		c.removeLocked(oldest.Value.(*imageEntry))
	}
	if c.maxBytes > 0 && c.totalBytes+size > c.maxBytes {
		return false
	}

	if img.createdAt.IsZero() {
		img.createdAt = time.Now()
	}
	entry := &imageEntry{key: img.Key, img: img}
	entry.element = c.lru.PushFront(entry)
	c.entries[img.Key] = entry
	c.totalBytes += size
	return true
}

func (c *ImageCache) expiredLocked(img *CachedImage) bool {
	return c.ttl > 0 && time.Since(img.createdAt) > c.ttl
}

func (c *ImageCache) removeLocked(entry *imageEntry) {
	delete(c.entries, entry.key)
	c.lru.Remove(entry.element)
	c.totalBytes -= entry.img.SizeBytes()
}

// Remove removes the entry for key.
func (c *ImageCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		c.removeLocked(entry)
	}
}

// Clear removes all entries and resets the hit/miss counters.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*imageEntry)
	c.lru = list.New()
	c.totalBytes = 0
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Size returns the current number of cached images.
func (c *ImageCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TotalBytes returns the byte weight of all cached image data.
func (c *ImageCache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

// Stats returns a snapshot of the cache counters.
func (c *ImageCache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	c.mu.Lock()
	size := len(c.entries)
	bytes := c.totalBytes
	c.mu.Unlock()

	return CacheStats{
		Size:           size,
		HitCount:       hits,
		MissCount:      misses,
		HitRatio:       hitRatio(hits, misses),
		MemoryEstimate: bytes,
	}
}

func (c *ImageCache) sweepLoop(interval time.Duration) {
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

func (c *ImageCache) sweepExpired() {
	if c.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.img.createdAt.Before(cutoff) {
			c.removeLocked(entry)
		}
	}
}

// Close stops the background sweep. The cache remains usable afterwards.
func (c *ImageCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.sweepStop)
	})
	return nil
}
