package pageforge

import (
	"errors"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config contains all configuration options for the layout engine and its
// shared caches.
type Config struct {
	// MaxRenderDepth bounds the recursion depth of one render. Exceeding it
	// fails the render rather than recursing without limit.
	MaxRenderDepth int
	// ExpressionCacheSize is the maximum number of compiled expressions to
	// cache. 0 disables the cache.
	ExpressionCacheSize int
	// ExpressionCacheTTL is the time-to-live for compiled expressions.
	// 0 means no expiration.
	ExpressionCacheTTL time.Duration
	// ImageCacheMaxEntries is the maximum number of cached images.
	ImageCacheMaxEntries int
	// ImageCacheMaxBytes is the total byte budget for cached image data.
	ImageCacheMaxBytes int64
	// ImageCacheMaxItemBytes rejects any single image larger than this from
	// being cached at all.
	ImageCacheMaxItemBytes int64
	// ImageCacheTTL is the time-to-live for cached images. 0 means no
	// expiration.
	ImageCacheTTL time.Duration
	// CacheSweepInterval is how often the background sweep removes expired
	// entries. 0 disables the sweep; on-demand expiry still applies.
	CacheSweepInterval time.Duration
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off).
	LogLevel string
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRenderDepth:         100,
		ExpressionCacheSize:    500,
		ExpressionCacheTTL:     30 * time.Minute,
		ImageCacheMaxEntries:   200,
		ImageCacheMaxBytes:     64 << 20,
		ImageCacheMaxItemBytes: 8 << 20,
		ImageCacheTTL:          30 * time.Minute,
		CacheSweepInterval:     5 * time.Minute,
		LogLevel:               "info",
	}
}

// ConfigFromEnvironment creates a configuration from environment variables.
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	if val := os.Getenv("PAGEFORGE_MAX_RENDER_DEPTH"); val != "" {
		if depth, err := strconv.Atoi(val); err == nil {
			config.MaxRenderDepth = depth
		}
	}
	if val := os.Getenv("PAGEFORGE_EXPR_CACHE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.ExpressionCacheSize = size
		}
	}
	if val := os.Getenv("PAGEFORGE_EXPR_CACHE_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			config.ExpressionCacheTTL = ttl
		}
	}
	if val := os.Getenv("PAGEFORGE_IMAGE_CACHE_MAX_ENTRIES"); val != "" {
		if entries, err := strconv.Atoi(val); err == nil {
			config.ImageCacheMaxEntries = entries
		}
	}
	if val := os.Getenv("PAGEFORGE_IMAGE_CACHE_MAX_BYTES"); val != "" {
		if bytes, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.ImageCacheMaxBytes = bytes
		}
	}
	if val := os.Getenv("PAGEFORGE_IMAGE_CACHE_MAX_ITEM_BYTES"); val != "" {
		if bytes, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.ImageCacheMaxItemBytes = bytes
		}
	}
	if val := os.Getenv("PAGEFORGE_IMAGE_CACHE_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			config.ImageCacheTTL = ttl
		}
	}
	if val := os.Getenv("PAGEFORGE_CACHE_SWEEP_INTERVAL"); val != "" {
		if interval, err := time.ParseDuration(val); err == nil {
			config.CacheSweepInterval = interval
		}
	}
	if val := os.Getenv("PAGEFORGE_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	return config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxRenderDepth <= 0 {
		return errors.New("max render depth must be positive")
	}
	if c.ExpressionCacheSize < 0 {
		return errors.New("expression cache size cannot be negative")
	}
	if c.ExpressionCacheTTL < 0 || c.ImageCacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}
	if c.ImageCacheMaxEntries < 0 {
		return errors.New("image cache max entries cannot be negative")
	}
	if c.ImageCacheMaxBytes < 0 || c.ImageCacheMaxItemBytes < 0 {
		return errors.New("image cache byte budgets cannot be negative")
	}
	if c.ImageCacheMaxBytes > 0 && c.ImageCacheMaxItemBytes > c.ImageCacheMaxBytes {
		return errors.New("image cache max item size exceeds total byte budget")
	}
	if c.CacheSweepInterval < 0 {
		return errors.New("cache sweep interval cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}
	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	return nil
}

// GetGlobalConfig returns a copy of the global configuration.
func GetGlobalConfig() *Config {
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})

	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration.
func SetGlobalConfig(config *Config) {
	configOnce.Do(func() {})

	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	UpdateLoggerFromConfig()
}
