package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/plumelab/plume-engine/pkg/config"
)

// Operation names a cacheable text operation. The operation prefixes every
// key it produces and selects the TTL.
type Operation string

const (
	OpGrammar       Operation = "grammar"
	OpQA            Operation = "qa"
	OpReformulation Operation = "reformulation"
	OpSuggestions   Operation = "suggestions"
)

// Store is a serialized result store with per-entry TTL.
type Store interface {
	// Get returns the stored bytes for key, or found=false on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Fingerprint derives the canonical cache key for an operation over its
// arguments. Arguments are hashed in order with a NUL separator, so distinct
// argument lists never collide. Keyword-style arguments should be folded into
// a single part via SortedKV first.
func Fingerprint(op Operation, args ...string) string {
	h := sha256.New()
	for i, arg := range args {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(arg))
	}
	return string(op) + ":" + hex.EncodeToString(h.Sum(nil))
}

// SortedKV renders keyword arguments as a single canonical string,
// order-independent in the input map.
func SortedKV(kv map[string]string) string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kv[k])
	}
	return b.String()
}

// Cache fronts a Store with JSON serialization, per-operation TTLs, and
// single-flight deduplication of concurrent misses. When the primary store
// fails it degrades to an in-process store; cache trouble never fails a caller.
type Cache struct {
	primary  Store
	fallback Store
	ttls     map[Operation]time.Duration
	group    singleflight.Group
	logger   *zap.Logger
}

// New builds a Cache over primary. A nil primary (no remote store configured)
// leaves only the in-process store. TTLs come from cfg.
func New(primary Store, cfg *config.CacheConfig, logger *zap.Logger) *Cache {
	maxEntries := 10000
	ttls := map[Operation]time.Duration{
		OpGrammar:       24 * time.Hour,
		OpQA:            time.Hour,
		OpReformulation: 12 * time.Hour,
		OpSuggestions:   5 * time.Minute,
	}
	if cfg != nil {
		if cfg.MaxEntries > 0 {
			maxEntries = cfg.MaxEntries
		}
		if cfg.GrammarTTLSeconds > 0 {
			ttls[OpGrammar] = time.Duration(cfg.GrammarTTLSeconds) * time.Second
		}
		if cfg.QATTLSeconds > 0 {
			ttls[OpQA] = time.Duration(cfg.QATTLSeconds) * time.Second
		}
		if cfg.ReformulationTTLS > 0 {
			ttls[OpReformulation] = time.Duration(cfg.ReformulationTTLS) * time.Second
		}
		if cfg.SuggestionTTLSeconds > 0 {
			ttls[OpSuggestions] = time.Duration(cfg.SuggestionTTLSeconds) * time.Second
		}
	}

	fallback := NewMemoryStore(maxEntries)
	fallback.StartCleanup(5 * time.Minute)

	return &Cache{
		primary:  primary,
		fallback: fallback,
		ttls:     ttls,
		logger:   logger,
	}
}

// TTL returns the configured TTL for an operation.
func (c *Cache) TTL(op Operation) time.Duration {
	if ttl, ok := c.ttls[op]; ok {
		return ttl
	}
	return time.Hour
}

// Get loads the value stored under key into out. Corrupt values are evicted
// and reported as misses.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	raw, found := c.read(ctx, key)
	if !found {
		return false
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("evicting corrupt cache entry",
			zap.String("key", key),
			zap.Error(err))
		c.delete(ctx, key)
		return false
	}
	return true
}

// Set serializes value and stores it under key with the operation's TTL.
func (c *Cache) Set(ctx context.Context, op Operation, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to serialize cache value",
			zap.String("key", key),
			zap.Error(err))
		return
	}
	c.write(ctx, key, raw, c.TTL(op))
}

// Delete removes key from every backing store.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.delete(ctx, key)
}

func (c *Cache) read(ctx context.Context, key string) ([]byte, bool) {
	if c.primary != nil {
		raw, found, err := c.primary.Get(ctx, key)
		if err == nil {
			return raw, found
		}
		c.logger.Warn("cache backing read failed, trying local store",
			zap.String("key", key),
			zap.Error(err))
	}

	raw, found, err := c.fallback.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	return raw, found
}

func (c *Cache) write(ctx context.Context, key string, raw []byte, ttl time.Duration) {
	if c.primary != nil {
		if err := c.primary.Set(ctx, key, raw, ttl); err == nil {
			return
		} else {
			c.logger.Warn("cache backing write failed, degrading to local store",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	_ = c.fallback.Set(ctx, key, raw, ttl)
}

func (c *Cache) delete(ctx context.Context, key string) {
	if c.primary != nil {
		if err := c.primary.Delete(ctx, key); err != nil {
			c.logger.Warn("cache backing delete failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	_ = c.fallback.Delete(ctx, key)
}

// GetOrCompute returns the cached value under key, or runs compute exactly
// once for all concurrent callers of the same key and caches its result.
// The second return reports whether the value came from cache.
func GetOrCompute[T any](ctx context.Context, c *Cache, op Operation, key string, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent caller may have populated the entry while we waited.
		var again T
		if c.Get(ctx, key, &again) {
			return again, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return value, err
		}
		c.Set(ctx, op, key, value)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return result.(T), false, nil
}
