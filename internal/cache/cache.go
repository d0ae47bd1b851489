// Package cache stores raw upstream payloads keyed by request.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/soltixdb/statseries/internal/compression"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/utils"
)

// Cache stores byte payloads with a backend-defined lifetime
type Cache interface {
	// Get returns the payload for key; ok is false on a miss
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key
	Set(ctx context.Context, key string, value []byte) error

	// Close releases backend resources
	Close() error
}

// Key builds a cache key from a namespace and the parts identifying a
// request. Parts are hashed so arbitrary request bodies make short keys.
func Key(prefix string, parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return prefix + ":" + strconv.FormatUint(h.Sum64(), 16)
}

// New creates a Cache based on configuration. A "none" cache is a Noop.
func New(cfg config.CacheConfig) (Cache, error) {
	var c Cache
	switch utils.CacheType(strings.ToLower(cfg.Type)) {
	case "", utils.CacheTypeNone:
		return Noop{}, nil
	case utils.CacheTypeMemory:
		c = NewMemoryCache(cfg.TTL)
	case utils.CacheTypeRedis:
		rc, err := newRedisCache(cfg)
		if err != nil {
			return nil, err
		}
		c = rc
	case utils.CacheTypeSQLite:
		sc, err := NewSQLiteCache(cfg.Path, cfg.TTL)
		if err != nil {
			return nil, err
		}
		c = sc
	default:
		return nil, fmt.Errorf("unsupported cache type: %s (supported: memory, redis, sqlite, none)", cfg.Type)
	}

	if cfg.Compress {
		c = Compressed(c, compression.NewSnappyCompressor())
	}
	return c, nil
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte) error         { return nil }
func (Noop) Close() error                                      { return nil }

type compressed struct {
	inner Cache
	c     compression.Compressor
}

// Compressed wraps a cache so values are stored compressed with c
func Compressed(inner Cache, c compression.Compressor) Cache {
	return &compressed{inner: inner, c: c}
}

func (cc *compressed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	frame, ok, err := cc.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	value, err := compression.Unframe(frame)
	if err != nil {
		return nil, false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return value, true, nil
}

func (cc *compressed) Set(ctx context.Context, key string, value []byte) error {
	frame, err := compression.Frame(cc.c, value)
	if err != nil {
		return err
	}
	return cc.inner.Set(ctx, key, frame)
}

func (cc *compressed) Close() error {
	return cc.inner.Close()
}
