package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/model"
)

// Cache defines the interface for caching mined relative context
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Key generates a versioned cache key from its parts
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "kinstory:" + namespace + ":v1:" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg: memory first, then disk, then
// redis. It returns nil when caching is disabled or no layer is configured.
func New(cfg model.CacheConfig, log *logging.Logger) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if log == nil {
		log = logging.Nop()
	}

	var layers []Cache
	if cfg.MemoryTTL > 0 {
		layers = append(layers, NewMemoryCache(cfg.MemoryTTL, 10*time.Minute))
	}
	if cfg.DiskDir != "" {
		layers = append(layers, NewDiskCache(cfg.DiskDir, cfg.DiskTTL))
	}
	if cfg.RedisAddr != "" {
		rc, err := NewRedisCache(cfg.RedisAddr, cfg.RedisTTL)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		layers = append(layers, rc)
	}

	switch len(layers) {
	case 0:
		return nil, nil
	case 1:
		return layers[0], nil
	}
	log.Debug("layered cache configured", "layers", len(layers))
	return NewLayeredCache(layers...), nil
}
