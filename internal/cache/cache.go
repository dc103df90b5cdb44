package cache

import (
	"time"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/util"
)

// Cache defines the interface for byte caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyVersion changes whenever the cached entry layout changes
const keyVersion = "claimgraph:render:v1"

// KeyInput is everything a rendered document depends on
type KeyInput struct {
	Document            string
	Content             []byte
	StoreFingerprint    string
	RegistryFingerprint string
	Options             string
}

// RenderKey generates the cache key for one document render
func RenderKey(in KeyInput) string {
	fp := util.NewFingerprint().
		Fields(in.Document).
		Bytes(in.Content).
		Fields(in.StoreFingerprint, in.RegistryFingerprint, in.Options)
	return keyVersion + ":" + fp.Hex()
}

// New builds the cache described by cfg, or nil when caching is disabled
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.TTL)
}
