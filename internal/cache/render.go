package cache

import (
	"encoding/json"
	"time"

	"github.com/ppiankov/claimgraph/internal/model"
)

// Entry is one cached document render
type Entry struct {
	Output   []byte         `json:"output"`
	Manifest model.Manifest `json:"manifest"`
}

// RenderCache stores document renders in an underlying byte cache
type RenderCache struct {
	cache Cache
	ttl   time.Duration
}

// NewRenderCache wraps c. A nil c yields a cache that always misses.
func NewRenderCache(c Cache, ttl time.Duration) *RenderCache {
	return &RenderCache{cache: c, ttl: ttl}
}

// Get returns the cached render for key
func (r *RenderCache) Get(key string) (Entry, bool) {
	if r == nil || r.cache == nil {
		return Entry{}, false
	}
	data, ok := r.cache.Get(key)
	if !ok {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false
	}
	if e.Manifest.Entries == nil {
		e.Manifest.Entries = make([]model.ManifestEntry, 0)
	}
	return e, true
}

// Put stores a render. Failed manifests are never cached.
func (r *RenderCache) Put(key string, e Entry) error {
	if r == nil || r.cache == nil || e.Manifest.Failed {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.cache.Set(key, data, r.ttl)
}
