package core

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"

	prov "github.com/deepcision/deepcision/internal/providers"
)

// CachedResponse is the portion of a chat response worth replaying.
type CachedResponse struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	FinishReason string     `json:"finish_reason"`
	Usage        prov.Usage `json:"usage"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Cache is the two-tier response cache: an in-memory LRU in front of the
// SQLite store. A memory miss that hits the store is promoted back into the
// LRU.
type Cache struct {
	enabled bool
	ttl     time.Duration
	mem     *lru.Cache[string, CachedResponse]
	store   *Store

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCache(store *Store, cfg prov.Config) (*Cache, error) {
	maxEntries := cfg.Cache.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	mem, err := lru.New[string, CachedResponse](maxEntries)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		enabled: cfg.Cache.Enabled,
		ttl:     ttl,
		mem:     mem,
		store:   store,
	}, nil
}

// Key derives a stable cache key from the provider, model and the request
// parameters that influence the response.
func Key(provider, model string, req prov.ChatRequest) string {
	payload, _ := json.Marshal(struct {
		Provider       string            `json:"provider"`
		Model          string            `json:"model"`
		Messages       []prov.Message    `json:"messages"`
		Temperature    *float64          `json:"temperature"`
		MaxTokens      int               `json:"max_tokens"`
		ResponseFormat map[string]string `json:"response_format"`
	}{provider, model, req.Messages, req.Temperature, req.MaxTokens, req.ResponseFormat})
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for key, consulting memory first and the
// store second. Expired entries are never returned.
func (c *Cache) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	if c == nil || !c.enabled {
		return nil, false
	}

	if resp, ok := c.mem.Get(key); ok {
		if time.Since(resp.CreatedAt) < c.ttl {
			c.hits.Add(1)
			return &resp, true
		}
		c.mem.Remove(key)
	}

	row, ok, err := c.store.GetCacheEntry(ctx, key, time.Now())
	if err != nil {
		log.Warn().Err(err).Msg("cache read failed")
		c.misses.Add(1)
		return nil, false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	var resp CachedResponse
	if err := json.Unmarshal(row.Response, &resp); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("corrupt cache entry, dropping")
		c.misses.Add(1)
		return nil, false
	}

	c.mem.Add(key, resp)
	c.hits.Add(1)
	return &resp, true
}

// Put stores a response under key in both tiers.
func (c *Cache) Put(ctx context.Context, key, provider string, resp *prov.ChatResponse) {
	if c == nil || !c.enabled {
		return
	}

	cached := CachedResponse{
		Content:      resp.Content,
		Model:        resp.Model,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
		CreatedAt:    time.Now(),
	}
	c.mem.Add(key, cached)

	payload, err := json.Marshal(cached)
	if err != nil {
		log.Warn().Err(err).Msg("cache encode failed")
		return
	}
	row := CacheRow{
		Key:         key,
		Provider:    provider,
		Model:       resp.Model,
		Response:    payload,
		TotalTokens: resp.Usage.TotalTokens,
		SizeBytes:   int64(len(payload)),
		CreatedAt:   cached.CreatedAt,
		ExpiresAt:   cached.CreatedAt.Add(c.ttl),
	}
	if err := c.store.PutCacheEntry(ctx, row); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// CacheStats summarizes cache effectiveness and footprint.
type CacheStats struct {
	Enabled    bool  `json:"enabled"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	MemEntries int   `json:"mem_entries"`
	Entries    int64 `json:"entries"`
	SizeBytes  int64 `json:"size_bytes"`
}

// Stats reports in-process hit counters plus persisted usage.
func (c *Cache) Stats(ctx context.Context) (CacheStats, error) {
	stats := CacheStats{
		Enabled:    c.enabled,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		MemEntries: c.mem.Len(),
	}
	entries, bytes, err := c.store.CacheUsage(ctx)
	if err != nil {
		return stats, err
	}
	stats.Entries = entries
	stats.SizeBytes = bytes
	return stats, nil
}

// Purge drops every entry from both tiers.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	c.mem.Purge()
	return c.store.PurgeCache(ctx)
}

// Sweep removes expired rows from the store.
func (c *Cache) Sweep(ctx context.Context) (int64, error) {
	return c.store.DeleteExpired(ctx, time.Now())
}
