// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// preview.go provides a Valkey-backed cache of render results. Identical
// page states across sessions (a shopper re-opening a template, or undoing
// back to a state already rendered) are answered without calling the
// rendering service.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"webtoprint/internal/personalization"
)

const (
	// previewKeyPrefix is the Valkey key prefix for cached render results.
	previewKeyPrefix = "preview:"

	// DefaultPreviewTTL is how long a render result stays cached.
	DefaultPreviewTTL = 30 * time.Minute
)

// PreviewCache stores render results keyed by the full page state.
type PreviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPreviewCache creates a preview cache backed by the given Valkey client.
func NewPreviewCache(client *redis.Client, ttl time.Duration) *PreviewCache {
	if ttl == 0 {
		ttl = DefaultPreviewTTL
	}
	return &PreviewCache{client: client, ttl: ttl}
}

// Key returns the cache key of a render request. Maps encode with sorted
// keys, so equal page states hash equally.
func Key(req *personalization.RenderRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("preview cache key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s%s:%d:%s", previewKeyPrefix, req.TemplateID, req.Page, hex.EncodeToString(sum[:])), nil
}

// Get returns the cached result for key. Errors count as a miss.
func (pc *PreviewCache) Get(ctx context.Context, key string) (*personalization.RenderResult, bool) {
	val, err := pc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("preview cache get error", "key", key, "error", err)
		return nil, false
	}
	var res personalization.RenderResult
	if err := json.Unmarshal(val, &res); err != nil {
		slog.Warn("preview cache decode error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("preview cache hit", "key", key)
	return &res, true
}

// Set stores a result with the configured TTL.
func (pc *PreviewCache) Set(ctx context.Context, key string, res *personalization.RenderResult) {
	raw, err := json.Marshal(res)
	if err != nil {
		slog.Warn("preview cache encode error", "key", key, "error", err)
		return
	}
	if err := pc.client.Set(ctx, key, raw, pc.ttl).Err(); err != nil {
		slog.Warn("preview cache set error", "key", key, "error", err)
	}
}

// InvalidateTemplate removes every cached result of a template. Used when
// its description changes, since any page may render differently.
func (pc *PreviewCache) InvalidateTemplate(ctx context.Context, guid string) {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := pc.client.Scan(ctx, cursor, previewKeyPrefix+guid+":*", 100).Result()
		if err != nil {
			slog.Warn("preview cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := pc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("preview cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("preview cache cleared", "template", guid, "deleted", deleted)
	}
}

// CachedRenderer wraps a Renderer with the preview cache. Failures are
// never cached. Share links belong to the session that rendered them, so
// they are stripped before storing, and a renderer that must hand out
// links bypasses the cache.
type CachedRenderer struct {
	next       personalization.Renderer
	cache      *PreviewCache
	shareLinks bool
}

func NewCachedRenderer(next personalization.Renderer, cache *PreviewCache, shareLinks bool) *CachedRenderer {
	return &CachedRenderer{next: next, cache: cache, shareLinks: shareLinks}
}

// Render answers from the cache or delegates and stores the result.
func (r *CachedRenderer) Render(ctx context.Context, req *personalization.RenderRequest) (*personalization.RenderResult, error) {
	if r.shareLinks {
		return r.next.Render(ctx, req)
	}
	key, err := Key(req)
	if err != nil {
		return r.next.Render(ctx, req)
	}
	if res, ok := r.cache.Get(ctx, key); ok {
		return res, nil
	}

	res, err := r.next.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	stored := *res
	stored.ShareLink = ""
	r.cache.Set(ctx, key, &stored)
	return &stored, nil
}
