// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"webtoprint/internal/personalization"
)

// TemplateDescription is a raw template description as last fetched from
// the rendering service.
type TemplateDescription struct {
	GUID        string
	Description []byte
	Checksum    string
	FetchedAt   time.Time
}

// Checksum returns the hex SHA-256 of a raw description.
func Checksum(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// TemplateDescriptionStore handles template description database operations.
type TemplateDescriptionStore struct {
	db *sql.DB
}

// NewTemplateDescriptionStore creates a new TemplateDescriptionStore.
func NewTemplateDescriptionStore(db *sql.DB) *TemplateDescriptionStore {
	return &TemplateDescriptionStore{db: db}
}

// Get retrieves a description by template GUID. Returns nil if not found.
func (s *TemplateDescriptionStore) Get(ctx context.Context, guid string) (*TemplateDescription, error) {
	d := &TemplateDescription{GUID: guid}
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT description, checksum, fetched_at
		FROM template_descriptions WHERE guid = $1
	`, guid).Scan(&raw, &d.Checksum, &d.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find template description: %w", err)
	}
	d.Description = []byte(raw)
	return d, nil
}

// Put inserts or replaces the description of a template and stamps it
// as fetched now.
func (s *TemplateDescriptionStore) Put(ctx context.Context, guid string, raw []byte) (*TemplateDescription, error) {
	d := &TemplateDescription{GUID: guid, Description: raw, Checksum: Checksum(raw)}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO template_descriptions (guid, description, checksum, fetched_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (guid) DO UPDATE
		SET description = EXCLUDED.description,
		    checksum = EXCLUDED.checksum,
		    fetched_at = EXCLUDED.fetched_at
		RETURNING fetched_at
	`, guid, string(raw), d.Checksum).Scan(&d.FetchedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert template description: %w", err)
	}
	return d, nil
}

// Delete removes a cached description.
func (s *TemplateDescriptionStore) Delete(ctx context.Context, guid string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM template_descriptions WHERE guid = $1", guid)
	if err != nil {
		return fmt.Errorf("delete template description: %w", err)
	}
	return nil
}

// PreviewInvalidator drops cached previews of a template.
type PreviewInvalidator interface {
	InvalidateTemplate(ctx context.Context, guid string)
}

// CachedTemplates serves template descriptions from the database and
// refreshes them from upstream once they are older than MaxAge. When a
// refresh returns a different description, cached previews of the
// template are invalidated and the event is logged.
type CachedTemplates struct {
	upstream personalization.TemplateSource
	store    *TemplateDescriptionStore
	log      *CacheLogStore
	previews PreviewInvalidator

	// MaxAge of a stored copy before it is refreshed. Zero never refreshes.
	MaxAge time.Duration
}

// NewCachedTemplates creates the cache. upstream and previews may be nil.
func NewCachedTemplates(upstream personalization.TemplateSource, store *TemplateDescriptionStore, log *CacheLogStore, previews PreviewInvalidator, maxAge time.Duration) *CachedTemplates {
	return &CachedTemplates{
		upstream: upstream,
		store:    store,
		log:      log,
		previews: previews,
		MaxAge:   maxAge,
	}
}

// Description implements personalization.TemplateSource. A stale copy is
// served when upstream fails.
func (c *CachedTemplates) Description(ctx context.Context, guid string) ([]byte, error) {
	stored, err := c.store.Get(ctx, guid)
	if err != nil {
		slog.Warn("template description lookup failed", "template", guid, "error", err)
	}
	if stored != nil && (c.upstream == nil || c.MaxAge <= 0 || time.Since(stored.FetchedAt) < c.MaxAge) {
		return stored.Description, nil
	}
	if c.upstream == nil {
		return nil, &personalization.NotFoundError{Kind: "template", Name: guid}
	}

	raw, err := c.upstream.Description(ctx, guid)
	if err != nil {
		if stored != nil {
			slog.Warn("template refresh failed, serving stored copy",
				"template", guid,
				"fetched_at", stored.FetchedAt,
				"error", err,
			)
			return stored.Description, nil
		}
		return nil, err
	}

	fresh, err := c.store.Put(ctx, guid, raw)
	if err != nil {
		slog.Warn("storing template description failed", "template", guid, "error", err)
		return raw, nil
	}
	if stored != nil && stored.Checksum != fresh.Checksum {
		if c.previews != nil {
			c.previews.InvalidateTemplate(ctx, guid)
		}
		if c.log != nil {
			c.log.TemplateChanged(ctx, guid, stored.Checksum, fresh.Checksum)
		}
	}
	return raw, nil
}
