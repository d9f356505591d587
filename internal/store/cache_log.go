// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// cache_log.go keeps an audit trail of cache invalidations. A template
// description that changes upstream clears every cached preview of that
// template; the log records when that happened and between which versions.
package store

import (
	"context"
	"database/sql"
	"log/slog"
)

// Entity types and actions written to the invalidation log.
const (
	EntityTemplate = "template"

	ActionDescriptionChanged = "description_changed"
)

// CacheLogStore writes the invalidation log.
type CacheLogStore struct {
	db *sql.DB
}

func NewCacheLogStore(db *sql.DB) *CacheLogStore {
	return &CacheLogStore{db: db}
}

// Log records an event. Failures are logged and swallowed; the
// invalidation itself already happened.
func (s *CacheLogStore) Log(ctx context.Context, entityType, entityID, action, detail string) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_invalidation_log (entity_type, entity_id, action, detail)
		VALUES ($1, $2, $3, $4)
	`, entityType, entityID, action, detail)
	if err != nil {
		slog.Warn("failed to log cache invalidation",
			"entity_type", entityType,
			"entity_id", entityID,
			"action", action,
			"error", err,
		)
		return
	}
	slog.Debug("cache invalidation logged", "entity_type", entityType, "entity_id", entityID, "action", action)
}

// TemplateChanged records a description moving from one checksum to another.
func (s *CacheLogStore) TemplateChanged(ctx context.Context, guid, from, to string) {
	s.Log(ctx, EntityTemplate, guid, ActionDescriptionChanged, shortSum(from)+" -> "+shortSum(to))
}

// shortSum trims a hex checksum for display.
func shortSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
