// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"webtoprint/internal/personalization"
)

// PersonalizationStore keeps saved personalizations in the database. It
// implements personalization.SnapshotStore and outlives the Valkey TTL.
type PersonalizationStore struct {
	db *sql.DB
}

// NewPersonalizationStore creates a new PersonalizationStore.
func NewPersonalizationStore(db *sql.DB) *PersonalizationStore {
	return &PersonalizationStore{db: db}
}

// Save inserts or replaces the snapshot of a session.
func (s *PersonalizationStore) Save(ctx context.Context, snap *personalization.Snapshot) error {
	if snap.Template == nil {
		return fmt.Errorf("save personalization %s: snapshot has no template", snap.ID)
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal personalization: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO personalizations (id, template_guid, snapshot)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = NOW()
	`, snap.ID, snap.Template.GUID, string(payload))
	if err != nil {
		return fmt.Errorf("save personalization: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by session id. Returns nil if not found.
func (s *PersonalizationStore) Load(ctx context.Context, id uuid.UUID) (*personalization.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT snapshot FROM personalizations WHERE id = $1", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find personalization: %w", err)
	}
	var snap personalization.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal personalization: %w", err)
	}
	return &snap, nil
}

// Delete removes a saved personalization.
func (s *PersonalizationStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM personalizations WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete personalization: %w", err)
	}
	return nil
}
