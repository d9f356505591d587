// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package session persists personalization session snapshots in Valkey and
// ties a browser to its session with a cookie. Snapshots are stored as JSON
// with automatic TTL expiry.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"webtoprint/internal/personalization"
)

const (
	// CookieName is the name of the session cookie sent to the browser.
	CookieName = "w2p_session"

	// DefaultTTL is how long an untouched snapshot lives in Valkey.
	DefaultTTL = 7 * 24 * time.Hour

	// keyPrefix namespaces snapshot keys in Valkey to avoid collisions.
	keyPrefix = "personalization:"
)

// Store implements personalization.SnapshotStore on Valkey.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	secure bool
}

// NewStore creates a snapshot store backed by the given Valkey client.
// secure marks the cookie Secure; enable it behind TLS.
func NewStore(client *redis.Client, secure bool) *Store {
	return &Store{
		client: client,
		ttl:    DefaultTTL,
		secure: secure,
	}
}

// Save writes the snapshot and resets its TTL.
func (s *Store) Save(ctx context.Context, snap *personalization.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot marshal: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+snap.ID.String(), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	return nil
}

// Load returns the snapshot for id, or nil if it expired or never existed.
func (s *Store) Load(ctx context.Context, id uuid.UUID) (*personalization.Snapshot, error) {
	payload, err := s.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot get: %w", err)
	}

	var snap personalization.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("snapshot unmarshal: %w", err)
	}
	return &snap, nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, keyPrefix+id.String()).Err(); err != nil {
		return fmt.Errorf("snapshot delete: %w", err)
	}
	return nil
}

// SetCookie binds the browser to the session id.
func (s *Store) SetCookie(w http.ResponseWriter, id uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
}

// ClearCookie expires the session cookie immediately.
func (s *Store) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		MaxAge:   -1,
	})
}

// IDFromRequest returns the session id carried by the request cookie.
// A missing or malformed cookie is not an error.
func IDFromRequest(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
