// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package personalization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SnapshotStore persists session snapshots between process lifetimes.
// Load returns nil, nil when nothing is stored for id.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SnapshotChain layers snapshot stores, fastest first. Save and Delete
// reach every store; Load returns the first snapshot found.
type SnapshotChain []SnapshotStore

func (c SnapshotChain) Save(ctx context.Context, snap *Snapshot) error {
	var errs []error
	for _, st := range c {
		if err := st.Save(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load walks the chain. A failing store is logged and skipped so a cache
// outage falls through to durable storage.
func (c SnapshotChain) Load(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	var lastErr error
	for _, st := range c {
		snap, err := st.Load(ctx, id)
		if err != nil {
			slog.Warn("snapshot load failed", "session", id, "error", err)
			lastErr = err
			continue
		}
		if snap != nil {
			return snap, nil
		}
	}
	return nil, lastErr
}

func (c SnapshotChain) Delete(ctx context.Context, id uuid.UUID) error {
	var errs []error
	for _, st := range c {
		if err := st.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TemplateSource fetches raw template descriptions by GUID.
type TemplateSource interface {
	Description(ctx context.Context, guid string) ([]byte, error)
}

// Manager keeps the live sessions of the process. Sessions missing from
// memory are restored from the snapshot store when one is configured.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	lastUsed map[uuid.UUID]time.Time
	now      func() time.Time

	cfg       Config
	templates TemplateSource
	snapshots SnapshotStore
}

// NewManager creates a manager. snapshots may be nil.
func NewManager(cfg Config, templates TemplateSource, snapshots SnapshotStore) *Manager {
	return &Manager{
		sessions:  make(map[uuid.UUID]*Session),
		lastUsed:  make(map[uuid.UUID]time.Time),
		now:       time.Now,
		cfg:       cfg,
		templates: templates,
		snapshots: snapshots,
	}
}

// Open starts a session for the template with the given GUID.
func (m *Manager) Open(ctx context.Context, guid string) (*Session, error) {
	if guid == "" {
		return nil, &ValidationError{Reason: "template id is required"}
	}
	raw, err := m.templates.Description(ctx, guid)
	if err != nil {
		return nil, fmt.Errorf("fetching template %s: %w", guid, err)
	}
	return m.OpenDescription(ctx, raw)
}

// OpenDescription starts a session from a raw template description.
func (m *Manager) OpenDescription(ctx context.Context, raw []byte) (*Session, error) {
	s, err := NewFromDescription(ctx, raw, m.cfg)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.lastUsed[s.ID()] = m.now()
	m.mu.Unlock()

	if err := m.Save(ctx, s); err != nil {
		slog.Warn("saving new session snapshot failed", "session", s.ID(), "error", err)
	}
	return s, nil
}

// Get returns a live session, restoring it from its snapshot if needed.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		m.lastUsed[id] = m.now()
	}
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	if m.snapshots == nil {
		return nil, &NotFoundError{Kind: "session", Name: id.String()}
	}
	snap, err := m.snapshots.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	if snap == nil {
		return nil, &NotFoundError{Kind: "session", Name: id.String()}
	}

	restored, err := Restore(ctx, snap, m.cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have restored it meanwhile.
	if s, ok := m.sessions[id]; ok {
		m.lastUsed[id] = m.now()
		return s, nil
	}
	m.sessions[id] = restored
	m.lastUsed[id] = m.now()
	slog.Info("session restored", "session", id, "template", restored.TemplateID())
	return restored, nil
}

// Save persists the session's current state. It is a no-op without a
// snapshot store.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if m.snapshots == nil {
		return nil
	}
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	if err := m.snapshots.Save(ctx, snap); err != nil {
		return fmt.Errorf("saving session %s: %w", s.ID(), err)
	}
	return nil
}

// Close drops the session from memory and from the snapshot store.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.sessions, id)
	delete(m.lastUsed, id)
	m.mu.Unlock()

	if m.snapshots == nil {
		return nil
	}
	if err := m.snapshots.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Evict drops sessions not used for at least idle from memory and returns
// how many were dropped. Each one is saved first; a session whose snapshot
// cannot be written stays live so no edits are lost. Evicted sessions come
// back through Get.
func (m *Manager) Evict(ctx context.Context, idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.RLock()
	var stale []*Session
	for id, used := range m.lastUsed {
		if !used.After(cutoff) {
			stale = append(stale, m.sessions[id])
		}
	}
	m.mu.RUnlock()

	evicted := 0
	for _, s := range stale {
		if err := m.Save(ctx, s); err != nil {
			slog.Warn("keeping idle session, snapshot failed", "session", s.ID(), "error", err)
			continue
		}
		m.mu.Lock()
		// Skip sessions touched while the snapshot was written.
		if used, ok := m.lastUsed[s.ID()]; ok && !used.After(cutoff) {
			delete(m.sessions, s.ID())
			delete(m.lastUsed, s.ID())
			evicted++
		}
		m.mu.Unlock()
	}
	if evicted > 0 {
		slog.Info("idle sessions evicted", "count", evicted, "idle", idle)
	}
	return evicted
}

// StartEviction runs Evict every interval until the returned stop func is
// called. A non-positive idle disables eviction.
func (m *Manager) StartEviction(idle, interval time.Duration) (stop func()) {
	if idle <= 0 || interval <= 0 {
		return func() {}
	}
	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Evict(context.Background(), idle)
			case <-stopCh:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stopCh) }) }
}
