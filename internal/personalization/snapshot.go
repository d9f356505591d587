// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package personalization

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"webtoprint/internal/models"
)

// Snapshot is a detached copy of a session's state. It is what the API
// returns and what the snapshot stores persist.
type Snapshot struct {
	ID              uuid.UUID        `json:"id"`
	Template        *models.Template `json:"template"`
	CurrentPage     int              `json:"current_page"`
	FieldsHidden    bool             `json:"fields_hidden"`
	HasShapes       bool             `json:"has_shapes"`
	CanShowNextPage bool             `json:"can_show_next_page"`
	CartAllowed     bool             `json:"cart_allowed"`
	ChangedPages    []int            `json:"changed_pages"`
	TakenAt         time.Time        `json:"taken_at"`
}

// Snapshot copies the session state. The template is deep-copied, so the
// result may be read and encoded without the session lock.
func (s *Session) Snapshot() (*Snapshot, error) {
	s.mu.Lock()
	raw, err := json.Marshal(s.tmpl)
	snap := &Snapshot{
		ID:              s.id,
		CurrentPage:     s.currentPage,
		FieldsHidden:    s.fieldsHidden,
		HasShapes:       s.hasShapes,
		CanShowNextPage: s.preview.CanShowNextPageButton(s.currentPage, s.tmpl),
		CartAllowed:     s.preview.CartAllowed(s.tmpl),
		ChangedPages:    s.tracker.ChangedPages(s.tmpl),
		TakenAt:         time.Now().UTC(),
	}
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("encoding template: %w", err)
	}

	var tmpl models.Template
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, fmt.Errorf("copying template: %w", err)
	}
	snap.Template = &tmpl
	return snap, nil
}
