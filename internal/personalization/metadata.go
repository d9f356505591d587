// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package personalization

import "webtoprint/internal/models"

// MetadataStore edits the metadata of fields and images. It never does I/O;
// the only side effect is the optional change notification for the owning
// page.
type MetadataStore struct {
	notify func(page int)
}

// NewMetadataStore returns a store that calls notify with the page number
// of every target changed with notify=true. notify may be nil.
func NewMetadataStore(notify func(page int)) *MetadataStore {
	return &MetadataStore{notify: notify}
}

// Replace merges patch into the target's metadata, overwriting existing
// keys and adding new ones.
func (s *MetadataStore) Replace(target models.Annotated, patch models.Metadata, notify bool) {
	m := ensure(target)
	for k, v := range patch {
		m[k] = v
	}
	s.signal(target, notify)
}

// Clear removes every key from the target's metadata.
func (s *MetadataStore) Clear(target models.Annotated, notify bool) {
	m := ensure(target)
	for k := range m {
		delete(m, k)
	}
	s.signal(target, notify)
}

// Delete removes a single key.
func (s *MetadataStore) Delete(target models.Annotated, key string, notify bool) {
	delete(ensure(target), key)
	s.signal(target, notify)
}

// Get returns the value stored for key, or def when the key is absent.
func (s *MetadataStore) Get(target models.Annotated, key, def string) string {
	if v, ok := ensure(target)[key]; ok {
		return v
	}
	return def
}

func (s *MetadataStore) signal(target models.Annotated, notify bool) {
	if notify && s.notify != nil {
		s.notify(target.PageNumber())
	}
}

func ensure(target models.Annotated) models.Metadata {
	ref := target.MetadataRef()
	if *ref == nil {
		*ref = models.Metadata{}
	}
	return *ref
}
