// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package personalization

import (
	"log/slog"

	"webtoprint/internal/models"
)

// ShapeResolver decides the edited state of shapes from the page's values.
//
// Marking is eager: any set dependency marks the shape. Unmarking is
// conservative: a grouped shape is only unmarked once every dependency is
// clear, so it does not vanish while a sibling still holds a value.
type ShapeResolver struct{}

// DependencyNames returns the shape's dependency names in order.
func (ShapeResolver) DependencyNames(shape *models.Shape) []string {
	return shape.Dependencies.Slice()
}

// IsAnyDependencySet reports whether at least one name refers to a field
// with a non-empty value or an image with a selection.
func (ShapeResolver) IsAnyDependencySet(page *models.Page, names []string) bool {
	for _, name := range names {
		if f, ok := page.Fields[name]; ok && f.Value != "" {
			return true
		}
		if img, ok := page.Images[name]; ok && img.Value != "" {
			return true
		}
	}
	return false
}

func (ShapeResolver) MarkEdited(shape *models.Shape)   { shape.Edited = true }
func (ShapeResolver) UnmarkEdited(shape *models.Shape) { shape.Edited = false }

// Update applies a dependency change to shape. set is whether the changed
// dependency now holds a value.
func (r ShapeResolver) Update(page *models.Page, shape *models.Shape, set bool) {
	if set {
		r.MarkEdited(shape)
		return
	}
	if !shape.IsGroup() {
		r.UnmarkEdited(shape)
		return
	}
	if r.IsAnyDependencySet(page, r.DependencyNames(shape)) {
		slog.Debug("shape kept edited", "shape", shape.Name(), "page", page.Number)
		return
	}
	r.UnmarkEdited(shape)
}

// DependingOn returns every shape of the page that lists name.
func (ShapeResolver) DependingOn(page *models.Page, name string) []*models.Shape {
	var out []*models.Shape
	for _, s := range page.Shapes {
		if s.Dependencies.Contains(name) {
			out = append(out, s)
		}
	}
	return out
}

// DependencyChanged re-evaluates every shape depending on name.
func (r ShapeResolver) DependencyChanged(page *models.Page, name string, set bool) {
	for _, s := range r.DependingOn(page, name) {
		r.Update(page, s, set)
	}
}

// Refresh recomputes every shape of the page from scratch.
func (r ShapeResolver) Refresh(page *models.Page) {
	for _, s := range page.Shapes {
		s.Edited = r.IsAnyDependencySet(page, r.DependencyNames(s))
	}
}
