// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package personalization

import "webtoprint/internal/models"

// Tracker holds the per-page dirtiness rules. It is a set of pure state
// transitions over the model.
//
// userDataChanged is monotonic: once set it stays set until the next
// successful render, even if a value is edited back to what was rendered.
type Tracker struct{}

// FieldOrImageChanged marks the page as diverged from its preview.
func (Tracker) FieldOrImageChanged(page *models.Page) {
	page.UserDataChanged = true
	page.HasUpdatedPreviewImage = false
	page.Revision++
}

func (Tracker) IsPageUpdated(page *models.Page) bool {
	return page.HasUpdatedPreviewImage
}

// AllPagesUpdated reports whether every page has an up-to-date preview.
func (tr Tracker) AllPagesUpdated(t *models.Template) bool {
	for _, p := range t.Pages {
		if !tr.IsPageUpdated(p) {
			return false
		}
	}
	return true
}

// HasUpdatedPages reports whether at least one page has an up-to-date preview.
func (tr Tracker) HasUpdatedPages(t *models.Template) bool {
	for _, p := range t.Pages {
		if tr.IsPageUpdated(p) {
			return true
		}
	}
	return false
}

// ChangedPages returns, ascending, the pages whose user data changed since
// their last render. This is the set re-rendered on cart submission.
func (Tracker) ChangedPages(t *models.Template) []int {
	var changed []int
	for _, n := range t.PageNumbers() {
		if t.Pages[n].UserDataChanged {
			changed = append(changed, n)
		}
	}
	return changed
}

// ApplyRenderResult records a successful render of the page.
func (Tracker) ApplyRenderResult(page *models.Page) {
	page.HasUpdatedPreviewImage = true
	page.UserDataChanged = false
}
