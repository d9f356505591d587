// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package personalization

import (
	"context"
	"log/slog"

	"webtoprint/internal/models"
)

// MissedPagesInclude lets a template go to the cart with unrendered pages.
const MissedPagesInclude = "include"

// CartOutcome tells the caller what happened to an add-to-cart attempt.
type CartOutcome int

const (
	// CartProceeded means the platform's add-to-cart action ran.
	CartProceeded CartOutcome = iota
	// CartPreviewsUpdated means the action was suppressed and the changed
	// pages were sent for re-render instead.
	CartPreviewsUpdated
)

func (o CartOutcome) String() string {
	if o == CartPreviewsUpdated {
		return "previews_updated"
	}
	return "proceeded"
}

// ConfirmFunc asks the shopper whether to re-render the given pages before
// adding to the cart. It returns true on acceptance.
type ConfirmFunc func(ctx context.Context, changed []int) bool

// SubmitToCart intercepts an add-to-cart attempt. With no dirty pages, or
// when the shopper declines, addToCart runs unchanged. On acceptance only
// the changed pages are re-rendered and addToCart does not run.
func (s *Synchronizer) SubmitToCart(ctx context.Context, t *models.Template, confirm ConfirmFunc, addToCart func(context.Context) error) (CartOutcome, error) {
	s.locker.Lock()
	changed := s.tracker.ChangedPages(t)
	s.locker.Unlock()

	if len(changed) > 0 && confirm != nil && confirm(ctx, changed) {
		slog.Info("add to cart suppressed, updating previews", "template", t.GUID, "pages", changed)
		return CartPreviewsUpdated, s.UpdatePreview(ctx, t, changed, false)
	}

	if addToCart == nil {
		return CartProceeded, nil
	}
	return CartProceeded, addToCart(ctx)
}

// CartAllowed reports whether the template may go to the cart without
// further renders: every page is up to date, or some page is and the
// template does not demand the rest, or missing pages are explicitly
// included. The caller holds the session lock.
func (s *Synchronizer) CartAllowed(t *models.Template) bool {
	switch {
	case s.tracker.AllPagesUpdated(t):
		return true
	case t.MissedPages == MissedPagesInclude:
		return true
	case t.MissedPages == "" && s.tracker.HasUpdatedPages(t):
		return true
	default:
		return false
	}
}
