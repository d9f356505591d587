// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package personalization

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"webtoprint/internal/models"
)

// DefaultRenderTimeout bounds a single page render.
const DefaultRenderTimeout = 30 * time.Second

// RenderRequest is the serialized state of one page sent to the renderer.
type RenderRequest struct {
	TemplateID string
	Page       int
	Fields     map[string]string
	Images     map[string]string
	// Metadata is keyed by field or image name; entries with no
	// metadata are omitted.
	Metadata map[string]models.Metadata
}

// RenderResult is a successful render of one page.
type RenderResult struct {
	PreviewURL string            `json:"preview_url"`
	ShareLink  string            `json:"share_link,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Renderer is the rendering service collaborator.
type Renderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
}

// Synchronizer decides which pages to render, calls the renderer outside
// the session lock, and folds results back under it.
//
// Overlapping renders of one page are tagged with a per-page sequence
// number; a response older than one already applied is dropped.
type Synchronizer struct {
	renderer   Renderer
	tracker    Tracker
	shapes     ShapeResolver
	locker     sync.Locker
	current    func() int
	timeout    time.Duration
	shareLinks bool

	issued  map[int]uint64
	applied map[int]uint64
}

type renderJob struct {
	page     int
	seq      uint64
	revision uint64
	req      *RenderRequest
}

// NewSynchronizer creates a synchronizer. locker guards the template;
// current reports the page targeted when no pages are given.
func NewSynchronizer(renderer Renderer, locker sync.Locker, current func() int, timeout time.Duration, shareLinks bool) *Synchronizer {
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	return &Synchronizer{
		renderer:   renderer,
		locker:     locker,
		current:    current,
		timeout:    timeout,
		shareLinks: shareLinks,
		issued:     make(map[int]uint64),
		applied:    make(map[int]uint64),
	}
}

// UpdatePreview renders the given pages, or the current page when pages is
// empty. Pages render concurrently; every failure is returned joined while
// successful pages are still applied.
//
// With preserveFields, field values returned by the renderer only fill
// fields that are still empty.
func (s *Synchronizer) UpdatePreview(ctx context.Context, t *models.Template, pages []int, preserveFields bool) error {
	jobs, err := s.prepare(t, pages)
	if err != nil {
		return err
	}

	errs := make([]error, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			errs[i] = s.run(ctx, t, job, preserveFields)
			return nil
		})
	}
	g.Wait()

	return errors.Join(errs...)
}

func (s *Synchronizer) prepare(t *models.Template, pages []int) ([]renderJob, error) {
	s.locker.Lock()
	defer s.locker.Unlock()

	if len(pages) == 0 {
		pages = []int{s.current()}
	}

	seen := make(map[int]bool, len(pages))
	jobs := make([]renderJob, 0, len(pages))
	for _, n := range pages {
		if seen[n] {
			continue
		}
		seen[n] = true

		page, ok := t.Pages[n]
		if !ok {
			return nil, &NotFoundError{Kind: "page", Name: strconv.Itoa(n)}
		}
		s.issued[n]++
		jobs = append(jobs, renderJob{
			page:     n,
			seq:      s.issued[n],
			revision: page.Revision,
			req:      buildRenderRequest(t.GUID, page),
		})
	}
	return jobs, nil
}

func (s *Synchronizer) run(ctx context.Context, t *models.Template, job renderJob, preserveFields bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.renderer.Render(ctx, job.req)
	if err != nil {
		var re *RenderError
		if !errors.As(err, &re) {
			err = &RenderError{Page: job.page, Err: err}
		}
		slog.Warn("preview render failed", "template", t.GUID, "page", job.page, "error", err)
		return err
	}

	s.locker.Lock()
	defer s.locker.Unlock()

	if job.seq <= s.applied[job.page] {
		slog.Debug("stale preview discarded", "template", t.GUID, "page", job.page, "seq", job.seq)
		return nil
	}
	s.applied[job.page] = job.seq

	page := t.Pages[job.page]
	page.PreviewURL = res.PreviewURL
	if s.shareLinks {
		page.ShareLink = res.ShareLink
	}

	if page.Revision != job.revision {
		// Edited while rendering: the new image is shown, the page stays dirty.
		slog.Info("page changed during render", "template", t.GUID, "page", job.page)
		return nil
	}

	if applyReturnedFields(page, res.Fields, preserveFields) {
		s.shapes.Refresh(page)
	}
	s.tracker.ApplyRenderResult(page)

	slog.Debug("preview updated",
		"template", t.GUID,
		"page", job.page,
		"duration", time.Since(start).String(),
	)
	return nil
}

// CanShowNextPageButton reports whether the shopper may move past page:
// it must not be the last page and must have an up-to-date preview.
// The caller holds the session lock.
func (s *Synchronizer) CanShowNextPageButton(page int, t *models.Template) bool {
	p, ok := t.Pages[page]
	if !ok {
		return false
	}
	return !t.IsLastPage(page) && s.tracker.IsPageUpdated(p)
}

func buildRenderRequest(guid string, page *models.Page) *RenderRequest {
	req := &RenderRequest{
		TemplateID: guid,
		Page:       page.Number,
		Fields:     make(map[string]string, len(page.Fields)),
		Images:     make(map[string]string, len(page.Images)),
		Metadata:   make(map[string]models.Metadata),
	}
	for name, f := range page.Fields {
		req.Fields[name] = f.Value
		if len(f.Metadata) > 0 {
			req.Metadata[name] = f.Metadata.Clone()
		}
	}
	for name, img := range page.Images {
		req.Images[name] = img.Value
		if len(img.Metadata) > 0 {
			req.Metadata[name] = img.Metadata.Clone()
		}
	}
	return req
}

// applyReturnedFields copies renderer-side field values into the page and
// reports whether anything changed.
func applyReturnedFields(page *models.Page, fields map[string]string, preserve bool) bool {
	changed := false
	for name, v := range fields {
		f, ok := page.Fields[name]
		if !ok || f.Value == v {
			continue
		}
		if preserve && f.Value != "" {
			continue
		}
		f.Value = v
		changed = true
	}
	return changed
}
