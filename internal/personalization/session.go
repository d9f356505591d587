// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package personalization is the state and preview-synchronization engine
// behind a template personalization session. It tracks per-page dirtiness
// against the last rendered preview, resolves shape highlights, merges
// metadata edits and decides which pages the rendering service must redraw.
package personalization

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"webtoprint/internal/models"
)

// Dataset receives field changes for features outside the core, such as
// analytics or dataset projections. Optional.
type Dataset interface {
	FieldChanged(name, value string)
}

// Options are per-session behaviour switches.
type Options struct {
	// UpdateFirstPreviewOnLoad renders page 1 while the session is built.
	UpdateFirstPreviewOnLoad bool
	// PreserveFields keeps field values already present when the first
	// preview returns field values.
	PreserveFields bool
	// ShareLinks stores the sharing link returned with each preview.
	ShareLinks bool
	// InPreviewEdit hides the field list in favour of on-preview shapes
	// when the template has any.
	InPreviewEdit bool
	// RenderTimeout bounds each page render. Zero uses DefaultRenderTimeout.
	RenderTimeout time.Duration
}

// Config bundles the collaborators and options of a session.
type Config struct {
	Renderer Renderer
	Assets   AssetService
	Dataset  Dataset
	Options  Options
}

// Session owns one template being personalized and serializes every
// mutation of it. The platform layer calls its methods directly.
type Session struct {
	mu sync.Mutex

	id           uuid.UUID
	tmpl         *models.Template
	currentPage  int
	fieldsHidden bool
	hasShapes    bool
	opts         Options

	metadata *MetadataStore
	shapes   ShapeResolver
	tracker  Tracker
	preview  *Synchronizer
	assets   *AssetController
	dataset  Dataset
}

// New builds a session from a freshly described template.
func New(ctx context.Context, tmpl *models.Template, cfg Config) (*Session, error) {
	s, err := newSession(uuid.New(), tmpl, cfg)
	if err != nil {
		return nil, err
	}

	s.currentPage = 1
	s.fieldsHidden = s.hasShapes && cfg.Options.InPreviewEdit
	s.stashDefaultColours()
	for _, p := range tmpl.Pages {
		s.shapes.Refresh(p)
	}

	s.start(ctx)
	return s, nil
}

// NewFromDescription parses a rendering API template description and
// builds a session from it.
func NewFromDescription(ctx context.Context, raw []byte, cfg Config) (*Session, error) {
	tmpl, err := models.NewTemplate(raw)
	if err != nil {
		return nil, &ValidationError{Reason: "template description", Err: err}
	}
	return New(ctx, tmpl, cfg)
}

// Restore rebuilds a session from a snapshot taken earlier. Field values
// and metadata are kept as they were; with PreserveFields an eager first
// render will not overwrite them.
func Restore(ctx context.Context, snap *Snapshot, cfg Config) (*Session, error) {
	if snap == nil {
		return nil, &ValidationError{Reason: "snapshot is nil"}
	}
	s, err := newSession(snap.ID, snap.Template, cfg)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Template.Pages[snap.CurrentPage]; ok {
		s.currentPage = snap.CurrentPage
	} else {
		s.currentPage = 1
	}
	s.fieldsHidden = snap.FieldsHidden

	s.start(ctx)
	return s, nil
}

func newSession(id uuid.UUID, tmpl *models.Template, cfg Config) (*Session, error) {
	switch {
	case tmpl == nil:
		return nil, &ValidationError{Reason: "template is nil"}
	case cfg.Renderer == nil:
		return nil, &ValidationError{Reason: "renderer is required"}
	case tmpl.PagesNumber < 1 || len(tmpl.Pages) == 0:
		return nil, &ValidationError{Reason: "template has no pages"}
	}
	if _, ok := tmpl.Pages[1]; !ok {
		return nil, &ValidationError{Reason: "template has no page 1"}
	}

	s := &Session{
		id:        id,
		tmpl:      tmpl,
		hasShapes: tmpl.HasShapes(),
		opts:      cfg.Options,
		dataset:   cfg.Dataset,
	}
	s.metadata = NewMetadataStore(s.pageChanged)
	s.preview = NewSynchronizer(cfg.Renderer, &s.mu, func() int { return s.currentPage },
		cfg.Options.RenderTimeout, cfg.Options.ShareLinks)
	s.assets = NewAssetController(cfg.Assets, &s.mu, s.metadata)
	return s, nil
}

func (s *Session) start(ctx context.Context) {
	slog.Info("personalization session started",
		"session", s.id,
		"template", s.tmpl.GUID,
		"pages", s.tmpl.PagesNumber,
		"shapes", s.hasShapes,
	)
	if !s.opts.UpdateFirstPreviewOnLoad {
		return
	}
	if err := s.preview.UpdatePreview(ctx, s.tmpl, []int{1}, s.opts.PreserveFields); err != nil {
		slog.Warn("first preview failed", "session", s.id, "error", err)
	}
}

// stashDefaultColours moves colours shipped in the description out of the
// render metadata so they are only sent once the shopper picks a colour.
func (s *Session) stashDefaultColours() {
	for _, p := range s.tmpl.Pages {
		for _, f := range p.Fields {
			c := s.metadata.Get(f, models.MetaColour, "")
			s.metadata.Delete(f, models.MetaColour, false)
			if c != "" {
				f.DefaultColour = c
			}
		}
	}
}

// pageChanged is the metadata store's notification hook. The session lock
// is already held.
func (s *Session) pageChanged(page int) {
	if p, ok := s.tmpl.Pages[page]; ok {
		s.tracker.FieldOrImageChanged(p)
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// TemplateID returns the template GUID.
func (s *Session) TemplateID() string { return s.tmpl.GUID }

func (s *Session) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPage
}

func (s *Session) IsFieldsHidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldsHidden
}

func (s *Session) HasShapes() bool { return s.hasShapes }

// FieldChanged stores a new text value on the current page, updates the
// shapes depending on it and marks the page dirty.
func (s *Session) FieldChanged(name, value string) error {
	s.mu.Lock()
	p := s.tmpl.Pages[s.currentPage]
	f, ok := p.Fields[name]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "field", Name: name, Page: p.Number}
	}
	f.Value = value
	s.shapes.DependencyChanged(p, name, value != "")
	s.tracker.FieldOrImageChanged(p)
	s.mu.Unlock()

	if s.dataset != nil {
		s.dataset.FieldChanged(name, value)
	}
	return nil
}

// PaletteChanged sets colour on every field and image of every page that
// belongs to the palette. It returns how many were updated. An empty colour
// resets them to the template default.
func (s *Session) PaletteChanged(paletteID, colour string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, n := range s.tmpl.PageNumbers() {
		p := s.tmpl.Pages[n]
		for _, name := range p.SortedFieldNames() {
			if f := p.Fields[name]; f.Palette != "" && f.Palette == paletteID {
				s.setColour(f, colour)
				updated++
			}
		}
		for _, name := range p.SortedImageNames() {
			if img := p.Images[name]; img.Palette != "" && img.Palette == paletteID {
				s.setColour(img, colour)
				updated++
			}
		}
	}
	slog.Debug("palette changed", "session", s.id, "palette", paletteID, "updated", updated)
	return updated
}

// SetTextColour applies a colour picked in the text field editor. Only
// fields with the RGB colour picker accept a colour. An empty colour resets
// the field to the template default.
func (s *Session) SetTextColour(name, colour string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.tmpl.Pages[s.currentPage]
	f, ok := p.Fields[name]
	if !ok {
		return &NotFoundError{Kind: "field", Name: name, Page: p.Number}
	}
	if f.ColourPicker != models.ColourPickerRGB {
		return &ValidationError{Reason: "field " + strconv.Quote(name) + " has no colour picker"}
	}
	s.setColour(f, colour)
	return nil
}

// setColour stores the colour override of target, dropping it when colour
// is empty so the renderer falls back to the template colour.
func (s *Session) setColour(target models.Annotated, colour string) {
	if colour == "" {
		s.metadata.Delete(target, models.MetaColour, true)
		return
	}
	s.metadata.Replace(target, models.Metadata{models.MetaColour: colour}, true)
}

// SelectImage records the shopper picking assetID for an image slot of the
// current page. meta carries the picked image's own annotations; when nil
// the slot's metadata is cleared. An empty assetID deselects.
func (s *Session) SelectImage(name, assetID string, meta models.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.tmpl.Pages[s.currentPage]
	img, ok := p.Images[name]
	if !ok {
		return &NotFoundError{Kind: "image", Name: name, Page: p.Number}
	}

	if meta != nil {
		patch := meta.Clone()
		patch[models.MetaImageID] = assetID
		s.metadata.Replace(img, patch, false)
	} else {
		s.metadata.Clear(img, false)
	}
	img.Rotation = rotationOf(img)
	return s.assets.AddImage(s.tmpl, p.Number, name, models.AssetRef{ID: assetID})
}

// DeleteImage clears an image slot of the current page once confirm
// accepts. It reports whether the deletion happened.
func (s *Session) DeleteImage(ctx context.Context, name string, confirm func(context.Context) bool) (bool, error) {
	s.mu.Lock()
	page := s.currentPage
	_, exists := s.tmpl.Pages[page].Images[name]
	s.mu.Unlock()
	if !exists {
		return false, &NotFoundError{Kind: "image", Name: name, Page: page}
	}

	if confirm == nil || !confirm(ctx) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return true, s.assets.DeleteImage(s.tmpl, page, name)
}

// Rotate turns an image slot of the current page a quarter and returns the
// resulting rotation in degrees.
func (s *Session) Rotate(name string, dir RotateDirection) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets.Rotate(s.tmpl, s.currentPage, name, dir)
}

// Upload stores a shopper image and adds it to the gallery.
func (s *Session) Upload(ctx context.Context, filename, contentType string, body io.Reader) (models.AssetRef, error) {
	return s.assets.Upload(ctx, s.tmpl, filename, contentType, body)
}

// UploadByURL adds an image fetched from url to the gallery.
func (s *Session) UploadByURL(ctx context.Context, url string) (models.AssetRef, error) {
	return s.assets.UploadByURL(ctx, s.tmpl, url)
}

// DeleteAsset removes a gallery image once confirm accepts.
func (s *Session) DeleteAsset(ctx context.Context, id string, confirm func(context.Context) bool) (bool, error) {
	if confirm == nil || !confirm(ctx) {
		return false, nil
	}
	if err := s.assets.DeleteAsset(ctx, s.tmpl, id); err != nil {
		return false, err
	}
	return true, nil
}

// UpdatePreview renders pages, or the current page when none are given.
func (s *Session) UpdatePreview(ctx context.Context, pages []int, preserveFields bool) error {
	return s.preview.UpdatePreview(ctx, s.tmpl, pages, preserveFields)
}

// UserDataSaved re-renders the current page after the platform saved the
// shopper's data.
func (s *Session) UserDataSaved(ctx context.Context) error {
	return s.preview.UpdatePreview(ctx, s.tmpl, nil, false)
}

// CanShowNextPageButton reports whether the shopper may leave page going
// forward.
func (s *Session) CanShowNextPageButton(page int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview.CanShowNextPageButton(page, s.tmpl)
}

// SetCurrentPage switches the page being edited.
func (s *Session) SetCurrentPage(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tmpl.Pages[page]; !ok {
		return &NotFoundError{Kind: "page", Name: strconv.Itoa(page)}
	}
	s.currentPage = page
	return nil
}

// NextPage advances to the following page when the current one allows it.
func (s *Session) NextPage() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.preview.CanShowNextPageButton(s.currentPage, s.tmpl) {
		return s.currentPage, &ValidationError{
			Reason: "page " + strconv.Itoa(s.currentPage) + " is the last page or its preview is out of date",
		}
	}
	s.currentPage++
	return s.currentPage, nil
}

// ToggleFields flips the visibility of the field list and returns whether
// the fields are now hidden.
func (s *Session) ToggleFields() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fieldsHidden = !s.fieldsHidden
	return s.fieldsHidden
}

// ChangedPages returns the pages whose data changed since their last render.
func (s *Session) ChangedPages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.ChangedPages(s.tmpl)
}

// SubmitToCart intercepts an add-to-cart attempt, see Synchronizer.SubmitToCart.
func (s *Session) SubmitToCart(ctx context.Context, confirm ConfirmFunc, addToCart func(context.Context) error) (CartOutcome, error) {
	return s.preview.SubmitToCart(ctx, s.tmpl, confirm, addToCart)
}

// CartAllowed reports whether the template may go to the cart as is.
func (s *Session) CartAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview.CartAllowed(s.tmpl)
}

// Cart form parameter names the platform expects.
const (
	CartParamTemplateID = "zetaprints-TemplateID"
	CartParamPreviews   = "zetaprints-previews"
)

// CartParameters returns the hidden form values that go with an
// add-to-cart request.
func (s *Session) CartParameters() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var previews []string
	for _, n := range s.tmpl.PageNumbers() {
		if u := s.tmpl.Pages[n].PreviewURL; u != "" {
			previews = append(previews, u)
		}
	}
	return map[string]string{
		CartParamTemplateID: s.tmpl.GUID,
		CartParamPreviews:   strings.Join(previews, ","),
	}
}
