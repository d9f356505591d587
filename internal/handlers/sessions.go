// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers exposes personalization sessions as a JSON API. Every
// mutating call answers with the session state and persists a snapshot.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"webtoprint/internal/models"
	"webtoprint/internal/personalization"
	"webtoprint/internal/session"
)

// Sessions groups the session API handlers.
type Sessions struct {
	manager *personalization.Manager
	cookies *session.Store
}

// NewSessions creates the handlers. cookies may be nil to disable the
// session cookie.
func NewSessions(manager *personalization.Manager, cookies *session.Store) *Sessions {
	return &Sessions{manager: manager, cookies: cookies}
}

// stateView is the session state returned by the API.
type stateView struct {
	*personalization.Snapshot
	CartParameters map[string]string `json:"cart_parameters"`
}

type openRequest struct {
	TemplateID string          `json:"template_id"`
	Template   json.RawMessage `json:"template"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type colourRequest struct {
	Colour string `json:"colour"`
}

type imageRequest struct {
	AssetID  string          `json:"asset_id"`
	Metadata models.Metadata `json:"metadata"`
}

type rotateRequest struct {
	Direction personalization.RotateDirection `json:"direction"`
}

type previewRequest struct {
	Pages          []int `json:"pages"`
	PreserveFields bool  `json:"preserve_fields"`
}

type pageRequest struct {
	Page int `json:"page"`
}

type cartRequest struct {
	// UpdatePreviews answers the re-render question. Nil means the
	// shopper has not been asked yet.
	UpdatePreviews *bool `json:"update_previews"`
}

type cartResponse struct {
	Outcome        string            `json:"outcome"`
	CartAllowed    bool              `json:"cart_allowed"`
	CartParameters map[string]string `json:"cart_parameters"`
	State          *stateView        `json:"state"`
}

// Open starts a session from a template GUID or an inline description.
func (h *Sessions) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateOpen(req.TemplateID, req.Template); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var (
		s   *personalization.Session
		err error
	)
	if len(req.Template) > 0 {
		s, err = h.manager.OpenDescription(r.Context(), req.Template)
	} else {
		s, err = h.manager.Open(r.Context(), req.TemplateID)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}

	if h.cookies != nil {
		h.cookies.SetCookie(w, s.ID())
	}
	slog.Info("session opened", "session", s.ID(), "template", s.TemplateID())
	h.writeState(w, r, s, http.StatusCreated)
}

// Current returns the session named by the session cookie.
func (h *Sessions) Current(w http.ResponseWriter, r *http.Request) {
	id, ok := session.IDFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no current session")
		return
	}
	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		if h.cookies != nil && statusFor(err) == http.StatusNotFound {
			h.cookies.ClearCookie(w)
		}
		writeErr(w, r, err)
		return
	}
	h.writeState(w, r, s, http.StatusOK)
}

// Get returns the session state.
func (h *Sessions) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeState(w, r, s, http.StatusOK)
}

// Close ends the session and forgets its snapshot.
func (h *Sessions) Close(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := h.manager.Close(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	if h.cookies != nil {
		if current, ok := session.IDFromRequest(r); ok && current == id {
			h.cookies.ClearCookie(w)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetField stores a text field value on the current page.
func (h *Sessions) SetField(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req valueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateFieldValue(req.Value); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.FieldChanged(chi.URLParam(r, "name"), req.Value); err != nil {
		writeErr(w, r, err)
		return
	}
	h.persistAndWrite(w, r, s)
}

// SetFieldColour applies a colour from the text field colour editor.
func (h *Sessions) SetFieldColour(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req colourRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateColour(req.Colour); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.SetTextColour(chi.URLParam(r, "name"), req.Colour); err != nil {
		writeErr(w, r, err)
		return
	}
	h.persistAndWrite(w, r, s)
}

// SetPalette applies a colour to every field and image of a palette.
func (h *Sessions) SetPalette(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req colourRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateColour(req.Colour); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if updated := s.PaletteChanged(chi.URLParam(r, "palette"), req.Colour); updated > 0 {
		h.persist(r.Context(), s)
	}
	h.writeState(w, r, s, http.StatusOK)
}

// SelectImage records the asset picked for an image slot.
func (h *Sessions) SelectImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req imageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.SelectImage(chi.URLParam(r, "name"), req.AssetID, req.Metadata); err != nil {
		writeErr(w, r, err)
		return
	}
	h.persistAndWrite(w, r, s)
}

// DeleteImage clears an image slot. The shopper's confirmation travels as
// the confirm query parameter.
func (h *Sessions) DeleteImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	deleted, err := s.DeleteImage(r.Context(), chi.URLParam(r, "name"), confirmedByQuery(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusConflict, "confirmation required")
		return
	}
	h.persistAndWrite(w, r, s)
}

// Rotate turns an image slot a quarter.
func (h *Sessions) Rotate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req rotateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.Rotate(chi.URLParam(r, "name"), req.Direction); err != nil {
		writeErr(w, r, err)
		return
	}
	h.persistAndWrite(w, r, s)
}

// DeleteAsset removes an image from the upload gallery once confirmed.
func (h *Sessions) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	deleted, err := s.DeleteAsset(r.Context(), chi.URLParam(r, "assetID"), confirmedByQuery(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusConflict, "confirmation required")
		return
	}
	h.persistAndWrite(w, r, s)
}

// Preview renders the requested pages, or the current page.
func (h *Sessions) Preview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req previewRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if msg := validatePages(req.Pages); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	err := s.UpdatePreview(r.Context(), req.Pages, req.PreserveFields)
	// Pages that did render are kept even when another failed.
	h.persist(r.Context(), s)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	h.writeState(w, r, s, http.StatusOK)
}

// SetPage switches the page being edited.
func (h *Sessions) SetPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req pageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.SetCurrentPage(req.Page); err != nil {
		writeErr(w, r, err)
		return
	}
	h.persistAndWrite(w, r, s)
}

// NextPage advances to the following page when allowed.
func (h *Sessions) NextPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.NextPage(); err != nil {
		writeErr(w, r, err)
		return
	}
	h.persistAndWrite(w, r, s)
}

// ToggleFields flips the field list visibility.
func (h *Sessions) ToggleFields(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ToggleFields()
	h.persistAndWrite(w, r, s)
}

// Cart intercepts an add-to-cart attempt. With changed pages and no answer
// yet it answers 409 listing them; the client asks the shopper and calls
// again with update_previews set.
func (h *Sessions) Cart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req cartRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var pending []int
	confirm := func(_ context.Context, changed []int) bool {
		if req.UpdatePreviews == nil {
			pending = changed
			return false
		}
		return *req.UpdatePreviews
	}

	outcome, err := s.SubmitToCart(r.Context(), confirm, nil)
	if pending != nil {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:        "pages changed since their last preview",
			ChangedPages: pending,
		})
		return
	}
	h.persist(r.Context(), s)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	view, err := h.state(s)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{
		Outcome:        outcome.String(),
		CartAllowed:    view.CartAllowed,
		CartParameters: view.CartParameters,
		State:          view,
	})
}

// Save re-renders the current page after the platform saved the shopper's
// data and persists the session.
func (h *Sessions) Save(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.UserDataSaved(r.Context()); err != nil {
		h.persist(r.Context(), s)
		writeErr(w, r, err)
		return
	}
	if err := h.manager.Save(r.Context(), s); err != nil {
		writeErr(w, r, err)
		return
	}
	h.writeState(w, r, s, http.StatusOK)
}

// session resolves the {id} URL parameter. It writes the error response
// and returns false when the session does not exist.
func (h *Sessions) session(w http.ResponseWriter, r *http.Request) (*personalization.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Sessions) state(s *personalization.Session) (*stateView, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return &stateView{Snapshot: snap, CartParameters: s.CartParameters()}, nil
}

func (h *Sessions) writeState(w http.ResponseWriter, r *http.Request, s *personalization.Session, status int) {
	view, err := h.state(s)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, status, view)
}

// persist saves a snapshot. Failures are logged; the live session is
// still correct.
func (h *Sessions) persist(ctx context.Context, s *personalization.Session) {
	if err := h.manager.Save(ctx, s); err != nil {
		slog.Warn("persisting session failed", "session", s.ID(), "error", err)
	}
}

func (h *Sessions) persistAndWrite(w http.ResponseWriter, r *http.Request, s *personalization.Session) {
	h.persist(r.Context(), s)
	h.writeState(w, r, s, http.StatusOK)
}

// confirmedByQuery answers a confirmation prompt from ?confirm=true.
func confirmedByQuery(r *http.Request) func(context.Context) bool {
	return func(context.Context) bool {
		ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
		return ok
	}
}
