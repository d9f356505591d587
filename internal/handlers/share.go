// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"webtoprint/internal/markdown"
)

// QR code size bounds in pixels.
const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

type hintResponse struct {
	Field string `json:"field"`
	Page  int    `json:"page"`
	HTML  string `json:"html"`
}

// ShareQR renders the share link of a page as a PNG QR code.
func (h *Sessions) ShareQR(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be a number")
		return
	}
	size := defaultQRSize
	if v := r.URL.Query().Get("size"); v != "" {
		size, err = strconv.Atoi(v)
		if err != nil || size < minQRSize || size > maxQRSize {
			writeError(w, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
	}

	snap, err := s.Snapshot()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	page, ok := snap.Template.Pages[n]
	if !ok {
		writeError(w, http.StatusNotFound, "page "+strconv.Itoa(n)+" not found")
		return
	}
	if page.ShareLink == "" {
		writeError(w, http.StatusNotFound, "page "+strconv.Itoa(n)+" has no share link")
		return
	}

	png, err := qrcode.Encode(page.ShareLink, qrcode.Medium, size)
	if err != nil {
		slog.Error("qr encode failed", "session", s.ID(), "page", n, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Write(png)
}

// Hint returns a field hint rendered from Markdown. The page defaults to
// the current page.
func (h *Sessions) Hint(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	n := snap.CurrentPage
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "page must be a number")
			return
		}
	}
	name := chi.URLParam(r, "name")
	page, ok := snap.Template.Pages[n]
	if !ok {
		writeError(w, http.StatusNotFound, "page "+strconv.Itoa(n)+" not found")
		return
	}
	f, ok := page.Fields[name]
	if !ok {
		writeError(w, http.StatusNotFound, "field "+strconv.Quote(name)+" not found")
		return
	}
	writeJSON(w, http.StatusOK, hintResponse{Field: name, Page: n, HTML: markdown.HintHTML(f.Hint)})
}
