// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"io"
	"net/http"
	"strings"

	"webtoprint/internal/imaging"
	"webtoprint/internal/models"
	"webtoprint/internal/storage"
)

type uploadURLRequest struct {
	URL string `json:"url"`
}

type uploadResponse struct {
	Asset models.AssetRef `json:"asset"`
	State *stateView      `json:"state"`
}

// Upload adds an image to the session gallery. A multipart body carries
// the file in the "file" part; a JSON body names a URL to fetch.
func (h *Sessions) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var (
		ref models.AssetRef
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadSize+1024)
		if err := r.ParseMultipartForm(storage.MaxUploadSize); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 20 MB.")
			return
		}
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "No file provided.")
			return
		}
		defer file.Close()

		// Detect content type by sniffing the first 512 bytes.
		sniff := make([]byte, 512)
		n, rerr := file.Read(sniff)
		if rerr != nil && rerr != io.EOF {
			writeError(w, http.StatusBadRequest, "Failed to read file.")
			return
		}
		contentType := imaging.DetectContentType(sniff[:n])
		if !imaging.AllowedTypes[contentType] {
			writeError(w, http.StatusUnsupportedMediaType, "File type "+contentType+" is not allowed.")
			return
		}
		if _, serr := file.Seek(0, io.SeekStart); serr != nil {
			writeError(w, http.StatusInternalServerError, "Failed to process file.")
			return
		}
		ref, err = s.Upload(r.Context(), header.Filename, contentType, file)
	} else {
		var req uploadURLRequest
		if derr := decodeJSON(w, r, &req); derr != nil {
			writeError(w, http.StatusBadRequest, derr.Error())
			return
		}
		if msg := validateImageURL(req.URL); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		ref, err = s.UploadByURL(r.Context(), req.URL)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}

	h.persist(r.Context(), s)
	view, err := h.state(s)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Asset: ref, State: view})
}
