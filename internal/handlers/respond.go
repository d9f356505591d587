// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"webtoprint/internal/personalization"
)

// maxJSONBody bounds JSON request bodies. Inline template descriptions are
// the largest payload.
const maxJSONBody = maxDescriptionLen + 64<<10

// errorResponse is the JSON body of every non-2xx answer.
type errorResponse struct {
	Error        string `json:"error"`
	Page         int    `json:"page,omitempty"`
	ChangedPages []int  `json:"changed_pages,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps personalization errors to HTTP statuses.
func statusFor(err error) int {
	var ae *personalization.AssetError
	switch {
	case errors.Is(err, personalization.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, personalization.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ae) && (ae.Status == http.StatusRequestEntityTooLarge || ae.Status == http.StatusUnsupportedMediaType):
		return ae.Status
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, personalization.ErrRenderFailed), errors.Is(err, personalization.ErrAssetFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeErr answers with the status matching err. Internal errors are
// logged and hidden from the client.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var re *personalization.RenderError
	if errors.As(err, &re) {
		resp.Page = re.Page
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = "internal server error"
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	return nil
}
