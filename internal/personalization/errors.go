// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package personalization

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrRenderFailed = errors.New("render request failed")
	ErrAssetFailed  = errors.New("asset request failed")
)

// ValidationError reports malformed construction arguments or an operation
// the target does not support. Session setup aborts on it.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %v", e.Reason, e.Err)
	}
	return "validation: " + e.Reason
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// NotFoundError is returned when an operation names an unknown page,
// field, image or asset. No state is mutated.
type NotFoundError struct {
	Kind string // "page", "field", "image", "asset", "session"
	Name string
	Page int
}

func (e *NotFoundError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s %q not found on page %d", e.Kind, e.Name, e.Page)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RenderError is a failed render of one page. The page's dirtiness is left
// untouched, so retrying is another UpdatePreview call.
type RenderError struct {
	Page    int
	Status  int
	Message string
	Err     error
}

func (e *RenderError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("render page %d: status %d: %s", e.Page, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
	default:
		return fmt.Sprintf("render page %d: %s", e.Page, e.Message)
	}
}

func (e *RenderError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRenderFailed, e.Err}
	}
	return []error{ErrRenderFailed}
}

// AssetError is a failed upload or delete. The gallery is unchanged.
type AssetError struct {
	Op      string // "upload", "upload-url", "delete"
	Status  int
	Message string
	Err     error
}

func (e *AssetError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("asset %s: status %d: %s", e.Op, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("asset %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("asset %s: %s", e.Op, e.Message)
	}
}

func (e *AssetError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAssetFailed, e.Err}
	}
	return []error{ErrAssetFailed}
}
