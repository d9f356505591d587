// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation limits for request inputs.
const (
	maxFieldValueLen  = 10_000
	maxTemplateIDLen  = 200
	maxDescriptionLen = 2 << 20
	maxURLLen         = 2_048
	maxPagesPerRender = 100
)

var colourPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// validateFieldValue checks a text field value and returns the first error found.
func validateFieldValue(value string) string {
	if !utf8.ValidString(value) {
		return "Field value is not valid UTF-8."
	}
	if utf8.RuneCountInString(value) > maxFieldValueLen {
		return "Field value is too long (max 10,000 characters)."
	}
	return ""
}

// validateColour checks a #RRGGBB colour. Empty resets to the default.
func validateColour(colour string) string {
	if colour == "" || colourPattern.MatchString(colour) {
		return ""
	}
	return fmt.Sprintf("Colour %q must be empty or #RRGGBB.", colour)
}

// validateOpen checks a session creation request.
func validateOpen(templateID string, description []byte) string {
	templateID = strings.TrimSpace(templateID)
	switch {
	case templateID == "" && len(description) == 0:
		return "Either template_id or template is required."
	case templateID != "" && len(description) > 0:
		return "Provide template_id or template, not both."
	case utf8.RuneCountInString(templateID) > maxTemplateIDLen:
		return "Template id is too long (max 200 characters)."
	case len(description) > maxDescriptionLen:
		return "Template description is too large (max 2 MB)."
	}
	return ""
}

// validateImageURL checks an upload-by-URL source.
func validateImageURL(raw string) string {
	if raw == "" {
		return "Image URL is required."
	}
	if len(raw) > maxURLLen {
		return "Image URL is too long (max 2,048 characters)."
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "Image URL must be an absolute http or https URL."
	}
	return ""
}

// validatePages checks the page list of a render request.
func validatePages(pages []int) string {
	if len(pages) > maxPagesPerRender {
		return "Too many pages in one request (max 100)."
	}
	for _, p := range pages {
		if p < 1 {
			return fmt.Sprintf("Page %d is out of range.", p)
		}
	}
	return ""
}
