// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"strings"
	"testing"
)

func TestValidateFieldValue(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{"valid", "Jane Doe", false},
		{"empty allowed", "", false},
		{"multiline", "line one\nline two", false},
		{"too long", strings.Repeat("a", 10_001), true},
		{"invalid utf8", "\xff\xfe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateFieldValue(tt.value)
			if tt.wantError && result == "" {
				t.Error("expected an error, got none")
			}
			if !tt.wantError && result != "" {
				t.Errorf("unexpected error: %s", result)
			}
		})
	}
}

func TestValidateColour(t *testing.T) {
	tests := []struct {
		colour    string
		wantError bool
	}{
		{"", false},
		{"#FF0000", false},
		{"#00aa7f", false},
		{"red", true},
		{"#FFF", true},
		{"FF0000", true},
		{"#GG0000", true},
	}

	for _, tt := range tests {
		t.Run(tt.colour, func(t *testing.T) {
			result := validateColour(tt.colour)
			if tt.wantError && result == "" {
				t.Error("expected an error, got none")
			}
			if !tt.wantError && result != "" {
				t.Errorf("unexpected error: %s", result)
			}
		})
	}
}

func TestValidateOpen(t *testing.T) {
	tests := []struct {
		name        string
		templateID  string
		description string
		wantError   bool
	}{
		{"guid", "tpl-1", "", false},
		{"inline description", "", `{"guid":"tpl-1"}`, false},
		{"neither", "  ", "", true},
		{"both", "tpl-1", `{}`, true},
		{"guid too long", strings.Repeat("a", 201), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateOpen(tt.templateID, []byte(tt.description))
			if tt.wantError && result == "" {
				t.Error("expected an error, got none")
			}
			if !tt.wantError && result != "" {
				t.Errorf("unexpected error: %s", result)
			}
		})
	}
}

func TestValidateImageURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantError bool
	}{
		{"https", "https://cdn.example.com/me.png", false},
		{"http", "http://cdn.example.com/me.png", false},
		{"empty", "", true},
		{"relative", "/me.png", true},
		{"file scheme", "file:///etc/passwd", true},
		{"too long", "https://example.com/" + strings.Repeat("a", 2_048), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateImageURL(tt.url)
			if tt.wantError && result == "" {
				t.Error("expected an error, got none")
			}
			if !tt.wantError && result != "" {
				t.Errorf("unexpected error: %s", result)
			}
		})
	}
}

func TestValidatePages(t *testing.T) {
	if msg := validatePages(nil); msg != "" {
		t.Errorf("empty list rejected: %s", msg)
	}
	if msg := validatePages([]int{1, 2}); msg != "" {
		t.Errorf("valid list rejected: %s", msg)
	}
	if msg := validatePages([]int{0}); msg == "" {
		t.Error("page 0 accepted")
	}
	if msg := validatePages(make([]int, 101)); msg == "" {
		t.Error("oversized list accepted")
	}
}
