// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package markdown converts field hints written in Markdown into HTML
// using goldmark. Raw HTML in a hint is escaped; hints come from template
// authors and end up inside the shopper's page.
package markdown

import (
	"bytes"
	stdhtml "html"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// md is the configured goldmark instance, reused across calls.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
		// Sample codes in hints (QR payloads, vCard lines) come as fenced blocks.
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// ToHTML converts Markdown source into HTML.
func ToHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HintHTML renders a field hint. Empty hints render as the empty string
// and conversion errors fall back to the escaped source.
func HintHTML(hint string) string {
	if strings.TrimSpace(hint) == "" {
		return ""
	}
	out, err := ToHTML(hint)
	if err != nil {
		return "<p>" + stdhtml.EscapeString(hint) + "</p>"
	}
	return strings.TrimSpace(out)
}
