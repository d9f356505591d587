// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"sort"
)

// ColourPickerMode selects the colour editor offered for a text field.
type ColourPickerMode string

const (
	ColourPickerNone ColourPickerMode = ""
	ColourPickerRGB  ColourPickerMode = "RGB"
)

// Template is a multi-page print template being personalized. It is built
// once from the rendering API's description and mutated in place for the
// lifetime of a session.
type Template struct {
	GUID        string        `json:"guid"`
	PagesNumber int           `json:"pages_number"`
	MissedPages string        `json:"missed_pages"`
	Pages       map[int]*Page `json:"pages"`

	// UserImages is the shopper's upload gallery, shared by every image
	// slot of every page.
	UserImages []AssetRef `json:"user_images"`
}

// Page is one independently rendered unit of a template.
type Page struct {
	Number int               `json:"number"`
	Fields map[string]*Field `json:"fields"`
	Images map[string]*Image `json:"images"`
	Shapes []*Shape          `json:"shapes"`

	UserDataChanged        bool `json:"user_data_changed"`
	HasUpdatedPreviewImage bool `json:"updated_preview_image"`

	PreviewURL string `json:"preview_url,omitempty"`
	ShareLink  string `json:"share_link,omitempty"`

	// Revision increments on every user data change. Render requests
	// capture it so a response can tell whether the page moved on.
	Revision uint64 `json:"revision"`
}

// Field is a text input of a page.
type Field struct {
	Name         string           `json:"name"`
	Page         int              `json:"page"`
	Value        string           `json:"value"`
	Metadata     Metadata         `json:"metadata,omitempty"`
	ColourPicker ColourPickerMode `json:"colour_picker,omitempty"`
	Palette      string           `json:"palette,omitempty"`
	Combobox     bool             `json:"combobox,omitempty"`
	Hint         string           `json:"hint,omitempty"`

	// DefaultColour is the colour the description shipped with. It is
	// offered to the colour editor but not sent to the renderer until the
	// shopper picks a colour.
	DefaultColour string `json:"default_colour,omitempty"`
}

// Image is a selectable image slot of a page. Value holds the selected
// asset id; empty means nothing is selected.
type Image struct {
	Name     string   `json:"name"`
	Page     int      `json:"page"`
	Value    string   `json:"value"`
	Metadata Metadata `json:"metadata,omitempty"`
	Palette  string   `json:"palette,omitempty"`
	Rotation int      `json:"rotation"`
}

// AssetRef points at an uploaded asset in the gallery.
type AssetRef struct {
	ID           string `json:"id"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Page returns the page with the given 1-based number.
func (t *Template) Page(number int) (*Page, error) {
	p, ok := t.Pages[number]
	if !ok {
		return nil, fmt.Errorf("page %d not found", number)
	}
	return p, nil
}

// PageNumbers returns page numbers in ascending order.
func (t *Template) PageNumbers() []int {
	numbers := make([]int, 0, len(t.Pages))
	for n := range t.Pages {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// IsLastPage reports whether number is the final page of the template.
func (t *Template) IsLastPage(number int) bool {
	return number >= t.PagesNumber
}

// HasShapes reports whether any page carries at least one shape.
func (t *Template) HasShapes() bool {
	for _, p := range t.Pages {
		if len(p.Shapes) > 0 {
			return true
		}
	}
	return false
}

// HasUserImage reports whether the gallery already contains id.
func (t *Template) HasUserImage(id string) bool {
	for _, ref := range t.UserImages {
		if ref.ID == id {
			return true
		}
	}
	return false
}

// SortedFieldNames returns the page's field names in lexical order so
// request serialization is deterministic.
func (p *Page) SortedFieldNames() []string {
	names := make([]string, 0, len(p.Fields))
	for name := range p.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedImageNames returns the page's image names in lexical order.
func (p *Page) SortedImageNames() []string {
	names := make([]string, 0, len(p.Images))
	for name := range p.Images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
