// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// description.go decodes the template description returned by the rendering
// API and builds the in-memory Template from it.
package models

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed template.schema.json
var descriptionSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(descriptionSchema)

// Description is the wire form of a template description.
type Description struct {
	GUID        string                     `json:"guid"`
	PagesNumber int                        `json:"pages_number"`
	MissedPages string                     `json:"missed_pages,omitempty"`
	Pages       map[string]PageDescription `json:"pages"`
}

// PageDescription describes one page.
type PageDescription struct {
	Fields []FieldDescription `json:"fields"`
	Images []ImageDescription `json:"images"`
	Shapes []ShapeDescription `json:"shapes"`

	// UpdatedPreviewImage is the URL of a preview that already reflects
	// the page's values, usually carried over from a saved personalization.
	UpdatedPreviewImage string `json:"updated-preview-image,omitempty"`
	PreviewURL          string `json:"preview_url,omitempty"`
}

type FieldDescription struct {
	Name         string            `json:"name"`
	Value        string            `json:"value"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ColourPicker string            `json:"colour-picker,omitempty"`
	Palette      FlexString        `json:"palette,omitempty"`
	Combobox     bool              `json:"combobox,omitempty"`
	Title        string            `json:"title,omitempty"`
}

type ImageDescription struct {
	Name     string            `json:"name"`
	Value    string            `json:"value"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Palette  FlexString        `json:"palette,omitempty"`
}

type ShapeDescription struct {
	Name string `json:"name"`
}

// FlexString accepts both JSON strings and numbers. Palette ids arrive in
// either form and are always compared as strings.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("palette: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// DescriptionError lists every problem found in a template description.
type DescriptionError struct {
	Problems []string
}

func (e *DescriptionError) Error() string {
	return "invalid template description: " + strings.Join(e.Problems, "; ")
}

// ParseDescription validates raw JSON against the description schema and
// decodes it.
func ParseDescription(raw []byte) (*Description, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &DescriptionError{Problems: []string{err.Error()}}
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &DescriptionError{Problems: problems}
	}

	var d Description
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, &DescriptionError{Problems: []string{err.Error()}}
	}
	return &d, nil
}

// Build turns the description into a Template, enforcing the invariants the
// schema cannot express.
func (d *Description) Build() (*Template, error) {
	var problems []string
	if strings.TrimSpace(d.GUID) == "" {
		problems = append(problems, "guid is required")
	}
	if d.PagesNumber < 1 {
		problems = append(problems, "pages_number must be at least 1")
	}

	t := &Template{
		GUID:        d.GUID,
		PagesNumber: d.PagesNumber,
		MissedPages: d.MissedPages,
		Pages:       make(map[int]*Page, len(d.Pages)),
	}

	for key, pd := range d.Pages {
		number, err := strconv.Atoi(key)
		if err != nil || number < 1 || number > d.PagesNumber {
			problems = append(problems, fmt.Sprintf("page key %q is out of range", key))
			continue
		}
		page, pageProblems := buildPage(number, pd)
		problems = append(problems, pageProblems...)
		t.Pages[number] = page
	}
	for n := 1; n <= d.PagesNumber; n++ {
		if _, ok := t.Pages[n]; !ok {
			problems = append(problems, fmt.Sprintf("page %d is missing", n))
		}
	}

	if len(problems) > 0 {
		return nil, &DescriptionError{Problems: problems}
	}
	return t, nil
}

func buildPage(number int, pd PageDescription) (*Page, []string) {
	var problems []string
	p := &Page{
		Number: number,
		Fields: make(map[string]*Field, len(pd.Fields)),
		Images: make(map[string]*Image, len(pd.Images)),
	}

	for _, fd := range pd.Fields {
		if _, dup := p.Fields[fd.Name]; dup {
			problems = append(problems, fmt.Sprintf("page %d: duplicate field %q", number, fd.Name))
			continue
		}
		p.Fields[fd.Name] = &Field{
			Name:         fd.Name,
			Page:         number,
			Value:        fd.Value,
			Metadata:     Metadata(fd.Metadata).Clone(),
			ColourPicker: ColourPickerMode(fd.ColourPicker),
			Palette:      string(fd.Palette),
			Combobox:     fd.Combobox,
			Hint:         fd.Title,
		}
	}

	for _, id := range pd.Images {
		if _, dup := p.Images[id.Name]; dup {
			problems = append(problems, fmt.Sprintf("page %d: duplicate image %q", number, id.Name))
			continue
		}
		if _, clash := p.Fields[id.Name]; clash {
			problems = append(problems, fmt.Sprintf("page %d: image %q clashes with a field", number, id.Name))
			continue
		}
		p.Images[id.Name] = &Image{
			Name:     id.Name,
			Page:     number,
			Value:    id.Value,
			Metadata: Metadata(id.Metadata).Clone(),
			Palette:  string(id.Palette),
		}
	}

	for _, sd := range pd.Shapes {
		shape, err := ParseShapeName(sd.Name)
		if err != nil {
			problems = append(problems, fmt.Sprintf("page %d: %v", number, err))
			continue
		}
		p.Shapes = append(p.Shapes, shape)
	}

	if pd.UpdatedPreviewImage != "" {
		p.HasUpdatedPreviewImage = true
		p.PreviewURL = pd.UpdatedPreviewImage
	} else {
		p.PreviewURL = pd.PreviewURL
	}

	return p, problems
}

// NewTemplate parses and builds a Template in one step.
func NewTemplate(raw []byte) (*Template, error) {
	d, err := ParseDescription(raw)
	if err != nil {
		return nil, err
	}
	return d.Build()
}
