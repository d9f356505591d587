// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

// Metadata keys understood by the rendering API.
const (
	MetaColour   = "col-f"
	MetaImageID  = "img-id"
	MetaRotation = "rotation"
)

// Metadata holds render annotations of a field or image. A missing key is
// not the same as a key with an empty value.
type Metadata map[string]string

// Clone returns an independent copy. A nil mapping clones to nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Annotated is implemented by everything that carries metadata and belongs
// to a page.
type Annotated interface {
	// MetadataRef returns a pointer to the mapping so callers can
	// initialise it in place.
	MetadataRef() *Metadata
	PageNumber() int
}

func (f *Field) MetadataRef() *Metadata { return &f.Metadata }
func (f *Field) PageNumber() int        { return f.Page }

func (i *Image) MetadataRef() *Metadata { return &i.Metadata }
func (i *Image) PageNumber() int        { return i.Page }
