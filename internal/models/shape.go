// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// ShapeNameSeparator joins dependency names of a grouped shape on the wire.
const ShapeNameSeparator = "; "

// Names is a non-empty, ordered list of field or image names.
type Names struct {
	first string
	rest  []string
}

// NewNames builds a Names list. It fails when no non-empty name is given.
func NewNames(names ...string) (Names, error) {
	var clean []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			clean = append(clean, n)
		}
	}
	if len(clean) == 0 {
		return Names{}, errors.New("shape needs at least one dependency name")
	}
	return Names{first: clean[0], rest: clean[1:]}, nil
}

// Slice returns the names in order.
func (n Names) Slice() []string {
	return append([]string{n.first}, n.rest...)
}

// Len returns the number of names, always at least one for a valid list.
func (n Names) Len() int {
	if n.first == "" {
		return 0
	}
	return 1 + len(n.rest)
}

// Contains reports whether name is one of the list entries.
func (n Names) Contains(name string) bool {
	if n.first == name {
		return true
	}
	for _, r := range n.rest {
		if r == name {
			return true
		}
	}
	return false
}

// Shape is an overlay region on a page preview whose highlight depends on
// one or more field/image values.
type Shape struct {
	Dependencies Names
	Edited       bool
}

// ParseShapeName decodes a composite shape name such as "Name; Surname".
func ParseShapeName(name string) (*Shape, error) {
	deps, err := NewNames(strings.Split(name, ShapeNameSeparator)...)
	if err != nil {
		return nil, err
	}
	return &Shape{Dependencies: deps}, nil
}

// Name returns the composite wire name of the shape.
func (s *Shape) Name() string {
	return strings.Join(s.Dependencies.Slice(), ShapeNameSeparator)
}

// IsGroup reports whether the shape depends on more than one name.
func (s *Shape) IsGroup() bool {
	return s.Dependencies.Len() > 1
}

type shapeJSON struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies"`
	Edited       bool     `json:"edited"`
}

func (s Shape) MarshalJSON() ([]byte, error) {
	return json.Marshal(shapeJSON{
		Name:         s.Name(),
		Dependencies: s.Dependencies.Slice(),
		Edited:       s.Edited,
	})
}

func (s *Shape) UnmarshalJSON(data []byte) error {
	var raw shapeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	names := raw.Dependencies
	if len(names) == 0 {
		names = strings.Split(raw.Name, ShapeNameSeparator)
	}
	deps, err := NewNames(names...)
	if err != nil {
		return err
	}
	s.Dependencies = deps
	s.Edited = raw.Edited
	return nil
}
