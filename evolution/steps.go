// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package evolution implements schema-evolving codecs for record and choice
// types. A codec is built from the type's evolution history, an ordered list
// of steps starting at the initial version; each step appends one generation.
// Fields are stored in per-generation chunks so that codecs built from a
// prefix or an extension of the same history can read each other's bytes.
package evolution

import "fmt"

type stepKind int

const (
	stepInitial stepKind = iota
	stepFieldAdded
	stepFieldMadeOptional
	stepFieldRemoved
	stepUnknown
)

// Step is one entry in a type's evolution history.
type Step struct {
	kind  stepKind
	field string
	def   any
}

// InitialVersion is the mandatory first step of every history.
func InitialVersion() Step {
	return Step{kind: stepInitial}
}

// FieldAdded records that a field was added, with the default value readers
// of older streams fill in. A nil default means the field has no default and
// older streams cannot be read.
func FieldAdded(name string, defaultValue any) Step {
	return Step{kind: stepFieldAdded, field: name, def: defaultValue}
}

// FieldMadeOptional records that an existing field's type was changed from H
// to Option[H].
func FieldMadeOptional(name string) Step {
	return Step{kind: stepFieldMadeOptional, field: name}
}

// FieldRemoved records that a field was removed from the type.
func FieldRemoved(name string) Step {
	return Step{kind: stepFieldRemoved, field: name}
}

// Unknown is a placeholder for steps this build does not understand. Its
// chunk is always empty.
func Unknown() Step {
	return Step{kind: stepUnknown}
}

// history holds a type's evolution steps and the tables derived from them.
// It is immutable after construction and owned by the codec.
type history struct {
	steps   []Step
	version int8

	generation     map[string]int8
	defaults       map[string]any
	madeOptionalAt map[string]int8
	removed        map[string]struct{}
}

func newHistory(steps []Step) *history {
	if len(steps) == 0 {
		steps = []Step{InitialVersion()}
	}
	if steps[0].kind != stepInitial {
		panic("evolution: history must start with InitialVersion")
	}
	if len(steps) > 128 {
		panic(fmt.Sprintf("evolution: %d steps exceed the version byte", len(steps)))
	}
	h := &history{
		steps:          steps,
		version:        int8(len(steps) - 1),
		generation:     make(map[string]int8),
		defaults:       make(map[string]any),
		madeOptionalAt: make(map[string]int8),
		removed:        make(map[string]struct{}),
	}
	for i, s := range steps {
		switch s.kind {
		case stepFieldAdded:
			h.generation[s.field] = int8(i)
			if s.def != nil {
				h.defaults[s.field] = s.def
			}
		case stepFieldMadeOptional:
			h.madeOptionalAt[s.field] = int8(i)
		case stepFieldRemoved:
			h.removed[s.field] = struct{}{}
		}
	}
	return h
}

// generationOf returns the chunk a field is stored in. Fields of the initial
// version are generation 0.
func (h *history) generationOf(name string) int8 {
	return h.generation[name]
}

// fieldPosition locates a field inside a chunked record. It is serialized as
// one byte: non-positive for positions within chunk 0, positive for a whole
// chunk id. The sentinel removedPosition (byte 0x80) marks a reference to a
// field that was removed.
type fieldPosition struct {
	chunk int8
	pos   int8
}

var removedPosition = fieldPosition{chunk: -128}

func (p fieldPosition) toByte() int8 {
	if p == removedPosition {
		return -128
	}
	if p.chunk == 0 {
		return -p.pos
	}
	return p.chunk
}

func positionFromByte(b int8) fieldPosition {
	switch {
	case b == -128:
		return removedPosition
	case b <= 0:
		return fieldPosition{chunk: 0, pos: -b}
	}
	return fieldPosition{chunk: b}
}
