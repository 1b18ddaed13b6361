// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec

// State is the per-stream serializer state: the string interning tables and
// the object reference maps. Ids are assigned 1, 2, ... on first occurrence,
// in the same order on the write and the read side, which is what makes
// back-references resolvable without any out-of-band metadata.
//
// Reference ids are keyed on the value itself with Go equality. For pointers
// this is physical identity: distinct pointers to structurally equal values
// serialize twice. Comparable non-pointer values are keyed by content, so
// equal ones share an id. Values of unhashable types (maps, slices) cannot
// be registered.
type State struct {
	stringByID map[int32]string
	idByString map[string]int32
	objByID    map[int32]any
	idByObj    map[any]int32
	nextString int32
	nextObj    int32
}

// NewState returns an empty per-stream state.
func NewState() *State {
	return &State{
		stringByID: make(map[int32]string),
		idByString: make(map[string]int32),
		objByID:    make(map[int32]any),
		idByObj:    make(map[any]int32),
	}
}

// StringID returns the id under which s was interned, if any.
func (s *State) StringID(v string) (int32, bool) {
	id, ok := s.idByString[v]
	return id, ok
}

// AddString interns v under the next string id and returns the id.
func (s *State) AddString(v string) int32 {
	s.nextString++
	s.idByString[v] = s.nextString
	s.stringByID[s.nextString] = v
	return s.nextString
}

// StringByID resolves an interned string id.
func (s *State) StringByID(id int32) (string, bool) {
	v, ok := s.stringByID[id]
	return v, ok
}

// RefID returns the id under which v was registered, if any.
func (s *State) RefID(v any) (int32, bool) {
	id, ok := s.idByObj[v]
	return id, ok
}

// AddRef registers v under the next object id and returns the id.
func (s *State) AddRef(v any) int32 {
	s.nextObj++
	s.idByObj[v] = s.nextObj
	s.objByID[s.nextObj] = v
	return s.nextObj
}

// RefByID resolves a registered object id.
func (s *State) RefByID(id int32) (any, bool) {
	v, ok := s.objByID[id]
	return v, ok
}
