// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec

import (
	"reflect"

	"github.com/pkg/errors"
)

// AnyCodec is a type-erased codec, used where the static type at the call
// site is polymorphic.
type AnyCodec interface {
	SerializeAny(ctx *WriteContext, v any) error
	DeserializeAny(ctx *ReadContext) (any, error)
}

// Erase adapts a typed codec into an AnyCodec. SerializeAny fails if the
// value's dynamic type is not T.
func Erase[T any](c Codec[T]) AnyCodec {
	return erased[T]{c: c}
}

type erased[T any] struct {
	c Codec[T]
}

func (e erased[T]) SerializeAny(ctx *WriteContext, v any) error {
	tv, ok := v.(T)
	if !ok {
		return errors.Errorf("codec: value of type %s does not match registered codec", TypeNameOf(v))
	}
	return e.c.Serialize(ctx, tv)
}

func (e erased[T]) DeserializeAny(ctx *ReadContext) (any, error) {
	return e.c.Deserialize(ctx)
}

// Registration binds a runtime type to its type-erased codec.
type Registration struct {
	Type  reflect.Type
	Codec AnyCodec
}

// Registry maps stable small integer type ids to registrations. The ids are
// part of the on-wire format for polymorphic references and must stay the
// same across deployments. A Registry is read-only after construction and
// safe to share.
type Registry struct {
	byID     map[int32]Registration
	idByType map[reflect.Type]int32
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[int32]Registration),
		idByType: make(map[reflect.Type]int32),
	}
}

// Register binds id to the given type and codec.
func (r *Registry) Register(id int32, typ reflect.Type, c AnyCodec) {
	r.byID[id] = Registration{Type: typ, Codec: c}
	r.idByType[typ] = id
}

// ByID resolves a type id read from the wire.
func (r *Registry) ByID(id int32) (Registration, bool) {
	reg, ok := r.byID[id]
	return reg, ok
}

// Lookup resolves the id and codec for v's dynamic type.
func (r *Registry) Lookup(v any) (int32, Registration, bool) {
	id, ok := r.idByType[reflect.TypeOf(v)]
	if !ok {
		return 0, Registration{}, false
	}
	return id, r.byID[id], true
}

// RegisterType registers a codec for values of type T under id. A value
// registered this way is published to the reference map only after its body
// has been read; when the payload can itself contain tracked references, use
// RegisterRef so that ids are assigned in the same order as on the write
// side.
func RegisterType[T any](r *Registry, id int32, c Codec[T]) {
	r.Register(id, reflect.TypeOf((*T)(nil)).Elem(), Erase(c))
}

// RegisterRef registers the pointer type *N under id with a codec for its
// pointee. Values of type *N then travel through the ref-or-object protocol
// with cycle support: on read the node is published before its body is
// deserialized.
func RegisterRef[N any](r *Registry, id int32, elem Codec[N]) {
	r.Register(id, reflect.TypeOf((*N)(nil)), refErased[N]{elem: elem})
}

// refErased is the AnyCodec for RegisterRef registrations. It additionally
// implements refTarget so ReadRefOrValue can allocate and publish the node
// before filling it.
type refErased[N any] struct {
	elem Codec[N]
}

func (e refErased[N]) SerializeAny(ctx *WriteContext, v any) error {
	p, ok := v.(*N)
	if !ok {
		return errors.Errorf("codec: value of type %s does not match registered ref codec", TypeNameOf(v))
	}
	return e.elem.Serialize(ctx, *p)
}

func (e refErased[N]) DeserializeAny(ctx *ReadContext) (any, error) {
	node := new(N)
	if err := e.fill(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

func (e refErased[N]) newTarget() any { return new(N) }

func (e refErased[N]) fill(ctx *ReadContext, target any) error {
	v, err := e.elem.Deserialize(ctx)
	if err != nil {
		return err
	}
	*(target.(*N)) = v
	return nil
}

// refTarget is implemented by registrations whose nodes must be published
// before their bodies are read.
type refTarget interface {
	newTarget() any
	fill(ctx *ReadContext, target any) error
}
