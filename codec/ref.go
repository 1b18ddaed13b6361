// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec

import (
	"fmt"

	"github.com/pkg/errors"
)

// The ref-or-object protocol deduplicates values by physical identity within
// a stream. The id field is a zigzag varint: a negative value is a
// back-reference to a previously seen object, zero announces a new object
// whose encoding follows. Ids are assigned before the body is written. On
// read, RefCodec values and RegisterRef registrations get their id before the
// body is consumed, so cyclic graphs through them terminate; RegisterType
// registrations get their id only after the body has been read.

// RefCodec wraps a codec for N into a reference-tracked codec for *N. A
// pointer serialized twice within one stream is written once; the second
// occurrence is a back-reference, and decoding restores the shared identity.
// Cycles through *N work because the node is published before its body is
// read.
func RefCodec[N any](elem Codec[N]) Codec[*N] {
	return refCodec[N]{elem: elem}
}

type refCodec[N any] struct {
	elem Codec[N]
}

func (c refCodec[N]) Serialize(ctx *WriteContext, v *N) error {
	if v == nil {
		return &SerializationError{Msg: "nil reference"}
	}
	if id, ok := ctx.State.RefID(v); ok {
		ctx.Out.WriteVarInt32(-id, false)
		return nil
	}
	ctx.State.AddRef(v)
	ctx.Out.WriteVarInt32(0, false)
	return c.elem.Serialize(ctx, *v)
}

func (c refCodec[N]) Deserialize(ctx *ReadContext) (*N, error) {
	id, err := ctx.In.ReadVarInt32(false)
	if err != nil {
		return nil, err
	}
	switch {
	case id < 0:
		v, ok := ctx.State.RefByID(-id)
		if !ok {
			return nil, errors.Errorf("codec: unresolved back-reference %d", -id)
		}
		p, ok := v.(*N)
		if !ok {
			return nil, errors.Errorf("codec: back-reference %d resolves to %s", -id, TypeNameOf(v))
		}
		return p, nil
	case id == 0:
		node := new(N)
		ctx.StoreReadRef(node)
		v, err := c.elem.Deserialize(ctx)
		if err != nil {
			return nil, err
		}
		*node = v
		return node, nil
	}
	return nil, errors.Errorf("codec: positive reference id %d", id)
}

// StoreRefOrObject writes v through the ref-or-object protocol with
// polymorphic dispatch: new objects carry a positive varint type id from the
// registry ahead of their body.
func StoreRefOrObject(ctx *WriteContext, v any) error {
	if v == nil {
		return &SerializationError{Msg: "nil reference"}
	}
	if id, ok := ctx.State.RefID(v); ok {
		ctx.Out.WriteVarInt32(-id, false)
		return nil
	}
	if ctx.Registry == nil {
		return &SerializationError{Msg: "no type registry for polymorphic reference"}
	}
	tid, reg, ok := ctx.Registry.Lookup(v)
	if !ok {
		return &SerializationError{Msg: "unregistered type " + TypeNameOf(v)}
	}
	ctx.State.AddRef(v)
	ctx.Out.WriteVarInt32(0, false)
	ctx.Out.WriteVarInt32(tid, true)
	return reg.Codec.SerializeAny(ctx, v)
}

// ReadRefOrValue is the read side of StoreRefOrObject. New objects of a
// RegisterRef registration are registered under the next id before their
// bodies are consumed; objects of a RegisterType registration are registered
// after their bodies have been read, so tracked references inside such a
// body take ids ahead of the object itself.
func ReadRefOrValue(ctx *ReadContext) (any, error) {
	id, err := ctx.In.ReadVarInt32(false)
	if err != nil {
		return nil, err
	}
	switch {
	case id < 0:
		v, ok := ctx.State.RefByID(-id)
		if !ok {
			return nil, errors.Errorf("codec: unresolved back-reference %d", -id)
		}
		return v, nil
	case id > 0:
		return nil, errors.Errorf("codec: positive reference id %d", id)
	}
	if ctx.Registry == nil {
		return nil, &DeserializationError{Msg: "no type registry for polymorphic reference"}
	}
	tid, err := ctx.In.ReadVarInt32(true)
	if err != nil {
		return nil, err
	}
	reg, ok := ctx.Registry.ByID(tid)
	if !ok {
		return nil, &DeserializationError{Msg: fmt.Sprintf("unknown type id %d", tid)}
	}
	if rt, ok := reg.Codec.(refTarget); ok {
		node := rt.newTarget()
		ctx.StoreReadRef(node)
		if err := rt.fill(ctx, node); err != nil {
			return nil, err
		}
		return node, nil
	}
	v, err := reg.Codec.DeserializeAny(ctx)
	if err != nil {
		return nil, err
	}
	ctx.StoreReadRef(v)
	return v, nil
}

// AnyRef is the polymorphic ref-or-object protocol as a codec.
var AnyRef Codec[any] = anyRefCodec{}

type anyRefCodec struct{}

func (anyRefCodec) Serialize(ctx *WriteContext, v any) error {
	return StoreRefOrObject(ctx, v)
}

func (anyRefCodec) Deserialize(ctx *ReadContext) (any, error) {
	return ReadRefOrValue(ctx)
}
