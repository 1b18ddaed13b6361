// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package evolution

import (
	"github.com/grailbio/evo/codec"
)

// ChoiceBuilder assembles a codec for a sum type. Constructors are declared
// in order; the declaration index is the on-wire constructor id, so the
// order must never change once streams exist. Appending constructors is
// safe.
type ChoiceBuilder[T any] struct {
	typeName string
	hist     *history
	ctors    []ctorBinding[T]
}

// NewChoice starts a builder for the sum type T. steps may be empty.
func NewChoice[T any](typeName string, steps ...Step) *ChoiceBuilder[T] {
	return &ChoiceBuilder[T]{typeName: typeName, hist: newHistory(steps)}
}

// Constructor declares the next constructor. unwrap reports whether a value
// belongs to this constructor and projects its payload; wrap re-injects a
// decoded payload.
func Constructor[T, C any](b *ChoiceBuilder[T], name string, c codec.Codec[C], wrap func(C) T, unwrap func(T) (C, bool)) *ChoiceBuilder[T] {
	b.ctors = append(b.ctors, &ctor[T, C]{cname: name, c: c, wrap: wrap, unwrap: unwrap})
	return b
}

// Codec finalizes the builder.
func (b *ChoiceBuilder[T]) Codec() codec.Codec[T] {
	return &choiceCodec[T]{typeName: b.typeName, hist: b.hist, ctors: b.ctors}
}

type ctorBinding[T any] interface {
	name() string
	// tryWrite emits the constructor id and payload if v belongs to this
	// constructor.
	tryWrite(ctx *codec.WriteContext, id int32, v T) (bool, error)
	read(ctx *codec.ReadContext) (T, error)
}

type ctor[T, C any] struct {
	cname  string
	c      codec.Codec[C]
	wrap   func(C) T
	unwrap func(T) (C, bool)
}

func (ct *ctor[T, C]) name() string { return ct.cname }

func (ct *ctor[T, C]) tryWrite(ctx *codec.WriteContext, id int32, v T) (bool, error) {
	payload, ok := ct.unwrap(v)
	if !ok {
		return false, nil
	}
	ctx.Out.WriteVarInt32(id, true)
	return true, ct.c.Serialize(ctx, payload)
}

func (ct *ctor[T, C]) read(ctx *codec.ReadContext) (T, error) {
	payload, err := ct.c.Deserialize(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return ct.wrap(payload), nil
}

// choiceCodec frames a value as a positive varint constructor id followed by
// the constructor payload, all inside chunk 0 of the record layout. There
// are no per-constructor sub-chunks; nested records carry their own version
// framing.
type choiceCodec[T any] struct {
	typeName string
	hist     *history
	ctors    []ctorBinding[T]
}

func (c *choiceCodec[T]) Serialize(ctx *codec.WriteContext, v T) error {
	out := newChunkedOutput(ctx, c.hist)
	cctx := out.contextFor(0)
	for i, ct := range c.ctors {
		ok, err := ct.tryWrite(cctx, int32(i), v)
		if err != nil {
			return err
		}
		if ok {
			return out.finish()
		}
	}
	return &codec.InvalidConstructorNameError{
		Constructor: codec.TypeNameOf(v),
		Type:        c.typeName,
	}
}

func (c *choiceCodec[T]) Deserialize(ctx *codec.ReadContext) (T, error) {
	var zero T
	in, err := newChunkedInput(ctx)
	if err != nil {
		return zero, err
	}
	cctx, err := in.contextFor(0)
	if err != nil {
		return zero, err
	}
	id, err := cctx.In.ReadVarInt32(true)
	if err != nil {
		return zero, err
	}
	if id < 0 || int(id) >= len(c.ctors) {
		return zero, &codec.InvalidConstructorIDError{ID: id, Type: c.typeName}
	}
	return c.ctors[id].read(cctx)
}
