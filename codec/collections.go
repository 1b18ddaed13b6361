// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec

import (
	"github.com/pkg/errors"
)

// SliceCodec writes a positive varint element count followed by the elements
// in order. It is the sized iterable form used by lists, vectors, arrays and
// sets.
func SliceCodec[T any](elem Codec[T]) Codec[[]T] {
	return sliceCodec[T]{elem: elem}
}

type sliceCodec[T any] struct {
	elem Codec[T]
}

func (c sliceCodec[T]) Serialize(ctx *WriteContext, v []T) error {
	ctx.Out.WriteVarInt32(int32(len(v)), true)
	for i := range v {
		if err := c.elem.Serialize(ctx, v[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c sliceCodec[T]) Deserialize(ctx *ReadContext) ([]T, error) {
	n, err := ctx.In.ReadVarInt32(true)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("codec: negative collection size %d", n)
	}
	out := make([]T, n)
	for i := range out {
		if out[i], err = c.elem.Deserialize(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// StreamCodec is the unknown-size iterable form: every element is written
// wrapped as Some(x) and the sequence is terminated by None. Whether a
// collection uses the sized or the streamed form is fixed by which codec
// constructor was used, not by the value.
func StreamCodec[T any](elem Codec[T]) Codec[[]T] {
	return streamCodec[T]{elem: elem}
}

type streamCodec[T any] struct {
	elem Codec[T]
}

func (c streamCodec[T]) Serialize(ctx *WriteContext, v []T) error {
	for i := range v {
		ctx.Out.WriteBool(true)
		if err := c.elem.Serialize(ctx, v[i]); err != nil {
			return err
		}
	}
	ctx.Out.WriteBool(false)
	return nil
}

func (c streamCodec[T]) Deserialize(ctx *ReadContext) ([]T, error) {
	var out []T
	for {
		more, err := ctx.In.ReadBool()
		if err != nil {
			return nil, err
		}
		if !more {
			return out, nil
		}
		v, err := c.elem.Deserialize(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// NonEmptySliceCodec is SliceCodec but rejects empty collections on both
// sides.
func NonEmptySliceCodec[T any](elem Codec[T]) Codec[[]T] {
	return nonEmptySliceCodec[T]{inner: SliceCodec(elem)}
}

type nonEmptySliceCodec[T any] struct {
	inner Codec[[]T]
}

func (c nonEmptySliceCodec[T]) Serialize(ctx *WriteContext, v []T) error {
	if len(v) == 0 {
		return &SerializationError{Msg: "non-empty collection is empty"}
	}
	return c.inner.Serialize(ctx, v)
}

func (c nonEmptySliceCodec[T]) Deserialize(ctx *ReadContext) ([]T, error) {
	v, err := c.inner.Deserialize(ctx)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, &DeserializationError{Msg: "non-empty collection decoded empty"}
	}
	return v, nil
}

// SetCodec writes a set in the sized form. Iteration order is unspecified;
// decoding rebuilds the same set regardless.
func SetCodec[T comparable](elem Codec[T]) Codec[map[T]struct{}] {
	return setCodec[T]{elem: elem}
}

type setCodec[T comparable] struct {
	elem Codec[T]
}

func (c setCodec[T]) Serialize(ctx *WriteContext, v map[T]struct{}) error {
	ctx.Out.WriteVarInt32(int32(len(v)), true)
	for e := range v {
		if err := c.elem.Serialize(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (c setCodec[T]) Deserialize(ctx *ReadContext) (map[T]struct{}, error) {
	n, err := ctx.In.ReadVarInt32(true)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("codec: negative collection size %d", n)
	}
	out := make(map[T]struct{}, n)
	for i := int32(0); i < n; i++ {
		e, err := c.elem.Deserialize(ctx)
		if err != nil {
			return nil, err
		}
		out[e] = struct{}{}
	}
	return out, nil
}

// NonEmptySetCodec is SetCodec but rejects empty sets on both sides.
func NonEmptySetCodec[T comparable](elem Codec[T]) Codec[map[T]struct{}] {
	return nonEmptySetCodec[T]{inner: SetCodec(elem)}
}

type nonEmptySetCodec[T comparable] struct {
	inner Codec[map[T]struct{}]
}

func (c nonEmptySetCodec[T]) Serialize(ctx *WriteContext, v map[T]struct{}) error {
	if len(v) == 0 {
		return &SerializationError{Msg: "non-empty set is empty"}
	}
	return c.inner.Serialize(ctx, v)
}

func (c nonEmptySetCodec[T]) Deserialize(ctx *ReadContext) (map[T]struct{}, error) {
	v, err := c.inner.Deserialize(ctx)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, &DeserializationError{Msg: "non-empty set decoded empty"}
	}
	return v, nil
}

// MapCodec writes a positive varint entry count followed by the entries,
// each framed as a (key, value) tuple.
func MapCodec[K comparable, V any](key Codec[K], value Codec[V]) Codec[map[K]V] {
	return mapCodec[K, V]{entry: Tuple2Codec(key, value)}
}

type mapCodec[K comparable, V any] struct {
	entry Codec[Tuple2[K, V]]
}

func (c mapCodec[K, V]) Serialize(ctx *WriteContext, v map[K]V) error {
	ctx.Out.WriteVarInt32(int32(len(v)), true)
	for k, e := range v {
		if err := c.entry.Serialize(ctx, Tuple2[K, V]{V1: k, V2: e}); err != nil {
			return err
		}
	}
	return nil
}

func (c mapCodec[K, V]) Deserialize(ctx *ReadContext) (map[K]V, error) {
	n, err := ctx.In.ReadVarInt32(true)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("codec: negative map size %d", n)
	}
	out := make(map[K]V, n)
	for i := int32(0); i < n; i++ {
		e, err := c.entry.Deserialize(ctx)
		if err != nil {
			return nil, err
		}
		out[e.V1] = e.V2
	}
	return out, nil
}
