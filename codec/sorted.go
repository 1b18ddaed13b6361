// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec

import (
	"github.com/biogo/store/llrb"
	"github.com/pkg/errors"
)

// SortedSetCodec serializes an llrb tree in the sized iterable form,
// visiting elements in sorted order. Decoding re-inserts the elements, so the
// decoded tree is sorted even if the stream was hand-built out of order.
func SortedSetCodec[T llrb.Comparable](elem Codec[T]) Codec[*llrb.Tree] {
	return sortedSetCodec[T]{elem: elem}
}

type sortedSetCodec[T llrb.Comparable] struct {
	elem Codec[T]
}

func (c sortedSetCodec[T]) Serialize(ctx *WriteContext, v *llrb.Tree) error {
	n := 0
	if v != nil {
		n = v.Len()
	}
	ctx.Out.WriteVarInt32(int32(n), true)
	if n == 0 {
		return nil
	}
	var err error
	v.Do(func(e llrb.Comparable) bool {
		err = c.elem.Serialize(ctx, e.(T))
		return err != nil
	})
	return err
}

func (c sortedSetCodec[T]) Deserialize(ctx *ReadContext) (*llrb.Tree, error) {
	n, err := ctx.In.ReadVarInt32(true)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("codec: negative collection size %d", n)
	}
	tree := &llrb.Tree{}
	for i := int32(0); i < n; i++ {
		e, err := c.elem.Deserialize(ctx)
		if err != nil {
			return nil, err
		}
		tree.Insert(e)
	}
	return tree, nil
}

// NonEmptySortedSetCodec is SortedSetCodec but rejects empty trees on both
// sides.
func NonEmptySortedSetCodec[T llrb.Comparable](elem Codec[T]) Codec[*llrb.Tree] {
	return nonEmptySortedSetCodec[T]{inner: SortedSetCodec[T](elem)}
}

type nonEmptySortedSetCodec[T llrb.Comparable] struct {
	inner Codec[*llrb.Tree]
}

func (c nonEmptySortedSetCodec[T]) Serialize(ctx *WriteContext, v *llrb.Tree) error {
	if v == nil || v.Len() == 0 {
		return &SerializationError{Msg: "non-empty sorted set is empty"}
	}
	return c.inner.Serialize(ctx, v)
}

func (c nonEmptySortedSetCodec[T]) Deserialize(ctx *ReadContext) (*llrb.Tree, error) {
	v, err := c.inner.Deserialize(ctx)
	if err != nil {
		return nil, err
	}
	if v.Len() == 0 {
		return nil, &DeserializationError{Msg: "non-empty sorted set decoded empty"}
	}
	return v, nil
}

// KV is an llrb tree entry pairing a comparable key with an arbitrary value.
// Entries compare by key only.
type KV[K llrb.Comparable, V any] struct {
	Key   K
	Value V
}

// Compare implements llrb.Comparable.
func (e KV[K, V]) Compare(c llrb.Comparable) int {
	return e.Key.Compare(c.(KV[K, V]).Key)
}

// SortedMapCodec serializes an llrb tree of KV entries in key order. Each
// entry is framed as a (key, value) tuple, the same layout MapCodec uses.
func SortedMapCodec[K llrb.Comparable, V any](key Codec[K], value Codec[V]) Codec[*llrb.Tree] {
	return sortedMapCodec[K, V]{entry: Tuple2Codec(key, value)}
}

type sortedMapCodec[K llrb.Comparable, V any] struct {
	entry Codec[Tuple2[K, V]]
}

func (c sortedMapCodec[K, V]) Serialize(ctx *WriteContext, v *llrb.Tree) error {
	n := 0
	if v != nil {
		n = v.Len()
	}
	ctx.Out.WriteVarInt32(int32(n), true)
	if n == 0 {
		return nil
	}
	var err error
	v.Do(func(e llrb.Comparable) bool {
		kv := e.(KV[K, V])
		err = c.entry.Serialize(ctx, Tuple2[K, V]{V1: kv.Key, V2: kv.Value})
		return err != nil
	})
	return err
}

func (c sortedMapCodec[K, V]) Deserialize(ctx *ReadContext) (*llrb.Tree, error) {
	n, err := ctx.In.ReadVarInt32(true)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("codec: negative map size %d", n)
	}
	tree := &llrb.Tree{}
	for i := int32(0); i < n; i++ {
		e, err := c.entry.Deserialize(ctx)
		if err != nil {
			return nil, err
		}
		tree.Insert(KV[K, V]{Key: e.V1, Value: e.V2})
	}
	return tree, nil
}
