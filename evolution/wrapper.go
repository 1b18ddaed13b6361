// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package evolution

import (
	"github.com/grailbio/evo/codec"
)

// Wrapper derives a codec for a value type wrapping a single non-transient
// field: the inner codec composed with the projections. No version byte is
// emitted, so a wrapper is byte-identical to its underlying value on the
// wire.
func Wrapper[T, W any](inner codec.Codec[W], wrap func(W) T, unwrap func(T) W) codec.Codec[T] {
	return wrapperCodec[T, W]{inner: inner, wrap: wrap, unwrap: unwrap}
}

type wrapperCodec[T, W any] struct {
	inner  codec.Codec[W]
	wrap   func(W) T
	unwrap func(T) W
}

func (c wrapperCodec[T, W]) Serialize(ctx *codec.WriteContext, v T) error {
	return c.inner.Serialize(ctx, c.unwrap(v))
}

func (c wrapperCodec[T, W]) Deserialize(ctx *codec.ReadContext) (T, error) {
	w, err := c.inner.Deserialize(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.wrap(w), nil
}
