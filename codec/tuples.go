// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec

// Tuple2 is a pair of values.
type Tuple2[A, B any] struct {
	V1 A
	V2 B
}

// Tuple3 is a triple of values.
type Tuple3[A, B, C any] struct {
	V1 A
	V2 B
	V3 C
}

// Tuple4 is a quadruple of values.
type Tuple4[A, B, C, D any] struct {
	V1 A
	V2 B
	V3 C
	V4 D
}

// Tuple codecs emit the single byte 0 before the elements. That byte is the
// evolution version of a record codec that has only its initial version, so a
// tuple and a record with the same element types in the same order produce
// identical bytes.

// Tuple2Codec returns a codec for pairs.
func Tuple2Codec[A, B any](a Codec[A], b Codec[B]) Codec[Tuple2[A, B]] {
	return tuple2Codec[A, B]{a: a, b: b}
}

type tuple2Codec[A, B any] struct {
	a Codec[A]
	b Codec[B]
}

func (c tuple2Codec[A, B]) Serialize(ctx *WriteContext, v Tuple2[A, B]) error {
	ctx.Out.WriteInt8(0)
	if err := c.a.Serialize(ctx, v.V1); err != nil {
		return err
	}
	return c.b.Serialize(ctx, v.V2)
}

func (c tuple2Codec[A, B]) Deserialize(ctx *ReadContext) (Tuple2[A, B], error) {
	var v Tuple2[A, B]
	if err := readTupleVersion(ctx); err != nil {
		return v, err
	}
	var err error
	if v.V1, err = c.a.Deserialize(ctx); err != nil {
		return v, err
	}
	v.V2, err = c.b.Deserialize(ctx)
	return v, err
}

// Tuple3Codec returns a codec for triples.
func Tuple3Codec[A, B, C any](a Codec[A], b Codec[B], cc Codec[C]) Codec[Tuple3[A, B, C]] {
	return tuple3Codec[A, B, C]{a: a, b: b, c: cc}
}

type tuple3Codec[A, B, C any] struct {
	a Codec[A]
	b Codec[B]
	c Codec[C]
}

func (c tuple3Codec[A, B, C]) Serialize(ctx *WriteContext, v Tuple3[A, B, C]) error {
	ctx.Out.WriteInt8(0)
	if err := c.a.Serialize(ctx, v.V1); err != nil {
		return err
	}
	if err := c.b.Serialize(ctx, v.V2); err != nil {
		return err
	}
	return c.c.Serialize(ctx, v.V3)
}

func (c tuple3Codec[A, B, C]) Deserialize(ctx *ReadContext) (Tuple3[A, B, C], error) {
	var v Tuple3[A, B, C]
	if err := readTupleVersion(ctx); err != nil {
		return v, err
	}
	var err error
	if v.V1, err = c.a.Deserialize(ctx); err != nil {
		return v, err
	}
	if v.V2, err = c.b.Deserialize(ctx); err != nil {
		return v, err
	}
	v.V3, err = c.c.Deserialize(ctx)
	return v, err
}

// Tuple4Codec returns a codec for quadruples.
func Tuple4Codec[A, B, C, D any](a Codec[A], b Codec[B], cc Codec[C], d Codec[D]) Codec[Tuple4[A, B, C, D]] {
	return tuple4Codec[A, B, C, D]{a: a, b: b, c: cc, d: d}
}

type tuple4Codec[A, B, C, D any] struct {
	a Codec[A]
	b Codec[B]
	c Codec[C]
	d Codec[D]
}

func (c tuple4Codec[A, B, C, D]) Serialize(ctx *WriteContext, v Tuple4[A, B, C, D]) error {
	ctx.Out.WriteInt8(0)
	if err := c.a.Serialize(ctx, v.V1); err != nil {
		return err
	}
	if err := c.b.Serialize(ctx, v.V2); err != nil {
		return err
	}
	if err := c.c.Serialize(ctx, v.V3); err != nil {
		return err
	}
	return c.d.Serialize(ctx, v.V4)
}

func (c tuple4Codec[A, B, C, D]) Deserialize(ctx *ReadContext) (Tuple4[A, B, C, D], error) {
	var v Tuple4[A, B, C, D]
	if err := readTupleVersion(ctx); err != nil {
		return v, err
	}
	var err error
	if v.V1, err = c.a.Deserialize(ctx); err != nil {
		return v, err
	}
	if v.V2, err = c.b.Deserialize(ctx); err != nil {
		return v, err
	}
	if v.V3, err = c.c.Deserialize(ctx); err != nil {
		return v, err
	}
	v.V4, err = c.d.Deserialize(ctx)
	return v, err
}

func readTupleVersion(ctx *ReadContext) error {
	v, err := ctx.In.ReadInt8()
	if err != nil {
		return err
	}
	if v != 0 {
		return &DeserializationError{Msg: "tuple with nonzero version byte"}
	}
	return nil
}
