// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/evo/codec"
	"github.com/grailbio/evo/wire"
)

// node is a linked-list cell that can close a cycle through next.
type node struct {
	Name string
	Next codec.Option[*node]
}

// nodeCodec serializes a node's fields; the surrounding RefCodec handles
// identity and cycles.
type nodeCodec struct{}

func (nodeCodec) refCodec() codec.Codec[*node] {
	return codec.RefCodec[node](nodeCodec{})
}

func (c nodeCodec) Serialize(ctx *codec.WriteContext, v node) error {
	if err := codec.String.Serialize(ctx, v.Name); err != nil {
		return err
	}
	return codec.OptionCodec(c.refCodec()).Serialize(ctx, v.Next)
}

func (c nodeCodec) Deserialize(ctx *codec.ReadContext) (node, error) {
	var v node
	var err error
	if v.Name, err = codec.String.Deserialize(ctx); err != nil {
		return v, err
	}
	v.Next, err = codec.OptionCodec(c.refCodec()).Deserialize(ctx)
	return v, err
}

func TestSharedReferenceIdentity(t *testing.T) {
	shared := &node{Name: "shared"}
	c := codec.SliceCodec(nodeCodec{}.refCodec())
	data, err := codec.Serialize(c, []*node{shared, shared})
	require.NoError(t, err)

	got, err := codec.Deserialize(c, data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Same(t, got[0], got[1])
	assert.Equal(t, "shared", got[0].Name)
}

func TestDistinctIdentitiesSerializedTwice(t *testing.T) {
	a := &node{Name: "same content"}
	b := &node{Name: "same content"}
	c := codec.SliceCodec(nodeCodec{}.refCodec())
	data, err := codec.Serialize(c, []*node{a, b})
	require.NoError(t, err)

	got, err := codec.Deserialize(c, data)
	require.NoError(t, err)
	assert.NotSame(t, got[0], got[1])
}

func TestReferenceCycle(t *testing.T) {
	// a -> b -> c -> a
	a := &node{Name: "a"}
	b := &node{Name: "b"}
	cc := &node{Name: "c"}
	a.Next = codec.Some(b)
	b.Next = codec.Some(cc)
	cc.Next = codec.Some(a)

	rc := nodeCodec{}.refCodec()
	data, err := codec.Serialize(rc, a)
	require.NoError(t, err)

	got, err := codec.Deserialize(rc, data)
	require.NoError(t, err)

	ga := got
	gb, ok := ga.Next.Get()
	require.True(t, ok)
	gc, ok := gb.Next.Get()
	require.True(t, ok)
	back, ok := gc.Next.Get()
	require.True(t, ok)

	assert.Equal(t, "a", ga.Name)
	assert.Equal(t, "b", gb.Name)
	assert.Equal(t, "c", gc.Name)
	// The cycle closes on the same decoded node, not a copy.
	assert.Same(t, ga, back)
}

func TestNilReferenceFails(t *testing.T) {
	_, err := codec.Serialize(nodeCodec{}.refCodec(), nil)
	assert.Error(t, err)
}

// circle and square are the polymorphic values for registry dispatch tests.
type circle struct{ Radius int32 }

type square struct{ Side int32 }

type circleCodec struct{}

func (circleCodec) Serialize(ctx *codec.WriteContext, v circle) error {
	ctx.Out.WriteInt32(v.Radius)
	return nil
}

func (circleCodec) Deserialize(ctx *codec.ReadContext) (circle, error) {
	r, err := ctx.In.ReadInt32()
	return circle{Radius: r}, err
}

type squareCodec struct{}

func (squareCodec) Serialize(ctx *codec.WriteContext, v square) error {
	ctx.Out.WriteInt32(v.Side)
	return nil
}

func (squareCodec) Deserialize(ctx *codec.ReadContext) (square, error) {
	s, err := ctx.In.ReadInt32()
	return square{Side: s}, err
}

func shapeRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	codec.RegisterRef[circle](reg, 1, circleCodec{})
	codec.RegisterRef[square](reg, 2, squareCodec{})
	return reg
}

func TestPolymorphicRefDispatch(t *testing.T) {
	reg := shapeRegistry()
	c := codec.SliceCodec(codec.AnyRef)
	values := []any{&circle{Radius: 3}, &square{Side: 4}}

	data, err := codec.SerializeWith(c, values, reg)
	require.NoError(t, err)
	got, err := codec.DeserializeWith(c, data, reg)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, &circle{Radius: 3}, got[0])
	assert.Equal(t, &square{Side: 4}, got[1])
}

func TestPolymorphicBackReference(t *testing.T) {
	reg := shapeRegistry()
	c := codec.SliceCodec(codec.AnyRef)
	shared := &square{Side: 9}
	data, err := codec.SerializeWith(c, []any{shared, shared}, reg)
	require.NoError(t, err)

	got, err := codec.DeserializeWith(c, data, reg)
	require.NoError(t, err)
	assert.Same(t, got[0].(*square), got[1].(*square))
}

func TestUnregisteredTypeFails(t *testing.T) {
	reg := shapeRegistry()
	ctx := codec.NewWriteContext(wire.NewOutput(), reg)
	err := codec.StoreRefOrObject(ctx, &node{})
	assert.Error(t, err)
}

func TestUnknownTypeIDFails(t *testing.T) {
	reg := shapeRegistry()
	out := wire.NewOutput()
	out.WriteVarInt32(0, false)  // new object
	out.WriteVarInt32(99, true)  // unregistered type id
	_, err := codec.DeserializeWith(codec.AnyRef, out.Bytes(), reg)
	assert.Error(t, err)
}
