// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package evolution_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/evo/codec"
	"github.com/grailbio/evo/evolution"
)

type point struct {
	X, Y, Z int32
}

func pointV1Codec() codec.Codec[point] {
	b := evolution.NewStruct[point]("point")
	evolution.Field(b, "x", codec.Int32,
		func(p *point) int32 { return p.X }, func(p *point, v int32) { p.X = v })
	evolution.Field(b, "y", codec.Int32,
		func(p *point) int32 { return p.Y }, func(p *point, v int32) { p.Y = v })
	return b.Codec()
}

func pointV2Codec(zDefault any) codec.Codec[point] {
	b := evolution.NewStruct[point]("point",
		evolution.InitialVersion(),
		evolution.FieldAdded("z", zDefault))
	evolution.Field(b, "x", codec.Int32,
		func(p *point) int32 { return p.X }, func(p *point, v int32) { p.X = v })
	evolution.Field(b, "y", codec.Int32,
		func(p *point) int32 { return p.Y }, func(p *point, v int32) { p.Y = v })
	evolution.Field(b, "z", codec.Int32,
		func(p *point) int32 { return p.Z }, func(p *point, v int32) { p.Z = v })
	return b.Codec()
}

func TestSimpleModeRecordBytes(t *testing.T) {
	b := evolution.NewStruct[point]("point3")
	evolution.Field(b, "x", codec.Int32,
		func(p *point) int32 { return p.X }, func(p *point, v int32) { p.X = v })
	evolution.Field(b, "y", codec.Int32,
		func(p *point) int32 { return p.Y }, func(p *point, v int32) { p.Y = v })
	evolution.Field(b, "z", codec.Int32,
		func(p *point) int32 { return p.Z }, func(p *point, v int32) { p.Z = v })
	c := b.Codec()

	data, err := codec.Serialize(c, point{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)

	// A single-version record is a tuple of its fields on the wire.
	tupleData, err := codec.Serialize(
		codec.Tuple3Codec(codec.Int32, codec.Int32, codec.Int32),
		codec.Tuple3[int32, int32, int32]{V1: 1, V2: 2, V3: 3})
	require.NoError(t, err)
	assert.Equal(t, tupleData, data)

	got, err := codec.Deserialize(c, data)
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2, Z: 3}, got)
}

func TestVersionedRecordBytes(t *testing.T) {
	data, err := codec.Serialize(pointV2Codec(int32(0)), point{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x01,       // version
		0x10,       // header: chunk 0 is 8 bytes (zigzag 16)
		0x08,       // header: chunk 1 is 4 bytes (zigzag 8)
		0x00, 0x00, 0x00, 0x01, // x
		0x00, 0x00, 0x00, 0x02, // y
		0x00, 0x00, 0x00, 0x03, // z
	}, data)
}

func TestFieldAddedReadsOldWithDefault(t *testing.T) {
	old, err := codec.Serialize(pointV1Codec(), point{X: 1, Y: 2})
	require.NoError(t, err)

	got, err := codec.Deserialize(pointV2Codec(int32(42)), old)
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2, Z: 42}, got)
}

func TestFieldAddedNewReadableByOld(t *testing.T) {
	newData, err := codec.Serialize(pointV2Codec(int32(0)), point{X: 5, Y: 6, Z: 7})
	require.NoError(t, err)

	// The old codec skips the unknown chunk by size.
	got, err := codec.Deserialize(pointV1Codec(), newData)
	require.NoError(t, err)
	assert.Equal(t, point{X: 5, Y: 6}, got)
}

func TestFieldAddedWithoutDefaultFails(t *testing.T) {
	old, err := codec.Serialize(pointV1Codec(), point{X: 1, Y: 2})
	require.NoError(t, err)

	_, err = codec.Deserialize(pointV2Codec(nil), old)
	require.Error(t, err)
	var missing *codec.FieldWithoutDefaultError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "z", missing.Field)
}

func TestDefaultTypeMismatchFailsAtDecode(t *testing.T) {
	old, err := codec.Serialize(pointV1Codec(), point{X: 1, Y: 2})
	require.NoError(t, err)

	_, err = codec.Deserialize(pointV2Codec("not an int32"), old)
	require.Error(t, err)
	var de *codec.DeserializationError
	assert.ErrorAs(t, err, &de)
}

type slimPoint struct {
	X, Z int32
}

func slimPointCodec() codec.Codec[slimPoint] {
	b := evolution.NewStruct[slimPoint]("point",
		evolution.InitialVersion(),
		evolution.FieldAdded("z", int32(0)),
		evolution.FieldRemoved("y"))
	evolution.Field(b, "x", codec.Int32,
		func(p *slimPoint) int32 { return p.X }, func(p *slimPoint, v int32) { p.X = v })
	evolution.Field(b, "z", codec.Int32,
		func(p *slimPoint) int32 { return p.Z }, func(p *slimPoint, v int32) { p.Z = v })
	return b.Codec()
}

func TestFieldRemovedRoundTrip(t *testing.T) {
	c := slimPointCodec()
	got, err := codec.Deserialize(c, mustSerialize(t, c, slimPoint{X: 1, Z: 3}))
	require.NoError(t, err)
	assert.Equal(t, slimPoint{X: 1, Z: 3}, got)
}

func TestFieldRemovedReadsOldDiscardingValue(t *testing.T) {
	old, err := codec.Serialize(pointV2Codec(int32(0)), point{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)

	got, err := codec.Deserialize(slimPointCodec(), old)
	require.NoError(t, err)
	assert.Equal(t, slimPoint{X: 1, Z: 3}, got)
}

func TestRemovedFieldRejectedByOldNonOptionalReader(t *testing.T) {
	newData, err := codec.Serialize(slimPointCodec(), slimPoint{X: 1, Z: 3})
	require.NoError(t, err)

	_, err = codec.Deserialize(pointV2Codec(int32(0)), newData)
	require.Error(t, err)
	var removed *codec.FieldRemovedError
	require.ErrorAs(t, err, &removed)
	assert.Equal(t, "y", removed.Field)
}

type captionedV1 struct {
	Caption string
}

type captionedV2 struct {
	Caption codec.Option[string]
}

func captionedV1Codec() codec.Codec[captionedV1] {
	b := evolution.NewStruct[captionedV1]("captioned")
	evolution.Field(b, "caption", codec.String,
		func(c *captionedV1) string { return c.Caption },
		func(c *captionedV1, v string) { c.Caption = v })
	return b.Codec()
}

func captionedV2Codec() codec.Codec[captionedV2] {
	b := evolution.NewStruct[captionedV2]("captioned",
		evolution.InitialVersion(),
		evolution.FieldMadeOptional("caption"))
	evolution.OptionField(b, "caption", codec.String,
		func(c *captionedV2) codec.Option[string] { return c.Caption },
		func(c *captionedV2, v codec.Option[string]) { c.Caption = v })
	return b.Codec()
}

func TestFieldMadeOptionalReadsOldAsSome(t *testing.T) {
	old, err := codec.Serialize(captionedV1Codec(), captionedV1{Caption: "hi"})
	require.NoError(t, err)

	got, err := codec.Deserialize(captionedV2Codec(), old)
	require.NoError(t, err)
	assert.Equal(t, codec.Some("hi"), got.Caption)
}

func TestFieldMadeOptionalRoundTrip(t *testing.T) {
	c := captionedV2Codec()
	for _, v := range []captionedV2{
		{Caption: codec.Some("x")},
		{Caption: codec.None[string]()},
	} {
		got, err := codec.Deserialize(c, mustSerialize(t, c, v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestOptionalNoneRejectedByNonOptionalReader(t *testing.T) {
	newData, err := codec.Serialize(captionedV2Codec(), captionedV2{Caption: codec.None[string]()})
	require.NoError(t, err)

	_, err = codec.Deserialize(captionedV1Codec(), newData)
	require.Error(t, err)
	var none *codec.NonOptionalFieldAsNoneError
	require.ErrorAs(t, err, &none)
	assert.Equal(t, "caption", none.Field)
}

func TestOptionalSomeReadableByNonOptionalReader(t *testing.T) {
	newData, err := codec.Serialize(captionedV2Codec(), captionedV2{Caption: codec.Some("still here")})
	require.NoError(t, err)

	got, err := codec.Deserialize(captionedV1Codec(), newData)
	require.NoError(t, err)
	assert.Equal(t, "still here", got.Caption)
}

type nicknamed struct {
	Name string
	Nick codec.Option[string]
}

// nicknamedCodec's nick field was added with a plain string default and only
// later made optional, so readers of pre-nick streams must wrap the default
// in Some.
func nicknamedCodec() codec.Codec[nicknamed] {
	b := evolution.NewStruct[nicknamed]("nicknamed",
		evolution.InitialVersion(),
		evolution.FieldAdded("nick", "anon"),
		evolution.FieldMadeOptional("nick"))
	evolution.Field(b, "name", codec.String,
		func(n *nicknamed) string { return n.Name },
		func(n *nicknamed, v string) { n.Name = v })
	evolution.OptionField(b, "nick", codec.String,
		func(n *nicknamed) codec.Option[string] { return n.Nick },
		func(n *nicknamed, v codec.Option[string]) { n.Nick = v })
	return b.Codec()
}

func TestDefaultWrappedWhenMadeOptionalLater(t *testing.T) {
	// A v0 writer that only knows the name field.
	b := evolution.NewStruct[nicknamed]("nicknamed")
	evolution.Field(b, "name", codec.String,
		func(n *nicknamed) string { return n.Name },
		func(n *nicknamed, v string) { n.Name = v })
	old, err := codec.Serialize(b.Codec(), nicknamed{Name: "ada"})
	require.NoError(t, err)

	got, err := codec.Deserialize(nicknamedCodec(), old)
	require.NoError(t, err)
	assert.Equal(t, nicknamed{Name: "ada", Nick: codec.Some("anon")}, got)
}

func TestNicknamedRoundTrip(t *testing.T) {
	c := nicknamedCodec()
	v := nicknamed{Name: "ada", Nick: codec.None[string]()}
	got, err := codec.Deserialize(c, mustSerialize(t, c, v))
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

type cached struct {
	Key   string
	Value string
}

func TestTransientFieldResetToDefault(t *testing.T) {
	b := evolution.NewStruct[cached]("cached")
	evolution.Field(b, "key", codec.String,
		func(c *cached) string { return c.Key }, func(c *cached, v string) { c.Key = v })
	evolution.TransientField(b, "value", "unset",
		func(c *cached, v string) { c.Value = v })
	c := b.Codec()

	data, err := codec.Serialize(c, cached{Key: "k", Value: "populated"})
	require.NoError(t, err)
	got, err := codec.Deserialize(c, data)
	require.NoError(t, err)
	assert.Equal(t, cached{Key: "k", Value: "unset"}, got)
}

func TestTransientDefaultTypeMismatch(t *testing.T) {
	b := evolution.NewStruct[cached]("cached")
	evolution.Field(b, "key", codec.String,
		func(c *cached) string { return c.Key }, func(c *cached, v string) { c.Key = v })
	evolution.TransientField(b, "value", 17,
		func(c *cached, v string) { c.Value = v })
	c := b.Codec()

	data, err := codec.Serialize(c, cached{Key: "k"})
	require.NoError(t, err)
	_, err = codec.Deserialize(c, data)
	var de *codec.DeserializationError
	assert.ErrorAs(t, err, &de)
}

func TestUnknownFieldReferenceInStep(t *testing.T) {
	b := evolution.NewStruct[captionedV1]("captioned",
		evolution.InitialVersion(),
		evolution.FieldMadeOptional("ghost"))
	evolution.Field(b, "caption", codec.String,
		func(c *captionedV1) string { return c.Caption },
		func(c *captionedV1, v string) { c.Caption = v })

	_, err := codec.Serialize(b.Codec(), captionedV1{Caption: "x"})
	require.Error(t, err)
	var unknown *codec.UnknownFieldReferenceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Field)
}

func TestMadeOptionalOfRemovedFieldIsRemoved(t *testing.T) {
	b := evolution.NewStruct[captionedV1]("note",
		evolution.InitialVersion(),
		evolution.FieldMadeOptional("extra"),
		evolution.FieldRemoved("extra"))
	evolution.Field(b, "caption", codec.String,
		func(c *captionedV1) string { return c.Caption },
		func(c *captionedV1, v string) { c.Caption = v })
	c := b.Codec()

	// Serialization succeeds with the removed-position marker in the
	// header, and reading treats extra as removed.
	got, err := codec.Deserialize(c, mustSerialize(t, c, captionedV1{Caption: "x"}))
	require.NoError(t, err)
	assert.Equal(t, "x", got.Caption)
}

func TestUnknownStepHasEmptyChunk(t *testing.T) {
	b := evolution.NewStruct[captionedV1]("captioned",
		evolution.InitialVersion(),
		evolution.Unknown())
	evolution.Field(b, "caption", codec.String,
		func(c *captionedV1) string { return c.Caption },
		func(c *captionedV1, v string) { c.Caption = v })
	c := b.Codec()

	got, err := codec.Deserialize(c, mustSerialize(t, c, captionedV1{Caption: "x"}))
	require.NoError(t, err)
	assert.Equal(t, "x", got.Caption)
}

func TestWrapperHasNoVersionByte(t *testing.T) {
	type meters struct{ mm int64 }
	c := evolution.Wrapper(codec.Int64,
		func(v int64) meters { return meters{mm: v} },
		func(m meters) int64 { return m.mm })

	data, err := codec.Serialize(c, meters{mm: 5})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 5}, data)

	got, err := codec.Deserialize(c, data)
	require.NoError(t, err)
	assert.Equal(t, meters{mm: 5}, got)
}

func TestStringInterningSpansChunks(t *testing.T) {
	type pair struct{ A, B string }
	b := evolution.NewStruct[pair]("pair",
		evolution.InitialVersion(),
		evolution.FieldAdded("b", ""))
	evolution.Field(b, "a", codec.String,
		func(p *pair) string { return p.A }, func(p *pair, v string) { p.A = v })
	evolution.Field(b, "b", codec.String,
		func(p *pair) string { return p.B }, func(p *pair, v string) { p.B = v })
	c := b.Codec()

	// The second occurrence lands in another chunk and is written as a
	// one-byte back-reference through the shared per-stream state.
	data := mustSerialize(t, c, pair{A: "Hello", B: "Hello"})
	distinct := mustSerialize(t, c, pair{A: "Hello", B: "World"})
	assert.Equal(t, len(distinct)-5, len(data))

	got, err := codec.Deserialize(c, data)
	require.NoError(t, err)
	assert.Equal(t, pair{A: "Hello", B: "Hello"}, got)
}

func mustSerialize[T any](t *testing.T, c codec.Codec[T], v T) []byte {
	t.Helper()
	data, err := codec.Serialize(c, v)
	require.NoError(t, err)
	return data
}
