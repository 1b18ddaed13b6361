// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec_test

import (
	"math"
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/evo/codec"
)

func roundTrip[T any](t *testing.T, c codec.Codec[T], v T) T {
	t.Helper()
	data, err := codec.Serialize(c, v)
	require.NoError(t, err)
	got, err := codec.Deserialize(c, data)
	require.NoError(t, err)
	return got
}

func TestIntSerializedBytes(t *testing.T) {
	data, err := codec.Serialize(codec.Int32, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x64}, data)
}

func TestBoolAndUnitSerializedBytes(t *testing.T) {
	data, err := codec.Serialize(codec.Bool, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, data)

	data, err = codec.Serialize(codec.Unit, struct{}{})
	require.NoError(t, err)
	assert.Len(t, data, 0)
}

func TestStringSerializedBytes(t *testing.T) {
	data, err := codec.Serialize(codec.String, "Hello")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x48, 0x65, 0x6c, 0x6c, 0x6f}, data)
}

func TestPrimitiveRoundTrips(t *testing.T) {
	assert.Equal(t, int8(-5), roundTrip(t, codec.Int8, -5))
	assert.Equal(t, int16(1234), roundTrip(t, codec.Int16, 1234))
	assert.Equal(t, int32(-100000), roundTrip(t, codec.Int32, -100000))
	assert.Equal(t, int64(math.MaxInt64), roundTrip(t, codec.Int64, math.MaxInt64))
	assert.Equal(t, float32(1.25), roundTrip(t, codec.Float32, 1.25))
	assert.Equal(t, 2.5, roundTrip(t, codec.Float64, 2.5))
	assert.Equal(t, true, roundTrip(t, codec.Bool, true))
	assert.Equal(t, false, roundTrip(t, codec.Bool, false))
	assert.Equal(t, int32(-123456), roundTrip(t, codec.VarInt32, -123456))
}

func TestFloatNaNPreserved(t *testing.T) {
	nan := math.Float32frombits(0x7fc00123)
	got := roundTrip(t, codec.Float32, nan)
	assert.Equal(t, uint32(0x7fc00123), math.Float32bits(got))

	nan64 := math.Float64frombits(0x7ff8000000000042)
	got64 := roundTrip(t, codec.Float64, nan64)
	assert.Equal(t, uint64(0x7ff8000000000042), math.Float64bits(got64))
}

func TestStringRoundTrips(t *testing.T) {
	for _, s := range []string{"", "Hello", "héllo wörld", "日本語", "\x00binary\xff"} {
		assert.Equal(t, s, roundTrip(t, codec.String, s))
	}
}

func TestBytesRoundTrip(t *testing.T) {
	v := []byte{0, 1, 2, 255}
	assert.Equal(t, v, roundTrip(t, codec.Bytes, v))
	assert.Equal(t, []byte{}, roundTrip(t, codec.Bytes, nil))
}

func TestCompressedBytesRoundTrip(t *testing.T) {
	c := codec.CompressedBytes(6)
	v := make([]byte, 4096)
	for i := range v {
		v[i] = byte(i % 11)
	}
	assert.Equal(t, v, roundTrip(t, c, v))
	assert.Equal(t, []byte{}, roundTrip(t, c, nil))
}

func TestUUIDRoundTrip(t *testing.T) {
	u := uuid.NewV4()
	got := roundTrip(t, codec.UUID, u)
	assert.Equal(t, u, got)

	data, err := codec.Serialize(codec.UUID, u)
	require.NoError(t, err)
	assert.Len(t, data, 16)
}
