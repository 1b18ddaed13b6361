// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec

import (
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// Codecs for the fixed-size primitives. All multi-byte encodings are
// big-endian; see the wire package.
var (
	Int8    Codec[int8]     = int8Codec{}
	Int16   Codec[int16]    = int16Codec{}
	Int32   Codec[int32]    = int32Codec{}
	Int64   Codec[int64]    = int64Codec{}
	Float32 Codec[float32]  = float32Codec{}
	Float64 Codec[float64]  = float64Codec{}
	Bool    Codec[bool]     = boolCodec{}
	Unit    Codec[struct{}] = unitCodec{}
	String  Codec[string]   = stringCodec{}
	Bytes   Codec[[]byte]   = bytesCodec{}
	UUID    Codec[uuid.UUID] = uuidCodec{}
)

type int8Codec struct{}

func (int8Codec) Serialize(ctx *WriteContext, v int8) error { ctx.Out.WriteInt8(v); return nil }
func (int8Codec) Deserialize(ctx *ReadContext) (int8, error) { return ctx.In.ReadInt8() }

type int16Codec struct{}

func (int16Codec) Serialize(ctx *WriteContext, v int16) error { ctx.Out.WriteInt16(v); return nil }
func (int16Codec) Deserialize(ctx *ReadContext) (int16, error) { return ctx.In.ReadInt16() }

type int32Codec struct{}

func (int32Codec) Serialize(ctx *WriteContext, v int32) error { ctx.Out.WriteInt32(v); return nil }
func (int32Codec) Deserialize(ctx *ReadContext) (int32, error) { return ctx.In.ReadInt32() }

type int64Codec struct{}

func (int64Codec) Serialize(ctx *WriteContext, v int64) error { ctx.Out.WriteInt64(v); return nil }
func (int64Codec) Deserialize(ctx *ReadContext) (int64, error) { return ctx.In.ReadInt64() }

type float32Codec struct{}

func (float32Codec) Serialize(ctx *WriteContext, v float32) error {
	ctx.Out.WriteFloat32(v)
	return nil
}
func (float32Codec) Deserialize(ctx *ReadContext) (float32, error) { return ctx.In.ReadFloat32() }

type float64Codec struct{}

func (float64Codec) Serialize(ctx *WriteContext, v float64) error {
	ctx.Out.WriteFloat64(v)
	return nil
}
func (float64Codec) Deserialize(ctx *ReadContext) (float64, error) { return ctx.In.ReadFloat64() }

type boolCodec struct{}

func (boolCodec) Serialize(ctx *WriteContext, v bool) error { ctx.Out.WriteBool(v); return nil }
func (boolCodec) Deserialize(ctx *ReadContext) (bool, error) { return ctx.In.ReadBool() }

type unitCodec struct{}

func (unitCodec) Serialize(ctx *WriteContext, v struct{}) error { return nil }
func (unitCodec) Deserialize(ctx *ReadContext) (struct{}, error) { return struct{}{}, nil }

// VarInt32 encodes int32 values in the 1-5 byte zigzag varint form instead of
// four fixed bytes.
var VarInt32 Codec[int32] = varInt32Codec{}

type varInt32Codec struct{}

func (varInt32Codec) Serialize(ctx *WriteContext, v int32) error {
	ctx.Out.WriteVarInt32(v, false)
	return nil
}

func (varInt32Codec) Deserialize(ctx *ReadContext) (int32, error) {
	return ctx.In.ReadVarInt32(false)
}

// stringCodec writes strings with per-stream interning: the first occurrence
// of a value writes a positive varint byte length followed by the UTF-8
// bytes and assigns the next string id; later occurrences write the negative
// id as the length field. Length zero is the empty string and assigns no id.
type stringCodec struct{}

func (stringCodec) Serialize(ctx *WriteContext, v string) error {
	if v == "" {
		ctx.Out.WriteVarInt32(0, false)
		return nil
	}
	if id, ok := ctx.State.StringID(v); ok {
		ctx.Out.WriteVarInt32(-id, false)
		return nil
	}
	ctx.State.AddString(v)
	ctx.Out.WriteVarInt32(int32(len(v)), false)
	ctx.Out.WriteBytes(gunsafe.StringToBytes(v))
	return nil
}

func (stringCodec) Deserialize(ctx *ReadContext) (string, error) {
	n, err := ctx.In.ReadVarInt32(false)
	if err != nil {
		return "", err
	}
	switch {
	case n == 0:
		return "", nil
	case n > 0:
		b, err := ctx.In.ReadBytes(int(n))
		if err != nil {
			return "", err
		}
		v := string(b)
		ctx.State.AddString(v)
		return v, nil
	default:
		v, ok := ctx.State.StringByID(-n)
		if !ok {
			return "", errors.Errorf("codec: unresolved string back-reference %d", -n)
		}
		return v, nil
	}
}

// bytesCodec writes a positive varint length followed by the raw bytes.
// Byte slices are not interned.
type bytesCodec struct{}

func (bytesCodec) Serialize(ctx *WriteContext, v []byte) error {
	ctx.Out.WriteVarInt32(int32(len(v)), true)
	ctx.Out.WriteBytes(v)
	return nil
}

func (bytesCodec) Deserialize(ctx *ReadContext) ([]byte, error) {
	n, err := ctx.In.ReadVarInt32(true)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("codec: negative byte slice length %d", n)
	}
	b, err := ctx.In.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// CompressedBytes deflates the payload; see wire.Output.WriteCompressed for
// the frame layout.
func CompressedBytes(level int) Codec[[]byte] {
	return compressedBytesCodec{level: level}
}

type compressedBytesCodec struct {
	level int
}

func (c compressedBytesCodec) Serialize(ctx *WriteContext, v []byte) error {
	return ctx.Out.WriteCompressed(v, c.level)
}

func (c compressedBytesCodec) Deserialize(ctx *ReadContext) ([]byte, error) {
	return ctx.In.ReadCompressed()
}

// uuidCodec writes the 16 bytes of the UUID as-is, which matches the
// two-big-endian-longs layout.
type uuidCodec struct{}

func (uuidCodec) Serialize(ctx *WriteContext, v uuid.UUID) error {
	ctx.Out.WriteBytes(v.Bytes())
	return nil
}

func (uuidCodec) Deserialize(ctx *ReadContext) (uuid.UUID, error) {
	b, err := ctx.In.ReadBytes(16)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(b)
}
