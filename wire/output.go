// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package wire implements the primitive byte-level encoding: fixed-size
// big-endian integers and floats, 1-5 byte variable-length int32s with
// optional zigzag, and deflate-compressed byte blobs. Codecs in the codec and
// evolution packages are built on top of it; wire itself knows nothing about
// schemas.
package wire

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// Output accumulates serialized bytes. The zero value is ready to use.
type Output struct {
	buf []byte
}

// NewOutput returns an empty Output.
func NewOutput() *Output {
	return &Output{}
}

// Bytes returns the accumulated bytes. The slice is valid until the next
// write.
func (o *Output) Bytes() []byte { return o.buf }

// Len returns the number of bytes written so far.
func (o *Output) Len() int { return len(o.buf) }

// WriteInt8 writes a signed byte.
func (o *Output) WriteInt8(v int8) {
	o.buf = append(o.buf, byte(v))
}

// WriteUint8 writes an unsigned byte.
func (o *Output) WriteUint8(v uint8) {
	o.buf = append(o.buf, v)
}

// WriteInt16 writes a big-endian two's complement int16.
func (o *Output) WriteInt16(v int16) {
	o.buf = append(o.buf, byte(uint16(v)>>8), byte(v))
}

// WriteInt32 writes a big-endian two's complement int32.
func (o *Output) WriteInt32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	o.buf = append(o.buf, b[:]...)
}

// WriteInt64 writes a big-endian two's complement int64.
func (o *Output) WriteInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	o.buf = append(o.buf, b[:]...)
}

// WriteFloat32 writes the IEEE 754 bit pattern of v, big-endian.
func (o *Output) WriteFloat32(v float32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(v))
	o.buf = append(o.buf, b[:]...)
}

// WriteFloat64 writes the IEEE 754 bit pattern of v, big-endian.
func (o *Output) WriteFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	o.buf = append(o.buf, b[:]...)
}

// WriteBool writes one byte, 0x01 for true and 0x00 for false.
func (o *Output) WriteBool(v bool) {
	if v {
		o.buf = append(o.buf, 1)
	} else {
		o.buf = append(o.buf, 0)
	}
}

// WriteBytes appends p with no length prefix.
func (o *Output) WriteBytes(p []byte) {
	o.buf = append(o.buf, p...)
}

// WriteVarInt32 writes v in 1-5 bytes as base-128 little-endian groups of 7
// bits, high bit set on every group except the last. When optimizeForPositive
// is false the value is zigzag-transformed first so that small negative
// values stay short.
func (o *Output) WriteVarInt32(v int32, optimizeForPositive bool) {
	u := uint32(v)
	if !optimizeForPositive {
		u = uint32((v << 1) ^ (v >> 31))
	}
	for u >= 0x80 {
		o.buf = append(o.buf, byte(u)|0x80)
		u >>= 7
	}
	o.buf = append(o.buf, byte(u))
}

// WriteCompressed deflates data at the given flate level and writes
// varint(len(data)), varint(len(compressed)), then the compressed bytes.
// Empty input is written as a single varint zero. Both varints use the
// positive optimization.
func (o *Output) WriteCompressed(data []byte, level int) error {
	if len(data) == 0 {
		o.WriteVarInt32(0, true)
		return nil
	}
	var cbuf bytes.Buffer
	fw, err := flate.NewWriter(&cbuf, level)
	if err != nil {
		return errors.Wrap(err, "wire: bad deflate level")
	}
	if _, err := fw.Write(data); err != nil {
		fw.Close() // nolint: errcheck
		return errors.Wrap(err, "wire: deflate")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, "wire: deflate close")
	}
	o.WriteVarInt32(int32(len(data)), true)
	o.WriteVarInt32(int32(cbuf.Len()), true)
	o.WriteBytes(cbuf.Bytes())
	return nil
}
