// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

var errShortRead = errors.New("wire: unexpected end of input")

// Input reads the encodings produced by Output from a byte slice.
type Input struct {
	buf []byte
	off int
}

// NewInput returns an Input positioned at the start of data. The Input
// aliases data; the caller must not mutate it while reading.
func NewInput(data []byte) *Input {
	return &Input{buf: data}
}

// Remaining returns the number of unread bytes.
func (i *Input) Remaining() int { return len(i.buf) - i.off }

// ReadBytes consumes and returns the next n bytes. The returned slice aliases
// the input buffer.
func (i *Input) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Errorf("wire: negative byte count %d", n)
	}
	if i.Remaining() < n {
		return nil, errShortRead
	}
	b := i.buf[i.off : i.off+n]
	i.off += n
	return b, nil
}

// ReadUint8 reads one unsigned byte.
func (i *Input) ReadUint8() (uint8, error) {
	if i.Remaining() < 1 {
		return 0, errShortRead
	}
	b := i.buf[i.off]
	i.off++
	return b, nil
}

// ReadInt8 reads one signed byte.
func (i *Input) ReadInt8() (int8, error) {
	b, err := i.ReadUint8()
	return int8(b), err
}

// ReadInt16 reads a big-endian int16.
func (i *Input) ReadInt16() (int16, error) {
	b, err := i.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// ReadInt32 reads a big-endian int32.
func (i *Input) ReadInt32() (int32, error) {
	b, err := i.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadInt64 reads a big-endian int64.
func (i *Input) ReadInt64() (int64, error) {
	b, err := i.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ReadFloat32 reads a big-endian IEEE 754 float32 bit pattern.
func (i *Input) ReadFloat32() (float32, error) {
	b, err := i.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// ReadFloat64 reads a big-endian IEEE 754 float64 bit pattern.
func (i *Input) ReadFloat64() (float64, error) {
	b, err := i.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadBool reads one byte and rejects anything other than 0 or 1.
func (i *Input) ReadBool() (bool, error) {
	b, err := i.ReadUint8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errors.Errorf("wire: invalid bool byte %#02x", b)
}

// ReadVarInt32 reads a 1-5 byte varint, undoing the zigzag transform when
// optimizeForPositive is false.
func (i *Input) ReadVarInt32(optimizeForPositive bool) (int32, error) {
	var u uint32
	shift := uint(0)
	for {
		if shift > 28 {
			return 0, errors.New("wire: varint longer than 5 bytes")
		}
		b, err := i.ReadUint8()
		if err != nil {
			return 0, err
		}
		u |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	if optimizeForPositive {
		return int32(u), nil
	}
	return int32(u>>1) ^ -int32(u&1), nil
}

// ReadCompressed reads a blob written by WriteCompressed and inflates it. The
// inflated size must match the stored uncompressed length.
func (i *Input) ReadCompressed() ([]byte, error) {
	n, err := i.ReadVarInt32(true)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	if n < 0 {
		return nil, errors.Errorf("wire: negative uncompressed length %d", n)
	}
	cn, err := i.ReadVarInt32(true)
	if err != nil {
		return nil, err
	}
	if cn <= 0 {
		return nil, errors.Errorf("wire: invalid compressed length %d", cn)
	}
	cb, err := i.ReadBytes(int(cn))
	if err != nil {
		return nil, err
	}
	fr := flate.NewReader(bytes.NewReader(cb))
	defer fr.Close() // nolint: errcheck
	data, err := io.ReadAll(fr)
	if err != nil {
		return nil, errors.Wrap(err, "wire: inflate")
	}
	if len(data) != int(n) {
		return nil, errors.Errorf("wire: decompressed %d bytes, stream declared %d", len(data), n)
	}
	return data, nil
}
