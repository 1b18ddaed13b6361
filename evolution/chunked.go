// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package evolution

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/grailbio/evo/codec"
	"github.com/grailbio/evo/wire"
)

// Record layout on the wire:
//
//	version : i8
//	if version == 0:
//	    fields in declaration order        (simple mode, no header)
//	else:
//	    header  : one step per generation
//	    chunk_0 ... chunk_v : field bytes per generation
//
// Header step encoding, one zigzag varint code per slot:
//
//	n > 0   field added to new chunk, n is the chunk's byte size
//	n == 0  unknown step, empty chunk
//	n == -1 field made optional, followed by one position byte
//	n == -2 field removed, followed by the field name string
//
// Chunk bodies are written in ascending generation order regardless of field
// declaration order; within a chunk, fields keep declaration order. Old and
// new schemas can share data because a reader slices the chunks it knows and
// skips the rest by size.

// chunkedOutput buffers the fields of one record into per-generation chunks
// and assembles the final byte layout. It lives for a single record write.
type chunkedOutput struct {
	base *codec.WriteContext
	hist *history

	simple bool
	chunks []*wire.Output
	ctxs   []*codec.WriteContext

	lastIndex    map[int8]int8
	fieldIndices map[string]fieldPosition
}

func newChunkedOutput(ctx *codec.WriteContext, hist *history) *chunkedOutput {
	c := &chunkedOutput{
		base:         ctx,
		hist:         hist,
		lastIndex:    make(map[int8]int8),
		fieldIndices: make(map[string]fieldPosition),
	}
	if hist.version == 0 {
		// Simple mode: one version byte of overhead, fields stream
		// straight to the primary output.
		c.simple = true
		ctx.Out.WriteInt8(0)
		return c
	}
	n := int(hist.version) + 1
	c.chunks = make([]*wire.Output, n)
	c.ctxs = make([]*codec.WriteContext, n)
	for i := range c.chunks {
		c.chunks[i] = wire.NewOutput()
		c.ctxs[i] = ctx.WithOutput(c.chunks[i])
	}
	return c
}

// contextFor returns the write context for one generation's chunk.
func (c *chunkedOutput) contextFor(gen int8) *codec.WriteContext {
	if c.simple {
		return c.base
	}
	return c.ctxs[gen]
}

// allocPosition assigns the next position in the generation's chunk and
// records it under the field name for header emission.
func (c *chunkedOutput) allocPosition(name string, gen int8) fieldPosition {
	pos := fieldPosition{chunk: gen, pos: c.lastIndex[gen]}
	c.lastIndex[gen]++
	c.fieldIndices[name] = pos
	return pos
}

// finish emits version, header and chunk bodies. The header is computed
// after the field pass because FieldMadeOptional slots need the field
// positions, but it precedes the chunks on the wire.
func (c *chunkedOutput) finish() error {
	if c.simple {
		return nil
	}
	out := c.base.Out
	out.WriteInt8(c.hist.version)
	for i, step := range c.hist.steps {
		switch step.kind {
		case stepInitial, stepFieldAdded:
			out.WriteVarInt32(int32(c.chunks[i].Len()), false)
		case stepFieldMadeOptional:
			pos, ok := c.fieldIndices[step.field]
			if !ok {
				if _, removed := c.hist.removed[step.field]; removed {
					pos = removedPosition
				} else {
					return &codec.UnknownFieldReferenceError{Field: step.field}
				}
			}
			out.WriteVarInt32(-1, false)
			out.WriteInt8(pos.toByte())
		case stepFieldRemoved:
			out.WriteVarInt32(-2, false)
			writeHeaderString(out, step.field)
		default:
			out.WriteVarInt32(0, false)
		}
	}
	for _, chunk := range c.chunks {
		out.WriteBytes(chunk.Bytes())
	}
	return nil
}

// chunkedInput parses the record header and exposes a read context per
// stored chunk. It lives for a single record read.
type chunkedInput struct {
	base          *codec.ReadContext
	storedVersion int8

	simple bool
	ctxs   []*codec.ReadContext

	// madeOptionalAt records, per field position, the header slot that
	// declared the position optional in the writer's schema.
	madeOptionalAt map[fieldPosition]int8
	removedFields  map[string]struct{}

	lastIndex map[int8]int8
}

func newChunkedInput(ctx *codec.ReadContext) (*chunkedInput, error) {
	version, err := ctx.In.ReadInt8()
	if err != nil {
		return nil, err
	}
	if version < 0 {
		return nil, &codec.DeserializationError{Msg: fmt.Sprintf("negative record version %d", version)}
	}
	c := &chunkedInput{
		base:           ctx,
		storedVersion:  version,
		madeOptionalAt: make(map[fieldPosition]int8),
		removedFields:  make(map[string]struct{}),
		lastIndex:      make(map[int8]int8),
	}
	if version == 0 {
		c.simple = true
		return c, nil
	}
	n := int(version) + 1
	sizes := make([]int32, n)
	for i := 0; i < n; i++ {
		code, err := ctx.In.ReadVarInt32(false)
		if err != nil {
			return nil, err
		}
		switch {
		case code > 0:
			sizes[i] = code
		case code == 0:
			// Unknown step, empty chunk.
		case code == -1:
			b, err := ctx.In.ReadInt8()
			if err != nil {
				return nil, err
			}
			// A made-optional slot pointing at a removed field
			// carries the removed marker; it can never match a
			// live position, so it is dropped here and the
			// corresponding FieldRemoved slot governs the read.
			if pos := positionFromByte(b); pos != removedPosition {
				c.madeOptionalAt[pos] = int8(i)
			}
		case code == -2:
			name, err := readHeaderString(ctx.In)
			if err != nil {
				return nil, err
			}
			c.removedFields[name] = struct{}{}
		default:
			return nil, &codec.UnknownEvolutionStepError{Code: code}
		}
	}
	c.ctxs = make([]*codec.ReadContext, n)
	for i := 0; i < n; i++ {
		var body []byte
		if sizes[i] > 0 {
			if body, err = ctx.In.ReadBytes(int(sizes[i])); err != nil {
				return nil, err
			}
		}
		c.ctxs[i] = ctx.WithInput(wire.NewInput(body))
	}
	return c, nil
}

// contextFor returns the read context for one generation's chunk.
func (c *chunkedInput) contextFor(gen int8) (*codec.ReadContext, error) {
	if c.simple {
		if gen != 0 {
			return nil, &codec.NonExistingChunkError{Chunk: int(gen)}
		}
		return c.base, nil
	}
	if int(gen) >= len(c.ctxs) {
		return nil, &codec.NonExistingChunkError{Chunk: int(gen)}
	}
	return c.ctxs[gen], nil
}

// allocPosition mirrors the writer's position accounting.
func (c *chunkedInput) allocPosition(gen int8) fieldPosition {
	pos := fieldPosition{chunk: gen, pos: c.lastIndex[gen]}
	c.lastIndex[gen]++
	return pos
}

// Header field names bypass the interning string codec. String ids are
// assigned in codec call order, which for buffered chunks differs from byte
// order on the wire; the header is written last but read first, so an
// interned name written there could dangle on the read side.
func writeHeaderString(out *wire.Output, s string) {
	out.WriteVarInt32(int32(len(s)), false)
	out.WriteBytes([]byte(s))
}

func readHeaderString(in *wire.Input) (string, error) {
	n, err := in.ReadVarInt32(false)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", errors.Errorf("evolution: interned header string %d", n)
	}
	b, err := in.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
