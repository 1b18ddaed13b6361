// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package codec defines the typed codec interface, the per-stream
// serializer state (string interning and object reference maps), the type
// registry for polymorphic references, and codecs for primitive and standard
// composite values. Schema-evolving record and choice codecs live in the
// evolution package.
package codec

import (
	stderrors "errors"

	"github.com/grailbio/evo/wire"
)

// Codec pairs a serializer and a deserializer for values of type T.
type Codec[T any] interface {
	Serialize(ctx *WriteContext, value T) error
	Deserialize(ctx *ReadContext) (T, error)
}

// WriteContext threads the byte sink and the per-stream state through a
// serialization call. A context is created per top-level call and must not be
// shared across goroutines; distinct concurrent serializations are
// independent.
type WriteContext struct {
	Out      *wire.Output
	State    *State
	Registry *Registry
}

// NewWriteContext returns a context writing to out. reg may be nil when no
// polymorphic references are serialized.
func NewWriteContext(out *wire.Output, reg *Registry) *WriteContext {
	return &WriteContext{Out: out, State: NewState(), Registry: reg}
}

// WithOutput returns a context writing to out but sharing this context's
// state and registry. Chunked record codecs use it to redirect field writes
// into per-chunk buffers.
func (c *WriteContext) WithOutput(out *wire.Output) *WriteContext {
	return &WriteContext{Out: out, State: c.State, Registry: c.Registry}
}

// ReadContext mirrors WriteContext for deserialization.
type ReadContext struct {
	In       *wire.Input
	State    *State
	Registry *Registry
}

// NewReadContext returns a context reading from in.
func NewReadContext(in *wire.Input, reg *Registry) *ReadContext {
	return &ReadContext{In: in, State: NewState(), Registry: reg}
}

// WithInput returns a context reading from in but sharing this context's
// state and registry.
func (c *ReadContext) WithInput(in *wire.Input) *ReadContext {
	return &ReadContext{In: in, State: c.State, Registry: c.Registry}
}

// StoreReadRef registers a partially constructed value under the next
// reference id. Codecs for types that can participate in cyclic graphs call
// this before deserializing fields that might refer back to the value.
func (c *ReadContext) StoreReadRef(v any) int32 {
	return c.State.AddRef(v)
}

// Serialize encodes v with c and returns the wire bytes. Errors outside the
// closed taxonomy are wrapped in SerializationError.
func Serialize[T any](c Codec[T], v T) ([]byte, error) {
	return SerializeWith(c, v, nil)
}

// SerializeWith is Serialize with an explicit type registry for polymorphic
// references.
func SerializeWith[T any](c Codec[T], v T, reg *Registry) ([]byte, error) {
	out := wire.NewOutput()
	if err := c.Serialize(NewWriteContext(out, reg), v); err != nil {
		return nil, asWriteError(err)
	}
	return out.Bytes(), nil
}

// Deserialize decodes a value of type T from data. Errors outside the closed
// taxonomy are wrapped in DeserializationError.
func Deserialize[T any](c Codec[T], data []byte) (T, error) {
	return DeserializeWith(c, data, nil)
}

// DeserializeWith is Deserialize with an explicit type registry.
func DeserializeWith[T any](c Codec[T], data []byte, reg *Registry) (T, error) {
	v, err := c.Deserialize(NewReadContext(wire.NewInput(data), reg))
	if err != nil {
		var zero T
		return zero, asReadError(err)
	}
	return v, nil
}

func asWriteError(err error) error {
	var ee Error
	if stderrors.As(err, &ee) {
		return err
	}
	return &SerializationError{Msg: "write failed", Cause: err}
}

func asReadError(err error) error {
	var ee Error
	if stderrors.As(err, &ee) {
		return err
	}
	return &DeserializationError{Msg: "read failed", Cause: err}
}
