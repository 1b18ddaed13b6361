// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec

import "fmt"

// Error is implemented by every failure kind this library produces. The
// taxonomy is closed; callers distinguish kinds with errors.As.
type Error interface {
	error
	evoError()
}

// SerializationError reports an I/O or compression failure during a write.
type SerializationError struct {
	Msg   string
	Cause error
}

func (e *SerializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("serialization failed: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("serialization failed: %s", e.Msg)
}
func (e *SerializationError) Unwrap() error { return e.Cause }
func (e *SerializationError) evoError()     {}

// DeserializationError reports an I/O, decompression or malformed-primitive
// failure during a read.
type DeserializationError struct {
	Msg   string
	Cause error
}

func (e *DeserializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("deserialization failed: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("deserialization failed: %s", e.Msg)
}
func (e *DeserializationError) Unwrap() error { return e.Cause }
func (e *DeserializationError) evoError()     {}

// FieldRemovedError reports a stream carrying a non-optional field that the
// current schema removed.
type FieldRemovedError struct {
	Field string
}

func (e *FieldRemovedError) Error() string {
	return fmt.Sprintf("field %s was removed in the serialized version", e.Field)
}
func (e *FieldRemovedError) evoError() {}

// FieldWithoutDefaultError reports a field the reader expects that is neither
// present in the stream nor covered by a declared default.
type FieldWithoutDefaultError struct {
	Field string
}

func (e *FieldWithoutDefaultError) Error() string {
	return fmt.Sprintf("field %s is missing and has no default value", e.Field)
}
func (e *FieldWithoutDefaultError) evoError() {}

// NonOptionalFieldAsNoneError reports a stream that stored None for a field
// whose static type on the read side is not optional.
type NonOptionalFieldAsNoneError struct {
	Field string
}

func (e *NonOptionalFieldAsNoneError) Error() string {
	return fmt.Sprintf("non-optional field %s was serialized as None", e.Field)
}
func (e *NonOptionalFieldAsNoneError) evoError() {}

// InvalidConstructorNameError reports an attempt to encode a value that
// matches no registered constructor.
type InvalidConstructorNameError struct {
	Constructor string
	Type        string
}

func (e *InvalidConstructorNameError) Error() string {
	return fmt.Sprintf("invalid constructor %s for type %s", e.Constructor, e.Type)
}
func (e *InvalidConstructorNameError) evoError() {}

// InvalidConstructorIDError reports a constructor id read from the stream
// that the reader's codec does not know.
type InvalidConstructorIDError struct {
	ID   int32
	Type string
}

func (e *InvalidConstructorIDError) Error() string {
	return fmt.Sprintf("invalid constructor id %d for type %s", e.ID, e.Type)
}
func (e *InvalidConstructorIDError) evoError() {}

// UnknownFieldReferenceError reports an evolution step naming a field that is
// neither indexed nor removed.
type UnknownFieldReferenceError struct {
	Field string
}

func (e *UnknownFieldReferenceError) Error() string {
	return fmt.Sprintf("evolution step references unknown field %s", e.Field)
}
func (e *UnknownFieldReferenceError) evoError() {}

// UnknownEvolutionStepError reports a header step code outside the known set.
type UnknownEvolutionStepError struct {
	Code int32
}

func (e *UnknownEvolutionStepError) Error() string {
	return fmt.Sprintf("unknown serialized evolution step code %d", e.Code)
}
func (e *UnknownEvolutionStepError) evoError() {}

// NonExistingChunkError reports a read from a chunk id beyond the stored
// version.
type NonExistingChunkError struct {
	Chunk int
}

func (e *NonExistingChunkError) Error() string {
	return fmt.Sprintf("deserializing non-existing chunk %d", e.Chunk)
}
func (e *NonExistingChunkError) evoError() {}
