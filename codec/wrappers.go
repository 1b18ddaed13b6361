// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package codec

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/pkg/errors"
)

// Option holds an optional value. The zero value is None.
type Option[T any] struct {
	Defined bool
	Value   T
}

// Some returns a defined Option holding v.
func Some[T any](v T) Option[T] {
	return Option[T]{Defined: true, Value: v}
}

// None returns the empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// Get returns the held value and whether it is defined.
func (o Option[T]) Get() (T, bool) {
	return o.Value, o.Defined
}

// OptionCodec writes a bool followed by the value when defined.
func OptionCodec[T any](elem Codec[T]) Codec[Option[T]] {
	return optionCodec[T]{elem: elem}
}

type optionCodec[T any] struct {
	elem Codec[T]
}

func (c optionCodec[T]) Serialize(ctx *WriteContext, v Option[T]) error {
	ctx.Out.WriteBool(v.Defined)
	if !v.Defined {
		return nil
	}
	return c.elem.Serialize(ctx, v.Value)
}

func (c optionCodec[T]) Deserialize(ctx *ReadContext) (Option[T], error) {
	defined, err := ctx.In.ReadBool()
	if err != nil {
		return None[T](), err
	}
	if !defined {
		return None[T](), nil
	}
	v, err := c.elem.Deserialize(ctx)
	if err != nil {
		return None[T](), err
	}
	return Some(v), nil
}

// Either holds a left or a right value.
type Either[L, R any] struct {
	IsRight bool
	Left    L
	Right   R
}

// LeftOf returns a left Either.
func LeftOf[L, R any](v L) Either[L, R] {
	return Either[L, R]{Left: v}
}

// RightOf returns a right Either.
func RightOf[L, R any](v R) Either[L, R] {
	return Either[L, R]{IsRight: true, Right: v}
}

// EitherCodec writes a tag byte, 0 for left and 1 for right, then the
// payload.
func EitherCodec[L, R any](left Codec[L], right Codec[R]) Codec[Either[L, R]] {
	return eitherCodec[L, R]{left: left, right: right}
}

type eitherCodec[L, R any] struct {
	left  Codec[L]
	right Codec[R]
}

func (c eitherCodec[L, R]) Serialize(ctx *WriteContext, v Either[L, R]) error {
	if v.IsRight {
		ctx.Out.WriteUint8(1)
		return c.right.Serialize(ctx, v.Right)
	}
	ctx.Out.WriteUint8(0)
	return c.left.Serialize(ctx, v.Left)
}

func (c eitherCodec[L, R]) Deserialize(ctx *ReadContext) (Either[L, R], error) {
	var v Either[L, R]
	tag, err := ctx.In.ReadUint8()
	if err != nil {
		return v, err
	}
	switch tag {
	case 0:
		v.Left, err = c.left.Deserialize(ctx)
	case 1:
		v.IsRight = true
		v.Right, err = c.right.Deserialize(ctx)
	default:
		err = errors.Errorf("codec: invalid Either tag %#02x", tag)
	}
	return v, err
}

// Validated holds either an invalid value of type E or a valid value of type
// A. Its wire shape is the same as Either's: tag 0 is invalid, tag 1 valid.
type Validated[E, A any] struct {
	IsValid bool
	Invalid E
	Valid   A
}

// ValidOf returns a valid Validated.
func ValidOf[E, A any](v A) Validated[E, A] {
	return Validated[E, A]{IsValid: true, Valid: v}
}

// InvalidOf returns an invalid Validated.
func InvalidOf[E, A any](e E) Validated[E, A] {
	return Validated[E, A]{Invalid: e}
}

// ValidatedCodec writes a tag byte, 0 for invalid and 1 for valid, then the
// payload.
func ValidatedCodec[E, A any](invalid Codec[E], valid Codec[A]) Codec[Validated[E, A]] {
	return validatedCodec[E, A]{invalid: invalid, valid: valid}
}

type validatedCodec[E, A any] struct {
	invalid Codec[E]
	valid   Codec[A]
}

func (c validatedCodec[E, A]) Serialize(ctx *WriteContext, v Validated[E, A]) error {
	if v.IsValid {
		ctx.Out.WriteUint8(1)
		return c.valid.Serialize(ctx, v.Valid)
	}
	ctx.Out.WriteUint8(0)
	return c.invalid.Serialize(ctx, v.Invalid)
}

func (c validatedCodec[E, A]) Deserialize(ctx *ReadContext) (Validated[E, A], error) {
	var v Validated[E, A]
	tag, err := ctx.In.ReadUint8()
	if err != nil {
		return v, err
	}
	switch tag {
	case 0:
		v.Invalid, err = c.invalid.Deserialize(ctx)
	case 1:
		v.IsValid = true
		v.Valid, err = c.valid.Deserialize(ctx)
	default:
		err = errors.Errorf("codec: invalid Validated tag %#02x", tag)
	}
	return v, err
}

// StackFrame is one captured call frame of a persisted failure.
type StackFrame struct {
	Class  string
	Method string
	File   string
	Line   int32
}

// PersistedError is the fixed record shape a failed Try is stored as: the
// failure's type name, message, captured stack and optional cause chain.
// Decoding always yields a PersistedError; the original error type is never
// reconstructed.
type PersistedError struct {
	TypeName string
	Message  string
	Stack    []StackFrame
	Cause    *PersistedError
}

func (e *PersistedError) Error() string {
	return fmt.Sprintf("%s: %s", e.TypeName, e.Message)
}

// Unwrap exposes the cause chain to errors.Is/As.
func (e *PersistedError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// CaptureError converts a live error into its persisted form, recording the
// dynamic type name, the message, the caller's stack and the wrapped cause
// chain.
func CaptureError(err error) *PersistedError {
	if err == nil {
		return nil
	}
	pe := &PersistedError{
		TypeName: fmt.Sprintf("%T", err),
		Message:  err.Error(),
		Stack:    captureStack(2),
	}
	type causer interface {
		Unwrap() error
	}
	if c, ok := err.(causer); ok {
		if cause := c.Unwrap(); cause != nil {
			inner := CaptureError(cause)
			inner.Stack = nil
			pe.Cause = inner
		}
	}
	return pe
}

func captureStack(skip int) []StackFrame {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	var out []StackFrame
	for {
		f, more := frames.Next()
		out = append(out, StackFrame{
			Class:  "",
			Method: f.Function,
			File:   f.File,
			Line:   int32(f.Line),
		})
		if !more {
			break
		}
	}
	return out
}

// Try holds either a success value or a persisted failure.
type Try[T any] struct {
	Err   *PersistedError
	Value T
}

// Success returns a successful Try.
func Success[T any](v T) Try[T] {
	return Try[T]{Value: v}
}

// Failure returns a failed Try.
func Failure[T any](err *PersistedError) Try[T] {
	return Try[T]{Err: err}
}

// TryCodec writes a tag byte, 0 for failure and 1 for success. Failures are
// stored as PersistedError records.
func TryCodec[T any](elem Codec[T]) Codec[Try[T]] {
	return tryCodec[T]{elem: elem}
}

type tryCodec[T any] struct {
	elem Codec[T]
}

func (c tryCodec[T]) Serialize(ctx *WriteContext, v Try[T]) error {
	if v.Err == nil {
		ctx.Out.WriteUint8(1)
		return c.elem.Serialize(ctx, v.Value)
	}
	ctx.Out.WriteUint8(0)
	return writePersistedError(ctx, v.Err)
}

func (c tryCodec[T]) Deserialize(ctx *ReadContext) (Try[T], error) {
	var v Try[T]
	tag, err := ctx.In.ReadUint8()
	if err != nil {
		return v, err
	}
	switch tag {
	case 0:
		v.Err, err = readPersistedError(ctx)
	case 1:
		v.Value, err = c.elem.Deserialize(ctx)
	default:
		err = errors.Errorf("codec: invalid Try tag %#02x", tag)
	}
	return v, err
}

func writePersistedError(ctx *WriteContext, e *PersistedError) error {
	if err := String.Serialize(ctx, e.TypeName); err != nil {
		return err
	}
	if err := String.Serialize(ctx, e.Message); err != nil {
		return err
	}
	ctx.Out.WriteVarInt32(int32(len(e.Stack)), true)
	for _, f := range e.Stack {
		if err := String.Serialize(ctx, f.Class); err != nil {
			return err
		}
		if err := String.Serialize(ctx, f.Method); err != nil {
			return err
		}
		if err := String.Serialize(ctx, f.File); err != nil {
			return err
		}
		ctx.Out.WriteInt32(f.Line)
	}
	ctx.Out.WriteBool(e.Cause != nil)
	if e.Cause != nil {
		return writePersistedError(ctx, e.Cause)
	}
	return nil
}

func readPersistedError(ctx *ReadContext) (*PersistedError, error) {
	e := &PersistedError{}
	var err error
	if e.TypeName, err = String.Deserialize(ctx); err != nil {
		return nil, err
	}
	if e.Message, err = String.Deserialize(ctx); err != nil {
		return nil, err
	}
	n, err := ctx.In.ReadVarInt32(true)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("codec: negative stack frame count %d", n)
	}
	if n > 0 {
		e.Stack = make([]StackFrame, n)
		for i := range e.Stack {
			f := &e.Stack[i]
			if f.Class, err = String.Deserialize(ctx); err != nil {
				return nil, err
			}
			if f.Method, err = String.Deserialize(ctx); err != nil {
				return nil, err
			}
			if f.File, err = String.Deserialize(ctx); err != nil {
				return nil, err
			}
			if f.Line, err = ctx.In.ReadInt32(); err != nil {
				return nil, err
			}
		}
	}
	hasCause, err := ctx.In.ReadBool()
	if err != nil {
		return nil, err
	}
	if hasCause {
		if e.Cause, err = readPersistedError(ctx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// TypeNameOf returns the printable dynamic type name used in failure
// records and constructor errors.
func TypeNameOf(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	return t.String()
}
