// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package evolution

import (
	"fmt"

	"v.io/x/lib/vlog"

	"github.com/grailbio/evo/codec"
)

// StructBuilder assembles a record codec. Fields are declared in order with
// Field, OptionField and TransientField, then Codec() produces the codec.
//
//	b := evolution.NewStruct[Point]("Point",
//	        evolution.InitialVersion(),
//	        evolution.FieldAdded("z", int32(0)))
//	evolution.Field(b, "x", codec.Int32,
//	        func(p *Point) int32 { return p.X },
//	        func(p *Point, v int32) { p.X = v })
//	...
//	pointCodec := b.Codec()
//
// The declaration order of fields and the evolution history are both part of
// the wire contract.
type StructBuilder[T any] struct {
	typeName   string
	hist       *history
	fields     []fieldBinding[T]
	transients []transientBinding[T]
}

// NewStruct starts a builder for the record type T. steps may be empty,
// which is equivalent to a bare InitialVersion.
func NewStruct[T any](typeName string, steps ...Step) *StructBuilder[T] {
	return &StructBuilder[T]{typeName: typeName, hist: newHistory(steps)}
}

// Codec finalizes the builder.
func (b *StructBuilder[T]) Codec() codec.Codec[T] {
	return &structCodec[T]{
		typeName:   b.typeName,
		hist:       b.hist,
		fields:     b.fields,
		transients: b.transients,
	}
}

// Field declares the next serialized field. get and set project the field out
// of and into the record.
func Field[T, F any](b *StructBuilder[T], name string, c codec.Codec[F], get func(*T) F, set func(*T, F)) *StructBuilder[T] {
	b.fields = append(b.fields, &plainField[T, F]{fname: name, c: c, get: get, set: set})
	return b
}

// OptionField declares the next serialized field with static type Option[H].
// Declaring the option through this call, with the codec of the element type,
// is what lets the compatibility read path wrap old plain values in Some and
// map removed fields to None.
func OptionField[T, H any](b *StructBuilder[T], name string, elem codec.Codec[H], get func(*T) codec.Option[H], set func(*T, codec.Option[H])) *StructBuilder[T] {
	b.fields = append(b.fields, &optionField[T, H]{
		fname: name,
		elem:  elem,
		oc:    codec.OptionCodec(elem),
		get:   get,
		set:   set,
	})
	return b
}

// TransientField declares a field that is never serialized. On deserialize it
// is filled with defaultValue, whose type is only checked at decode time.
func TransientField[T, F any](b *StructBuilder[T], name string, defaultValue any, set func(*T, F)) *StructBuilder[T] {
	b.transients = append(b.transients, &transient[T, F]{fname: name, def: defaultValue, set: set})
	return b
}

// fieldBinding is the per-field surface the generic read path drives. The
// option-aware entry points exist because evolution can change a field's
// optionality independently on the two sides of a stream.
type fieldBinding[T any] interface {
	name() string
	isOption() bool
	// write serializes the field value.
	write(ctx *codec.WriteContext, v *T) error
	// read deserializes with the field's native codec.
	read(ctx *codec.ReadContext, v *T) error
	// readWrapped reads a plain element and stores Some of it. Option
	// fields only.
	readWrapped(ctx *codec.ReadContext, v *T) error
	// readGuarded reads an optional-framed value into a non-optional
	// field, failing on None. Non-option fields only.
	readGuarded(ctx *codec.ReadContext, v *T) error
	// setDefault stores a declared default of the field's native type.
	setDefault(v *T, d any) error
	// setDefaultWrapped stores a declared element default as Some.
	// Option fields only.
	setDefaultWrapped(v *T, d any) error
	// setNone clears an option field. Option fields only.
	setNone(v *T) error
}

type plainField[T, F any] struct {
	fname string
	c     codec.Codec[F]
	get   func(*T) F
	set   func(*T, F)
}

func (f *plainField[T, F]) name() string   { return f.fname }
func (f *plainField[T, F]) isOption() bool { return false }

func (f *plainField[T, F]) write(ctx *codec.WriteContext, v *T) error {
	return f.c.Serialize(ctx, f.get(v))
}

func (f *plainField[T, F]) read(ctx *codec.ReadContext, v *T) error {
	fv, err := f.c.Deserialize(ctx)
	if err != nil {
		return err
	}
	f.set(v, fv)
	return nil
}

func (f *plainField[T, F]) readWrapped(ctx *codec.ReadContext, v *T) error {
	return fmt.Errorf("evolution: field %s is not optional", f.fname)
}

func (f *plainField[T, F]) readGuarded(ctx *codec.ReadContext, v *T) error {
	defined, err := ctx.In.ReadBool()
	if err != nil {
		return err
	}
	if !defined {
		return &codec.NonOptionalFieldAsNoneError{Field: f.fname}
	}
	return f.read(ctx, v)
}

func (f *plainField[T, F]) setDefault(v *T, d any) error {
	fv, ok := d.(F)
	if !ok {
		return defaultTypeError(f.fname, d)
	}
	f.set(v, fv)
	return nil
}

func (f *plainField[T, F]) setDefaultWrapped(v *T, d any) error {
	return fmt.Errorf("evolution: field %s is not optional", f.fname)
}

func (f *plainField[T, F]) setNone(v *T) error {
	return fmt.Errorf("evolution: field %s is not optional", f.fname)
}

type optionField[T, H any] struct {
	fname string
	elem  codec.Codec[H]
	oc    codec.Codec[codec.Option[H]]
	get   func(*T) codec.Option[H]
	set   func(*T, codec.Option[H])
}

func (f *optionField[T, H]) name() string   { return f.fname }
func (f *optionField[T, H]) isOption() bool { return true }

func (f *optionField[T, H]) write(ctx *codec.WriteContext, v *T) error {
	return f.oc.Serialize(ctx, f.get(v))
}

func (f *optionField[T, H]) read(ctx *codec.ReadContext, v *T) error {
	fv, err := f.oc.Deserialize(ctx)
	if err != nil {
		return err
	}
	f.set(v, fv)
	return nil
}

func (f *optionField[T, H]) readWrapped(ctx *codec.ReadContext, v *T) error {
	h, err := f.elem.Deserialize(ctx)
	if err != nil {
		return err
	}
	f.set(v, codec.Some(h))
	return nil
}

func (f *optionField[T, H]) readGuarded(ctx *codec.ReadContext, v *T) error {
	return fmt.Errorf("evolution: field %s is optional", f.fname)
}

func (f *optionField[T, H]) setDefault(v *T, d any) error {
	fv, ok := d.(codec.Option[H])
	if !ok {
		return defaultTypeError(f.fname, d)
	}
	f.set(v, fv)
	return nil
}

func (f *optionField[T, H]) setDefaultWrapped(v *T, d any) error {
	h, ok := d.(H)
	if !ok {
		return defaultTypeError(f.fname, d)
	}
	f.set(v, codec.Some(h))
	return nil
}

func (f *optionField[T, H]) setNone(v *T) error {
	f.set(v, codec.None[H]())
	return nil
}

type transientBinding[T any] interface {
	apply(v *T) error
}

type transient[T, F any] struct {
	fname string
	def   any
	set   func(*T, F)
}

func (t *transient[T, F]) apply(v *T) error {
	fv, ok := t.def.(F)
	if !ok {
		return defaultTypeError(t.fname, t.def)
	}
	t.set(v, fv)
	return nil
}

func defaultTypeError(field string, d any) error {
	return &codec.DeserializationError{
		Msg: fmt.Sprintf("default value of type %s does not fit field %s", codec.TypeNameOf(d), field),
	}
}

type structCodec[T any] struct {
	typeName   string
	hist       *history
	fields     []fieldBinding[T]
	transients []transientBinding[T]
}

func (c *structCodec[T]) Serialize(ctx *codec.WriteContext, v T) error {
	vlog.VI(2).Infof("evolution: serializing %s at version %d", c.typeName, c.hist.version)
	out := newChunkedOutput(ctx, c.hist)
	for _, f := range c.fields {
		gen := c.hist.generationOf(f.name())
		out.allocPosition(f.name(), gen)
		if err := f.write(out.contextFor(gen), &v); err != nil {
			return err
		}
	}
	return out.finish()
}

func (c *structCodec[T]) Deserialize(ctx *codec.ReadContext) (T, error) {
	var zero, v T
	in, err := newChunkedInput(ctx)
	if err != nil {
		return zero, err
	}
	vlog.VI(2).Infof("evolution: deserializing %s, stored version %d, local version %d",
		c.typeName, in.storedVersion, c.hist.version)
	for _, f := range c.fields {
		if err := c.readField(in, f, &v); err != nil {
			return zero, err
		}
	}
	for _, t := range c.transients {
		if err := t.apply(&v); err != nil {
			return zero, err
		}
	}
	return v, nil
}

// readField reads one declared field, reconciling the stream's schema with
// the local one: removed fields map to None or fail, fields newer than the
// stream fall back to declared defaults, and optionality differences between
// the two schemas wrap or unwrap the element.
func (c *structCodec[T]) readField(in *chunkedInput, f fieldBinding[T], v *T) error {
	name := f.name()
	if _, removed := in.removedFields[name]; removed {
		if f.isOption() {
			return f.setNone(v)
		}
		return &codec.FieldRemovedError{Field: name}
	}
	gen := c.hist.generationOf(name)
	optSince, localOpt := c.hist.madeOptionalAt[name]
	pos := in.allocPosition(gen)

	if in.storedVersion < gen {
		// The writer predates this field.
		d, ok := c.hist.defaults[name]
		if !ok {
			return &codec.FieldWithoutDefaultError{Field: name}
		}
		if f.isOption() && localOpt && optSince > gen {
			// The default was declared before the field became
			// optional, so it is a plain element value.
			return f.setDefaultWrapped(v, d)
		}
		return f.setDefault(v, d)
	}

	fctx, err := in.contextFor(gen)
	if err != nil {
		return err
	}
	_, streamOpt := in.madeOptionalAt[pos]
	switch {
	case streamOpt && !f.isOption():
		// The writer stored Option[H]; locally the field is plain H.
		return f.readGuarded(fctx, v)
	case !streamOpt && f.isOption() && localOpt && in.storedVersion < optSince:
		// The writer stored plain H before the field became optional.
		return f.readWrapped(fctx, v)
	}
	return f.read(fctx, v)
}
