package jsoniter

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"unsafe"

	ji "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"

	"github.com/jsonfig/jsonfig"
	"github.com/jsonfig/jsonfig/internal/discprobe"
	"github.com/jsonfig/jsonfig/internal/plan"
)

// modelExtension routes configured types to plan-driven codecs. Configured
// entity structs and registered subtypes get full replacement encoders and
// decoders; polymorphic interface roots get dispatch codecs; unconfigured
// subtype structs keep the engine's default codec, decorated so the
// discriminator is spliced in on write. Everything else falls through to the
// engine untouched.
type modelExtension struct {
	ji.DummyExtension
	set *plan.Set
	api ji.API // set right after RegisterExtension; callbacks fire lazily
}

func (ext *modelExtension) CreateEncoder(typ reflect2.Type) ji.ValEncoder {
	t := typ.Type1()
	if t.Kind() == reflect.Interface {
		if pp, ok := ext.set.ByRoot[t]; ok {
			return &rootEncoder{ext: ext, typ: t, poly: pp}
		}
		return nil
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	sp, _ := ext.set.SubtypeFor(t)
	e, err := ext.set.EntityFor(t)
	if err != nil {
		return &errEncoder{err: err}
	}
	if e == nil {
		return nil // unconfigured; subtype tagging happens in DecorateEncoder
	}
	return &entityEncoder{ext: ext, typ: t, entity: e, sub: sp}
}

func (ext *modelExtension) CreateDecoder(typ reflect2.Type) ji.ValDecoder {
	t := typ.Type1()
	if t.Kind() == reflect.Interface {
		if pp, ok := ext.set.ByRoot[t]; ok {
			return &rootDecoder{ext: ext, typ: t, poly: pp}
		}
		return nil
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	e, err := ext.set.EntityFor(t)
	if err != nil {
		return &errDecoder{err: err}
	}
	if e == nil {
		return nil
	}
	return &entityDecoder{ext: ext, typ: t, entity: e}
}

// DecorateEncoder injects the discriminator into subtype structs that carry
// no entity plan of their own: the default encoder renders the body into a
// scratch stream and the members are re-emitted after the tag.
func (ext *modelExtension) DecorateEncoder(typ reflect2.Type, encoder ji.ValEncoder) ji.ValEncoder {
	t := typ.Type1()
	if t.Kind() != reflect.Struct {
		return encoder
	}
	sp, ok := ext.set.SubtypeFor(t)
	if !ok {
		return encoder
	}
	if e, err := ext.set.EntityFor(t); err == nil && e != nil {
		return encoder // entityEncoder already writes the tag
	}
	return &taggedEncoder{ext: ext, sub: sp, inner: encoder}
}

type errEncoder struct{ err error }

func (enc *errEncoder) IsEmpty(ptr unsafe.Pointer) bool { return false }
func (enc *errEncoder) Encode(ptr unsafe.Pointer, stream *ji.Stream) {
	if stream.Error == nil {
		stream.Error = enc.err
	}
}

type errDecoder struct{ err error }

func (dec *errDecoder) Decode(ptr unsafe.Pointer, iter *ji.Iterator) {
	if iter.Error == nil {
		iter.Error = dec.err
	}
}

// entityEncoder renders a configured struct from its plan: effective names in
// emit order, backing-field redirection, converters, and the discriminator
// first when the struct is a registered subtype.
type entityEncoder struct {
	ext    *modelExtension
	typ    reflect.Type
	entity *plan.Entity
	sub    *plan.SubtypePlan // nil unless a registered subtype
}

func (enc *entityEncoder) IsEmpty(ptr unsafe.Pointer) bool { return false }

func (enc *entityEncoder) Encode(ptr unsafe.Pointer, stream *ji.Stream) {
	sv := reflect.NewAt(enc.typ, ptr).Elem()
	stream.WriteObjectStart()
	first := true
	if enc.sub != nil {
		stream.WriteObjectField(enc.sub.Poly.DiscName)
		stream.WriteVal(enc.sub.Value)
		first = false
	}
	for _, p := range enc.entity.Props {
		if enc.sub != nil && (enc.sub.Poly.Suppresses(p.JSONName) || enc.sub.Poly.Suppresses(p.Member)) {
			continue
		}
		if !first {
			stream.WriteMore()
		}
		first = false
		stream.WriteObjectField(p.JSONName)
		value := p.Target.Get(sv)
		if p.Conv != nil {
			sur, err := p.Conv.ToJSON(value.Interface())
			if err != nil {
				stream.Error = &jsonfig.CodecError{
					Entity: enc.typ.String(), Member: p.Member,
					Code: jsonfig.CodeConversion, Message: "converter ToJSON failed", Cause: err,
				}
				return
			}
			if isNilSurrogate(sur) {
				stream.WriteNil()
				continue
			}
			stream.WriteVal(sur)
			continue
		}
		stream.WriteVal(value.Interface())
	}
	stream.WriteObjectEnd()
}

// entityDecoder decodes a configured struct from its plan: effective-name
// lookup, unknown members skipped, converter surrogates, backing-field
// redirection, and required-member enforcement once the object closes.
type entityDecoder struct {
	ext    *modelExtension
	typ    reflect.Type
	entity *plan.Entity
}

func (dec *entityDecoder) Decode(ptr unsafe.Pointer, iter *ji.Iterator) {
	switch iter.WhatIsNext() {
	case ji.NilValue:
		iter.ReadNil()
		reflect.NewAt(dec.typ, ptr).Elem().SetZero()
		return
	case ji.ObjectValue:
	default:
		iter.ReportError("decode", fmt.Sprintf("expected a JSON object for %v", dec.typ))
		return
	}
	sv := reflect.NewAt(dec.typ, ptr).Elem()
	var seen map[string]bool
	if len(dec.entity.Required) > 0 {
		seen = make(map[string]bool, len(dec.entity.Required))
	}
	iter.ReadObjectCB(func(it *ji.Iterator, key string) bool {
		p := dec.entity.ByJSON[key]
		if p == nil {
			it.Skip()
			return it.Error == nil
		}
		if seen != nil {
			seen[key] = true
		}
		dec.readMember(it, sv, p)
		return it.Error == nil
	})
	if iter.Error != nil {
		return
	}
	for _, name := range dec.entity.Required {
		if !seen[name] {
			iter.Error = &jsonfig.CodecError{
				Entity: dec.typ.String(), Member: dec.entity.ByJSON[name].Member,
				Code: jsonfig.CodeRequired, Message: fmt.Sprintf("missing required member %q", name),
			}
			return
		}
	}
}

func (dec *entityDecoder) readMember(it *ji.Iterator, sv reflect.Value, p *plan.Property) {
	if p.Conv != nil {
		if it.WhatIsNext() == ji.NilValue {
			it.ReadNil()
			if !p.Nillable() {
				it.Error = &jsonfig.CodecError{
					Entity: dec.typ.String(), Member: p.Member, Code: jsonfig.CodeNullSurrogate,
					Message: fmt.Sprintf("JSON null is not valid for non-nillable member type %v", p.Target.Type),
				}
				return
			}
			p.Target.Get(sv).SetZero()
			return
		}
		sur := reflect.New(p.Surrogate)
		it.ReadVal(sur.Interface())
		if it.Error != nil {
			return
		}
		model, err := p.Conv.FromJSON(sur.Elem().Interface())
		if err != nil {
			it.Error = &jsonfig.CodecError{
				Entity: dec.typ.String(), Member: p.Member,
				Code: jsonfig.CodeConversion, Message: "converter FromJSON failed", Cause: err,
			}
			return
		}
		if model == nil {
			p.Target.Get(sv).SetZero()
			return
		}
		if err := p.Target.Set(sv, reflect.ValueOf(model)); err != nil {
			it.Error = &jsonfig.CodecError{
				Entity: dec.typ.String(), Member: p.Member,
				Code: jsonfig.CodeConversion, Message: "cannot assign converted value", Cause: err,
			}
		}
		return
	}
	tmp := reflect.New(p.Target.Type)
	it.ReadVal(tmp.Interface())
	if it.Error != nil {
		return
	}
	if err := p.Target.Set(sv, tmp.Elem()); err != nil {
		it.Error = &jsonfig.CodecError{
			Entity: dec.typ.String(), Member: p.Member,
			Code: jsonfig.CodeConversion, Message: "cannot assign member value", Cause: err,
		}
	}
}

// rootEncoder serializes an interface-typed hierarchy root: nil becomes JSON
// null, registered concrete values re-enter the engine (and pick up their
// subtype tagging), anything else fails.
type rootEncoder struct {
	ext  *modelExtension
	typ  reflect.Type
	poly *plan.Poly
}

func (enc *rootEncoder) IsEmpty(ptr unsafe.Pointer) bool {
	return reflect.NewAt(enc.typ, ptr).Elem().IsNil()
}

func (enc *rootEncoder) Encode(ptr unsafe.Pointer, stream *ji.Stream) {
	rv := reflect.NewAt(enc.typ, ptr).Elem()
	if rv.IsNil() {
		stream.WriteNil()
		return
	}
	concrete := rv.Elem()
	if _, ok := enc.ext.set.SubtypeFor(concrete.Type()); !ok {
		stream.Error = &jsonfig.CodecError{
			Entity: enc.typ.String(), Code: jsonfig.CodeSubtypeUnregistered,
			Message: fmt.Sprintf("%v is not a registered subtype of %v", concrete.Type(), enc.typ),
		}
		return
	}
	stream.WriteVal(concrete.Interface())
}

// rootDecoder buffers the object, probes the discriminator, decodes into the
// registered concrete type, and forces the discriminator member to the
// registered constant before assigning the interface.
type rootDecoder struct {
	ext  *modelExtension
	typ  reflect.Type
	poly *plan.Poly
}

func (dec *rootDecoder) Decode(ptr unsafe.Pointer, iter *ji.Iterator) {
	if iter.WhatIsNext() == ji.NilValue {
		iter.ReadNil()
		reflect.NewAt(dec.typ, ptr).Elem().SetZero()
		return
	}
	if iter.WhatIsNext() != ji.ObjectValue {
		iter.Error = &jsonfig.CodecError{
			Entity: dec.poly.Root.String(), Code: jsonfig.CodeDiscriminatorMissing,
			Message: fmt.Sprintf("expected a JSON object carrying discriminator %q", dec.poly.DiscName),
		}
		return
	}
	raw := iter.SkipAndReturnBytes()
	if iter.Error != nil {
		return
	}
	frag, found, err := discprobe.Field(raw, dec.poly.DiscName)
	if err != nil {
		iter.Error = &jsonfig.CodecError{Entity: dec.poly.Root.String(), Code: jsonfig.CodeDiscriminatorMissing, Message: "cannot inspect object", Cause: err}
		return
	}
	if !found {
		iter.Error = &jsonfig.CodecError{
			Entity: dec.poly.Root.String(), Code: jsonfig.CodeDiscriminatorMissing,
			Message: fmt.Sprintf("missing discriminator %q; expected one of %v", dec.poly.DiscName, dec.poly.Expected),
		}
		return
	}
	key, err := discprobe.ScalarKey(frag)
	if err != nil {
		iter.Error = &jsonfig.CodecError{Entity: dec.poly.Root.String(), Code: jsonfig.CodeDiscriminatorUnknown, Message: err.Error()}
		return
	}
	reg, ok := dec.poly.ByKey[key]
	if !ok {
		iter.Error = &jsonfig.CodecError{
			Entity: dec.poly.Root.String(), Code: jsonfig.CodeDiscriminatorUnknown,
			Message: fmt.Sprintf("unknown discriminator value %q; expected one of %v", key, dec.poly.Expected),
		}
		return
	}

	sp, _ := dec.ext.set.SubtypeFor(reg)
	inst := reflect.New(sp.Struct)
	if err := dec.ext.api.Unmarshal(raw, inst.Interface()); err != nil {
		iter.Error = err
		return
	}
	if sp.Force != nil {
		if err := sp.Force.Set(inst.Elem(), reflect.ValueOf(sp.Value)); err != nil {
			iter.Error = &jsonfig.CodecError{Entity: dec.poly.Root.String(), Member: dec.poly.Member, Code: jsonfig.CodeConversion, Message: "cannot force discriminator member", Cause: err}
			return
		}
	}
	out := inst.Elem()
	if sp.Pointer {
		out = inst
	}
	reflect.NewAt(dec.typ, ptr).Elem().Set(out)
}

// taggedEncoder splices the discriminator pair into the default rendering of
// an unconfigured subtype struct. An existing member with the discriminator
// name is suppressed rather than emitted twice.
type taggedEncoder struct {
	ext   *modelExtension
	sub   *plan.SubtypePlan
	inner ji.ValEncoder
}

func (enc *taggedEncoder) IsEmpty(ptr unsafe.Pointer) bool { return false }

func (enc *taggedEncoder) Encode(ptr unsafe.Pointer, stream *ji.Stream) {
	tmp := ji.NewStream(enc.ext.api, nil, 256)
	enc.inner.Encode(ptr, tmp)
	if tmp.Error != nil {
		stream.Error = tmp.Error
		return
	}
	stream.WriteObjectStart()
	stream.WriteObjectField(enc.sub.Poly.DiscName)
	stream.WriteVal(enc.sub.Value)
	it := ji.ParseBytes(enc.ext.api, tmp.Buffer())
	it.ReadObjectCB(func(it *ji.Iterator, key string) bool {
		if enc.sub.Poly.Suppresses(key) {
			it.Skip()
			return it.Error == nil
		}
		raw := it.SkipAndReturnBytes()
		if it.Error != nil {
			return false
		}
		stream.WriteMore()
		stream.WriteObjectField(key)
		stream.Write(raw)
		return true
	})
	if it.Error != nil && !errors.Is(it.Error, io.EOF) {
		stream.Error = it.Error
		return
	}
	stream.WriteObjectEnd()
}

func isNilSurrogate(sur any) bool {
	if sur == nil {
		return true
	}
	rv := reflect.ValueOf(sur)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return rv.IsNil()
	}
	return false
}
