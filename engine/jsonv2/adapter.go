package jsonv2

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/jsonfig/jsonfig"
	"github.com/jsonfig/jsonfig/internal/discprobe"
	"github.com/jsonfig/jsonfig/internal/plan"
)

// adapter holds the per-build state shared by the catch-all marshal and
// unmarshal functions. opts is the full option bundle returned by Build;
// inner excludes polymorphic tagging and is used to serialize a subtype's
// body before the discriminator is injected.
type adapter struct {
	set   *plan.Set
	opts  json.Options
	inner json.Options
}

// marshalAny dispatches on the runtime type: registered polymorphic subtypes
// are serialized with the discriminator injected first; configured entities
// are rendered from their plan; everything else is skipped so the engine's
// default behavior applies.
func (a *adapter) marshalAny(enc *jsontext.Encoder, v any) error {
	if v == nil {
		return json.SkipFunc
	}
	t := reflect.TypeOf(v)
	if sp, ok := a.set.SubtypeFor(t); ok {
		return a.marshalTagged(enc, v, sp)
	}
	if t.Kind() == reflect.Pointer {
		return json.SkipFunc // engine dereferences; the element re-enters
	}
	e, err := a.set.EntityFor(t)
	if err != nil {
		return err
	}
	if e == nil {
		return json.SkipFunc
	}
	return a.marshalEntity(enc, v, e, nil)
}

// marshalUntagged is marshalAny minus the subtype dispatch. It backs the
// inner option set used while buffering a subtype body, so the polymorphic
// hook cannot recurse into itself.
func (a *adapter) marshalUntagged(enc *jsontext.Encoder, v any) error {
	if v == nil {
		return json.SkipFunc
	}
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		return json.SkipFunc
	}
	e, err := a.set.EntityFor(t)
	if err != nil {
		return err
	}
	if e == nil {
		return json.SkipFunc
	}
	return a.marshalEntity(enc, v, e, nil)
}

func (a *adapter) marshalEntity(enc *jsontext.Encoder, v any, e *plan.Entity, sub *plan.SubtypePlan) error {
	rv := addressable(reflect.ValueOf(v))
	if err := enc.WriteToken(jsontext.BeginObject); err != nil {
		return err
	}
	if err := a.writeMembers(enc, rv, e, sub); err != nil {
		return err
	}
	return enc.WriteToken(jsontext.EndObject)
}

func (a *adapter) writeMembers(enc *jsontext.Encoder, rv reflect.Value, e *plan.Entity, sub *plan.SubtypePlan) error {
	for _, p := range e.Props {
		if sub != nil && (sub.Poly.Suppresses(p.JSONName) || sub.Poly.Suppresses(p.Member)) {
			continue
		}
		if err := enc.WriteToken(jsontext.String(p.JSONName)); err != nil {
			return err
		}
		value := p.Target.Get(rv)
		if p.Conv != nil {
			sur, err := p.Conv.ToJSON(value.Interface())
			if err != nil {
				return &jsonfig.CodecError{
					Entity: e.Type.String(), Member: p.Member,
					Code: jsonfig.CodeConversion, Message: "converter ToJSON failed", Cause: err,
				}
			}
			if isNilSurrogate(sur) {
				if err := enc.WriteToken(jsontext.Null); err != nil {
					return err
				}
				continue
			}
			if err := json.MarshalEncode(enc, sur, a.opts); err != nil {
				return err
			}
			continue
		}
		if err := json.MarshalEncode(enc, value.Interface(), a.opts); err != nil {
			return err
		}
	}
	return nil
}

// marshalTagged emits a polymorphic subtype with the discriminator as the
// first member, forced to the registered constant. An existing member with
// the discriminator name is suppressed rather than emitted twice.
func (a *adapter) marshalTagged(enc *jsontext.Encoder, v any, sp *plan.SubtypePlan) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return enc.WriteToken(jsontext.Null)
		}
		rv = rv.Elem()
	}
	e, err := a.set.EntityFor(sp.Struct)
	if err != nil {
		return err
	}

	if err := enc.WriteToken(jsontext.BeginObject); err != nil {
		return err
	}
	if err := enc.WriteToken(jsontext.String(sp.Poly.DiscName)); err != nil {
		return err
	}
	if err := json.MarshalEncode(enc, sp.Value, a.opts); err != nil {
		return err
	}

	if e != nil {
		if err := a.writeMembers(enc, addressable(rv), e, sp); err != nil {
			return err
		}
		return enc.WriteToken(jsontext.EndObject)
	}

	// Unconfigured subtype: buffer the body through the inner options and
	// splice its members in after the discriminator.
	data, err := json.Marshal(rv.Interface(), a.inner)
	if err != nil {
		return err
	}
	if err := copyObjectMembers(enc, data, sp.Poly); err != nil {
		return err
	}
	return enc.WriteToken(jsontext.EndObject)
}

func copyObjectMembers(enc *jsontext.Encoder, data []byte, pp *plan.Poly) error {
	dec := jsontext.NewDecoder(bytes.NewReader(data))
	tok, err := dec.ReadToken()
	if err != nil {
		return err
	}
	if tok.Kind() != '{' {
		return &jsonfig.CodecError{
			Code:    jsonfig.CodeSubtypeUnregistered,
			Message: "polymorphic subtype must serialize to a JSON object",
		}
	}
	for {
		if dec.PeekKind() == '}' {
			_, err := dec.ReadToken()
			return err
		}
		nameTok, err := dec.ReadToken()
		if err != nil {
			return err
		}
		name := nameTok.String()
		if pp.Suppresses(name) {
			if err := dec.SkipValue(); err != nil {
				return err
			}
			continue
		}
		if err := enc.WriteToken(jsontext.String(name)); err != nil {
			return err
		}
		val, err := dec.ReadValue()
		if err != nil {
			return err
		}
		if err := enc.WriteValue(val); err != nil {
			return err
		}
	}
}

// unmarshalAny dispatches on the destination type: polymorphic roots buffer
// the object and re-dispatch on the discriminator; configured entities decode
// through their plan; everything else is skipped.
func (a *adapter) unmarshalAny(dec *jsontext.Decoder, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return json.SkipFunc
	}
	t := rv.Type().Elem()
	if t.Kind() == reflect.Interface {
		if pp, ok := a.set.ByRoot[t]; ok {
			return a.unmarshalPoly(dec, rv, pp)
		}
		return json.SkipFunc
	}
	if t.Kind() == reflect.Struct {
		e, err := a.set.EntityFor(t)
		if err != nil {
			return err
		}
		if e != nil {
			return a.unmarshalEntity(dec, rv.Elem(), e)
		}
	}
	return json.SkipFunc
}

func (a *adapter) unmarshalPoly(dec *jsontext.Decoder, rv reflect.Value, pp *plan.Poly) error {
	val, err := dec.ReadValue()
	if err != nil {
		return err
	}
	if val.Kind() == 'n' {
		rv.Elem().SetZero()
		return nil
	}
	if val.Kind() != '{' {
		return &jsonfig.CodecError{
			Entity: pp.Root.String(), Code: jsonfig.CodeDiscriminatorMissing,
			Message: fmt.Sprintf("expected a JSON object carrying discriminator %q", pp.DiscName),
		}
	}
	raw, found, err := discprobe.Field(val, pp.DiscName)
	if err != nil {
		return &jsonfig.CodecError{Entity: pp.Root.String(), Code: jsonfig.CodeDiscriminatorMissing, Message: "cannot inspect object", Cause: err}
	}
	if !found {
		return &jsonfig.CodecError{
			Entity: pp.Root.String(), Code: jsonfig.CodeDiscriminatorMissing,
			Message: fmt.Sprintf("missing discriminator %q; expected one of %v", pp.DiscName, pp.Expected),
		}
	}
	key, err := discprobe.ScalarKey(raw)
	if err != nil {
		return &jsonfig.CodecError{Entity: pp.Root.String(), Code: jsonfig.CodeDiscriminatorUnknown, Message: err.Error()}
	}
	reg, ok := pp.ByKey[key]
	if !ok {
		return &jsonfig.CodecError{
			Entity: pp.Root.String(), Code: jsonfig.CodeDiscriminatorUnknown,
			Message: fmt.Sprintf("unknown discriminator value %q; expected one of %v", key, pp.Expected),
		}
	}

	sp, _ := a.set.SubtypeFor(reg)
	inst := reflect.New(sp.Struct)
	if err := json.Unmarshal(val, inst.Interface(), a.opts); err != nil {
		return err
	}
	if sp.Force != nil {
		if err := sp.Force.Set(inst.Elem(), reflect.ValueOf(sp.Value)); err != nil {
			return &jsonfig.CodecError{Entity: pp.Root.String(), Member: pp.Member, Code: jsonfig.CodeConversion, Message: "cannot force discriminator member", Cause: err}
		}
	}
	out := inst.Elem()
	if sp.Pointer {
		out = inst
	}
	rv.Elem().Set(out)
	return nil
}

func (a *adapter) unmarshalEntity(dec *jsontext.Decoder, sv reflect.Value, e *plan.Entity) error {
	tok, err := dec.ReadToken()
	if err != nil {
		return err
	}
	if tok.Kind() == 'n' {
		sv.SetZero()
		return nil
	}
	if tok.Kind() != '{' {
		return &jsonfig.CodecError{
			Entity: e.Type.String(), Code: jsonfig.CodeConversion,
			Message: fmt.Sprintf("cannot decode %v into %v", tok.Kind(), e.Type),
		}
	}
	seen := map[string]bool{}
	for {
		if dec.PeekKind() == '}' {
			if _, err := dec.ReadToken(); err != nil {
				return err
			}
			break
		}
		nameTok, err := dec.ReadToken()
		if err != nil {
			return err
		}
		name := nameTok.String()
		p := e.ByJSON[name]
		if p == nil {
			if err := dec.SkipValue(); err != nil {
				return err
			}
			continue
		}
		seen[name] = true
		if err := a.readMember(dec, sv, e, p); err != nil {
			return err
		}
	}
	for _, name := range e.Required {
		if !seen[name] {
			return &jsonfig.CodecError{
				Entity: e.Type.String(), Member: e.ByJSON[name].Member,
				Code: jsonfig.CodeRequired, Message: fmt.Sprintf("missing required member %q", name),
			}
		}
	}
	return nil
}

func (a *adapter) readMember(dec *jsontext.Decoder, sv reflect.Value, e *plan.Entity, p *plan.Property) error {
	if p.Conv != nil {
		if dec.PeekKind() == 'n' {
			if _, err := dec.ReadToken(); err != nil {
				return err
			}
			if !p.Nillable() {
				return &jsonfig.CodecError{
					Entity: e.Type.String(), Member: p.Member, Code: jsonfig.CodeNullSurrogate,
					Message: fmt.Sprintf("JSON null is not valid for non-nillable member type %v", p.Target.Type),
				}
			}
			p.Target.Get(sv).SetZero()
			return nil
		}
		sur := reflect.New(p.Surrogate)
		if err := json.UnmarshalDecode(dec, sur.Interface(), a.opts); err != nil {
			return err
		}
		model, err := p.Conv.FromJSON(sur.Elem().Interface())
		if err != nil {
			return &jsonfig.CodecError{
				Entity: e.Type.String(), Member: p.Member,
				Code: jsonfig.CodeConversion, Message: "converter FromJSON failed", Cause: err,
			}
		}
		if model == nil {
			p.Target.Get(sv).SetZero()
			return nil
		}
		return p.Target.Set(sv, reflect.ValueOf(model))
	}
	tmp := reflect.New(p.Target.Type)
	if err := json.UnmarshalDecode(dec, tmp.Interface(), a.opts); err != nil {
		return err
	}
	return p.Target.Set(sv, tmp.Elem())
}

func addressable(rv reflect.Value) reflect.Value {
	if rv.CanAddr() {
		return rv
	}
	na := reflect.New(rv.Type())
	na.Elem().Set(rv)
	return na.Elem()
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
