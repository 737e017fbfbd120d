package dsl

import (
	"fmt"
	"reflect"

	"github.com/jsonfig/jsonfig"
)

// PropertyBuilder accumulates shadow state for one member. Requesting the
// builder for the same member twice from the same entity builder returns the
// identical instance, so chained configuration survives repeated access.
// Nothing is written into the definition until the entity builder extracts
// it; only explicitly set fields are committed then.
type PropertyBuilder struct {
	entity *EntityBuilder
	member string

	name      *string
	order     *int
	ignored   *bool
	required  *bool
	backing   *string
	converter *jsonfig.ConverterDefinition
}

// Named overrides the JSON key for this member. The override is emitted
// verbatim; the global naming convention never touches it.
func (p *PropertyBuilder) Named(name string) *PropertyBuilder {
	p.name = &name
	return p
}

// Order sets the explicit serialization position. Ordered members are emitted
// before unordered ones, ascending.
func (p *PropertyBuilder) Order(n int) *PropertyBuilder {
	p.order = &n
	return p
}

// Ignore excludes the member from serialization and deserialization.
func (p *PropertyBuilder) Ignore() *PropertyBuilder {
	v := true
	p.ignored = &v
	return p
}

// Required makes the member mandatory on decode.
func (p *PropertyBuilder) Required() *PropertyBuilder {
	v := true
	p.required = &v
	return p
}

// Optional clears a previously configured required flag.
func (p *PropertyBuilder) Optional() *PropertyBuilder {
	v := false
	p.required = &v
	return p
}

// Field redirects reads and writes to the named backing field instead of the
// member itself, regardless of the field's exportedness. The field must be
// declared on the entity type or one of its value-embedded structs.
func (p *PropertyBuilder) Field(backing string) *PropertyBuilder {
	if !jsonfig.HasMember(p.entity.typ, backing) {
		p.entity.recordErr(&jsonfig.ConfigError{
			Entity: p.entity.typ.String(), Member: p.member,
			Code:    jsonfig.CodeBackingFieldMissing,
			Message: fmt.Sprintf("backing field %q is not declared on %s", backing, p.entity.typ),
		})
		return p
	}
	p.backing = &backing
	return p
}

// Convert attaches an instance converter, typically built with
// jsonfig.ConvertFunc. The function pair is captured here, once, not per
// serialization call.
func (p *PropertyBuilder) Convert(c jsonfig.Converter) *PropertyBuilder {
	p.converter = jsonfig.NewFuncConverter(c)
	return p
}

// ConvertWith attaches a type-based converter to be instantiated by the
// engine builder, by zero construction or through the dependency resolver.
func (p *PropertyBuilder) ConvertWith(t reflect.Type) *PropertyBuilder {
	p.converter = jsonfig.NewTypeConverter(t)
	return p
}

// Property hops to a sibling member's builder, keeping configuration chains
// fluent.
func (p *PropertyBuilder) Property(member string) *PropertyBuilder {
	return p.entity.Property(member)
}

// apply flushes only the explicitly set fields into the definition. Untouched
// fields keep whatever earlier contributions committed.
func (p *PropertyBuilder) apply(def *jsonfig.EntityDefinition) error {
	pd, err := def.EnsureProperty(p.member)
	if err != nil {
		return err
	}
	if p.name != nil {
		if err := pd.SetJSONName(*p.name); err != nil {
			return err
		}
	}
	if p.order != nil {
		if err := pd.SetOrder(*p.order); err != nil {
			return err
		}
	}
	if p.ignored != nil {
		if err := pd.SetIgnored(*p.ignored); err != nil {
			return err
		}
	}
	if p.required != nil {
		if err := pd.SetRequired(*p.required); err != nil {
			return err
		}
	}
	if p.backing != nil {
		if err := pd.SetBackingField(*p.backing); err != nil {
			return err
		}
	}
	if p.converter != nil {
		if err := pd.SetConverter(p.converter); err != nil {
			return err
		}
	}
	return nil
}
