package dsl

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/jsonfig/jsonfig"
)

// EntityBuilder is the configuration facade for one entity type. It caches
// one PropertyBuilder per member and owns the polymorphism declaration.
// Errors raised while chaining are recorded and surfaced when the definition
// is extracted.
type EntityBuilder struct {
	typ   reflect.Type
	def   *jsonfig.EntityDefinition
	props map[string]*PropertyBuilder
	err   error // first recorded configuration error
}

// NewEntityBuilder creates a builder for t: a struct type for regular
// entities, an interface type for polymorphic hierarchy roots.
func NewEntityBuilder(t reflect.Type) *EntityBuilder {
	return &EntityBuilder{
		typ:   t,
		def:   jsonfig.NewEntityDefinition(t),
		props: map[string]*PropertyBuilder{},
	}
}

func (e *EntityBuilder) Type() reflect.Type { return e.typ }

// Property returns the cached builder for member, creating it on first
// access. Selecting a member that does not exist on a struct entity records a
// configuration error but keeps the chain usable.
func (e *EntityBuilder) Property(member string) *PropertyBuilder {
	if p, ok := e.props[member]; ok {
		return p
	}
	if e.typ.Kind() == reflect.Struct && !jsonfig.HasMember(e.typ, member) {
		e.recordErr(&jsonfig.ConfigError{
			Entity: e.typ.String(), Member: member,
			Code:    jsonfig.CodeUnknownMember,
			Message: fmt.Sprintf("member %q is not declared on %s", member, e.typ),
		})
	}
	p := &PropertyBuilder{entity: e, member: member}
	e.props[member] = p
	return p
}

// Ignore excludes member from serialization. It delegates to the property
// builder so the caching and commit path stay uniform.
func (e *EntityBuilder) Ignore(member string) *EntityBuilder {
	e.Property(member).Ignore()
	return e
}

// Discriminator enables polymorphism keyed by a real member of the hierarchy
// and returns the subtype registration step. Declaring it again replaces the
// previous polymorphism definition wholesale.
func (e *EntityBuilder) Discriminator(member string) *DiscriminatorBuilder {
	poly := jsonfig.NewPolymorphismDefinition(e.typ, member, false)
	if err := e.def.SetPolymorphism(poly); err != nil {
		e.recordErr(err)
	}
	return &DiscriminatorBuilder{entity: e, poly: poly}
}

// ShadowDiscriminator enables polymorphism keyed by a JSON-only property that
// has no corresponding Go member; jsonName is emitted verbatim.
func (e *EntityBuilder) ShadowDiscriminator(jsonName string) *DiscriminatorBuilder {
	poly := jsonfig.NewPolymorphismDefinition(e.typ, jsonName, true)
	if err := e.def.SetPolymorphism(poly); err != nil {
		e.recordErr(err)
	}
	return &DiscriminatorBuilder{entity: e, poly: poly}
}

// Definition flushes every property builder's shadow state into the entity
// definition and returns it, or the first configuration error recorded while
// chaining.
func (e *EntityBuilder) Definition() (*jsonfig.EntityDefinition, error) {
	if e.err != nil {
		return nil, e.err
	}
	members := make([]string, 0, len(e.props))
	for m := range e.props {
		members = append(members, m)
	}
	sort.Strings(members)
	for _, m := range members {
		if err := e.props[m].apply(e.def); err != nil {
			return nil, err
		}
	}
	return e.def, nil
}

func (e *EntityBuilder) recordErr(err error) {
	if e.err == nil {
		e.err = err
	}
}
