package dsl

import (
	"fmt"
	"reflect"

	"github.com/jsonfig/jsonfig"
)

// DiscriminatorBuilder is the narrow step returned by a discriminator
// declaration. Its single operation registers a concrete subtype with its
// discriminator value; uniqueness and value-kind enforcement live in the
// polymorphism definition.
type DiscriminatorBuilder struct {
	entity *EntityBuilder
	poly   *jsonfig.PolymorphismDefinition
}

// Subtype registers t (usually jsonfig.TypeOf[*Dog]()) under value. The type
// must be a true subtype of the entity: implement the interface root, or
// value-embed the struct root.
func (d *DiscriminatorBuilder) Subtype(t reflect.Type, value any) *DiscriminatorBuilder {
	if !jsonfig.IsSubtype(d.entity.typ, t) {
		d.entity.recordErr(&jsonfig.ConfigError{
			Entity: d.entity.typ.String(),
			Code:   jsonfig.CodeNotSubtype,
			Message: fmt.Sprintf("%v is not a subtype of %s", t, d.entity.typ),
		})
		return d
	}
	if err := d.poly.AddSubtype(t, value); err != nil {
		d.entity.recordErr(err)
	}
	return d
}

// Entity returns to the owning entity builder for further configuration.
func (d *DiscriminatorBuilder) Entity() *EntityBuilder { return d.entity }
