package jsonfig

import (
	"reflect"
	"sort"
)

// EntityDefinition holds the engine-agnostic configuration for one entity
// type: a member-keyed property map and an optional polymorphism definition.
// Definitions are built mutable during the configuration phase and frozen
// exactly once before being handed to an engine adapter; a frozen definition
// rejects every mutation and is safe for concurrent reads.
type EntityDefinition struct {
	typ    reflect.Type
	props  map[string]*PropertyDefinition
	poly   *PolymorphismDefinition
	frozen bool
}

// NewEntityDefinition creates an empty, mutable definition for t. The type is
// a struct for regular entities and an interface for polymorphic hierarchy
// roots.
func NewEntityDefinition(t reflect.Type) *EntityDefinition {
	return &EntityDefinition{typ: t, props: map[string]*PropertyDefinition{}}
}

func (d *EntityDefinition) Type() reflect.Type { return d.typ }
func (d *EntityDefinition) Frozen() bool       { return d.frozen }

// Property returns the definition for member, or nil when the member was
// never configured.
func (d *EntityDefinition) Property(member string) *PropertyDefinition {
	return d.props[member]
}

// EnsureProperty returns the definition for member, creating it when absent.
func (d *EntityDefinition) EnsureProperty(member string) (*PropertyDefinition, error) {
	if p, ok := d.props[member]; ok {
		return p, nil
	}
	if err := d.ensureMutable(member); err != nil {
		return nil, err
	}
	p := &PropertyDefinition{owner: d, member: member}
	d.props[member] = p
	return p, nil
}

// Properties returns the configured properties sorted by member name. The
// slice is a copy; the definitions themselves are shared.
func (d *EntityDefinition) Properties() []*PropertyDefinition {
	out := make([]*PropertyDefinition, 0, len(d.props))
	for _, p := range d.props {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].member < out[j].member })
	return out
}

func (d *EntityDefinition) Polymorphism() *PolymorphismDefinition { return d.poly }

// SetPolymorphism installs (or wholesale replaces) the discriminator strategy
// for this hierarchy root.
func (d *EntityDefinition) SetPolymorphism(p *PolymorphismDefinition) error {
	if err := d.ensureMutable(""); err != nil {
		return err
	}
	d.poly = p
	return nil
}

// Freeze makes the definition permanently read-only and cascades to the
// polymorphism definition. Freezing twice is a no-op.
func (d *EntityDefinition) Freeze() {
	d.frozen = true
	if d.poly != nil {
		d.poly.freeze()
	}
}

func (d *EntityDefinition) ensureMutable(member string) error {
	if !d.frozen {
		return nil
	}
	return &ConfigError{
		Entity:  d.typ.String(),
		Member:  member,
		Code:    CodeFrozen,
		Message: "definition is frozen",
	}
}
