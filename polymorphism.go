package jsonfig

import (
	"fmt"
	"reflect"
	"strconv"
)

// DiscriminatorKind is the primitive kind shared by every discriminator value
// of one hierarchy. Named string and integer types (enum-style constants)
// normalize to their underlying kind.
type DiscriminatorKind int

const (
	DiscriminatorUnset DiscriminatorKind = iota
	DiscriminatorString
	DiscriminatorInt
)

// Subtype pairs one registered concrete type with its discriminator value.
type Subtype struct {
	Type  reflect.Type
	Value any
}

// PolymorphismDefinition records the discriminator strategy for a hierarchy
// root: the discriminator member (or shadow JSON name), the value kind, and
// the subtype registry. Uniqueness and kind consistency are enforced on
// registration; the validator re-checks them for directly assembled
// definitions.
type PolymorphismDefinition struct {
	entity   reflect.Type
	member   string // Go member name, or the verbatim JSON key when shadow
	shadow   bool
	kind     DiscriminatorKind
	subtypes []Subtype
	byType   map[reflect.Type]any
	byKey    map[string]reflect.Type
	frozen   bool
}

// NewPolymorphismDefinition declares the discriminator for entity. When shadow
// is true, member is a JSON-only key that has no corresponding Go member and
// is used verbatim on the wire.
func NewPolymorphismDefinition(entity reflect.Type, member string, shadow bool) *PolymorphismDefinition {
	return &PolymorphismDefinition{
		entity: entity,
		member: member,
		shadow: shadow,
		byType: map[reflect.Type]any{},
		byKey:  map[string]reflect.Type{},
	}
}

func (p *PolymorphismDefinition) Entity() reflect.Type   { return p.entity }
func (p *PolymorphismDefinition) Member() string         { return p.member }
func (p *PolymorphismDefinition) Shadow() bool           { return p.shadow }
func (p *PolymorphismDefinition) Kind() DiscriminatorKind { return p.kind }

// Subtypes returns the registered subtypes in registration order.
func (p *PolymorphismDefinition) Subtypes() []Subtype {
	out := make([]Subtype, len(p.subtypes))
	copy(out, p.subtypes)
	return out
}

// ValueFor returns the discriminator value registered for t.
func (p *PolymorphismDefinition) ValueFor(t reflect.Type) (any, bool) {
	v, ok := p.byType[t]
	return v, ok
}

// SubtypeFor maps a normalized discriminator key back to its concrete type.
func (p *PolymorphismDefinition) SubtypeFor(key string) (reflect.Type, bool) {
	t, ok := p.byKey[key]
	return t, ok
}

// ExpectedKeys lists every registered discriminator key, for error messages.
func (p *PolymorphismDefinition) ExpectedKeys() []string {
	out := make([]string, 0, len(p.subtypes))
	for _, s := range p.subtypes {
		k, _, _ := DiscriminatorKey(s.Value)
		out = append(out, k)
	}
	return out
}

// AddSubtype registers a concrete type with its discriminator value. It fails
// on a duplicate type, a duplicate value, a non-primitive value, or a value
// whose kind differs from previously registered values.
func (p *PolymorphismDefinition) AddSubtype(t reflect.Type, value any) error {
	if p.frozen {
		return &ConfigError{Entity: p.entity.String(), Code: CodeFrozen, Message: "definition is frozen"}
	}
	key, kind, err := DiscriminatorKey(value)
	if err != nil {
		return &ConfigError{
			Entity: p.entity.String(), Code: CodeDiscriminatorKind,
			Message: err.Error(),
		}
	}
	if p.kind != DiscriminatorUnset && p.kind != kind {
		return &ConfigError{
			Entity: p.entity.String(), Code: CodeDiscriminatorKind,
			Message: fmt.Sprintf("discriminator value %v mixes kinds within one hierarchy", value),
		}
	}
	if _, ok := p.byType[t]; ok {
		return &ConfigError{
			Entity: p.entity.String(), Code: CodeDiscriminatorDup,
			Message: fmt.Sprintf("subtype %v registered twice", t),
		}
	}
	if prev, ok := p.byKey[key]; ok {
		return &ConfigError{
			Entity: p.entity.String(), Code: CodeDiscriminatorDup,
			Message: fmt.Sprintf("discriminator value %q already maps to %v", key, prev),
		}
	}
	p.kind = kind
	p.subtypes = append(p.subtypes, Subtype{Type: t, Value: value})
	p.byType[t] = value
	p.byKey[key] = t
	return nil
}

func (p *PolymorphismDefinition) freeze() { p.frozen = true }

// DiscriminatorKey normalizes a discriminator value to its string key and
// reports the value kind. Only string-kinded and integer-kinded values are
// legal discriminators.
func DiscriminatorKey(value any) (string, DiscriminatorKind, error) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), DiscriminatorString, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), DiscriminatorInt, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), DiscriminatorInt, nil
	default:
		return "", DiscriminatorUnset, fmt.Errorf("discriminator value %v must be string- or integer-kinded, got %T", value, value)
	}
}
