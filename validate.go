package jsonfig

import (
	"fmt"
	"reflect"
)

// Validate checks one entity definition for cross-cutting consistency before
// it is frozen. It is pure: no state is mutated, and the same definition
// always yields the same findings. Rules run in a fixed order and all
// violations for the entity are reported; a nil return means the definition
// is consistent.
//
// The naming convention participates because two members may only collide
// after the convention is applied.
func Validate(def *EntityDefinition, naming NamingConvention) Issues {
	var iss Issues
	entity := def.Type().String()
	props := def.Properties()

	// No two non-ignored properties may resolve to the same JSON name.
	seen := map[string]string{}
	for _, p := range props {
		if p.Ignored() {
			continue
		}
		name := p.EffectiveName(naming)
		if prev, ok := seen[name]; ok {
			iss = append(iss, Issue{
				Entity: entity, Member: p.Member(), Code: CodeDuplicateJSONName,
				Message: fmt.Sprintf("members %s and %s both resolve to JSON name %q", prev, p.Member(), name),
			})
			continue
		}
		seen[name] = p.Member()
	}

	for _, p := range props {
		if p.Ignored() && p.Required() {
			iss = append(iss, Issue{
				Entity: entity, Member: p.Member(), Code: CodeIgnoredRequired,
				Message: "a property cannot be both ignored and required",
			})
		}
	}

	for _, p := range props {
		if p.Ignored() && p.Converter() != nil {
			iss = append(iss, Issue{
				Entity: entity, Member: p.Member(), Code: CodeIgnoredConverter,
				Message: "a property cannot be both ignored and carry a converter",
			})
		}
	}

	for _, p := range props {
		if p.BackingField() == "" {
			continue
		}
		if !HasMember(def.Type(), p.BackingField()) {
			iss = append(iss, Issue{
				Entity: entity, Member: p.Member(), Code: CodeBackingFieldMissing,
				Message: fmt.Sprintf("backing field %q is not declared on %s or its embedded structs", p.BackingField(), entity),
			})
		}
	}

	iss = append(iss, validateConverters(def, props)...)
	if poly := def.Polymorphism(); poly != nil {
		iss = append(iss, validatePolymorphism(def, poly)...)
	}
	iss = append(iss, validateMembers(def, props)...)

	if len(iss) == 0 {
		return nil
	}
	return iss
}

func validateConverters(def *EntityDefinition, props []*PropertyDefinition) Issues {
	var iss Issues
	entity := def.Type().String()
	st := structType(def.Type())
	for _, p := range props {
		cd := p.Converter()
		if cd == nil || p.Ignored() {
			continue
		}
		conv, err := cd.Probe()
		if err != nil {
			iss = append(iss, Issue{
				Entity: entity, Member: p.Member(), Code: CodeConverterInvalid,
				Message: err.Error(),
			})
			continue
		}
		if st == nil {
			continue
		}
		target := p.Member()
		if p.BackingField() != "" {
			target = p.BackingField()
		}
		f, ok := st.FieldByName(target)
		if !ok {
			continue // reported by the member/backing rules
		}
		if !converterModelCompatible(f.Type, conv.ModelType()) {
			iss = append(iss, Issue{
				Entity: entity, Member: p.Member(), Code: CodeConverterMismatch,
				Message: fmt.Sprintf("converter model type %v does not match property type %v", conv.ModelType(), f.Type),
			})
		}
	}
	return iss
}

// converterModelCompatible accepts a direct or assignable match, unwrapping
// one level of pointer on either side to account for optional wrapping.
func converterModelCompatible(propT, modelT reflect.Type) bool {
	if propT == nil || modelT == nil {
		return false
	}
	if propT.AssignableTo(modelT) {
		return true
	}
	if propT.Kind() == reflect.Pointer && propT.Elem().AssignableTo(modelT) {
		return true
	}
	if modelT.Kind() == reflect.Pointer && propT.AssignableTo(modelT.Elem()) {
		return true
	}
	return false
}

func validatePolymorphism(def *EntityDefinition, poly *PolymorphismDefinition) Issues {
	var iss Issues
	entity := def.Type().String()

	subtypes := poly.Subtypes()
	if len(subtypes) == 0 {
		iss = append(iss, Issue{
			Entity: entity, Code: CodePolymorphismEmpty,
			Message: "polymorphic hierarchy has no registered subtypes",
		})
	}

	if !poly.Shadow() {
		if def.Type().Kind() == reflect.Interface {
			for _, s := range subtypes {
				if !HasMember(s.Type, poly.Member()) {
					iss = append(iss, Issue{
						Entity: entity, Member: poly.Member(), Code: CodeDiscriminatorMissing,
						Message: fmt.Sprintf("discriminator member %q is not declared on subtype %v", poly.Member(), s.Type),
					})
				}
			}
		} else if !HasMember(def.Type(), poly.Member()) {
			iss = append(iss, Issue{
				Entity: entity, Member: poly.Member(), Code: CodeDiscriminatorMissing,
				Message: fmt.Sprintf("discriminator member %q is not declared on %s", poly.Member(), entity),
			})
		}
	}

	kind := DiscriminatorUnset
	keys := map[string]reflect.Type{}
	for _, s := range subtypes {
		key, k, err := DiscriminatorKey(s.Value)
		if err != nil {
			iss = append(iss, Issue{
				Entity: entity, Code: CodeDiscriminatorKind, Message: err.Error(),
			})
			continue
		}
		if kind != DiscriminatorUnset && kind != k {
			iss = append(iss, Issue{
				Entity: entity, Code: CodeDiscriminatorKind,
				Message: "discriminator values mix string and integer kinds",
			})
		}
		kind = k
		if prev, ok := keys[key]; ok {
			iss = append(iss, Issue{
				Entity: entity, Code: CodeDiscriminatorDup,
				Message: fmt.Sprintf("discriminator value %q maps to both %v and %v", key, prev, s.Type),
			})
		}
		keys[key] = s.Type
	}

	for _, s := range subtypes {
		if !IsSubtype(def.Type(), s.Type) {
			iss = append(iss, Issue{
				Entity: entity, Code: CodeNotSubtype,
				Message: fmt.Sprintf("%v is not a subtype of %s", s.Type, entity),
			})
		}
	}
	return iss
}

// validateMembers rejects configuration of members that do not exist on a
// struct entity. Interface roots carry no fields; their only meaningful
// property configuration is a name override for the discriminator member.
func validateMembers(def *EntityDefinition, props []*PropertyDefinition) Issues {
	st := structType(def.Type())
	if st == nil {
		return nil
	}
	var iss Issues
	for _, p := range props {
		if !HasMember(st, p.Member()) {
			iss = append(iss, Issue{
				Entity: def.Type().String(), Member: p.Member(), Code: CodeUnknownMember,
				Message: fmt.Sprintf("member %q is not declared on %s", p.Member(), def.Type()),
			})
		}
	}
	return iss
}
