package jsonfig

import "reflect"

// IsSubtype reports whether t is a true subtype of base: for interface bases,
// t (or *t) implements the interface and is not the interface itself; for
// struct bases, t value-embeds base somewhere in its embedding chain.
func IsSubtype(base, t reflect.Type) bool {
	if base == nil || t == nil || base == t {
		return false
	}
	if base.Kind() == reflect.Interface {
		if t.Kind() == reflect.Interface {
			return false
		}
		if t.Implements(base) {
			return true
		}
		if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(base) {
			return true
		}
		return false
	}
	if base.Kind() != reflect.Struct {
		return false
	}
	return embedsStruct(structType(t), base)
}

func embedsStruct(t, base reflect.Type) bool {
	if t == nil || t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous || f.Type.Kind() != reflect.Struct {
			continue
		}
		if f.Type == base || embedsStruct(f.Type, base) {
			return true
		}
	}
	return false
}

// structType unwraps one level of pointer indirection down to a struct type,
// returning nil when t does not resolve to a struct.
func structType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// HasMember reports whether t (or the struct behind one pointer level)
// declares a field named member, including fields promoted from value-embedded
// structs and unexported fields.
func HasMember(t reflect.Type, member string) bool {
	st := structType(t)
	if st == nil {
		return false
	}
	_, ok := st.FieldByName(member)
	return ok
}
