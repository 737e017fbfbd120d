// Package accessor compiles struct member access into reusable getter/setter
// closures. Accessors are cache-owned singletons keyed by (owner type, member)
// and are shared across every entity and serialization call that touches the
// member; they handle unexported fields and fields promoted from
// value-embedded structs.
package accessor

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// Accessor reads and writes one struct member through precompiled closures.
// The struct value handed to Get/Set must be addressable.
type Accessor struct {
	Owner  reflect.Type
	Member string
	Type   reflect.Type // member type
	Index  []int
	Offset uintptr // cumulative offset from the struct base (value embedding only)

	get func(sv reflect.Value) reflect.Value
	set func(sv reflect.Value, v reflect.Value) error
}

type cacheKey struct {
	owner  reflect.Type
	member string
}

var cache sync.Map // cacheKey -> *Accessor

// For returns the compiled accessor for member on owner, building and caching
// it on first use. owner must be a struct type (one pointer level is
// unwrapped). Members reached through pointer embedding are rejected: offset
// arithmetic and nil-hop semantics make them unsafe targets for redirection.
func For(owner reflect.Type, member string) (*Accessor, error) {
	if owner.Kind() == reflect.Pointer {
		owner = owner.Elem()
	}
	if owner.Kind() != reflect.Struct {
		return nil, fmt.Errorf("accessor: %v is not a struct type", owner)
	}
	key := cacheKey{owner: owner, member: member}
	if v, ok := cache.Load(key); ok {
		return v.(*Accessor), nil
	}
	a, err := compile(owner, member)
	if err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(key, a)
	return actual.(*Accessor), nil
}

func compile(owner reflect.Type, member string) (*Accessor, error) {
	f, ok := owner.FieldByName(member)
	if !ok {
		return nil, fmt.Errorf("accessor: %v has no member %q", owner, member)
	}
	offset := uintptr(0)
	t := owner
	for _, i := range f.Index {
		sf := t.Field(i)
		if sf.Type.Kind() == reflect.Pointer && sf.Anonymous {
			return nil, fmt.Errorf("accessor: member %q of %v is promoted through a pointer embedding", member, owner)
		}
		offset += sf.Offset
		t = sf.Type
	}

	a := &Accessor{Owner: owner, Member: member, Type: f.Type, Index: f.Index, Offset: offset}
	idx := f.Index
	ft := f.Type
	a.get = func(sv reflect.Value) reflect.Value {
		fv := sv.FieldByIndex(idx)
		if fv.CanInterface() {
			return fv
		}
		return reflect.NewAt(ft, unsafe.Pointer(fv.UnsafeAddr())).Elem()
	}
	a.set = func(sv reflect.Value, v reflect.Value) error {
		fv := sv.FieldByIndex(idx)
		if !fv.CanSet() {
			fv = reflect.NewAt(ft, unsafe.Pointer(fv.UnsafeAddr())).Elem()
		}
		if v.Type() != ft {
			if !v.Type().ConvertibleTo(ft) {
				return fmt.Errorf("accessor: cannot assign %v to member %q of type %v", v.Type(), member, ft)
			}
			v = v.Convert(ft)
		}
		fv.Set(v)
		return nil
	}
	return a, nil
}

// Get returns a readable view of the member value, bypassing exportedness.
func (a *Accessor) Get(structVal reflect.Value) reflect.Value { return a.get(structVal) }

// Set writes v into the member, converting when the types differ but are
// convertible.
func (a *Accessor) Set(structVal reflect.Value, v reflect.Value) error { return a.set(structVal, v) }

// GetAt reads the member value from a raw struct base pointer. Used by
// engine hooks that operate on unsafe pointers rather than reflect values.
func (a *Accessor) GetAt(base unsafe.Pointer) reflect.Value {
	return reflect.NewAt(a.Type, unsafe.Add(base, a.Offset)).Elem()
}

// SetAt writes v to the member through a raw struct base pointer.
func (a *Accessor) SetAt(base unsafe.Pointer, v reflect.Value) error {
	fv := reflect.NewAt(a.Type, unsafe.Add(base, a.Offset)).Elem()
	if v.Type() != a.Type {
		if !v.Type().ConvertibleTo(a.Type) {
			return fmt.Errorf("accessor: cannot assign %v to member %q of type %v", v.Type(), a.Member, a.Type)
		}
		v = v.Convert(a.Type)
	}
	fv.Set(v)
	return nil
}
