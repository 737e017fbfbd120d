package jsonfig

import (
	"fmt"
	"reflect"
)

// Converter transforms between a model value and a JSON-representable
// surrogate value. Implementations must be safe for concurrent use; type-based
// converters are cached per engine builder and shared across serialization
// calls.
type Converter interface {
	ModelType() reflect.Type
	SurrogateType() reflect.Type
	// ToJSON converts a model value into its surrogate. The argument is
	// assignable to ModelType.
	ToJSON(model any) (any, error)
	// FromJSON converts a surrogate back into a model value. The argument is
	// assignable to SurrogateType.
	FromJSON(surrogate any) (any, error)
}

// ConvertFunc builds a Converter from two function literals. The functions are
// captured once at configuration time; the returned converter is attached to
// exactly one property and never cached across builders.
func ConvertFunc[M, S any](to func(M) (S, error), from func(S) (M, error)) Converter {
	return &funcConverter[M, S]{to: to, from: from}
}

type funcConverter[M, S any] struct {
	to   func(M) (S, error)
	from func(S) (M, error)
}

func (c *funcConverter[M, S]) ModelType() reflect.Type     { return reflect.TypeFor[M]() }
func (c *funcConverter[M, S]) SurrogateType() reflect.Type { return reflect.TypeFor[S]() }

func (c *funcConverter[M, S]) ToJSON(model any) (any, error) {
	m, ok := model.(M)
	if !ok {
		return nil, fmt.Errorf("expected %v, got %T", reflect.TypeFor[M](), model)
	}
	return c.to(m)
}

func (c *funcConverter[M, S]) FromJSON(surrogate any) (any, error) {
	s, ok := surrogate.(S)
	if !ok {
		return nil, fmt.Errorf("expected %v, got %T", reflect.TypeFor[S](), surrogate)
	}
	return c.from(s)
}

// ConverterKind discriminates the two converter-definition variants.
type ConverterKind int

const (
	ConverterByType ConverterKind = iota // instantiate by type, optionally DI-resolved
	ConverterByFunc                      // precompiled function pair, held as an instance
)

// ConverterDefinition records the converter configured for one property.
// Definitions are immutable after construction.
type ConverterDefinition struct {
	kind          ConverterKind
	converterType reflect.Type
	instance      Converter
}

// NewTypeConverter declares a converter to be instantiated from t. The type
// must implement Converter with either value or pointer receivers; register
// pointer types (TypeOf[*MyConverter]()) for pointer-receiver implementations.
func NewTypeConverter(t reflect.Type) *ConverterDefinition {
	return &ConverterDefinition{kind: ConverterByType, converterType: t}
}

// ConverterTypeOf returns the reflect.Type handle for a converter
// implementation, checked against the Converter interface at compile time.
// Pass the receiver form the implementation uses: ConverterTypeOf[myConv] for
// value receivers, ConverterTypeOf[*myConv] for pointer receivers.
func ConverterTypeOf[C Converter]() reflect.Type { return reflect.TypeFor[C]() }

// NewFuncConverter declares a converter from an already-constructed instance,
// typically produced by ConvertFunc.
func NewFuncConverter(c Converter) *ConverterDefinition {
	return &ConverterDefinition{kind: ConverterByFunc, instance: c}
}

func (d *ConverterDefinition) Kind() ConverterKind         { return d.kind }
func (d *ConverterDefinition) ConverterType() reflect.Type { return d.converterType }

// Instance returns the held converter for ConverterByFunc definitions and nil
// otherwise; type-based converters are materialized by the engine builders.
func (d *ConverterDefinition) Instance() Converter { return d.instance }

// Probe returns a throwaway instance used to inspect the model and surrogate
// types before build. For type-based definitions this zero-constructs the
// converter type; dependency-resolved state is not involved.
func (d *ConverterDefinition) Probe() (Converter, error) {
	if d.kind == ConverterByFunc {
		return d.instance, nil
	}
	return constructConverter(d.converterType)
}

func constructConverter(t reflect.Type) (Converter, error) {
	if t == nil {
		return nil, &ConfigError{Code: CodeConverterInvalid, Message: "converter type is nil"}
	}
	var v any
	if t.Kind() == reflect.Pointer {
		v = reflect.New(t.Elem()).Interface()
	} else {
		v = reflect.New(t).Elem().Interface()
	}
	c, ok := v.(Converter)
	if !ok {
		return nil, &ConfigError{
			Code:    CodeConverterInvalid,
			Message: fmt.Sprintf("%v does not implement jsonfig.Converter", t),
		}
	}
	return c, nil
}
