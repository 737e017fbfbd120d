package jsonfig

import "reflect"

// Resolver supplies instances for a requested type, typically backed by a
// dependency-injection container. A nil return means the resolver cannot
// provide the type. When a resolver is supplied to Build it is authoritative:
// a nil result for a converter or configuration type is a *ConfigError rather
// than a silent fallback to zero construction, so misconfigured registrations
// surface early.
type Resolver func(t reflect.Type) any

// MapResolver adapts a static type-to-instance table into a Resolver.
func MapResolver(instances map[reflect.Type]any) Resolver {
	return func(t reflect.Type) any {
		if instances == nil {
			return nil
		}
		return instances[t]
	}
}

// TypeOf is a convenience shorthand for reflect.TypeFor, used when registering
// polymorphic subtypes and converter types.
func TypeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }
