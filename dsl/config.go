package dsl

import (
	"reflect"
)

// EntityConfig is one configuration contribution for one entity type.
// Implementations are typically small structs embedding ConfigOf[T]:
//
//	type UserConfig struct{ dsl.ConfigOf[User] }
//
//	func (UserConfig) Configure(e *dsl.EntityBuilder) {
//		e.Property("Name").Named("display_name")
//	}
type EntityConfig interface {
	EntityType() reflect.Type
	Configure(e *EntityBuilder)
}

// ConfigOf supplies EntityType for configuration structs via embedding.
type ConfigOf[T any] struct{}

func (ConfigOf[T]) EntityType() reflect.Type { return reflect.TypeFor[T]() }

// Define builds an EntityConfig from a function literal, useful in tests and
// for one-off configuration.
func Define[T any](fn func(e *EntityBuilder)) EntityConfig {
	return funcConfig{typ: reflect.TypeFor[T](), fn: fn}
}

type funcConfig struct {
	typ reflect.Type
	fn  func(e *EntityBuilder)
}

func (c funcConfig) EntityType() reflect.Type  { return c.typ }
func (c funcConfig) Configure(e *EntityBuilder) { c.fn(e) }

// ConfigSource enumerates configuration types discovered elsewhere (package
// scanning, registries, code generation). ModelBuilder instantiates each type
// through the optional dependency resolver, falling back to zero construction,
// and applies the resulting EntityConfig.
type ConfigSource interface {
	ConfigTypes() []reflect.Type
}

// Configs adapts an explicit list of configuration types into a ConfigSource.
func Configs(types ...reflect.Type) ConfigSource { return configList(types) }

type configList []reflect.Type

func (l configList) ConfigTypes() []reflect.Type { return l }
