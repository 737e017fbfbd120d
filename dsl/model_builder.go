package dsl

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/jsonfig/jsonfig"
)

// ModelBuilder is the registry shared by the engine builders. It accepts
// configuration contributions from many goroutines before finalization,
// merges repeated contributions for the same entity property-by-property
// (last write wins per property), and on Finalize validates and freezes every
// definition exactly once. A finalized builder rejects further contributions
// and a second Finalize.
type ModelBuilder struct {
	entities sync.Map // reflect.Type -> *entityState
	built    atomic.Bool
}

type entityState struct {
	mu sync.Mutex
	b  *EntityBuilder
}

func NewModelBuilder() *ModelBuilder { return &ModelBuilder{} }

// Apply runs one configuration contribution. Contributions for the same
// entity type share one entity builder, so later contributions merge into
// earlier ones at property granularity. Safe for concurrent use until
// Finalize.
func (m *ModelBuilder) Apply(cfg EntityConfig) error {
	if m.built.Load() {
		return &jsonfig.ConfigError{
			Code:    jsonfig.CodeAlreadyBuilt,
			Message: "configuration cannot be applied after Build",
		}
	}
	t := cfg.EntityType()
	st := m.stateFor(t)
	st.mu.Lock()
	defer st.mu.Unlock()
	cfg.Configure(st.b)
	return st.b.err
}

// ApplyFrom instantiates and applies every configuration type enumerated by
// src. When a resolver is supplied it is authoritative: a nil result for a
// configuration type is an error. Without a resolver, types are
// zero-constructed.
func (m *ModelBuilder) ApplyFrom(src ConfigSource, resolver jsonfig.Resolver) error {
	for _, ct := range src.ConfigTypes() {
		cfg, err := instantiateConfig(ct, resolver)
		if err != nil {
			return err
		}
		if err := m.Apply(cfg); err != nil {
			return err
		}
	}
	return nil
}

func instantiateConfig(t reflect.Type, resolver jsonfig.Resolver) (EntityConfig, error) {
	var inst any
	if resolver != nil {
		inst = resolver(t)
		if inst == nil {
			return nil, &jsonfig.ConfigError{
				Code:    jsonfig.CodeResolutionUnavailable,
				Message: fmt.Sprintf("dependency resolver returned nothing for configuration type %v", t),
			}
		}
	} else if t.Kind() == reflect.Pointer {
		inst = reflect.New(t.Elem()).Interface()
	} else {
		inst = reflect.New(t).Elem().Interface()
	}
	cfg, ok := inst.(EntityConfig)
	if !ok {
		return nil, &jsonfig.ConfigError{
			Code:    jsonfig.CodeConfigNotApplicable,
			Message: fmt.Sprintf("%v does not implement dsl.EntityConfig", t),
		}
	}
	return cfg, nil
}

func (m *ModelBuilder) stateFor(t reflect.Type) *entityState {
	if v, ok := m.entities.Load(t); ok {
		return v.(*entityState)
	}
	v, _ := m.entities.LoadOrStore(t, &entityState{b: NewEntityBuilder(t)})
	return v.(*entityState)
}

// Finalize extracts, validates, and freezes every registered definition and
// marks the builder permanently built. Calling Finalize twice fails: the
// engine builders own build-scoped state (converter caches) that must not be
// shared between two settings objects.
func (m *ModelBuilder) Finalize(naming jsonfig.NamingConvention) (map[reflect.Type]*jsonfig.EntityDefinition, error) {
	if !m.built.CompareAndSwap(false, true) {
		return nil, &jsonfig.ConfigError{
			Code:    jsonfig.CodeAlreadyBuilt,
			Message: "Build may be called once per builder",
		}
	}
	defs := map[reflect.Type]*jsonfig.EntityDefinition{}
	var err error
	m.entities.Range(func(key, value any) bool {
		st := value.(*entityState)
		st.mu.Lock()
		defer st.mu.Unlock()
		var def *jsonfig.EntityDefinition
		def, err = st.b.Definition()
		if err != nil {
			return false
		}
		if iss := jsonfig.Validate(def, naming); len(iss) > 0 {
			err = iss
			return false
		}
		def.Freeze()
		defs[key.(reflect.Type)] = def
		return true
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// Built reports whether Finalize already ran.
func (m *ModelBuilder) Built() bool { return m.built.Load() }
