// Package convcache owns converter-instance resolution for one engine
// builder. The cache is deliberately builder-scoped, never process-wide, so
// dependency-resolved instances cannot leak between unrelated configuration
// contexts.
package convcache

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/jsonfig/jsonfig"
)

// Cache resolves converter definitions to instances. Type-based converters
// are cached by converter type; function-based converters are unique closures
// and are returned as-is, never cached.
type Cache struct {
	mu sync.Mutex
	m  map[reflect.Type]jsonfig.Converter
}

func New() *Cache {
	return &Cache{m: map[reflect.Type]jsonfig.Converter{}}
}

// Resolve materializes the converter for def. When a resolver is supplied it
// is authoritative for type-based definitions: a nil or non-Converter result
// is a *jsonfig.ConfigError naming the converter type, with no fallback to
// zero construction. Without a resolver the type is zero-constructed.
func (c *Cache) Resolve(def *jsonfig.ConverterDefinition, resolver jsonfig.Resolver) (jsonfig.Converter, error) {
	if def.Kind() == jsonfig.ConverterByFunc {
		return def.Instance(), nil
	}
	t := def.ConverterType()

	c.mu.Lock()
	cached, ok := c.m[t]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	var conv jsonfig.Converter
	if resolver != nil {
		inst := resolver(t)
		if inst == nil {
			return nil, &jsonfig.ConfigError{
				Code:    jsonfig.CodeConverterResolution,
				Message: fmt.Sprintf("dependency resolver returned nothing for converter %v", t),
			}
		}
		var okc bool
		conv, okc = inst.(jsonfig.Converter)
		if !okc {
			return nil, &jsonfig.ConfigError{
				Code:    jsonfig.CodeConverterResolution,
				Message: fmt.Sprintf("dependency resolver produced %T for converter %v, which does not implement jsonfig.Converter", inst, t),
			}
		}
	} else {
		var err error
		conv, err = def.Probe()
		if err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.m[t] = conv
	c.mu.Unlock()
	return conv, nil
}
