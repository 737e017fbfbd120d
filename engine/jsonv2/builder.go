// Package jsonv2 translates frozen jsonfig definitions into a json.Options
// bundle for github.com/go-json-experiment/json. The engine's Marshalers and
// Unmarshalers registries act as the type-keyed hook: one catch-all marshal
// function and one catch-all unmarshal function dispatch on the runtime type,
// fall back with json.SkipFunc for unconfigured types, and otherwise render
// entities from the precomputed plan (rename, order, required, backing-field
// accessors, converters, discriminator injection and dispatch).
package jsonv2

import (
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/jsonfig/jsonfig"
	"github.com/jsonfig/jsonfig/dsl"
	"github.com/jsonfig/jsonfig/internal/convcache"
	"github.com/jsonfig/jsonfig/internal/plan"
)

// Builder accumulates configuration and produces the native json.Options.
// Mutation methods are chainable; errors raised while chaining are recorded
// and surfaced from Build.
type Builder struct {
	core   *dsl.ModelBuilder
	naming jsonfig.NamingConvention
	pretty bool
	err    error
}

func NewBuilder() *Builder {
	return &Builder{core: dsl.NewModelBuilder()}
}

// Apply runs one configuration contribution. Safe for concurrent use until
// Build.
func (b *Builder) Apply(cfg dsl.EntityConfig) *Builder {
	if err := b.core.Apply(cfg); err != nil {
		b.recordErr(err)
	}
	return b
}

// ApplyFrom instantiates and applies every configuration type enumerated by
// src, resolving each through resolver when one is supplied.
func (b *Builder) ApplyFrom(src dsl.ConfigSource, resolver jsonfig.Resolver) *Builder {
	if err := b.core.ApplyFrom(src, resolver); err != nil {
		b.recordErr(err)
	}
	return b
}

// Naming selects the global key convention for configured entities.
func (b *Builder) Naming(c jsonfig.NamingConvention) *Builder {
	if b.core.Built() {
		b.recordErr(&jsonfig.ConfigError{Code: jsonfig.CodeAlreadyBuilt, Message: "naming cannot change after Build"})
		return b
	}
	b.naming = c
	return b
}

// Pretty toggles indented output.
func (b *Builder) Pretty(on bool) *Builder {
	if b.core.Built() {
		b.recordErr(&jsonfig.ConfigError{Code: jsonfig.CodeAlreadyBuilt, Message: "pretty-printing cannot change after Build"})
		return b
	}
	b.pretty = on
	return b
}

// Build validates and freezes every definition and returns the engine-native
// options. The optional resolver supplies converter (and configuration)
// instances from a DI container. Build may be called once per builder;
// repeated calls fail with a *jsonfig.ConfigError.
func (b *Builder) Build(resolver jsonfig.Resolver) (json.Options, error) {
	if b.err != nil {
		return nil, b.err
	}
	defs, err := b.core.Finalize(b.naming)
	if err != nil {
		return nil, err
	}
	set, err := plan.Compute(defs, b.naming, convcache.New(), resolver)
	if err != nil {
		return nil, err
	}

	a := &adapter{set: set}
	opts := []json.Options{
		json.WithMarshalers(json.MarshalToFunc(a.marshalAny)),
		json.WithUnmarshalers(json.UnmarshalFromFunc(a.unmarshalAny)),
	}
	if b.pretty {
		opts = append(opts, jsontext.WithIndent("  "))
	}
	full := json.JoinOptions(opts...)
	a.opts = full
	a.inner = json.JoinOptions(json.WithMarshalers(json.MarshalToFunc(a.marshalUntagged)))
	return full, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild(resolver jsonfig.Resolver) json.Options {
	opts, err := b.Build(resolver)
	if err != nil {
		panic(err)
	}
	return opts
}

func (b *Builder) recordErr(err error) {
	if b.err == nil {
		b.err = err
	}
}
