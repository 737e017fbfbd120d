// Package jsoniter translates frozen jsonfig definitions into a frozen
// github.com/json-iterator/go API. The engine's Extension mechanism is the
// hook: a registered extension supplies plan-driven value encoders and
// decoders for configured entity structs and polymorphic interface roots,
// and decorates the default codecs of unconfigured subtype structs so the
// discriminator is injected on write. Extension callbacks fire lazily, on
// the first encode or decode of each type.
package jsoniter

import (
	ji "github.com/json-iterator/go"

	"github.com/jsonfig/jsonfig"
	"github.com/jsonfig/jsonfig/dsl"
	"github.com/jsonfig/jsonfig/internal/convcache"
	"github.com/jsonfig/jsonfig/internal/plan"
)

// Builder accumulates configuration and produces the native frozen API.
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

// Build validates and freezes every definition and returns a frozen API with
// the model extension registered. The optional resolver supplies converter
// (and configuration) instances from a DI container. Build may be called once
// per builder; repeated calls fail with a *jsonfig.ConfigError.
func (b *Builder) Build(resolver jsonfig.Resolver) (ji.API, error) {
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

	cfg := ji.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
	}
	if b.pretty {
		cfg.IndentionStep = 2
	}
	api := cfg.Froze()
	ext := &modelExtension{set: set}
	api.RegisterExtension(ext)
	ext.api = api
	return api, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild(resolver jsonfig.Resolver) ji.API {
	api, err := b.Build(resolver)
	if err != nil {
		panic(err)
	}
	return api
}

func (b *Builder) recordErr(err error) {
	if b.err == nil {
		b.err = err
	}
}
