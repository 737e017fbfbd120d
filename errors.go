package jsonfig

import (
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeDuplicateJSONName     = "duplicate_json_name"
	CodeIgnoredRequired       = "ignored_required"
	CodeIgnoredConverter      = "ignored_converter"
	CodeUnknownMember         = "unknown_member"
	CodeBackingFieldMissing   = "backing_field_missing"
	CodeConverterMismatch     = "converter_model_mismatch"
	CodeConverterInvalid      = "converter_invalid"
	CodeConverterResolution   = "converter_resolution"
	CodePolymorphismEmpty     = "polymorphism_empty"
	CodeDiscriminatorMissing  = "discriminator_missing"
	CodeDiscriminatorUnknown  = "discriminator_unknown"
	CodeDiscriminatorKind     = "discriminator_kind_mixed"
	CodeDiscriminatorDup      = "discriminator_value_duplicate"
	CodeNotSubtype            = "not_a_subtype"
	CodeFrozen                = "frozen"
	CodeAlreadyBuilt          = "already_built"
	CodeRequired              = "required"
	CodeConversion            = "conversion_failed"
	CodeNullSurrogate         = "null_surrogate"
	CodeSubtypeUnregistered   = "subtype_unregistered"
	CodeConfigNotApplicable   = "config_not_applicable"
	CodeResolutionUnavailable = "resolution_unavailable"
)

// ConfigError reports misuse of the builder API before or during Build:
// unknown members, missing backing fields, non-instantiable converter types,
// failed dependency resolution, or mutation after the builder was finalized.
type ConfigError struct {
	Entity  string // entity type name, empty when not tied to one entity
	Member  string // member name, empty when not tied to one member
	Code    string // one of the codes listed above
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	b := &strings.Builder{}
	b.WriteString("jsonfig: ")
	b.WriteString(e.Code)
	if e.Entity != "" {
		fmt.Fprintf(b, " entity=%s", e.Entity)
	}
	if e.Member != "" {
		fmt.Fprintf(b, " member=%s", e.Member)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Issue represents a single validation finding against one entity definition.
type Issue struct {
	Entity  string
	Member  string // empty for entity-level rules
	Code    string
	Message string
}

// Issues is a collection of validation findings that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		fmt.Fprintf(b, "%s at %s", it.Code, it.Entity)
		if it.Member != "" {
			fmt.Fprintf(b, ".%s", it.Member)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// CodecError reports a failure raised by a configuration-installed hook during
// an actual serialize or deserialize call: accessor invocation failure, a user
// converter throwing, or an unknown/missing discriminator value on read. The
// original error, when any, is preserved as the cause.
type CodecError struct {
	Entity  string
	Member  string
	Code    string
	Message string
	Cause   error
}

func (e *CodecError) Error() string {
	b := &strings.Builder{}
	b.WriteString("jsonfig: ")
	b.WriteString(e.Code)
	if e.Entity != "" {
		fmt.Fprintf(b, " entity=%s", e.Entity)
	}
	if e.Member != "" {
		fmt.Fprintf(b, " member=%s", e.Member)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *CodecError) Unwrap() error { return e.Cause }
