package jsonfig

import "github.com/go-openapi/inflect"

// NamingConvention selects the global key transformation applied to members of
// configured entities. An explicit per-property name override always wins over
// the convention.
type NamingConvention int

const (
	NamingAsDeclared NamingConvention = iota // Keep the Go field name.
	NamingCamelCase                          // firstName
	NamingSnakeCase                          // first_name
)

// Apply transforms a declared member name according to the convention. The
// transformation is idempotent: a name already in the target shape is returned
// unchanged.
func (c NamingConvention) Apply(name string) string {
	switch c {
	case NamingCamelCase:
		return inflect.CamelizeDownFirst(inflect.Underscore(name))
	case NamingSnakeCase:
		return inflect.Underscore(name)
	default:
		return name
	}
}

func (c NamingConvention) String() string {
	switch c {
	case NamingCamelCase:
		return "camelCase"
	case NamingSnakeCase:
		return "snake_case"
	default:
		return "as-declared"
	}
}
