// Package plan projects frozen entity definitions into per-type translation
// plans shared by both engine adapters: the aggregated inheritance chain
// (value-embedded configured ancestors applied base-to-derived, most-derived
// wins), effective JSON names under the global naming convention, compiled
// member accessors, resolved converter instances, and the polymorphism
// dispatch tables. Plans are computed once per concrete type and memoized.
package plan

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/jsonfig/jsonfig"
	"github.com/jsonfig/jsonfig/internal/accessor"
	"github.com/jsonfig/jsonfig/internal/convcache"
)

// Property is the fully resolved rendering plan for one member.
type Property struct {
	Member    string
	JSONName  string
	Order     int
	HasOrder  bool
	Required  bool
	Field     reflect.StructField
	Target    *accessor.Accessor // backing-field accessor when redirected, member accessor otherwise
	Conv      jsonfig.Converter  // resolved instance, nil when none
	Surrogate reflect.Type       // Conv's surrogate type, nil when no converter
}

// Nillable reports whether the member's target type can hold JSON null.
func (p *Property) Nillable() bool {
	switch p.Target.Type.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

// Entity is the rendering plan for one struct type: its non-ignored members
// in emit order plus the reverse lookup used on decode.
type Entity struct {
	Type     reflect.Type
	Props    []*Property
	ByJSON   map[string]*Property
	Required []string // effective JSON names of required members
}

// Poly is the dispatch table for one polymorphic hierarchy root.
type Poly struct {
	Root     reflect.Type
	DiscName string // JSON key of the discriminator
	Shadow   bool
	Member   string // Go member name, "" when shadow
	ByKey    map[string]reflect.Type
	Expected []string
}

// SubtypePlan carries the per-concrete-type facts needed to tag on write and
// force the discriminator member after decode.
type SubtypePlan struct {
	Poly       *Poly
	Registered reflect.Type // type as registered, possibly a pointer type
	Struct     reflect.Type
	Key        string
	Value      any
	Force      *accessor.Accessor // discriminator member accessor, nil when shadow or absent

	// Pointer means decode dispatch must assign *Struct to the destination:
	// the subtype was registered as a pointer type, or only the pointer type
	// implements an interface root (pointer-receiver implementation).
	Pointer bool
}

// Set is the complete translation plan for one build. Entity plans for types
// that were never directly configured but embed configured ancestors are
// derived lazily on first use and memoized.
type Set struct {
	defs     map[reflect.Type]*jsonfig.EntityDefinition
	naming   jsonfig.NamingConvention
	cache    *convcache.Cache
	resolver jsonfig.Resolver

	entities sync.Map // reflect.Type -> *Entity (nil entries cached as notConfigured)

	Polys    []*Poly
	ByRoot   map[reflect.Type]*Poly
	Subtypes map[reflect.Type]*SubtypePlan // keyed by registered type and by struct type
}

type notConfigured struct{}

var none = notConfigured{}

// Compute builds the eager portion of the plan set: every configured struct
// entity, every polymorphic root, and every registered subtype. Configuration
// errors (converter resolution, accessor compilation, merged-name collisions)
// surface here, before any native settings object exists.
func Compute(
	defs map[reflect.Type]*jsonfig.EntityDefinition,
	naming jsonfig.NamingConvention,
	cache *convcache.Cache,
	resolver jsonfig.Resolver,
) (*Set, error) {
	s := &Set{
		defs:     defs,
		naming:   naming,
		cache:    cache,
		resolver: resolver,
		ByRoot:   map[reflect.Type]*Poly{},
		Subtypes: map[reflect.Type]*SubtypePlan{},
	}

	for t, def := range defs {
		if poly := def.Polymorphism(); poly != nil {
			if err := s.addPoly(t, def, poly); err != nil {
				return nil, err
			}
		}
	}
	for t := range defs {
		if t.Kind() != reflect.Struct {
			continue
		}
		if _, err := s.EntityFor(t); err != nil {
			return nil, err
		}
	}
	for _, sp := range s.Subtypes {
		if _, err := s.EntityFor(sp.Struct); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) addPoly(root reflect.Type, def *jsonfig.EntityDefinition, pd *jsonfig.PolymorphismDefinition) error {
	p := &Poly{
		Root:   root,
		Shadow: pd.Shadow(),
		ByKey:  map[string]reflect.Type{},
	}
	if pd.Shadow() {
		p.DiscName = pd.Member()
	} else {
		p.Member = pd.Member()
		p.DiscName = s.naming.Apply(pd.Member())
		if prop := def.Property(pd.Member()); prop != nil && prop.JSONName() != "" {
			p.DiscName = prop.JSONName()
		}
	}
	for _, sub := range pd.Subtypes() {
		key, _, err := jsonfig.DiscriminatorKey(sub.Value)
		if err != nil {
			return &jsonfig.ConfigError{Entity: root.String(), Code: jsonfig.CodeDiscriminatorKind, Message: err.Error()}
		}
		st := sub.Type
		if st.Kind() == reflect.Pointer {
			st = st.Elem()
		}
		sp := &SubtypePlan{Poly: p, Registered: sub.Type, Struct: st, Key: key, Value: sub.Value}
		sp.Pointer = sub.Type.Kind() == reflect.Pointer ||
			(root.Kind() == reflect.Interface && !sub.Type.Implements(root))
		if !pd.Shadow() {
			if acc, err := accessor.For(st, pd.Member()); err == nil {
				sp.Force = acc
			}
		}
		p.ByKey[key] = sub.Type
		p.Expected = append(p.Expected, key)
		s.Subtypes[sub.Type] = sp
		s.Subtypes[st] = sp
	}
	s.Polys = append(s.Polys, p)
	s.ByRoot[root] = p
	return nil
}

// EntityFor returns the rendering plan for struct type t, or nil when neither
// t nor any of its value-embedded ancestors is configured.
func (s *Set) EntityFor(t reflect.Type) (*Entity, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, nil
	}
	if v, ok := s.entities.Load(t); ok {
		if _, miss := v.(notConfigured); miss {
			return nil, nil
		}
		return v.(*Entity), nil
	}
	e, err := s.compute(t)
	if err != nil {
		return nil, err
	}
	if e == nil {
		s.entities.Store(t, none)
		return nil, nil
	}
	actual, _ := s.entities.LoadOrStore(t, e)
	return actual.(*Entity), nil
}

// mergedFacts is the member configuration after base-to-derived aggregation.
type mergedFacts struct {
	jsonName string
	order    int
	hasOrder bool
	ignored  bool
	required bool
	backing  string
	conv     *jsonfig.ConverterDefinition
}

func (s *Set) compute(t reflect.Type) (*Entity, error) {
	chain := s.ancestorChain(t)
	if len(chain) == 0 {
		return nil, nil
	}

	merged := map[string]*mergedFacts{}
	for _, def := range chain {
		for _, p := range def.Properties() {
			f := merged[p.Member()]
			if f == nil {
				f = &mergedFacts{}
				merged[p.Member()] = f
			}
			if p.JSONName() != "" {
				f.jsonName = p.JSONName()
			}
			if o, ok := p.Order(); ok {
				f.order, f.hasOrder = o, true
			}
			if p.Ignored() {
				f.ignored = true
			}
			if p.Required() {
				f.required = true
			}
			if p.BackingField() != "" {
				f.backing = p.BackingField()
			}
			if p.Converter() != nil {
				f.conv = p.Converter()
			}
		}
	}

	e := &Entity{Type: t, ByJSON: map[string]*Property{}}
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous && (f.Type.Kind() == reflect.Struct ||
			(f.Type.Kind() == reflect.Pointer && f.Type.Elem().Kind() == reflect.Struct)) {
			continue // container; its promoted leaves are visited separately
		}
		if f.PkgPath != "" && merged[f.Name] == nil {
			continue // unexported and unconfigured
		}
		facts := merged[f.Name]
		if facts == nil {
			facts = &mergedFacts{}
		}
		if facts.ignored {
			continue
		}
		if unsupportedKind(f.Type.Kind()) && facts.conv == nil {
			continue
		}

		target := f.Name
		if facts.backing != "" {
			target = facts.backing
		}
		acc, err := accessor.For(t, target)
		if err != nil {
			if facts.backing == "" && merged[f.Name] == nil {
				continue // unconfigured member the accessor cannot serve
			}
			return nil, &jsonfig.ConfigError{
				Entity: t.String(), Member: f.Name, Code: jsonfig.CodeBackingFieldMissing,
				Message: err.Error(),
			}
		}

		p := &Property{
			Member:   f.Name,
			Order:    facts.order,
			HasOrder: facts.hasOrder,
			Required: facts.required,
			Field:    f,
			Target:   acc,
		}
		if facts.jsonName != "" {
			p.JSONName = facts.jsonName
		} else {
			p.JSONName = s.naming.Apply(f.Name)
		}
		if facts.conv != nil {
			conv, err := s.cache.Resolve(facts.conv, s.resolver)
			if err != nil {
				if ce, ok := err.(*jsonfig.ConfigError); ok && ce.Entity == "" {
					ce.Entity, ce.Member = t.String(), f.Name
				}
				return nil, err
			}
			p.Conv = conv
			p.Surrogate = conv.SurrogateType()
		}

		if prev, dup := e.ByJSON[p.JSONName]; dup {
			return nil, &jsonfig.ConfigError{
				Entity: t.String(), Member: p.Member, Code: jsonfig.CodeDuplicateJSONName,
				Message: fmt.Sprintf("members %s and %s both resolve to JSON name %q after aggregation", prev.Member, p.Member, p.JSONName),
			}
		}
		e.Props = append(e.Props, p)
		e.ByJSON[p.JSONName] = p
		if p.Required {
			e.Required = append(e.Required, p.JSONName)
		}
	}

	seq := map[*Property]int{}
	for i, p := range e.Props {
		seq[p] = i
	}
	sort.SliceStable(e.Props, func(i, j int) bool {
		a, b := e.Props[i], e.Props[j]
		switch {
		case a.HasOrder && b.HasOrder:
			if a.Order != b.Order {
				return a.Order < b.Order
			}
			return seq[a] < seq[b]
		case a.HasOrder:
			return true
		case b.HasOrder:
			return false
		default:
			return seq[a] < seq[b]
		}
	})
	return e, nil
}

// ancestorChain collects the configured definitions contributing to t, most
// basal first, ending with t's own definition when present. Only
// value-embedded ancestors participate.
func (s *Set) ancestorChain(t reflect.Type) []*jsonfig.EntityDefinition {
	var out []*jsonfig.EntityDefinition
	var walk func(st reflect.Type)
	walk = func(st reflect.Type) {
		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			if !f.Anonymous || f.Type.Kind() != reflect.Struct {
				continue
			}
			walk(f.Type)
			if d, ok := s.defs[f.Type]; ok {
				out = append(out, d)
			}
		}
	}
	walk(t)
	if d, ok := s.defs[t]; ok {
		out = append(out, d)
	}
	return out
}

func unsupportedKind(k reflect.Kind) bool {
	switch k {
	case reflect.UnsafePointer, reflect.Uintptr, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

// SubtypeFor looks up the subtype plan for a concrete runtime type. One
// pointer level is unwrapped so a *T value matches a value-registered T.
func (s *Set) SubtypeFor(t reflect.Type) (*SubtypePlan, bool) {
	if sp, ok := s.Subtypes[t]; ok {
		return sp, true
	}
	if t.Kind() == reflect.Pointer {
		sp, ok := s.Subtypes[t.Elem()]
		return sp, ok
	}
	return nil, false
}

// Suppresses reports whether emitting key alongside the discriminator would
// duplicate it: key is the tag's wire name, or the declared name of the
// discriminator member (an unconfigured subtype renders the member under its
// Go name regardless of the naming convention).
func (p *Poly) Suppresses(key string) bool {
	return key == p.DiscName || (!p.Shadow && key == p.Member)
}
