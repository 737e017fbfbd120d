package jsonfig_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jsonfig/jsonfig"
)

type animal interface{ Sound() string }

type dog struct {
	Kind  string
	Bones int
}

func (dog) Sound() string { return "woof" }

type cat struct {
	Kind  string
	Lives int
}

func (*cat) Sound() string { return "meow" }

type baseRecord struct {
	ID string
}

type derivedRecord struct {
	baseRecord
	Name string
}

type pointerEmbed struct {
	*baseRecord
	Name string
}

func TestEntityDefinition_FreezeRejectsMutation(t *testing.T) {
	def := jsonfig.NewEntityDefinition(jsonfig.TypeOf[dog]())
	p, err := def.EnsureProperty("Kind")
	require.NoError(t, err)
	require.NoError(t, p.SetJSONName("kind"))

	def.Freeze()
	require.True(t, def.Frozen())

	err = p.SetJSONName("other")
	var cfgErr *jsonfig.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, jsonfig.CodeFrozen, cfgErr.Code)

	_, err = def.EnsureProperty("Bones")
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, jsonfig.CodeFrozen, cfgErr.Code)
}

func TestEntityDefinition_FreezeCascadesToPolymorphism(t *testing.T) {
	def := jsonfig.NewEntityDefinition(jsonfig.TypeOf[animal]())
	poly := jsonfig.NewPolymorphismDefinition(jsonfig.TypeOf[animal](), "Kind", false)
	require.NoError(t, poly.AddSubtype(jsonfig.TypeOf[dog](), "dog"))
	require.NoError(t, def.SetPolymorphism(poly))

	def.Freeze()
	err := poly.AddSubtype(jsonfig.TypeOf[*cat](), "cat")
	var cfgErr *jsonfig.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, jsonfig.CodeFrozen, cfgErr.Code)
}

func TestPropertyDefinition_EffectiveName(t *testing.T) {
	def := jsonfig.NewEntityDefinition(jsonfig.TypeOf[derivedRecord]())
	p, err := def.EnsureProperty("Name")
	require.NoError(t, err)

	require.Equal(t, "name", p.EffectiveName(jsonfig.NamingSnakeCase))
	require.NoError(t, p.SetJSONName("URGENT_Override"))
	require.Equal(t, "URGENT_Override", p.EffectiveName(jsonfig.NamingSnakeCase))
}

func TestPolymorphismDefinition_AddSubtype(t *testing.T) {
	poly := jsonfig.NewPolymorphismDefinition(jsonfig.TypeOf[animal](), "Kind", false)
	require.NoError(t, poly.AddSubtype(jsonfig.TypeOf[dog](), "dog"))
	require.NoError(t, poly.AddSubtype(jsonfig.TypeOf[*cat](), "cat"))

	v, ok := poly.ValueFor(jsonfig.TypeOf[dog]())
	require.True(t, ok)
	require.Equal(t, "dog", v)

	st, ok := poly.SubtypeFor("cat")
	require.True(t, ok)
	require.Equal(t, jsonfig.TypeOf[*cat](), st)

	require.ElementsMatch(t, []string{"dog", "cat"}, poly.ExpectedKeys())
}

func TestPolymorphismDefinition_AddSubtypeRejectsDuplicates(t *testing.T) {
	poly := jsonfig.NewPolymorphismDefinition(jsonfig.TypeOf[animal](), "Kind", false)
	require.NoError(t, poly.AddSubtype(jsonfig.TypeOf[dog](), "dog"))

	err := poly.AddSubtype(jsonfig.TypeOf[dog](), "hound")
	var cfgErr *jsonfig.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, jsonfig.CodeDiscriminatorDup, cfgErr.Code)

	err = poly.AddSubtype(jsonfig.TypeOf[*cat](), "dog")
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, jsonfig.CodeDiscriminatorDup, cfgErr.Code)
}

func TestPolymorphismDefinition_AddSubtypeRejectsMixedKinds(t *testing.T) {
	poly := jsonfig.NewPolymorphismDefinition(jsonfig.TypeOf[animal](), "Kind", false)
	require.NoError(t, poly.AddSubtype(jsonfig.TypeOf[dog](), "dog"))

	err := poly.AddSubtype(jsonfig.TypeOf[*cat](), 2)
	var cfgErr *jsonfig.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, jsonfig.CodeDiscriminatorKind, cfgErr.Code)
}

func TestDiscriminatorKey(t *testing.T) {
	key, kind, err := jsonfig.DiscriminatorKey("dog")
	require.NoError(t, err)
	require.Equal(t, "dog", key)
	require.Equal(t, jsonfig.DiscriminatorString, kind)

	type species string
	key, kind, err = jsonfig.DiscriminatorKey(species("cat"))
	require.NoError(t, err)
	require.Equal(t, "cat", key)
	require.Equal(t, jsonfig.DiscriminatorString, kind)

	key, kind, err = jsonfig.DiscriminatorKey(7)
	require.NoError(t, err)
	require.Equal(t, "7", key)
	require.Equal(t, jsonfig.DiscriminatorInt, kind)

	key, kind, err = jsonfig.DiscriminatorKey(uint8(3))
	require.NoError(t, err)
	require.Equal(t, "3", key)
	require.Equal(t, jsonfig.DiscriminatorInt, kind)

	_, _, err = jsonfig.DiscriminatorKey(1.5)
	require.Error(t, err)
}

func TestIsSubtype(t *testing.T) {
	require.True(t, jsonfig.IsSubtype(jsonfig.TypeOf[animal](), jsonfig.TypeOf[dog]()))
	require.True(t, jsonfig.IsSubtype(jsonfig.TypeOf[animal](), jsonfig.TypeOf[*dog]()))
	// cat implements Sound with a pointer receiver; the value type still
	// counts because its pointer implements the interface.
	require.True(t, jsonfig.IsSubtype(jsonfig.TypeOf[animal](), jsonfig.TypeOf[cat]()))
	require.True(t, jsonfig.IsSubtype(jsonfig.TypeOf[animal](), jsonfig.TypeOf[*cat]()))
	require.False(t, jsonfig.IsSubtype(jsonfig.TypeOf[animal](), jsonfig.TypeOf[animal]()))

	require.True(t, jsonfig.IsSubtype(jsonfig.TypeOf[baseRecord](), jsonfig.TypeOf[derivedRecord]()))
	require.True(t, jsonfig.IsSubtype(jsonfig.TypeOf[baseRecord](), jsonfig.TypeOf[*derivedRecord]()))
	require.False(t, jsonfig.IsSubtype(jsonfig.TypeOf[baseRecord](), jsonfig.TypeOf[dog]()))
	// Pointer embedding is not a subtype relationship.
	require.False(t, jsonfig.IsSubtype(jsonfig.TypeOf[baseRecord](), jsonfig.TypeOf[pointerEmbed]()))
}

func TestHasMember(t *testing.T) {
	require.True(t, jsonfig.HasMember(jsonfig.TypeOf[derivedRecord](), "Name"))
	require.True(t, jsonfig.HasMember(jsonfig.TypeOf[derivedRecord](), "ID")) // promoted
	require.False(t, jsonfig.HasMember(jsonfig.TypeOf[derivedRecord](), "Missing"))
}

func TestIssues_ErrorSummarizes(t *testing.T) {
	iss := jsonfig.Issues{
		{Entity: "a", Member: "X", Code: jsonfig.CodeDuplicateJSONName},
		{Entity: "a", Member: "Y", Code: jsonfig.CodeIgnoredRequired},
		{Entity: "a", Member: "Z", Code: jsonfig.CodeUnknownMember},
		{Entity: "a", Code: jsonfig.CodePolymorphismEmpty},
	}
	msg := iss.Error()
	require.Contains(t, msg, jsonfig.CodeDuplicateJSONName)
	require.Contains(t, msg, "total 4")
}
