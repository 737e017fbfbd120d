package jsoniter_test

import (
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"

	ji "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"github.com/jsonfig/jsonfig"
	"github.com/jsonfig/jsonfig/dsl"
	"github.com/jsonfig/jsonfig/engine/jsoniter"
)

type user struct {
	ID             string
	DisplayName    string
	InternalSecret string
}

type counter struct {
	Count int
	raw   int
}

type product struct {
	Name  string
	Price float64
}

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

func (cat) Sound() string { return "meow" }

type horse struct {
	Kind string
}

func (horse) Sound() string { return "neigh" }

type owl struct {
	Kind     string
	Wingspan int
}

func (*owl) Sound() string { return "hoot" }

type shelter struct {
	Pet animal
}

type invoice struct {
	Amount int
	Vendor string
	Serial int
}

type auditBase struct {
	CreatedBy string
}

type report struct {
	auditBase
	Title string
}

// centsConverter maps a float amount to integer cents on the wire.
type centsConverter struct{}

func (centsConverter) ModelType() reflect.Type     { return jsonfig.TypeOf[float64]() }
func (centsConverter) SurrogateType() reflect.Type { return jsonfig.TypeOf[int64]() }

func (centsConverter) ToJSON(model any) (any, error) {
	return int64(math.Round(model.(float64) * 100)), nil
}

func (centsConverter) FromJSON(surrogate any) (any, error) {
	return float64(surrogate.(int64)) / 100, nil
}

func centsFunc() jsonfig.Converter {
	return jsonfig.ConvertFunc(
		func(v float64) (int64, error) { return int64(math.Round(v * 100)), nil },
		func(v int64) (float64, error) { return float64(v) / 100, nil },
	)
}

func buildAPI(t *testing.T, b *jsoniter.Builder) ji.API {
	t.Helper()
	api, err := b.Build(nil)
	require.NoError(t, err)
	return api
}

func TestMarshal_RenameAndIgnore(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[user](func(e *dsl.EntityBuilder) {
			e.Property("DisplayName").Named("display_name")
			e.Ignore("InternalSecret")
		})))

	data, err := api.Marshal(user{ID: "u1", DisplayName: "Ada", InternalSecret: "hunter2"})
	require.NoError(t, err)
	require.JSONEq(t, `{"ID":"u1","display_name":"Ada"}`, string(data))
	require.NotContains(t, string(data), "hunter2")
}

func TestUnmarshal_RenameIgnoreAndUnknownMembers(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[user](func(e *dsl.EntityBuilder) {
			e.Property("DisplayName").Named("display_name")
			e.Ignore("InternalSecret")
		})))

	var u user
	err := api.Unmarshal([]byte(`{"ID":"u1","display_name":"Ada","InternalSecret":"x","extra":[1,2]}`), &u)
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)
	require.Equal(t, "Ada", u.DisplayName)
	require.Empty(t, u.InternalSecret, "ignored members are not populated")
}

func TestBuild_DuplicateNameFails(t *testing.T) {
	_, err := jsoniter.NewBuilder().
		Apply(dsl.Define[user](func(e *dsl.EntityBuilder) {
			e.Property("ID").Named("name")
			e.Property("DisplayName").Named("name")
		})).
		Build(nil)
	var iss jsonfig.Issues
	require.ErrorAs(t, err, &iss)
	require.Equal(t, jsonfig.CodeDuplicateJSONName, iss[0].Code)
}

func TestRoundTrip_BackingField(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[counter](func(e *dsl.EntityBuilder) {
			e.Property("Count").Field("raw")
		})))

	data, err := api.Marshal(counter{Count: 1, raw: 42})
	require.NoError(t, err)
	require.JSONEq(t, `{"Count":42}`, string(data))

	var c counter
	require.NoError(t, api.Unmarshal([]byte(`{"Count":7}`), &c))
	require.Equal(t, 7, c.raw)
	require.Zero(t, c.Count, "the declared member is bypassed")
}

func TestRoundTrip_ConfiguredUnexportedMember(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[counter](func(e *dsl.EntityBuilder) {
			e.Property("raw").Named("raw")
		})))

	data, err := api.Marshal(counter{Count: 1, raw: 5})
	require.NoError(t, err)
	require.JSONEq(t, `{"Count":1,"raw":5}`, string(data))

	var c counter
	require.NoError(t, api.Unmarshal([]byte(`{"Count":2,"raw":9}`), &c))
	require.Equal(t, counter{Count: 2, raw: 9}, c)
}

func TestRoundTrip_FuncConverter(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[product](func(e *dsl.EntityBuilder) {
			e.Property("Price").Convert(centsFunc())
		})))

	data, err := api.Marshal(product{Name: "widget", Price: 99.99})
	require.NoError(t, err)
	require.JSONEq(t, `{"Name":"widget","Price":9999}`, string(data))

	var p product
	require.NoError(t, api.Unmarshal(data, &p))
	require.Equal(t, 99.99, p.Price)
}

func TestRoundTrip_TypeConverter(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[product](func(e *dsl.EntityBuilder) {
			e.Property("Price").ConvertWith(jsonfig.ConverterTypeOf[centsConverter]())
		})))

	data, err := api.Marshal(product{Price: 1.5})
	require.NoError(t, err)
	require.JSONEq(t, `{"Name":"","Price":150}`, string(data))
}

func TestBuild_ConverterResolverIsAuthoritative(t *testing.T) {
	b := jsoniter.NewBuilder().
		Apply(dsl.Define[product](func(e *dsl.EntityBuilder) {
			e.Property("Price").ConvertWith(jsonfig.TypeOf[centsConverter]())
		}))
	_, err := b.Build(jsonfig.MapResolver(nil))
	var cfgErr *jsonfig.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, jsonfig.CodeConverterResolution, cfgErr.Code)
}

func TestUnmarshal_NullSurrogateOnNonNillableMember(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[product](func(e *dsl.EntityBuilder) {
			e.Property("Price").Convert(centsFunc())
		})))

	var p product
	err := api.Unmarshal([]byte(`{"Price":null}`), &p)
	var codecErr *jsonfig.CodecError
	require.ErrorAs(t, err, &codecErr)
	require.Equal(t, jsonfig.CodeNullSurrogate, codecErr.Code)
}

func TestUnmarshal_RequiredMember(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[user](func(e *dsl.EntityBuilder) {
			e.Property("ID").Required()
		})))

	var u user
	require.NoError(t, api.Unmarshal([]byte(`{"ID":"u1"}`), &u))

	err := api.Unmarshal([]byte(`{"DisplayName":"Ada"}`), &u)
	var codecErr *jsonfig.CodecError
	require.ErrorAs(t, err, &codecErr)
	require.Equal(t, jsonfig.CodeRequired, codecErr.Code)
	require.Equal(t, "ID", codecErr.Member)
}

func TestMarshal_ExplicitOrderComesFirst(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[invoice](func(e *dsl.EntityBuilder) {
			e.Property("Serial").Order(0)
			e.Property("Vendor").Order(1)
		})))

	data, err := api.Marshal(invoice{Amount: 3, Vendor: "acme", Serial: 9})
	require.NoError(t, err)
	require.Equal(t, `{"Serial":9,"Vendor":"acme","Amount":3}`, string(data))
}

func TestMarshal_NamingConventionWithVerbatimOverride(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Naming(jsonfig.NamingSnakeCase).
		Apply(dsl.Define[user](func(e *dsl.EntityBuilder) {
			e.Property("InternalSecret").Named("URGENT_Override")
		})))

	data, err := api.Marshal(user{ID: "u1", DisplayName: "Ada", InternalSecret: "s"})
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"u1","display_name":"Ada","URGENT_Override":"s"}`, string(data))
}

func TestRoundTrip_Polymorphism(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[animal](func(e *dsl.EntityBuilder) {
			e.Discriminator("Kind").
				Subtype(jsonfig.TypeOf[dog](), "dog").
				Subtype(jsonfig.TypeOf[cat](), "cat")
		})))

	var a animal = dog{Bones: 3}
	data, err := api.Marshal(a)
	require.NoError(t, err)
	require.JSONEq(t, `{"Kind":"dog","Bones":3}`, string(data))

	var back animal
	require.NoError(t, api.Unmarshal(data, &back))
	require.Equal(t, dog{Kind: "dog", Bones: 3}, back)

	var c animal
	require.NoError(t, api.Unmarshal([]byte(`{"Kind":"cat","Lives":9}`), &c))
	require.Equal(t, cat{Kind: "cat", Lives: 9}, c)
}

func TestRoundTrip_PolymorphismThroughStructField(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[animal](func(e *dsl.EntityBuilder) {
			e.Discriminator("Kind").
				Subtype(jsonfig.TypeOf[dog](), "dog").
				Subtype(jsonfig.TypeOf[cat](), "cat")
		})))

	data, err := api.Marshal(shelter{Pet: cat{Lives: 9}})
	require.NoError(t, err)
	require.JSONEq(t, `{"Pet":{"Kind":"cat","Lives":9}}`, string(data))

	var s shelter
	require.NoError(t, api.Unmarshal(data, &s))
	require.Equal(t, cat{Kind: "cat", Lives: 9}, s.Pet)
}

func TestMarshal_UnregisteredSubtypeThroughRootFails(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[animal](func(e *dsl.EntityBuilder) {
			e.Discriminator("Kind").Subtype(jsonfig.TypeOf[dog](), "dog")
		})))

	_, err := api.Marshal(shelter{Pet: horse{}})
	var codecErr *jsonfig.CodecError
	require.ErrorAs(t, err, &codecErr)
	require.Equal(t, jsonfig.CodeSubtypeUnregistered, codecErr.Code)
}

func TestRoundTrip_PointerReceiverSubtype(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[animal](func(e *dsl.EntityBuilder) {
			e.Discriminator("Kind").
				Subtype(jsonfig.TypeOf[dog](), "dog").
				Subtype(jsonfig.TypeOf[owl](), "owl")
		})))

	data, err := api.Marshal(shelter{Pet: &owl{Wingspan: 120}})
	require.NoError(t, err)
	require.JSONEq(t, `{"Pet":{"Kind":"owl","Wingspan":120}}`, string(data))

	// Only *owl implements the root, so dispatch must hand back the pointer.
	var s shelter
	require.NoError(t, api.Unmarshal(data, &s))
	require.Equal(t, &owl{Kind: "owl", Wingspan: 120}, s.Pet)
}

func TestMarshal_UnconfiguredSubtypeDiscriminatorNotDuplicated(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Naming(jsonfig.NamingSnakeCase).
		Apply(dsl.Define[animal](func(e *dsl.EntityBuilder) {
			e.Discriminator("Kind").Subtype(jsonfig.TypeOf[dog](), "dog")
		})))

	// dog is unconfigured, so its body renders with default member names; the
	// discriminator member must be suppressed under both spellings.
	var a animal = dog{Kind: "stale", Bones: 2}
	data, err := api.Marshal(a)
	require.NoError(t, err)
	require.Equal(t, `{"kind":"dog","Bones":2}`, string(data))
}

func TestUnmarshal_PolymorphismDiscriminatorErrors(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[animal](func(e *dsl.EntityBuilder) {
			e.Discriminator("Kind").Subtype(jsonfig.TypeOf[dog](), "dog")
		})))

	var a animal
	err := api.Unmarshal([]byte(`{"Kind":"fish"}`), &a)
	var codecErr *jsonfig.CodecError
	require.ErrorAs(t, err, &codecErr)
	require.Equal(t, jsonfig.CodeDiscriminatorUnknown, codecErr.Code)

	err = api.Unmarshal([]byte(`{"Bones":1}`), &a)
	require.ErrorAs(t, err, &codecErr)
	require.Equal(t, jsonfig.CodeDiscriminatorMissing, codecErr.Code)
	require.Contains(t, codecErr.Message, "dog")
}

func TestRoundTrip_PolymorphismWithConfiguredSubtype(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[animal](func(e *dsl.EntityBuilder) {
			e.Discriminator("Kind").Subtype(jsonfig.TypeOf[dog](), "dog")
		})).
		Apply(dsl.Define[dog](func(e *dsl.EntityBuilder) {
			e.Property("Bones").Named("bone_count")
		})))

	var a animal = dog{Kind: "stale", Bones: 3}
	data, err := api.Marshal(a)
	require.NoError(t, err)
	require.JSONEq(t, `{"Kind":"dog","bone_count":3}`, string(data))

	var back animal
	require.NoError(t, api.Unmarshal(data, &back))
	require.Equal(t, dog{Kind: "dog", Bones: 3}, back)
}

func TestRoundTrip_ShadowDiscriminator(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[animal](func(e *dsl.EntityBuilder) {
			e.ShadowDiscriminator("$type").
				Subtype(jsonfig.TypeOf[dog](), "dog").
				Subtype(jsonfig.TypeOf[cat](), "cat")
		})))

	var a animal = dog{Kind: "husky", Bones: 1}
	data, err := api.Marshal(a)
	require.NoError(t, err)
	require.JSONEq(t, `{"$type":"dog","Kind":"husky","Bones":1}`, string(data))

	var back animal
	require.NoError(t, api.Unmarshal(data, &back))
	// The shadow key never touches a Go member.
	require.Equal(t, dog{Kind: "husky", Bones: 1}, back)
}

func TestMarshal_EmbeddedBaseConfigurationInherited(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[auditBase](func(e *dsl.EntityBuilder) {
			e.Property("CreatedBy").Named("created_by")
		})))

	data, err := api.Marshal(report{auditBase: auditBase{CreatedBy: "ada"}, Title: "Q3"})
	require.NoError(t, err)
	require.JSONEq(t, `{"created_by":"ada","Title":"Q3"}`, string(data))
}

func TestBuild_SecondCallFails(t *testing.T) {
	b := jsoniter.NewBuilder().Apply(dsl.Define[user](func(e *dsl.EntityBuilder) {
		e.Property("ID").Named("id")
	}))
	_, err := b.Build(nil)
	require.NoError(t, err)

	_, err = b.Build(nil)
	var cfgErr *jsonfig.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, jsonfig.CodeAlreadyBuilt, cfgErr.Code)
}

func TestMustBuild_PanicsOnInvalidConfiguration(t *testing.T) {
	b := jsoniter.NewBuilder().Apply(dsl.Define[user](func(e *dsl.EntityBuilder) {
		e.Property("ID").Named("x")
		e.Property("DisplayName").Named("x")
	}))
	require.Panics(t, func() { b.MustBuild(nil) })
}

func TestMarshal_Pretty(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Pretty(true).
		Apply(dsl.Define[user](func(e *dsl.EntityBuilder) {
			e.Property("ID").Named("id")
		})))

	data, err := api.Marshal(user{ID: "u1"})
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "\n"), "expected indented output, got %s", data)
}

func TestMarshal_ConcurrentUse(t *testing.T) {
	api := buildAPI(t, jsoniter.NewBuilder().
		Apply(dsl.Define[user](func(e *dsl.EntityBuilder) {
			e.Property("DisplayName").Named("display_name")
		})))

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := api.Marshal(user{ID: "u", DisplayName: "d"})
			if err != nil {
				errs <- err
				return
			}
			var u user
			errs <- api.Unmarshal(data, &u)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
