package jsonfig_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jsonfig/jsonfig"
)

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

func TestConvertFunc_RoundTrip(t *testing.T) {
	conv := jsonfig.ConvertFunc(
		func(v float64) (int64, error) { return int64(math.Round(v * 100)), nil },
		func(v int64) (float64, error) { return float64(v) / 100, nil },
	)
	require.Equal(t, jsonfig.TypeOf[float64](), conv.ModelType())
	require.Equal(t, jsonfig.TypeOf[int64](), conv.SurrogateType())

	sur, err := conv.ToJSON(99.99)
	require.NoError(t, err)
	require.Equal(t, int64(9999), sur)

	model, err := conv.FromJSON(int64(9999))
	require.NoError(t, err)
	require.Equal(t, 99.99, model)
}

func TestConvertFunc_RejectsWrongInputType(t *testing.T) {
	conv := jsonfig.ConvertFunc(
		func(v float64) (int64, error) { return int64(v), nil },
		func(v int64) (float64, error) { return float64(v), nil },
	)
	_, err := conv.ToJSON("not a float")
	require.Error(t, err)
	_, err = conv.FromJSON("not an int")
	require.Error(t, err)
}

func TestConverterDefinition_ProbeByType(t *testing.T) {
	def := jsonfig.NewTypeConverter(jsonfig.TypeOf[centsConverter]())
	require.Equal(t, jsonfig.ConverterByType, def.Kind())
	require.Nil(t, def.Instance())

	conv, err := def.Probe()
	require.NoError(t, err)
	require.Equal(t, jsonfig.TypeOf[float64](), conv.ModelType())
}

func TestConverterDefinition_ProbePointerType(t *testing.T) {
	def := jsonfig.NewTypeConverter(jsonfig.TypeOf[*centsConverter]())
	conv, err := def.Probe()
	require.NoError(t, err)
	require.Equal(t, jsonfig.TypeOf[int64](), conv.SurrogateType())
}

func TestConverterDefinition_ProbeRejectsNonConverter(t *testing.T) {
	def := jsonfig.NewTypeConverter(jsonfig.TypeOf[struct{ X int }]())
	_, err := def.Probe()
	var cfgErr *jsonfig.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, jsonfig.CodeConverterInvalid, cfgErr.Code)
}

func TestConverterDefinition_ByFuncHoldsInstance(t *testing.T) {
	conv := jsonfig.ConvertFunc(
		func(v int) (string, error) { return "", nil },
		func(s string) (int, error) { return 0, nil },
	)
	def := jsonfig.NewFuncConverter(conv)
	require.Equal(t, jsonfig.ConverterByFunc, def.Kind())
	require.Same(t, conv, def.Instance())

	probed, err := def.Probe()
	require.NoError(t, err)
	require.Same(t, conv, probed)
}
