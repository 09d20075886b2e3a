package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/errors"
)

func TestConvertToJSON_AllTypes(t *testing.T) {
	p := NewPool(8)

	tests := []struct {
		name string
		dt   DataType
		make func() (*Sample, error)
		want string
	}{
		{"trigger", Trigger, func() (*Sample, error) { return p.CreateTrigger(0) }, "null"},
		{"bool-true", Boolean, func() (*Sample, error) { return p.CreateBool(0, true) }, "true"},
		{"bool-false", Boolean, func() (*Sample, error) { return p.CreateBool(0, false) }, "false"},
		{"numeric", Numeric, func() (*Sample, error) { return p.CreateNumeric(0, 3.5) }, "3.5"},
		{"string", String, func() (*Sample, error) { return p.CreateString(0, `say "hi"`) }, `"say \"hi\""`},
		{"json", JSON, func() (*Sample, error) { return p.CreateJSON(0, `{"a":1}`) }, `{"a":1}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := tc.make()
			require.NoError(t, err)
			defer s.Release()

			got, err := ConvertToJSON(s, tc.dt, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConvertToJSON_StringEscapesControlCharacters(t *testing.T) {
	p := NewPool(1)
	s, err := p.CreateString(0, "line1\nline2\t\"quoted\"")
	require.NoError(t, err)
	defer s.Release()

	got, err := ConvertToJSON(s, String, 0)
	require.NoError(t, err)
	assert.NotContains(t, got, "\n")
	assert.Contains(t, got, `\n`)
}

func TestConvertToJSON_OverflowWhenMaxBytesExceeded(t *testing.T) {
	p := NewPool(1)
	s, err := p.CreateString(0, "a string long enough to overflow a tiny buffer")
	require.NoError(t, err)
	defer s.Release()

	_, err = ConvertToJSON(s, String, 8)
	require.Error(t, err)
	assert.Equal(t, errors.KindOverflow, errors.KindOf(err))
}

func TestConvertRoundTrip(t *testing.T) {
	p := NewPool(8)

	cases := []struct {
		dt DataType
		mk func() (*Sample, error)
	}{
		{Boolean, func() (*Sample, error) { return p.CreateBool(0, true) }},
		{Numeric, func() (*Sample, error) { return p.CreateNumeric(0, 12.25) }},
		{String, func() (*Sample, error) { return p.CreateString(0, "round trip") }},
		{Trigger, func() (*Sample, error) { return p.CreateTrigger(0) }},
		{JSON, func() (*Sample, error) { return p.CreateJSON(0, `{"x":[1,2,3]}`) }},
	}

	for _, tc := range cases {
		original, err := tc.mk()
		require.NoError(t, err)

		text, err := ConvertToJSON(original, tc.dt, 0)
		require.NoError(t, err)

		roundTripped, err := ConvertFromJSON(p, text, tc.dt, original.Timestamp())
		require.NoError(t, err)

		text2, err := ConvertToJSON(roundTripped, tc.dt, 0)
		require.NoError(t, err)
		assert.JSONEq(t, normalizeForJSONCompare(tc.dt, text), normalizeForJSONCompare(tc.dt, text2))

		original.Release()
		roundTripped.Release()
	}
}

// normalizeForJSONCompare wraps non-JSON scalars so assert.JSONEq can compare
// them; JSON values are already valid JSON documents/fragments.
func normalizeForJSONCompare(dt DataType, text string) string {
	if dt == JSON {
		return text
	}
	return `{"v":` + text + `}`
}

func TestExtractJSON_ScalarAndObjectPaths(t *testing.T) {
	p := NewPool(8)
	src, err := p.CreateJSON(42, `{"name":"sensor-1","reading":21.5,"ok":true,"meta":{"unit":"C"}}`)
	require.NoError(t, err)
	defer src.Release()

	out, dt, err := ExtractJSON(p, src, "$.reading")
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, Numeric, dt)
	v, _ := out.NumericValue()
	assert.Equal(t, 21.5, v)
	assert.Equal(t, float64(42), out.Timestamp(), "extracted sample inherits source timestamp")

	out2, dt2, err := ExtractJSON(p, src, "$.meta")
	require.NoError(t, err)
	defer out2.Release()
	assert.Equal(t, JSON, dt2)
}

func TestExtractJSON_NoMatchIsNotFound(t *testing.T) {
	p := NewPool(8)
	src, err := p.CreateJSON(0, `{"a":1}`)
	require.NoError(t, err)
	defer src.Release()

	_, _, err = ExtractJSON(p, src, "$.missing")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestExtractJSON_NonJSONSourceIsBadParameter(t *testing.T) {
	p := NewPool(8)
	src, err := p.CreateNumeric(0, 1)
	require.NoError(t, err)
	defer src.Release()

	_, _, err = ExtractJSON(p, src, "$.x")
	require.Error(t, err)
	assert.Equal(t, errors.KindBadParameter, errors.KindOf(err))
}
