package sample

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrigger_ZeroTimestampResolvesToNow(t *testing.T) {
	before := Now()
	s := NewTrigger(0)
	after := Now()

	assert.GreaterOrEqual(t, s.Timestamp(), before)
	assert.LessOrEqual(t, s.Timestamp(), after)
	assert.Equal(t, Trigger, s.Type())
}

func TestNewNumeric_ExplicitTimestampPreserved(t *testing.T) {
	s := NewNumeric(42.5, 21.5)
	assert.Equal(t, 42.5, s.Timestamp())
	assert.Equal(t, 21.5, s.NumericValue())
}

func TestMarshalJSON_TriggerOmitsValue(t *testing.T) {
	s := NewTrigger(1.0)
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":1}`, string(b))
}

func TestMarshalJSON_Numeric(t *testing.T) {
	s := NewNumeric(2.0, 3.5)
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":2,"v":3.5}`, string(b))
}

func TestMarshalJSON_Bool(t *testing.T) {
	s := NewBool(2.0, true)
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":2,"v":true}`, string(b))
}

func TestMarshalJSON_String(t *testing.T) {
	s := NewString(2.0, "hi \"there\"")
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":2,"v":"hi \"there\""}`, string(b))
}

func TestMarshalJSON_JSONEmbeddedVerbatim(t *testing.T) {
	s := NewJSON(2.0, `{"a":1}`)
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":2,"v":{"a":1}}`, string(b))
}

func TestConvertToJSON_NaNBecomesNull(t *testing.T) {
	s := NewNumeric(1.0, nan())
	v, err := s.ConvertToJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", v)
}

func TestAsJSON_WrapsEncodedValueAsJSONTypedSample(t *testing.T) {
	s := NewNumeric(3.0, 7.5)
	j, err := s.AsJSON()
	require.NoError(t, err)
	assert.Equal(t, JSON, j.Type())
	assert.Equal(t, 3.0, j.Timestamp())
	assert.Equal(t, "7.5", j.JSONValue())
}

func nan() float64 {
	var zero float64
	return zero / zero
}
