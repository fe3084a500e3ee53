// Package sample implements the data sample value: an immutable,
// timestamped datum of one of five variants that flows through the Data
// Hub's push pipeline.
package sample

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Type identifies the variant carried by a Sample.
type Type int

const (
	// Trigger carries no payload; used for fire-and-forget events.
	Trigger Type = iota
	Bool
	Numeric
	String
	// JSON carries a pre-encoded JSON document as its payload.
	JSON
)

func (t Type) String() string {
	switch t {
	case Trigger:
		return "trigger"
	case Bool:
		return "bool"
	case Numeric:
		return "numeric"
	case String:
		return "string"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Sample is an immutable (timestamp, value) datum. Once constructed it is
// never mutated; callers share it by value (it is small and has no pointer
// fields that are mutated after New* returns), so a sample held by several
// buffers and current-value slots simply lives as long as its longest
// holder, with no manual reference counting.
type Sample struct {
	timestamp float64
	typ       Type
	boolVal   bool
	numVal    float64
	strVal    string // used for both String and JSON variants
}

// Now returns the current wall-clock time as Data Hub epoch seconds.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func resolveTimestamp(ts float64) float64 {
	if ts == 0 {
		return Now()
	}
	return ts
}

// NewTrigger creates a trigger sample. A zero timestamp is replaced with now.
func NewTrigger(ts float64) Sample {
	return Sample{timestamp: resolveTimestamp(ts), typ: Trigger}
}

// NewBool creates a boolean sample.
func NewBool(ts float64, v bool) Sample {
	return Sample{timestamp: resolveTimestamp(ts), typ: Bool, boolVal: v}
}

// NewNumeric creates a numeric sample.
func NewNumeric(ts float64, v float64) Sample {
	return Sample{timestamp: resolveTimestamp(ts), typ: Numeric, numVal: v}
}

// NewString creates a string sample.
func NewString(ts float64, v string) Sample {
	return Sample{timestamp: resolveTimestamp(ts), typ: String, strVal: v}
}

// NewJSON creates a JSON sample. value must already be a valid JSON document;
// callers that hold arbitrary Go values should json.Marshal first.
func NewJSON(ts float64, value string) Sample {
	return Sample{timestamp: resolveTimestamp(ts), typ: JSON, strVal: value}
}

func (s Sample) Type() Type           { return s.typ }
func (s Sample) Timestamp() float64   { return s.timestamp }
func (s Sample) BoolValue() bool      { return s.boolVal }
func (s Sample) NumericValue() float64 { return s.numVal }
func (s Sample) StringValue() string  { return s.strVal }
func (s Sample) JSONValue() string    { return s.strVal }

// WithTimestamp returns a copy of s with the timestamp replaced, leaving the
// payload untouched. Zero timestamps are already resolved to the current
// time by the New* constructors.
func (s Sample) WithTimestamp(ts float64) Sample {
	s.timestamp = ts
	return s
}

// ConvertToJSON re-expresses the sample's value as a JSON-encoded string,
// the "any type -> json" row of the push engine's coercion table.
func (s Sample) ConvertToJSON() (string, error) {
	switch s.typ {
	case Trigger:
		return "null", nil
	case Bool:
		b, err := json.Marshal(s.boolVal)
		return string(b), err
	case Numeric:
		return jsonNumber(s.numVal), nil
	case String:
		b, err := json.Marshal(s.strVal)
		return string(b), err
	case JSON:
		return s.strVal, nil
	default:
		return "", fmt.Errorf("sample: unknown type %v", s.typ)
	}
}

// AsJSON re-expresses s as a JSON-typed Sample carrying its ConvertToJSON
// encoding as payload: when a push is coerced to json, the result is what
// gets stored as the resource's current value and fanned out to handlers.
func (s Sample) AsJSON() (Sample, error) {
	v, err := s.ConvertToJSON()
	if err != nil {
		return Sample{}, err
	}
	return Sample{timestamp: s.timestamp, typ: JSON, strVal: v}, nil
}

// jsonNumber renders a float64 for the wire. NaN and +/-Inf are emitted as
// JSON null since JSON has no representation for them.
func jsonNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "null"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// MarshalJSON renders the sample as the wire object {"t":...,"v":...} used
// by the observation buffer's JSON dump. Trigger samples omit "v" entirely.
func (s Sample) MarshalJSON() ([]byte, error) {
	if s.typ == Trigger {
		return []byte(fmt.Sprintf(`{"t":%s}`, jsonNumber(s.timestamp))), nil
	}
	v, err := s.ConvertToJSON()
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`{"t":%s,"v":%s}`, jsonNumber(s.timestamp), v)), nil
}
