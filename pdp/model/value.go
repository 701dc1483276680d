package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// Value is the data domain policy evaluation operates on. Errors are values
// here, not Go errors: an evaluation fault travels through combination as
// data and only surfaces as INDETERMINATE in the final decision.
type Value interface {
	isValue()
	Equals(other Value) bool
	String() string
}

type BooleanValue bool

type StringValue string

type NumberValue float64

// ObjectValue holds structured JSON content, e.g. obligations or a
// transformed resource.
type ObjectValue map[string]interface{}

type ErrorValue struct {
	Message string `json:"message"`
}

type UndefinedValue struct{}

var (
	True      = BooleanValue(true)
	False     = BooleanValue(false)
	Undefined = UndefinedValue{}
)

func NewError(format string, args ...interface{}) ErrorValue {
	return ErrorValue{Message: fmt.Sprintf(format, args...)}
}

// FromNative lifts a decoded JSON value into the value domain. Unsupported
// shapes become Undefined.
func FromNative(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Undefined
	case bool:
		return BooleanValue(t)
	case string:
		return StringValue(t)
	case float64:
		return NumberValue(t)
	case int:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Undefined
		}
		return NumberValue(f)
	case map[string]interface{}:
		return ObjectValue(t)
	case Value:
		return t
	default:
		return Undefined
	}
}

func (BooleanValue) isValue()   {}
func (StringValue) isValue()    {}
func (NumberValue) isValue()    {}
func (ObjectValue) isValue()    {}
func (ErrorValue) isValue()     {}
func (UndefinedValue) isValue() {}

func (v BooleanValue) Equals(other Value) bool {
	o, ok := other.(BooleanValue)
	return ok && v == o
}

func (v StringValue) Equals(other Value) bool {
	o, ok := other.(StringValue)
	return ok && v == o
}

func (v NumberValue) Equals(other Value) bool {
	o, ok := other.(NumberValue)
	return ok && v == o
}

func (v ObjectValue) Equals(other Value) bool {
	o, ok := other.(ObjectValue)
	return ok && reflect.DeepEqual(map[string]interface{}(v), map[string]interface{}(o))
}

func (v ErrorValue) Equals(other Value) bool {
	o, ok := other.(ErrorValue)
	return ok && v.Message == o.Message
}

func (UndefinedValue) Equals(other Value) bool {
	_, ok := other.(UndefinedValue)
	return ok
}

func (v BooleanValue) String() string   { return strconv.FormatBool(bool(v)) }
func (v StringValue) String() string    { return string(v) }
func (v NumberValue) String() string    { return strconv.FormatFloat(float64(v), 'f', -1, 64) }
func (v ObjectValue) String() string    { return fmt.Sprintf("%v", map[string]interface{}(v)) }
func (v ErrorValue) String() string     { return "ERROR: " + v.Message }
func (UndefinedValue) String() string   { return "undefined" }

// IsError reports whether v carries an evaluation fault.
func IsError(v Value) bool {
	_, ok := v.(ErrorValue)
	return ok
}

// IsDefined reports whether v is a concrete value, i.e. neither nil nor
// undefined. Errors count as defined.
func IsDefined(v Value) bool {
	if v == nil {
		return false
	}
	_, undefined := v.(UndefinedValue)
	return !undefined
}

// ValuesEqual compares two optional values, treating nil and Undefined as
// equal to each other.
func ValuesEqual(a, b Value) bool {
	if !IsDefined(a) && !IsDefined(b) {
		return true
	}
	if !IsDefined(a) || !IsDefined(b) {
		return false
	}
	return a.Equals(b)
}

// ValueListsEqual compares two constraint lists element-wise. Order matters.
func ValueListsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}
