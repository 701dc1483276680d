package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromNative(t *testing.T) {
	tests := []struct {
		name   string
		native interface{}
		want   Value
	}{
		{"nil", nil, Undefined},
		{"bool", true, True},
		{"string", "reader", StringValue("reader")},
		{"float", 4.5, NumberValue(4.5)},
		{"int", 42, NumberValue(42)},
		{"int64", int64(7), NumberValue(7)},
		{"json number", json.Number("3.25"), NumberValue(3.25)},
		{"object", map[string]interface{}{"role": "admin"}, ObjectValue{"role": "admin"}},
		{"already lifted", StringValue("pass-through"), StringValue("pass-through")},
		{"unsupported shape", []int{1, 2}, Undefined},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FromNative(tc.native))
		})
	}
}

func TestValuesEqualTreatsNilAsUndefined(t *testing.T) {
	assert.True(t, ValuesEqual(nil, Undefined))
	assert.True(t, ValuesEqual(nil, nil))
	assert.False(t, ValuesEqual(nil, StringValue("x")))
	assert.False(t, ValuesEqual(StringValue("x"), Undefined))
	assert.True(t, ValuesEqual(NumberValue(1), NumberValue(1)))
	assert.False(t, ValuesEqual(NumberValue(1), StringValue("1")))
}

func TestValueListsEqualOrderMatters(t *testing.T) {
	a := []Value{StringValue("log"), StringValue("notify")}
	b := []Value{StringValue("notify"), StringValue("log")}

	assert.True(t, ValueListsEqual(a, a))
	assert.False(t, ValueListsEqual(a, b))
	assert.False(t, ValueListsEqual(a, a[:1]))
	assert.True(t, ValueListsEqual(nil, nil))
}

func TestErrorValuesAreData(t *testing.T) {
	e := NewError("attribute %s unavailable", "subject.clearance")

	assert.True(t, IsError(e))
	assert.True(t, IsDefined(e))
	assert.Equal(t, "ERROR: attribute subject.clearance unavailable", e.String())
	assert.False(t, IsError(StringValue("ERROR: looks like one")))
}

func TestObjectValueEquality(t *testing.T) {
	a := ObjectValue{"action": "mask", "fields": []interface{}{"ssn"}}
	b := ObjectValue{"action": "mask", "fields": []interface{}{"ssn"}}
	c := ObjectValue{"action": "mask", "fields": []interface{}{"dob"}}

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(StringValue("mask")))
}
