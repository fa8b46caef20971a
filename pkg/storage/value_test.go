package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPropertyValueEqualWithNumericPromotion(t *testing.T) {
	assert.True(t, IntValue(3).Equal(FloatValue(3.0)))
	assert.False(t, IntValue(3).Equal(FloatValue(3.5)))
	assert.False(t, IntValue(3).Equal(StringValue("3")))
	assert.True(t, NullValue().Equal(NullValue()))
}

func TestPropertyValueLessOrdersWithinKind(t *testing.T) {
	assert.True(t, IntValue(1).Less(IntValue(2)))
	assert.False(t, IntValue(2).Less(IntValue(1)))
	assert.True(t, StringValue("a").Less(StringValue("b")))
	assert.False(t, StringValue("x").Less(IntValue(1)), "incompatible kinds are unordered")
}

func TestPropertyValueListAndMapCopyOnConstruction(t *testing.T) {
	items := []PropertyValue{IntValue(1), IntValue(2)}
	v := ListValue(items)
	items[0] = IntValue(99)
	list, ok := v.AsList()
	assert.True(t, ok)
	assert.Equal(t, int64(1), mustInt(list[0]))

	fields := map[string]PropertyValue{"k": StringValue("v")}
	mv := MapValue(fields)
	fields["k"] = StringValue("mutated")
	m, ok := mv.AsMap()
	assert.True(t, ok)
	s, _ := m["k"].AsString()
	assert.Equal(t, "v", s)
}

func mustInt(v PropertyValue) int64 {
	i, _ := v.AsInt()
	return i
}

func TestPropertyValueGetDescendsMapOnly(t *testing.T) {
	m := MapValue(map[string]PropertyValue{"a": IntValue(1)})
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), mustInt(v))

	_, ok = m.Get("missing")
	assert.False(t, ok)

	_, ok = IntValue(1).Get("a")
	assert.False(t, ok, "Get on a non-map value must fail")
}

func TestPropertyValueAsVectorRequiresNumericList(t *testing.T) {
	vec, ok := ListValue([]PropertyValue{IntValue(1), FloatValue(2.5)}).AsVector()
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2.5}, vec)

	_, ok = ListValue([]PropertyValue{StringValue("x")}).AsVector()
	assert.False(t, ok)

	_, ok = StringValue("not a list").AsVector()
	assert.False(t, ok)
}

func TestPropertyValueStringRendersEachKind(t *testing.T) {
	assert.Equal(t, "null", NullValue().String())
	assert.Equal(t, "true", BoolValue(true).String())
	assert.Equal(t, "42", IntValue(42).String())
	assert.Equal(t, "hello", StringValue("hello").String())
}

func TestPropertyValueCompareThreeWay(t *testing.T) {
	assert.Equal(t, -1, IntValue(1).Compare(IntValue(2)))
	assert.Equal(t, 0, IntValue(1).Compare(IntValue(1)))
	assert.Equal(t, 1, IntValue(2).Compare(IntValue(1)))
}

func TestZonedDateTimeEqualityUsesInstantAndOffset(t *testing.T) {
	inst := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := ZonedDateTimeValue(ZonedDateTime{Instant: inst, Zone: "UTC", Offset: 0})
	b := ZonedDateTimeValue(ZonedDateTime{Instant: inst, Zone: "UTC", Offset: 0})
	assert.True(t, a.Equal(b))

	c := ZonedDateTimeValue(ZonedDateTime{Instant: inst, Zone: "UTC", Offset: 3600})
	assert.False(t, a.Equal(c), "differing preserved offsets must not compare equal even with the same instant")
}
