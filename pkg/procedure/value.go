package procedure

import (
	"errors"

	"github.com/mimirgraph/corestore/pkg/convert"
	"github.com/mimirgraph/corestore/pkg/storage"
)

// ErrValueConversion is returned when a plugin tries to pass a graph
// element (vertex, edge, or path) where a property value is expected, or
// vice versa. storage.PropertyValue has no vertex/edge/path variant by
// construction; this is where that restriction becomes a visible
// error instead of a compile-time impossibility, since plugin values
// cross the boundary as an open PluginKind, not the closed
// storage.ValueKind.
var ErrValueConversion = errors.New("procedure: value is not convertible to a property value")

// PluginKind extends storage.ValueKind with the three graph-element
// kinds a plugin may hold a Handle to but a PropertyValue never can.
type PluginKind uint8

const (
	PluginScalar PluginKind = iota
	PluginVertex
	PluginEdge
	PluginPath
)

// PluginValue is what crosses the procedure-call boundary in place of a
// bare storage.PropertyValue: scalars carry their PropertyValue inline,
// graph elements carry a Handle into the call's HandleTable instead.
type PluginValue struct {
	kind    PluginKind
	scalar  storage.PropertyValue
	element Handle
}

func ScalarValue(v storage.PropertyValue) PluginValue {
	return PluginValue{kind: PluginScalar, scalar: v}
}

func VertexValue(h Handle) PluginValue { return PluginValue{kind: PluginVertex, element: h} }
func EdgeValue(h Handle) PluginValue   { return PluginValue{kind: PluginEdge, element: h} }
func PathValue(h Handle) PluginValue   { return PluginValue{kind: PluginPath, element: h} }

func (pv PluginValue) Kind() PluginKind { return pv.kind }

// AsPropertyValue converts pv to a storage.PropertyValue, or
// ErrValueConversion if pv holds a vertex, edge, or path handle.
func (pv PluginValue) AsPropertyValue() (storage.PropertyValue, error) {
	if pv.kind != PluginScalar {
		return storage.PropertyValue{}, ErrValueConversion
	}
	return pv.scalar, nil
}

// AsHandle returns pv's element handle, or false if pv is a scalar.
func (pv PluginValue) AsHandle() (Handle, bool) {
	if pv.kind == PluginScalar {
		return 0, false
	}
	return pv.element, true
}

// FromGoValue wraps a loosely-typed Go value (as a C plugin's FFI layer
// would hand one across, with no static Go type to switch on) into a
// PluginValue. Numeric types route through pkg/convert's coercion rather
// than a bespoke type switch, matching how the rest of this module
// accepts "any numeric-looking thing" at its boundaries.
func FromGoValue(v any) (PluginValue, error) {
	switch val := v.(type) {
	case nil:
		return ScalarValue(storage.NullValue()), nil
	case bool:
		return ScalarValue(storage.BoolValue(val)), nil
	case string:
		return ScalarValue(storage.StringValue(val)), nil
	case float32, float64:
		f, _ := convert.ToFloat64(val)
		return ScalarValue(storage.FloatValue(f)), nil
	}
	if i, ok := convert.ToInt64(v); ok {
		return ScalarValue(storage.IntValue(i)), nil
	}
	if f, ok := convert.ToFloat64(v); ok {
		return ScalarValue(storage.FloatValue(f)), nil
	}
	return PluginValue{}, ErrValueConversion
}

// FromPropertyValue wraps a storage-layer value for return to a plugin.
// Always succeeds: PropertyValue can never hold a graph element, so the
// reverse direction has no failure mode.
func FromPropertyValue(v storage.PropertyValue) PluginValue {
	return ScalarValue(v)
}
