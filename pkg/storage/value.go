package storage

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mimirgraph/corestore/pkg/convert"
)

// ValueKind tags the active variant of a PropertyValue. The sixteen-way
// fan-out a deeply-inherited value hierarchy would produce is flattened
// into this single closed enum plus a visit-style switch wherever code
// branches on variant.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	KindDate
	KindLocalTime
	KindLocalDateTime
	KindDuration
	KindZonedDateTime
	KindPoint2D
	KindPoint3D
	KindEnum
)

// Duration is a calendar-agnostic span: months/days are kept separate from
// the sub-day component so that "+1 month" remains well defined regardless
// of month length, matching Cypher's temporal.duration semantics.
type Duration struct {
	Months      int64
	Days        int64
	Nanoseconds int64
}

// ZonedDateTime pairs an absolute instant with the timezone it was
// expressed in. Both fields round-trip through the WAL exactly: a
// negative UTC offset is neither normalized away nor required to match
// the named zone's current offset.
type ZonedDateTime struct {
	Instant time.Time
	Zone    string // IANA zone name, e.g. "America/New_York"; "" means fixed offset only
	Offset  int32  // seconds east of UTC, preserved verbatim even if negative
}

// Point2D is a planar coordinate tagged with a coordinate reference system
// (SRID), e.g. 4326 for WGS-84 or 7203 for Cartesian.
type Point2D struct {
	SRID int32
	X, Y float64
}

// Point3D is Point2D plus a Z coordinate (SRID 4979 / 9157 typically).
type Point3D struct {
	SRID    int32
	X, Y, Z float64
}

// EnumValue identifies a member of a registered enum type by the pair of
// interned ids that make up its stable 64-bit compound id (pkg/mapper
// packs these; storage only needs to compare and serialize the pair).
type EnumValue struct {
	TypeID   uint32
	MemberID uint32
}

// PropertyValue is the property-graph value sum type. Vertex, edge,
// and path are deliberately absent: a caller that tries to stuff a graph
// element into a property gets ValueConversion at the procedure boundary
// (pkg/procedure), never a silently-accepted PropertyValue.
type PropertyValue struct {
	kind ValueKind

	b    bool
	i    int64
	f    float64
	s    string
	list []PropertyValue
	m    map[string]PropertyValue

	date     time.Time // date-only or local-time-only, depending on kind
	duration Duration
	zoned    ZonedDateTime
	pt2      Point2D
	pt3      Point3D
	enum     EnumValue
}

func NullValue() PropertyValue                 { return PropertyValue{kind: KindNull} }
func BoolValue(b bool) PropertyValue           { return PropertyValue{kind: KindBool, b: b} }
func IntValue(i int64) PropertyValue           { return PropertyValue{kind: KindInt, i: i} }
func FloatValue(f float64) PropertyValue       { return PropertyValue{kind: KindFloat, f: f} }
func StringValue(s string) PropertyValue       { return PropertyValue{kind: KindString, s: s} }
func EnumValueOf(e EnumValue) PropertyValue    { return PropertyValue{kind: KindEnum, enum: e} }
func DurationValue(d Duration) PropertyValue   { return PropertyValue{kind: KindDuration, duration: d} }
func Point2DValue(p Point2D) PropertyValue     { return PropertyValue{kind: KindPoint2D, pt2: p} }
func Point3DValue(p Point3D) PropertyValue     { return PropertyValue{kind: KindPoint3D, pt3: p} }
func ZonedDateTimeValue(z ZonedDateTime) PropertyValue {
	return PropertyValue{kind: KindZonedDateTime, zoned: z}
}

func DateValue(t time.Time) PropertyValue {
	return PropertyValue{kind: KindDate, date: t}
}

func LocalTimeValue(t time.Time) PropertyValue {
	return PropertyValue{kind: KindLocalTime, date: t}
}

func LocalDateTimeValue(t time.Time) PropertyValue {
	return PropertyValue{kind: KindLocalDateTime, date: t}
}

// ListValue copies the given slice so later mutation of the caller's
// backing array can't reach into the stored value.
func ListValue(items []PropertyValue) PropertyValue {
	cp := make([]PropertyValue, len(items))
	copy(cp, items)
	return PropertyValue{kind: KindList, list: cp}
}

// MapValue copies the given map for the same reason ListValue does.
func MapValue(fields map[string]PropertyValue) PropertyValue {
	cp := make(map[string]PropertyValue, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return PropertyValue{kind: KindMap, m: cp}
}

func (v PropertyValue) Kind() ValueKind { return v.kind }
func (v PropertyValue) IsNull() bool    { return v.kind == KindNull }

func (v PropertyValue) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v PropertyValue) AsInt() (int64, bool)     { return v.i, v.kind == KindInt }
func (v PropertyValue) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }
func (v PropertyValue) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v PropertyValue) AsEnum() (EnumValue, bool) { return v.enum, v.kind == KindEnum }

// AsList returns the element slice without copying; callers must treat it
// as read-only, mirroring the aliasing contract the property store itself
// relies on for read cost linear in property count.
func (v PropertyValue) AsList() ([]PropertyValue, bool) { return v.list, v.kind == KindList }
func (v PropertyValue) AsMap() (map[string]PropertyValue, bool) { return v.m, v.kind == KindMap }

// Get descends one level into a map-valued PropertyValue by key; used by
// ResolvePath to walk a multi-segment property path.
func (v PropertyValue) Get(key string) (PropertyValue, bool) {
	if v.kind != KindMap {
		return NullValue(), false
	}
	child, ok := v.m[key]
	return child, ok
}

// AsVector extracts a list-valued PropertyValue's numeric elements as a
// []float32, the format a vector index (VectorIndexHandle, index.go)
// compares against. Reuses the same loosely-typed numeric coercion the
// rest of the codebase standardizes on rather than a bespoke switch here.
func (v PropertyValue) AsVector() ([]float32, bool) {
	if v.kind != KindList {
		return nil, false
	}
	boxed := make([]interface{}, len(v.list))
	for i, elem := range v.list {
		switch elem.kind {
		case KindInt:
			boxed[i] = elem.i
		case KindFloat:
			boxed[i] = elem.f
		default:
			return nil, false
		}
	}
	return convert.ToFloat32Slice(boxed), true
}

func numericOf(v PropertyValue) (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Equal implements per-variant equality with numeric promotion: an int and
// a float compare equal iff their promoted float64 values match. All other
// mixed-variant comparisons are not-equal rather than an error, matching
// Cypher's null-propagating comparison semantics at the storage layer
// (the query layer decides whether that surfaces as null or false).
func (v PropertyValue) Equal(other PropertyValue) bool {
	if v.kind != other.kind {
		vf, vok := numericOf(v)
		of, ook := numericOf(other)
		if vok && ook {
			return vf == of
		}
		return false
	}

	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindEnum:
		return v.enum == other.enum
	case KindDate, KindLocalTime, KindLocalDateTime:
		return v.date.Equal(other.date)
	case KindDuration:
		return v.duration == other.duration
	case KindZonedDateTime:
		return v.zoned.Instant.Equal(other.zoned.Instant) && v.zoned.Offset == other.zoned.Offset
	case KindPoint2D:
		return v.pt2 == other.pt2
	case KindPoint3D:
		return v.pt3 == other.pt3
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, val := range v.m {
			ov, ok := other.m[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Less orders two values for index range scans. Ordering is only defined
// within compatible kinds (numeric-promoted, or identical kind); comparing
// incompatible kinds returns false for both Less(a,b) and Less(b,a);
// ScanLabelProperty sorts with sort.Slice, so the relative order of such
// values in its result is unspecified.
func (v PropertyValue) Less(other PropertyValue) bool {
	if v.kind != other.kind {
		vf, vok := numericOf(v)
		of, ook := numericOf(other)
		if vok && ook {
			return vf < of
		}
		return false
	}

	switch v.kind {
	case KindBool:
		return !v.b && other.b
	case KindInt:
		return v.i < other.i
	case KindFloat:
		return v.f < other.f
	case KindString:
		return v.s < other.s
	case KindDate, KindLocalTime, KindLocalDateTime:
		return v.date.Before(other.date)
	case KindZonedDateTime:
		return v.zoned.Instant.Before(other.zoned.Instant)
	default:
		return false
	}
}

// Compare is a three-way comparator built on Equal/Less, for sorted
// index buckets that need a single ordering function.
func (v PropertyValue) Compare(other PropertyValue) int {
	if v.Equal(other) {
		return 0
	}
	if v.Less(other) {
		return -1
	}
	return 1
}

// String renders a value for logging and debug dumps. Kinds without a
// case below (temporal, duration, point) render as "<storage.ValueKind>".
// pkg/durability's encodeValue (snapshot.go) persists every kind other
// than null, bool, int and float as this string, and constraint.go's
// uniqueKey uses it as a map key.
func (v PropertyValue) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return v.s
	case KindEnum:
		return fmt.Sprintf("enum(%d:%d)", v.enum.TypeID, v.enum.MemberID)
	case KindList:
		return fmt.Sprintf("%v", v.list)
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%v", keys)
	default:
		return fmt.Sprintf("<%T>", v.kind)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return fmt.Sprintf("%g", f)
}
