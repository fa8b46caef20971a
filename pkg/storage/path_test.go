package storage

import "testing"

func TestResolvePathDescendsNestedMaps(t *testing.T) {
	names := map[uint32]string{1: "address", 2: "city"}
	lookup := func(id uint32) (string, bool) { n, ok := names[id]; return n, ok }

	inner := MapValue(map[string]PropertyValue{"city": StringValue("Boston")})
	root := MapValue(map[string]PropertyValue{"address": inner})

	val, ok := ResolvePath(root, PropertyPath{1, 2}, lookup)
	if !ok {
		t.Fatal("expected path to resolve")
	}
	s, _ := val.AsString()
	if s != "Boston" {
		t.Fatalf("got %q", s)
	}
}

func TestResolvePathMissingSegmentFails(t *testing.T) {
	names := map[uint32]string{1: "address"}
	lookup := func(id uint32) (string, bool) { n, ok := names[id]; return n, ok }

	root := MapValue(map[string]PropertyValue{})
	_, ok := ResolvePath(root, PropertyPath{1}, lookup)
	if ok {
		t.Fatal("expected path resolution to fail for a missing segment")
	}
}

func TestPropertyPathEmpty(t *testing.T) {
	if !(PropertyPath{}).Empty() {
		t.Fatal("zero-length path must report Empty")
	}
	if (PropertyPath{1}).Empty() {
		t.Fatal("non-empty path must not report Empty")
	}
}
