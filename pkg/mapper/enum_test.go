package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclareTypeAndMemberRoundTrip(t *testing.T) {
	r := NewEnumRegistry()
	typeID := r.DeclareType("Color")
	memberID, err := r.DeclareMember(typeID, "Red")
	require.NoError(t, err)

	typeName, memberName, ok := r.Resolve(EnumID{TypeID: typeID, MemberID: memberID})
	require.True(t, ok)
	assert.Equal(t, "Color", typeName)
	assert.Equal(t, "Red", memberName)
}

func TestDeclareTypeIsIdempotent(t *testing.T) {
	r := NewEnumRegistry()
	a := r.DeclareType("Color")
	b := r.DeclareType("Color")
	assert.Equal(t, a, b)
}

func TestDeclareMemberUnknownTypeFails(t *testing.T) {
	r := NewEnumRegistry()
	_, err := r.DeclareMember(42, "Red")
	assert.Error(t, err)
}

func TestLookupWithoutDeclaringFails(t *testing.T) {
	r := NewEnumRegistry()
	_, ok := r.Lookup("Color", "Red")
	assert.False(t, ok)

	typeID := r.DeclareType("Color")
	r.DeclareMember(typeID, "Red")
	id, ok := r.Lookup("Color", "Red")
	require.True(t, ok)
	assert.Equal(t, typeID, id.TypeID)

	_, ok = r.Lookup("Color", "Blue")
	assert.False(t, ok, "an undeclared member must not resolve")
}

func TestResolveUnknownEnumIDFails(t *testing.T) {
	r := NewEnumRegistry()
	_, _, ok := r.Resolve(EnumID{TypeID: 99, MemberID: 1})
	assert.False(t, ok)
}

func TestEnumIDPackIsOrderPreserving(t *testing.T) {
	a := EnumID{TypeID: 1, MemberID: 2}
	b := EnumID{TypeID: 1, MemberID: 3}
	assert.Less(t, a.pack(), b.pack())
}
