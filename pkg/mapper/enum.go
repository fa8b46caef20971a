package mapper

import (
	"fmt"
	"sync"
)

// EnumID is the 64-bit compound id storage.EnumValue carries: the high
// 32 bits name the enum type, the low 32 bits name the member (see
// pack). Resolve and Lookup do not use the packed form: they go through
// the type-name NameMapper and the per-type member NameMapper, each
// under a read lock.
type EnumID struct {
	TypeID   uint32
	MemberID uint32
}

func (id EnumID) pack() uint64 {
	return uint64(id.TypeID)<<32 | uint64(id.MemberID)
}

// EnumRegistry holds the declared enum types and their members. New
// enum types and new members are both append-only: once declared,
// removing an enum type or member could strand a committed
// PropertyValue with a dangling id, which this registry never allows.
type EnumRegistry struct {
	mu sync.RWMutex

	typeNames *NameMapper            // enum type name <-> TypeID
	members   map[uint32]*NameMapper // TypeID -> (member name <-> MemberID)
}

func NewEnumRegistry() *EnumRegistry {
	return &EnumRegistry{
		typeNames: New(),
		members:   make(map[uint32]*NameMapper),
	}
}

// DeclareType registers a new enum type by name, or returns the existing
// TypeID if already declared.
func (r *EnumRegistry) DeclareType(typeName string) uint32 {
	typeID := r.typeNames.Intern(typeName)
	r.mu.Lock()
	if _, ok := r.members[typeID]; !ok {
		r.members[typeID] = New()
	}
	r.mu.Unlock()
	return typeID
}

// DeclareMember registers memberName under typeID, or returns the
// existing MemberID if already declared. Returns an error if typeID
// wasn't declared with DeclareType first.
func (r *EnumRegistry) DeclareMember(typeID uint32, memberName string) (uint32, error) {
	r.mu.RLock()
	members, ok := r.members[typeID]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("mapper: unknown enum type id %d", typeID)
	}
	return members.Intern(memberName), nil
}

// Resolve turns an EnumID back into its type and member names.
func (r *EnumRegistry) Resolve(id EnumID) (typeName, memberName string, ok bool) {
	typeName, ok = r.typeNames.Name(id.TypeID)
	if !ok {
		return "", "", false
	}
	r.mu.RLock()
	members, exists := r.members[id.TypeID]
	r.mu.RUnlock()
	if !exists {
		return "", "", false
	}
	memberName, ok = members.Name(id.MemberID)
	return typeName, memberName, ok
}

// Lookup resolves a (type name, member name) pair to its EnumID without
// declaring anything.
func (r *EnumRegistry) Lookup(typeName, memberName string) (EnumID, bool) {
	typeID, ok := r.typeNames.Lookup(typeName)
	if !ok {
		return EnumID{}, false
	}
	r.mu.RLock()
	members, exists := r.members[typeID]
	r.mu.RUnlock()
	if !exists {
		return EnumID{}, false
	}
	memberID, ok := members.Lookup(memberName)
	if !ok {
		return EnumID{}, false
	}
	return EnumID{TypeID: typeID, MemberID: memberID}, true
}
