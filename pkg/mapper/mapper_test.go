package mapper

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternAssignsStableIDsStartingAtOne(t *testing.T) {
	m := New()
	id1 := m.Intern("Person")
	id2 := m.Intern("Company")
	assert.Equal(t, uint32(1), id1)
	assert.Equal(t, uint32(2), id2)
	assert.Equal(t, id1, m.Intern("Person"), "re-interning an existing name must return the same id")
}

func TestLookupDoesNotInternNewNames(t *testing.T) {
	m := New()
	m.Intern("Person")
	_, ok := m.Lookup("Company")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len(), "Lookup on a missing name must not have interned it")
}

func TestNameResolvesBackFromID(t *testing.T) {
	m := New()
	id := m.Intern("Person")
	name, ok := m.Name(id)
	assert.True(t, ok)
	assert.Equal(t, "Person", name)

	_, ok = m.Name(0)
	assert.False(t, ok, "id 0 must never resolve")

	_, ok = m.Name(999)
	assert.False(t, ok, "an id never handed out must not resolve")
}

func TestInternConcurrentSameNameConverges(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	ids := make([]uint32, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = m.Intern("Shared")
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id, "every concurrent interner of the same name must observe the same id")
	}
	assert.Equal(t, 1, m.Len())
}
