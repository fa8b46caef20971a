package storage

import "sync"

// ConstraintManager validates existence, uniqueness and type constraints
// at commit time: a committed transaction never leaves a constraint
// violated. Unlike the index structures above, constraints are checked,
// not maintained incrementally; Commit walks the write set directly.
type ConstraintManager struct {
	mu sync.Mutex

	existence map[uint32][]uint32             // label -> required property ids
	types     map[labelPropKey]ValueKind       // (label, prop) -> required kind
	unique    map[labelPropKey]map[string]VertexID // (label, prop) -> value key -> owning vertex
}

func newConstraintManager() *ConstraintManager {
	return &ConstraintManager{
		existence: make(map[uint32][]uint32),
		types:     make(map[labelPropKey]ValueKind),
		unique:    make(map[labelPropKey]map[string]VertexID),
	}
}

func (cm *ConstraintManager) AddExistence(label, prop uint32) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.existence[label] = append(cm.existence[label], prop)
}

func (cm *ConstraintManager) AddType(label, prop uint32, kind ValueKind) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.types[labelPropKey{label, prop}] = kind
}

func (cm *ConstraintManager) AddUnique(label, prop uint32) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	key := labelPropKey{label, prop}
	if _, ok := cm.unique[key]; !ok {
		cm.unique[key] = make(map[string]VertexID)
	}
}

// uniqueKey produces a comparable map key from a PropertyValue, reusing
// PropertyValue.String() as a stand-in hash key rather than building a
// second ordered index. This is adequate for uniqueness checks:
// collisions between differently-typed values that render to the same
// string are vanishingly unlikely for the scalar types constraints are
// declared over. AddUnique does not check the property's value kind, so
// list/map values are keyed by their String() rendering too.
func uniqueKey(v PropertyValue) string { return v.String() }

// ValidateTransaction checks every vertex t holds a write lock on against
// every declared constraint, reading the vertex's current (just-written)
// fields directly: no other transaction can observe or mutate them until
// this transaction's lock releases, so no view reconstruction is needed.
func (cm *ConstraintManager) ValidateTransaction(t *Transaction) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Tentative claims made during this validation pass, released on any
	// failure so a later retrying transaction isn't blocked by them.
	var claimed []struct {
		key labelPropKey
		val string
	}
	rollback := func() {
		for _, c := range claimed {
			delete(cm.unique[c.key], c.val)
		}
	}

	for _, lo := range t.locked {
		if lo.vertex == nil {
			continue
		}
		v := lo.vertex
		v.mu.Lock()
		deleted := v.deleted
		labels := v.labels
		props := v.props
		id := v.id
		v.mu.Unlock()
		if deleted {
			continue
		}

		for _, label := range labels {
			for _, prop := range cm.existence[label] {
				if _, ok := props.get(prop); !ok {
					rollback()
					return &ConstraintViolationError{Kind: ConstraintExistence, Label: label, Properties: []uint32{prop}}
				}
			}
		}

		for key, kind := range cm.types {
			if !hasLabel(labels, key.label) {
				continue
			}
			val, ok := props.get(key.prop)
			if ok && val.Kind() != kind {
				rollback()
				return &ConstraintViolationError{Kind: ConstraintType, Label: key.label, Properties: []uint32{key.prop}}
			}
		}

		for key, owners := range cm.unique {
			if !hasLabel(labels, key.label) {
				continue
			}
			val, ok := props.get(key.prop)
			if !ok {
				continue
			}
			k := uniqueKey(val)
			owner, exists := owners[k]
			if exists && owner != id {
				rollback()
				return &ConstraintViolationError{Kind: ConstraintUnique, Label: key.label, Properties: []uint32{key.prop}}
			}
			if exists {
				continue // id's claim predates this pass; rollback must not drop it
			}
			owners[k] = id
			claimed = append(claimed, struct {
				key labelPropKey
				val string
			}{key, k})
		}
	}
	return nil
}

// releaseStaleClaims frees the unique-constraint claims t's commit makes
// obsolete: a deleted vertex's claims on its current property values,
// and a changed property's claim on its old value. It reads straight off
// t's delta chain (DeltaRecreateObject for a delete, DeltaSetProperty's
// oldValue for a property change) rather than the vertex's live fields,
// which by commit time hold only the new state.
//
// Called from Commit only after ValidateTransaction has already
// succeeded, so a transaction that aborts never reaches here: an
// aborted write's claim release would otherwise have to be undone too,
// and the delta chain Abort already walks doesn't carry unique-claim
// bookkeeping.
func (cm *ConstraintManager) releaseStaleClaims(t *Transaction) {
	t.mu.Lock()
	deltas := t.deltas
	t.mu.Unlock()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, d := range deltas {
		switch d.kind {
		case DeltaRecreateObject:
			if d.ownerVertex == nil {
				continue
			}
			v := d.ownerVertex
			v.mu.Lock()
			labels, props, id := v.labels, v.props, v.id
			v.mu.Unlock()
			cm.releaseVertexValues(id, labels, props)

		case DeltaSetProperty:
			if d.ownerVertex == nil || d.oldValue.IsNull() {
				continue
			}
			v := d.ownerVertex
			v.mu.Lock()
			labels, id := v.labels, v.id
			current, _ := v.props.get(d.prop)
			v.mu.Unlock()
			if uniqueKey(current) == uniqueKey(d.oldValue) {
				continue // net-unchanged within the transaction; the live claim still applies
			}
			k := uniqueKey(d.oldValue)
			for _, label := range labels {
				owners, ok := cm.unique[labelPropKey{label, d.prop}]
				if !ok {
					continue
				}
				if owner, exists := owners[k]; exists && owner == id {
					delete(owners, k)
				}
			}
		}
	}
}

// releaseVertexValues drops id's claim, if any, on every unique
// (label, prop) key its current labels and props would otherwise still
// hold after id stops being live. Caller holds cm.mu.
func (cm *ConstraintManager) releaseVertexValues(id VertexID, labels []uint32, props propertyStore) {
	for _, label := range labels {
		for key, owners := range cm.unique {
			if key.label != label {
				continue
			}
			val, ok := props.get(key.prop)
			if !ok {
				continue
			}
			k := uniqueKey(val)
			if owner, exists := owners[k]; exists && owner == id {
				delete(owners, k)
			}
		}
	}
}
