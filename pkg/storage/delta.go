package storage

// DeltaKind enumerates the delta variants the engine can record. Each variant
// records the *inverse* of the operation that produced it: a create
// pushes a DeltaDeleteObject (undo = mark deleted), a delete pushes
// DeltaRecreateObject (undo = mark live), and so on.
type DeltaKind uint8

const (
	DeltaRecreateObject DeltaKind = iota
	DeltaDeleteObject
	DeltaSetProperty
	DeltaAddLabel
	DeltaRemoveLabel
	DeltaAddInEdge
	DeltaAddOutEdge
	DeltaRemoveInEdge
	DeltaRemoveOutEdge
)

// Delta is an intrusive, singly-linked, append-at-head, immutable-once-linked
// record. It stores the transaction id that produced it (txID); Commit
// records the commit timestamp in commitTS via MarkCommitted and sets
// committed, after which readers compare against commitTS instead of
// the transaction id. commandID
// records the producing transaction's command counter (see
// AdvanceCommand); deltaVisible does not read it.
type Delta struct {
	kind DeltaKind
	next *Delta

	txID      uint64 // producing transaction id; meaningful only while !committed
	commitTS  uint64 // valid only once committed is true
	committed bool
	commandID uint32

	// Payload, populated per-kind. Unused fields are zero.
	prop     uint32
	oldValue PropertyValue
	label    uint32
	edgeType uint32
	other    VertexID
	edge     *Edge

	// Owning record, set by linkVertex/linkEdge. Abort uses these to apply
	// the delta's inverse directly against the live record; the read-time
	// visibility walk in visibility.go never touches them, it walks the
	// chain it's handed instead.
	ownerVertex *Vertex
	ownerEdge   *Edge
}

func newDelta(kind DeltaKind, txID uint64, commandID uint32) *Delta {
	return &Delta{kind: kind, txID: txID, commandID: commandID}
}

// producerTS returns the commit timestamp once committed, otherwise the
// producing transaction's id (ids and commit timestamps share one
// counter, see txmanager.go). deltaVisible does not call it. The id is
// assigned at Begin, so an uncommitted delta's value can be lower than
// commit timestamps handed out after that Begin.
func (d *Delta) producerTS() uint64 {
	if d.committed {
		return d.commitTS
	}
	return d.txID
}

// MarkCommitted records commitTS and marks the delta committed; txID is
// left as it was. Called once per delta, while the transaction manager holds
// the commit-timestamp-allocation section of Commit.
func (d *Delta) MarkCommitted(commitTS uint64) {
	d.commitTS = commitTS
	d.committed = true
}

// linkVertex pushes d onto v's delta chain head. Caller must hold v.mu.
func linkVertex(v *Vertex, d *Delta) {
	d.next = v.deltaHead
	d.ownerVertex = v
	v.deltaHead = d
}

// linkEdge pushes d onto e's delta chain head. Caller must hold e.mu.
func linkEdge(e *Edge, d *Delta) {
	d.next = e.deltaHead
	d.ownerEdge = e
	e.deltaHead = d
}

// vertexSnapshot is the reconstructable-field working copy the visibility
// walk in visibility.go rebuilds by applying delta inverses on top of a
// vertex's current committed fields.
type vertexSnapshot struct {
	labels   []uint32
	props    propertyStore
	inEdges  []edgeRef
	outEdges []edgeRef
	deleted  bool
}

type edgeSnapshot struct {
	props   propertyStore
	deleted bool
}

// applyInverseToVertex undoes one delta against a vertex snapshot,
// reconstructing the state one step further into the past.
func applyInverseToVertex(s *vertexSnapshot, d *Delta) {
	switch d.kind {
	case DeltaRecreateObject:
		s.deleted = false
	case DeltaDeleteObject:
		s.deleted = true
	case DeltaSetProperty:
		s.props, _, _ = s.props.set(d.prop, d.oldValue)
	case DeltaAddLabel:
		s.labels = addLabel(s.labels, d.label)
	case DeltaRemoveLabel:
		s.labels = removeLabel(s.labels, d.label)
	case DeltaAddInEdge:
		s.inEdges = appendEdgeRef(s.inEdges, edgeRef{edgeType: d.edgeType, other: d.other, edge: d.edge})
	case DeltaAddOutEdge:
		s.outEdges = appendEdgeRef(s.outEdges, edgeRef{edgeType: d.edgeType, other: d.other, edge: d.edge})
	case DeltaRemoveInEdge:
		s.inEdges = removeEdgeRef(s.inEdges, d.edge)
	case DeltaRemoveOutEdge:
		s.outEdges = removeEdgeRef(s.outEdges, d.edge)
	}
}

func applyInverseToEdge(s *edgeSnapshot, d *Delta) {
	switch d.kind {
	case DeltaRecreateObject:
		s.deleted = false
	case DeltaDeleteObject:
		s.deleted = true
	case DeltaSetProperty:
		s.props, _, _ = s.props.set(d.prop, d.oldValue)
	}
}

func appendEdgeRef(list []edgeRef, ref edgeRef) []edgeRef {
	out := make([]edgeRef, len(list), len(list)+1)
	copy(out, list)
	return append(out, ref)
}

func removeEdgeRef(list []edgeRef, e *Edge) []edgeRef {
	out := make([]edgeRef, 0, len(list))
	for _, r := range list {
		if r.edge != e {
			out = append(out, r)
		}
	}
	return out
}

// undo reverts d's effect against whichever live record it was linked to.
// Only Abort calls this; a transaction being rolled back is, by the
// single-writer-lock invariant, the only transaction allowed to touch
// these fields, so no additional locking is needed beyond the record's
// own mu (held for consistency with concurrent readers walking the chain).
func (d *Delta) undo() {
	switch {
	case d.ownerVertex != nil:
		v := d.ownerVertex
		v.mu.Lock()
		s := vertexSnapshot{labels: v.labels, props: v.props, inEdges: v.inEdges, outEdges: v.outEdges, deleted: v.deleted}
		applyInverseToVertex(&s, d)
		v.labels, v.props, v.inEdges, v.outEdges, v.deleted = s.labels, s.props, s.inEdges, s.outEdges, s.deleted
		v.deltaHead = d.next
		v.mu.Unlock()
	case d.ownerEdge != nil:
		e := d.ownerEdge
		e.mu.Lock()
		s := edgeSnapshot{props: e.props, deleted: e.deleted}
		applyInverseToEdge(&s, d)
		e.props, e.deleted = s.props, s.deleted
		e.deltaHead = d.next
		e.mu.Unlock()
	}
}
