package storage

// deltaVisible reports whether a delta is already reflected in the
// "current committed fields" that
// a reconstruction walk starts from — i.e. whether the walk must apply
// its inverse at all to reach the requested view.
//
// A committed delta is visible to a reader if its commit
// timestamp is less than or equal to the reader's start timestamp (or,
// for ReadCommitted/ReadUncommitted isolation, always visible once
// committed). An uncommitted delta is visible only under View NEW and
// only to the transaction that produced it.
func deltaVisible(d *Delta, t *Transaction, view View) bool {
	if !d.committed {
		return view == NEW && d.txID == t.id
	}
	switch t.isolation {
	case ReadUncommitted:
		return true
	case ReadCommitted:
		return true
	default: // Snapshot
		if d.commitTS <= t.startTS {
			return true
		}
		// A delta committed after our snapshot started, but produced by an
		// earlier command within *our own* still-running transaction, is
		// never reached here: own-transaction deltas are uncommitted until
		// the whole transaction commits, so they're handled by the branch
		// above.
		return false
	}
}

// reconstructVertex walks v's delta chain from the head, applying the
// inverse of every delta not visible to (t, view), until it reaches a
// state where everything remaining is visible. v.mu must
// be held by the caller for the duration of the read of v's fields and
// the chain walk, since the chain and the "current" fields must be read
// as of the same instant.
func reconstructVertex(v *Vertex, t *Transaction, view View) vertexSnapshot {
	s := vertexSnapshot{
		labels:   v.labels,
		props:    v.props,
		inEdges:  v.inEdges,
		outEdges: v.outEdges,
		deleted:  v.deleted,
	}
	for d := v.deltaHead; d != nil; d = d.next {
		if deltaVisible(d, t, view) {
			continue
		}
		applyInverseToVertex(&s, d)
	}
	return s
}

func reconstructEdge(e *Edge, t *Transaction, view View) edgeSnapshot {
	s := edgeSnapshot{props: e.props, deleted: e.deleted}
	for d := e.deltaHead; d != nil; d = d.next {
		if deltaVisible(d, t, view) {
			continue
		}
		applyInverseToEdge(&s, d)
	}
	return s
}

// VertexExists reports whether v is live under (t, view).
func VertexExists(v *Vertex, t *Transaction, view View) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !reconstructVertex(v, t, view).deleted
}

// Labels returns v's labels as visible to (t, view). Returns
// ErrDeletedObject if v is not live in that view.
func Labels(v *Vertex, t *Transaction, view View) ([]uint32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := reconstructVertex(v, t, view)
	if s.deleted {
		return nil, ErrDeletedObject
	}
	out := make([]uint32, len(s.labels))
	copy(out, s.labels)
	return out, nil
}

// HasLabel reports whether v carries label l as visible to (t, view).
func HasLabel(v *Vertex, t *Transaction, view View, l uint32) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := reconstructVertex(v, t, view)
	if s.deleted {
		return false, ErrDeletedObject
	}
	return hasLabel(s.labels, l), nil
}

// GetVertexProperty returns the value of prop on v as visible to (t, view).
func GetVertexProperty(v *Vertex, t *Transaction, view View, prop uint32) (PropertyValue, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := reconstructVertex(v, t, view)
	if s.deleted {
		return NullValue(), ErrDeletedObject
	}
	val, _ := s.props.get(prop)
	return val, nil
}

// VertexProperties returns all of v's properties as visible to (t, view).
func VertexProperties(v *Vertex, t *Transaction, view View) (map[uint32]PropertyValue, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := reconstructVertex(v, t, view)
	if s.deleted {
		return nil, ErrDeletedObject
	}
	return s.props.all(), nil
}

// InEdges returns v's incoming adjacency as visible to (t, view), optionally
// filtered to a single edge type (edgeType == 0 means "any").
func InEdges(v *Vertex, t *Transaction, view View, edgeType uint32) ([]edgeRef, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := reconstructVertex(v, t, view)
	if s.deleted {
		return nil, ErrDeletedObject
	}
	return filterEdgeRefs(s.inEdges, edgeType), nil
}

// OutEdges returns v's outgoing adjacency as visible to (t, view).
func OutEdges(v *Vertex, t *Transaction, view View, edgeType uint32) ([]edgeRef, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := reconstructVertex(v, t, view)
	if s.deleted {
		return nil, ErrDeletedObject
	}
	return filterEdgeRefs(s.outEdges, edgeType), nil
}

// InDegree and OutDegree report adjacency sizes without materializing the
// filtered slice: a cheap degree query a query planner's cardinality
// estimation can use without the primitive living above storage.
func InDegree(v *Vertex, t *Transaction, view View, edgeType uint32) (int, error) {
	refs, err := InEdges(v, t, view, edgeType)
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

func OutDegree(v *Vertex, t *Transaction, view View, edgeType uint32) (int, error) {
	refs, err := OutEdges(v, t, view, edgeType)
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

func filterEdgeRefs(refs []edgeRef, edgeType uint32) []edgeRef {
	if edgeType == 0 {
		out := make([]edgeRef, len(refs))
		copy(out, refs)
		return out
	}
	out := make([]edgeRef, 0, len(refs))
	for _, r := range refs {
		if r.edgeType == edgeType {
			out = append(out, r)
		}
	}
	return out
}

// EdgeExists, GetEdgeProperty and EdgeProperties mirror the vertex
// accessors above for edge records.
func EdgeExists(e *Edge, t *Transaction, view View) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !reconstructEdge(e, t, view).deleted
}

func GetEdgeProperty(e *Edge, t *Transaction, view View, prop uint32) (PropertyValue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := reconstructEdge(e, t, view)
	if s.deleted {
		return NullValue(), ErrDeletedObject
	}
	val, _ := s.props.get(prop)
	return val, nil
}

func EdgeProperties(e *Edge, t *Transaction, view View) (map[uint32]PropertyValue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := reconstructEdge(e, t, view)
	if s.deleted {
		return nil, ErrDeletedObject
	}
	return s.props.all(), nil
}

// CurrentVertexLabels, CurrentVertexProperties and CurrentVertexDeleted
// read a vertex's most-recently-written fields directly, bypassing the
// delta-chain walk entirely. pkg/durability's snapshot writer uses these:
// a snapshot captures "what the engine holds right now" rather than any
// single transaction's consistent view, since by construction nothing
// reads a snapshot file while transactions are still in flight against
// the engine that produced it.
func CurrentVertexLabels(v *Vertex) []uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]uint32, len(v.labels))
	copy(out, v.labels)
	return out
}

func CurrentVertexProperties(v *Vertex) map[uint32]PropertyValue {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.props.all()
}

func CurrentVertexDeleted(v *Vertex) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deleted
}

func CurrentEdgeProperties(e *Edge) map[uint32]PropertyValue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.props.all()
}

func CurrentEdgeDeleted(e *Edge) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleted
}
