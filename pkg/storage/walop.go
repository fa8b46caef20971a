package storage

// WALOpKind identifies the forward operation a committed delta implies.
// Every delta stores its own inverse, so the durability layer cannot log
// deltas verbatim; it logs WALOps instead, derived once at commit time.
type WALOpKind uint8

const (
	WALCreateVertex WALOpKind = iota
	WALDeleteVertex
	WALCreateEdge
	WALDeleteEdge
	WALSetVertexProperty
	WALSetEdgeProperty
	WALAddLabel
	WALRemoveLabel
)

// WALOp is one field-level operation a transaction's commit performed,
// in the shape durability's WAL writer needs to re-derive the forward
// edit and a recovering engine needs to replay it.
type WALOp struct {
	Kind WALOpKind

	VertexID VertexID
	EdgeID   EdgeID
	FromID   VertexID
	ToID     VertexID
	EdgeType uint32

	Prop  uint32
	Value PropertyValue
	Label uint32

	// Labels and Props carry a record's full state as of commit, and are
	// only populated for WALCreateVertex/WALCreateEdge: replay
	// reconstructs a created record in one step, the same way a snapshot
	// load does via RestoreVertex/RestoreEdge.
	Labels []uint32
	Props  map[uint32]PropertyValue
}

// WALOps derives, in the order t produced them, the forward operations
// implied by t's delta chain: each delta records an undo, so the forward
// op is the delta kind's inverse, and any value the delta doesn't carry
// directly (a property's new value) is read off the live record, which
// already holds it since writes apply immediately rather than waiting
// for commit. Called from within Commit, after validation and before
// deltas are marked committed, so the live fields read here are exactly
// what this transaction wrote.
//
// The vertex-adjacency deltas CreateEdge/DeleteEdge push onto their
// endpoints (DeltaAddInEdge, DeltaAddOutEdge, DeltaRemoveInEdge,
// DeltaRemoveOutEdge) produce no WALOp of their own: the edge's own
// create/delete op reconstructs adjacency on both endpoints in one step,
// mirroring RestoreEdge.
func (t *Transaction) WALOps() []WALOp {
	t.mu.Lock()
	deltas := t.deltas
	t.mu.Unlock()

	ops := make([]WALOp, 0, len(deltas))
	for _, d := range deltas {
		switch d.kind {
		case DeltaDeleteObject: // inverse of create
			switch {
			case d.ownerVertex != nil:
				v := d.ownerVertex
				v.mu.Lock()
				op := WALOp{Kind: WALCreateVertex, VertexID: v.id, Labels: append([]uint32(nil), v.labels...), Props: v.props.all()}
				v.mu.Unlock()
				ops = append(ops, op)
			case d.ownerEdge != nil:
				e := d.ownerEdge
				e.mu.Lock()
				op := WALOp{Kind: WALCreateEdge, EdgeID: e.id, FromID: e.from.id, ToID: e.to.id, EdgeType: e.edgeType, Props: e.props.all()}
				e.mu.Unlock()
				ops = append(ops, op)
			}
		case DeltaRecreateObject: // inverse of delete
			switch {
			case d.ownerVertex != nil:
				ops = append(ops, WALOp{Kind: WALDeleteVertex, VertexID: d.ownerVertex.id})
			case d.ownerEdge != nil:
				ops = append(ops, WALOp{Kind: WALDeleteEdge, EdgeID: d.ownerEdge.id})
			}
		case DeltaSetProperty:
			switch {
			case d.ownerVertex != nil:
				v := d.ownerVertex
				v.mu.Lock()
				val, _ := v.props.get(d.prop)
				v.mu.Unlock()
				ops = append(ops, WALOp{Kind: WALSetVertexProperty, VertexID: v.id, Prop: d.prop, Value: val})
			case d.ownerEdge != nil:
				e := d.ownerEdge
				e.mu.Lock()
				val, _ := e.props.get(d.prop)
				e.mu.Unlock()
				ops = append(ops, WALOp{Kind: WALSetEdgeProperty, EdgeID: e.id, Prop: d.prop, Value: val})
			}
		case DeltaRemoveLabel: // inverse of AddLabel
			if d.ownerVertex != nil {
				ops = append(ops, WALOp{Kind: WALAddLabel, VertexID: d.ownerVertex.id, Label: d.label})
			}
		case DeltaAddLabel: // inverse of RemoveLabel
			if d.ownerVertex != nil {
				ops = append(ops, WALOp{Kind: WALRemoveLabel, VertexID: d.ownerVertex.id, Label: d.label})
			}
		}
	}
	return ops
}
