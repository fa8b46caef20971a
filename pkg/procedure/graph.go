package procedure

import "github.com/mimirgraph/corestore/pkg/storage"

// GraphContext is the per-call bridge a plugin procedure receives: the
// engine, the calling transaction, which View it reads through, and
// whether it may mutate. A procedure registered as read-only gets mutable=false and
// every write method below returns ErrorImmutableView.
type GraphContext struct {
	engine  *storage.Engine
	tx      *storage.Transaction
	view    storage.View
	mutable bool
	handles *HandleTable
}

func NewGraphContext(engine *storage.Engine, tx *storage.Transaction, view storage.View, mutable bool) *GraphContext {
	return &GraphContext{engine: engine, tx: tx, view: view, mutable: mutable, handles: NewHandleTable()}
}

// Close releases every handle this context issued. Callers invoke it
// once when the procedure call returns.
func (gc *GraphContext) Close() { gc.handles.ReleaseAll() }

func (gc *GraphContext) requireMutable() ErrorCode {
	if !gc.mutable {
		return ErrorImmutableView
	}
	return ErrorSuccess
}

// VertexByID resolves id to a Handle, or ErrorNonexistentObject.
func (gc *GraphContext) VertexByID(id uint64) (Handle, ErrorCode) {
	v, err := gc.engine.GetVertex(storage.VertexID(id))
	if err != nil {
		return 0, ToErrorCode(err)
	}
	return gc.handles.Put(v), ErrorSuccess
}

func (gc *GraphContext) EdgeByID(id uint64) (Handle, ErrorCode) {
	e, err := gc.engine.GetEdge(storage.EdgeID(id))
	if err != nil {
		return 0, ToErrorCode(err)
	}
	return gc.handles.Put(e), ErrorSuccess
}

// IterateVerticesByLabel returns a Handle per vertex currently indexed
// under label, taken from the copy of the label index's membership that
// VerticesByLabel returns.
func (gc *GraphContext) IterateVerticesByLabel(label uint32) []Handle {
	vs := gc.engine.Indexes().VerticesByLabel(label)
	out := make([]Handle, len(vs))
	for i, v := range vs {
		out[i] = gc.handles.Put(v)
	}
	return out
}

func (gc *GraphContext) IterateEdgesByType(edgeType uint32) []Handle {
	es := gc.engine.Indexes().EdgesByType(edgeType)
	out := make([]Handle, len(es))
	for i, e := range es {
		out[i] = gc.handles.Put(e)
	}
	return out
}

// ApproximateVertexCount and ApproximateEdgeCount expose the same
// estimate a query planner's cardinality estimation would use.
func (gc *GraphContext) ApproximateVertexCount(label uint32) int64 {
	return int64(gc.engine.Indexes().ApproximateVertexCount(label))
}

func (gc *GraphContext) ApproximateEdgeCount(edgeType uint32) int64 {
	return int64(gc.engine.Indexes().ApproximateEdgeCount(edgeType))
}

// VertexLabels, VertexProperty and VertexProperties read through gc's
// (transaction, view) pair, same as any storage-layer caller.
func (gc *GraphContext) VertexLabels(h Handle) ([]uint32, ErrorCode) {
	v, ok := gc.handles.vertex(h)
	if !ok {
		return nil, ErrorInvalidArgument
	}
	labels, err := storage.Labels(v, gc.tx, gc.view)
	return labels, ToErrorCode(err)
}

func (gc *GraphContext) VertexProperty(h Handle, prop uint32) (PluginValue, ErrorCode) {
	v, ok := gc.handles.vertex(h)
	if !ok {
		return PluginValue{}, ErrorInvalidArgument
	}
	val, err := storage.GetVertexProperty(v, gc.tx, gc.view, prop)
	return FromPropertyValue(val), ToErrorCode(err)
}

func (gc *GraphContext) EdgeProperty(h Handle, prop uint32) (PluginValue, ErrorCode) {
	e, ok := gc.handles.edge(h)
	if !ok {
		return PluginValue{}, ErrorInvalidArgument
	}
	val, err := storage.GetEdgeProperty(e, gc.tx, gc.view, prop)
	return FromPropertyValue(val), ToErrorCode(err)
}

// CreateVertex, SetVertexProperty and DeleteVertex require a mutable
// context and write through gc's transaction; gc's View is not checked
// for writes.
func (gc *GraphContext) CreateVertex() (Handle, ErrorCode) {
	if ec := gc.requireMutable(); ec != ErrorSuccess {
		return 0, ec
	}
	v, err := gc.engine.CreateVertex(gc.tx)
	if err != nil {
		return 0, ToErrorCode(err)
	}
	return gc.handles.Put(v), ErrorSuccess
}

func (gc *GraphContext) SetVertexProperty(h Handle, prop uint32, val PluginValue) ErrorCode {
	if ec := gc.requireMutable(); ec != ErrorSuccess {
		return ec
	}
	v, ok := gc.handles.vertex(h)
	if !ok {
		return ErrorInvalidArgument
	}
	scalar, err := val.AsPropertyValue()
	if err != nil {
		return ErrorValueConversion
	}
	return ToErrorCode(gc.engine.SetVertexProperty(gc.tx, v, prop, scalar))
}

func (gc *GraphContext) DeleteVertex(h Handle) ErrorCode {
	if ec := gc.requireMutable(); ec != ErrorSuccess {
		return ec
	}
	v, ok := gc.handles.vertex(h)
	if !ok {
		return ErrorInvalidArgument
	}
	return ToErrorCode(gc.engine.DeleteVertex(gc.tx, v))
}

// HasLabelIndex lets a plugin introspect the catalog
// before deciding whether to push a filter down. It reports whether
// CreateLabelIndex has registered label; registration takes effect at
// once and does not backfill existing vertices (Engine.RebuildIndexes
// does), so true does not mean the bucket is populated yet.
func (gc *GraphContext) HasLabelIndex(label uint32) bool {
	return gc.engine.Indexes().HasLabelIndex(label)
}
