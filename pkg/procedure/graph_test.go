package procedure

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimirgraph/corestore/pkg/storage"
)

const testLabel uint32 = 3

func newTestEngine() *storage.Engine {
	return storage.NewEngine(storage.Config{PropertiesOnEdges: true, DefaultMode: storage.Transactional}, nil, logr.Discard(), nil, nil)
}

func TestGraphContextMutableCreateAndReadBack(t *testing.T) {
	engine := newTestEngine()
	tx := engine.Begin()
	gc := NewGraphContext(engine, tx, storage.NEW, true)
	defer gc.Close()

	h, ec := gc.CreateVertex()
	require.Equal(t, ErrorSuccess, ec)

	ec = gc.SetVertexProperty(h, 1, ScalarValue(storage.StringValue("ada")))
	require.Equal(t, ErrorSuccess, ec)

	pv, ec := gc.VertexProperty(h, 1)
	require.Equal(t, ErrorSuccess, ec)
	out, err := pv.AsPropertyValue()
	require.NoError(t, err)
	s, _ := out.AsString()
	assert.Equal(t, "ada", s)

	require.NoError(t, engine.Commit(context.Background(), tx))
}

func TestGraphContextImmutableRejectsWrites(t *testing.T) {
	engine := newTestEngine()
	tx := engine.Begin()
	_, err := engine.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, engine.Commit(context.Background(), tx))

	reader := engine.Begin()
	gc := NewGraphContext(engine, reader, storage.OLD, false)
	defer gc.Close()

	_, ec := gc.CreateVertex()
	assert.Equal(t, ErrorImmutableView, ec)
}

func TestGraphContextVertexByIDUnknownReturnsNonexistent(t *testing.T) {
	engine := newTestEngine()
	tx := engine.Begin()
	gc := NewGraphContext(engine, tx, storage.NEW, true)
	defer gc.Close()

	_, ec := gc.VertexByID(999999)
	assert.Equal(t, ErrorNonexistentObject, ec)
}

func TestGraphContextOperationsWithStaleHandleFailAfterClose(t *testing.T) {
	engine := newTestEngine()
	tx := engine.Begin()
	gc := NewGraphContext(engine, tx, storage.NEW, true)

	h, ec := gc.CreateVertex()
	require.Equal(t, ErrorSuccess, ec)
	gc.Close()

	_, ec = gc.VertexLabels(h)
	assert.Equal(t, ErrorInvalidArgument, ec, "a handle from a closed context must no longer resolve")
}

func TestHasLabelIndexReflectsRegisteredIndexes(t *testing.T) {
	engine := newTestEngine()
	tx := engine.Begin()
	gc := NewGraphContext(engine, tx, storage.NEW, true)
	defer gc.Close()

	assert.False(t, gc.HasLabelIndex(testLabel))
	engine.Indexes().CreateLabelIndex(testLabel)
	assert.True(t, gc.HasLabelIndex(testLabel))
}

func TestIterateVerticesByLabelReturnsOneHandlePerMember(t *testing.T) {
	engine := newTestEngine()
	engine.Indexes().CreateLabelIndex(testLabel)

	tx := engine.Begin()
	v1, err := engine.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, engine.AddLabel(tx, v1, testLabel))
	v2, err := engine.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, engine.AddLabel(tx, v2, testLabel))
	require.NoError(t, engine.Commit(context.Background(), tx))

	reader := engine.Begin()
	gc := NewGraphContext(engine, reader, storage.OLD, false)
	defer gc.Close()

	handles := gc.IterateVerticesByLabel(testLabel)
	assert.Len(t, handles, 2)
}
