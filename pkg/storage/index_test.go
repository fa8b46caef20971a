package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelIndexTracksCommittedMembership(t *testing.T) {
	e := newTestEngine()
	e.Indexes().CreateLabelIndex(labelPerson)
	assert.True(t, e.Indexes().HasLabelIndex(labelPerson))
	assert.False(t, e.Indexes().HasLabelIndex(999))

	tx := e.Begin()
	v, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(tx, v, labelPerson))
	require.NoError(t, e.Commit(context.Background(), tx))

	bucket := e.Indexes().VerticesByLabel(labelPerson)
	require.Len(t, bucket, 1)
	assert.Equal(t, v.ID(), bucket[0].ID())
}

func TestLabelIndexRemovesOnLabelRemoval(t *testing.T) {
	e := newTestEngine()
	e.Indexes().CreateLabelIndex(labelPerson)

	tx := e.Begin()
	v, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(tx, v, labelPerson))
	require.NoError(t, e.Commit(context.Background(), tx))
	require.Len(t, e.Indexes().VerticesByLabel(labelPerson), 1)

	tx2 := e.Begin()
	require.NoError(t, e.RemoveLabel(tx2, v, labelPerson))
	require.NoError(t, e.Commit(context.Background(), tx2))
	assert.Empty(t, e.Indexes().VerticesByLabel(labelPerson))
}

func TestLabelIndexRemovesOnVertexDeletion(t *testing.T) {
	e := newTestEngine()
	e.Indexes().CreateLabelIndex(labelPerson)

	tx := e.Begin()
	v, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(tx, v, labelPerson))
	require.NoError(t, e.Commit(context.Background(), tx))

	tx2 := e.Begin()
	require.NoError(t, e.DeleteVertex(tx2, v))
	require.NoError(t, e.Commit(context.Background(), tx2))
	assert.Empty(t, e.Indexes().VerticesByLabel(labelPerson))
}

func TestLabelPropertyIndexOrderedRangeScan(t *testing.T) {
	e := newTestEngine()
	e.Indexes().CreateLabelPropertyIndex(labelPerson, propAge)

	tx := e.Begin()
	ages := []int64{30, 10, 20}
	vertices := make([]*Vertex, 0, len(ages))
	for _, age := range ages {
		v, err := e.CreateVertex(tx)
		require.NoError(t, err)
		require.NoError(t, e.AddLabel(tx, v, labelPerson))
		require.NoError(t, e.SetVertexProperty(tx, v, propAge, IntValue(age)))
		vertices = append(vertices, v)
	}
	require.NoError(t, e.Commit(context.Background(), tx))

	result := e.Indexes().ScanLabelProperty(labelPerson, propAge, NullValue(), NullValue())
	require.Len(t, result, 3)
	var got []int64
	for _, v := range result {
		props := CurrentVertexProperties(v)
		a, _ := props[propAge].AsInt()
		got = append(got, a)
	}
	assert.Equal(t, []int64{10, 20, 30}, got)

	bounded := e.Indexes().ScanLabelProperty(labelPerson, propAge, IntValue(15), IntValue(25))
	require.Len(t, bounded, 1)
	props := CurrentVertexProperties(bounded[0])
	a, _ := props[propAge].AsInt()
	assert.Equal(t, int64(20), a)
}

func TestEdgeTypeIndexTracksCommittedMembership(t *testing.T) {
	e := newTestEngine()
	e.Indexes().CreateEdgeTypeIndex(edgeKnows)

	tx := e.Begin()
	a, err := e.CreateVertex(tx)
	require.NoError(t, err)
	b, err := e.CreateVertex(tx)
	require.NoError(t, err)
	edge, err := e.CreateEdge(tx, a, b, edgeKnows)
	require.NoError(t, err)
	require.NoError(t, e.Commit(context.Background(), tx))

	bucket := e.Indexes().EdgesByType(edgeKnows)
	require.Len(t, bucket, 1)
	assert.Equal(t, edge.ID(), bucket[0].ID())
}

func TestApproximateCountReflectsIndexBucketSize(t *testing.T) {
	e := newTestEngine()
	e.Indexes().CreateLabelIndex(labelPerson)

	tx := e.Begin()
	for i := 0; i < 3; i++ {
		v, err := e.CreateVertex(tx)
		require.NoError(t, err)
		require.NoError(t, e.AddLabel(tx, v, labelPerson))
	}
	require.NoError(t, e.Commit(context.Background(), tx))

	assert.Equal(t, 3, e.Indexes().ApproximateVertexCount(labelPerson))
}

func TestCheckVectorDimension(t *testing.T) {
	h := VectorIndexHandle{Label: labelPerson, Prop: propAge, Dimension: 3}
	ok := CheckVectorDimension(h, ListValue([]PropertyValue{IntValue(1), IntValue(2), IntValue(3)}))
	assert.True(t, ok)

	ok = CheckVectorDimension(h, ListValue([]PropertyValue{IntValue(1), IntValue(2)}))
	assert.False(t, ok, "dimension mismatch must fail")

	ok = CheckVectorDimension(h, StringValue("not a vector"))
	assert.False(t, ok)
}
