package durability

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimirgraph/corestore/pkg/storage"
)

func newTestEngine(wal storage.WAL) *storage.Engine {
	return storage.NewEngine(storage.Config{PropertiesOnEdges: true, DefaultMode: storage.Transactional}, wal, logr.Discard(), nil, nil)
}

// drainToCommit reads records off r until it hits the terminating
// OpCommit record, returning the field-level ops seen along the way.
func drainToCommit(t *testing.T, r *Reader) ([]storage.WALOp, Record) {
	t.Helper()
	var ops []storage.WALOp
	for {
		rec, err := r.Next()
		require.NoError(t, err)
		if rec.IsCommit {
			return ops, rec
		}
		ops = append(ops, rec.Op)
	}
}

func TestWriterAppendCommitThenReaderRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil, logr.Discard())
	e := newTestEngine(w)

	tx := e.Begin()
	_, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.Commit(context.Background(), tx))

	r := NewReader(&buf)
	ops, commit := drainToCommit(t, r)
	require.Len(t, ops, 1)
	assert.Equal(t, storage.WALCreateVertex, ops[0].Kind)
	assert.Equal(t, tx.ID(), commit.TxID)
	assert.Equal(t, tx.CommitTimestamp(), commit.CommitTS)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriterLogsFieldLevelOpsForEachOperation(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil, logr.Discard())
	e := newTestEngine(w)

	tx := e.Begin()
	v, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(tx, v, 7))
	require.NoError(t, e.SetVertexProperty(tx, v, 1, storage.StringValue("ada")))
	require.NoError(t, e.Commit(context.Background(), tx))

	r := NewReader(&buf)
	ops, commit := drainToCommit(t, r)
	require.Len(t, ops, 3)
	assert.Equal(t, storage.WALCreateVertex, ops[0].Kind)
	assert.Equal(t, storage.WALAddLabel, ops[1].Kind)
	assert.Equal(t, uint32(7), ops[1].Label)
	assert.Equal(t, storage.WALSetVertexProperty, ops[2].Kind)
	val, ok := ops[2].Value.AsString()
	require.True(t, ok)
	assert.Equal(t, "ada", val)
	assert.Equal(t, tx.ID(), commit.TxID)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriterLogsEdgeCreateAndDeleteAsSingleOpsEach(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil, logr.Discard())
	e := newTestEngine(w)

	tx := e.Begin()
	v1, err := e.CreateVertex(tx)
	require.NoError(t, err)
	v2, err := e.CreateVertex(tx)
	require.NoError(t, err)
	edge, err := e.CreateEdge(tx, v1, v2, 3)
	require.NoError(t, err)
	require.NoError(t, e.Commit(context.Background(), tx))

	tx2 := e.Begin()
	require.NoError(t, e.DeleteEdge(tx2, edge))
	require.NoError(t, e.Commit(context.Background(), tx2))

	r := NewReader(&buf)
	ops, _ := drainToCommit(t, r)
	require.Len(t, ops, 3) // two vertex creates, one edge create; no adjacency-side ops
	assert.Equal(t, storage.WALCreateEdge, ops[2].Kind)

	ops2, _ := drainToCommit(t, r)
	require.Len(t, ops2, 1)
	assert.Equal(t, storage.WALDeleteEdge, ops2[0].Kind)
}

func TestReaderDetectsCorruptChecksum(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil, logr.Discard())
	e := newTestEngine(w)

	tx := e.Begin()
	_, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.Commit(context.Background(), tx))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF // flip a bit in the checksum trailer

	r := NewReader(bytes.NewReader(corrupted))
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestReaderRejectsMalformedOpPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeRecord(&buf, record{opcode: OpCreateVertex, payload: []byte{1, 2, 3}}))

	r := NewReader(&buf)
	_, err := r.Next()
	assert.Error(t, err)
}

func TestMultipleCommitsAppendSequentially(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil, logr.Discard())
	e := newTestEngine(w)

	var txIDs []uint64
	for i := 0; i < 3; i++ {
		tx := e.Begin()
		_, err := e.CreateVertex(tx)
		require.NoError(t, err)
		require.NoError(t, e.Commit(context.Background(), tx))
		txIDs = append(txIDs, tx.ID())
	}

	r := NewReader(&buf)
	for _, id := range txIDs {
		_, commit := drainToCommit(t, r)
		assert.Equal(t, id, commit.TxID)
	}
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
