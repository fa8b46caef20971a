package durability

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-logr/logr"

	"github.com/mimirgraph/corestore/pkg/storage"
)

// record is the wire shape of one WAL entry: a length-prefixed,
// opcode-tagged payload followed by an xxhash checksum over the payload
// bytes.
type record struct {
	opcode  Opcode
	payload []byte
}

func encodeRecord(w io.Writer, r record) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r.payload)))
	sum := xxhash.Sum64(r.payload)

	if _, err := w.Write([]byte{byte(r.opcode)}); err != nil {
		return err
	}
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(r.payload) > 0 {
		if _, err := w.Write(r.payload); err != nil {
			return err
		}
	}
	var sumBuf [8]byte
	binary.BigEndian.PutUint64(sumBuf[:], sum)
	_, err := w.Write(sumBuf[:])
	return err
}

func decodeRecord(r io.Reader) (record, error) {
	var head [5]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return record{}, err
	}
	opcode := Opcode(head[0])
	n := binary.BigEndian.Uint32(head[1:5])

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return record{}, err
		}
	}

	var sumBuf [8]byte
	if _, err := io.ReadFull(r, sumBuf[:]); err != nil {
		return record{}, err
	}
	want := binary.BigEndian.Uint64(sumBuf[:])
	if xxhash.Sum64(payload) != want {
		return record{}, ErrCorruptRecord
	}
	return record{opcode: opcode, payload: payload}, nil
}

// Writer appends committed-transaction records to an open WAL segment.
// It implements storage.WAL so Engine.Commit can call it directly.
type Writer struct {
	mu  sync.Mutex
	out *bufio.Writer
	f   flusher
	log logr.Logger
}

type flusher interface {
	Sync() error
}

func NewWriter(w io.Writer, f flusher, log logr.Logger) *Writer {
	return &Writer{out: bufio.NewWriter(w), f: f, log: log}
}

// AppendCommit writes one field-level record per operation t's commit
// performed, derived from t.WALOps(), followed by a terminating
// OpCommit record carrying the transaction id and commit timestamp.
// Recovery buffers a transaction's field-level records until it sees
// that terminator, so a torn write at crash time drops the whole
// transaction rather than replaying a partial one.
func (w *Writer) AppendCommit(ctx context.Context, t *storage.Transaction, commitTS uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, op := range t.WALOps() {
		opcode, payload, err := encodeWALOp(op)
		if err != nil {
			return fmt.Errorf("durability: encode wal op: %w", err)
		}
		if err := encodeRecord(w.out, record{opcode: opcode, payload: payload}); err != nil {
			return fmt.Errorf("durability: wal append: %w", err)
		}
	}

	payload := make([]byte, 16)
	binary.BigEndian.PutUint64(payload[0:8], t.ID())
	binary.BigEndian.PutUint64(payload[8:16], commitTS)
	if err := encodeRecord(w.out, record{opcode: OpCommit, payload: payload}); err != nil {
		return fmt.Errorf("durability: wal append: %w", err)
	}

	if err := w.out.Flush(); err != nil {
		return fmt.Errorf("durability: wal flush: %w", err)
	}
	if w.f != nil {
		if err := w.f.Sync(); err != nil {
			return fmt.Errorf("durability: wal sync: %w", err)
		}
	}
	return nil
}

// Record is one WAL entry decoded back from disk: either a field-level
// op (IsCommit false, Op populated) or the transaction boundary that
// terminates a run of them (IsCommit true, TxID/CommitTS populated).
type Record struct {
	IsCommit bool
	Op       storage.WALOp
	TxID     uint64
	CommitTS uint64
}

// Reader sequentially decodes records from a WAL segment.
type Reader struct {
	in io.Reader
}

func NewReader(r io.Reader) *Reader { return &Reader{in: r} }

// Next returns the next record, or io.EOF once the segment is
// exhausted. A decode error other than io.EOF means the tail of the
// segment is corrupt (e.g. a torn write from a crash mid-append); the
// recovery path treats that as "stop replaying here", not a fatal error.
func (r *Reader) Next() (Record, error) {
	rec, err := decodeRecord(r.in)
	if err != nil {
		return Record{}, err
	}
	if rec.opcode == OpCommit {
		if len(rec.payload) != 16 {
			return Record{}, ErrCorruptRecord
		}
		return Record{
			IsCommit: true,
			TxID:     binary.BigEndian.Uint64(rec.payload[0:8]),
			CommitTS: binary.BigEndian.Uint64(rec.payload[8:16]),
		}, nil
	}
	op, err := decodeWALOp(rec.opcode, rec.payload)
	if err != nil {
		return Record{}, err
	}
	return Record{Op: op}, nil
}

// encodeWALOp and decodeWALOp convert between a storage.WALOp and the
// Opcode-tagged payload format.go declares, reusing snapshot.go's
// primitives (writeUint64/encodeProps/encodeValue and their readers) so
// the WAL and snapshot wire formats stay byte-compatible for the field
// types they share.
func encodeWALOp(op storage.WALOp) (Opcode, []byte, error) {
	var buf bytes.Buffer
	switch op.Kind {
	case storage.WALCreateVertex:
		if err := writeUint64(&buf, uint64(op.VertexID)); err != nil {
			return 0, nil, err
		}
		if err := writeUint64(&buf, uint64(len(op.Labels))); err != nil {
			return 0, nil, err
		}
		for _, l := range op.Labels {
			if err := writeUint64(&buf, uint64(l)); err != nil {
				return 0, nil, err
			}
		}
		if err := encodeProps(&buf, op.Props); err != nil {
			return 0, nil, err
		}
		return OpCreateVertex, buf.Bytes(), nil
	case storage.WALDeleteVertex:
		if err := writeUint64(&buf, uint64(op.VertexID)); err != nil {
			return 0, nil, err
		}
		return OpDeleteVertex, buf.Bytes(), nil
	case storage.WALCreateEdge:
		for _, n := range []uint64{uint64(op.EdgeID), uint64(op.FromID), uint64(op.ToID), uint64(op.EdgeType)} {
			if err := writeUint64(&buf, n); err != nil {
				return 0, nil, err
			}
		}
		if err := encodeProps(&buf, op.Props); err != nil {
			return 0, nil, err
		}
		return OpCreateEdge, buf.Bytes(), nil
	case storage.WALDeleteEdge:
		if err := writeUint64(&buf, uint64(op.EdgeID)); err != nil {
			return 0, nil, err
		}
		return OpDeleteEdge, buf.Bytes(), nil
	case storage.WALSetVertexProperty:
		if err := writeUint64(&buf, uint64(op.VertexID)); err != nil {
			return 0, nil, err
		}
		if err := writeUint64(&buf, uint64(op.Prop)); err != nil {
			return 0, nil, err
		}
		if err := encodeValue(&buf, op.Value); err != nil {
			return 0, nil, err
		}
		return OpSetVertexProperty, buf.Bytes(), nil
	case storage.WALSetEdgeProperty:
		if err := writeUint64(&buf, uint64(op.EdgeID)); err != nil {
			return 0, nil, err
		}
		if err := writeUint64(&buf, uint64(op.Prop)); err != nil {
			return 0, nil, err
		}
		if err := encodeValue(&buf, op.Value); err != nil {
			return 0, nil, err
		}
		return OpSetEdgeProperty, buf.Bytes(), nil
	case storage.WALAddLabel:
		if err := writeUint64(&buf, uint64(op.VertexID)); err != nil {
			return 0, nil, err
		}
		if err := writeUint64(&buf, uint64(op.Label)); err != nil {
			return 0, nil, err
		}
		return OpAddLabel, buf.Bytes(), nil
	case storage.WALRemoveLabel:
		if err := writeUint64(&buf, uint64(op.VertexID)); err != nil {
			return 0, nil, err
		}
		if err := writeUint64(&buf, uint64(op.Label)); err != nil {
			return 0, nil, err
		}
		return OpRemoveLabel, buf.Bytes(), nil
	default:
		return 0, nil, fmt.Errorf("durability: unknown wal op kind %d", op.Kind)
	}
}

func decodeWALOp(opcode Opcode, payload []byte) (storage.WALOp, error) {
	r := bytes.NewReader(payload)
	switch opcode {
	case OpCreateVertex:
		id, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		labelCount, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		labels := make([]uint32, labelCount)
		for i := range labels {
			l, err := readUint64(r)
			if err != nil {
				return storage.WALOp{}, err
			}
			labels[i] = uint32(l)
		}
		props, err := decodeProps(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		return storage.WALOp{Kind: storage.WALCreateVertex, VertexID: storage.VertexID(id), Labels: labels, Props: props}, nil
	case OpDeleteVertex:
		id, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		return storage.WALOp{Kind: storage.WALDeleteVertex, VertexID: storage.VertexID(id)}, nil
	case OpCreateEdge:
		id, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		fromID, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		toID, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		edgeType, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		props, err := decodeProps(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		return storage.WALOp{
			Kind: storage.WALCreateEdge, EdgeID: storage.EdgeID(id),
			FromID: storage.VertexID(fromID), ToID: storage.VertexID(toID),
			EdgeType: uint32(edgeType), Props: props,
		}, nil
	case OpDeleteEdge:
		id, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		return storage.WALOp{Kind: storage.WALDeleteEdge, EdgeID: storage.EdgeID(id)}, nil
	case OpSetVertexProperty:
		id, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		prop, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		val, err := decodeValue(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		return storage.WALOp{Kind: storage.WALSetVertexProperty, VertexID: storage.VertexID(id), Prop: uint32(prop), Value: val}, nil
	case OpSetEdgeProperty:
		id, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		prop, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		val, err := decodeValue(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		return storage.WALOp{Kind: storage.WALSetEdgeProperty, EdgeID: storage.EdgeID(id), Prop: uint32(prop), Value: val}, nil
	case OpAddLabel:
		id, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		label, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		return storage.WALOp{Kind: storage.WALAddLabel, VertexID: storage.VertexID(id), Label: uint32(label)}, nil
	case OpRemoveLabel:
		id, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		label, err := readUint64(r)
		if err != nil {
			return storage.WALOp{}, err
		}
		return storage.WALOp{Kind: storage.WALRemoveLabel, VertexID: storage.VertexID(id), Label: uint32(label)}, nil
	default:
		return storage.WALOp{}, ErrCorruptRecord
	}
}
