package durability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/mimirgraph/corestore/pkg/storage"
)

// Recoverer loads the most recent snapshot and replays WAL segments
// beyond its fence timestamp.
type Recoverer struct {
	dir string
	log logr.Logger
}

func NewRecoverer(dir string, log logr.Logger) *Recoverer {
	return &Recoverer{dir: dir, log: log}
}

// Recover loads dir's newest snapshot (if any) into engine, then replays
// every *.wal segment file in dir in name order, applying only the
// transactions each segment committed with CommitTS > the snapshot's
// fence. Segments are read in parallel (errgroup), since
// decoding a file into its record list is plain I/O and doesn't touch
// engine state; the decoded segments are then applied to engine one at
// a time in name order, since a later segment's edge creates can
// reference vertices an earlier segment (or the snapshot) restored, so
// mutation order must match commit order exactly.
func (rc *Recoverer) Recover(ctx context.Context, engine *storage.Engine) error {
	snapPath, err := rc.latestSnapshot()
	if err != nil {
		return err
	}

	fence := uint64(0)
	if snapPath != "" {
		result, err := NewSnapshotLoader().LoadInto(snapPath, engine)
		if err != nil {
			return fmt.Errorf("durability: %w: %v", storage.ErrRecoveryFailure, err)
		}
		fence = result.FenceTS
		rc.log.Info("loaded snapshot", "path", snapPath, "fence", fence)
	}

	segments, err := rc.walSegments()
	if err != nil {
		return err
	}

	decoded := make([][]Record, len(segments))
	g, _ := errgroup.WithContext(ctx)
	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			recs, err := readSegmentRecords(seg)
			if err != nil {
				return fmt.Errorf("durability: read %s: %w", seg, err)
			}
			decoded[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("durability: %w: %v", storage.ErrRecoveryFailure, err)
	}

	total := 0
	for i, recs := range decoded {
		n, err := applySegmentRecords(recs, fence, engine)
		if err != nil {
			return fmt.Errorf("durability: %w: replay %s: %v", storage.ErrRecoveryFailure, segments[i], err)
		}
		total += n
	}

	engine.RebuildIndexes()
	rc.log.Info("wal replay complete", "segments", len(segments), "commits", total)
	return nil
}

// readSegmentRecords decodes every well-formed record in one WAL
// segment. A decode error partway through (a torn write from a crash
// mid-append) just ends the scan early rather than failing the read:
// whatever was written completely is still valid history.
func readSegmentRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := NewReader(f)
	var out []Record
	for {
		rec, err := r.Next()
		if err != nil {
			break // EOF or a torn trailing record; stop reading this segment
		}
		out = append(out, rec)
	}
	return out, nil
}

// applySegmentRecords replays one segment's already-decoded records,
// buffering each transaction's field-level ops until its terminating
// OpCommit record. A transaction whose commit timestamp falls at or
// before fence was already captured by the snapshot and is discarded.
func applySegmentRecords(records []Record, fence uint64, engine *storage.Engine) (int, error) {
	applied := 0
	var pending []storage.WALOp
	for _, rec := range records {
		if !rec.IsCommit {
			pending = append(pending, rec.Op)
			continue
		}
		if rec.CommitTS > fence {
			for _, op := range pending {
				if err := applyWALOp(engine, op); err != nil {
					return applied, fmt.Errorf("apply tx %d: %w", rec.TxID, err)
				}
			}
			applied++
		}
		pending = pending[:0]
	}
	return applied, nil
}

func applyWALOp(engine *storage.Engine, op storage.WALOp) error {
	switch op.Kind {
	case storage.WALCreateVertex:
		engine.RestoreVertex(op.VertexID, op.Labels, op.Props)
		return nil
	case storage.WALDeleteVertex:
		return engine.ApplyDeleteVertex(op.VertexID)
	case storage.WALCreateEdge:
		_, err := engine.RestoreEdge(op.EdgeID, op.FromID, op.ToID, op.EdgeType, op.Props)
		return err
	case storage.WALDeleteEdge:
		return engine.ApplyDeleteEdge(op.EdgeID)
	case storage.WALSetVertexProperty:
		return engine.ApplySetVertexProperty(op.VertexID, op.Prop, op.Value)
	case storage.WALSetEdgeProperty:
		return engine.ApplySetEdgeProperty(op.EdgeID, op.Prop, op.Value)
	case storage.WALAddLabel:
		return engine.ApplyAddLabel(op.VertexID, op.Label)
	case storage.WALRemoveLabel:
		return engine.ApplyRemoveLabel(op.VertexID, op.Label)
	default:
		return fmt.Errorf("durability: unknown wal op kind %d", op.Kind)
	}
}

func (rc *Recoverer) latestSnapshot() (string, error) {
	matches, err := filepath.Glob(filepath.Join(rc.dir, "*.snapshot"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func (rc *Recoverer) walSegments() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(rc.dir, "*.wal"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
