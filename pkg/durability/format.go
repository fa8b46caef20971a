// Package durability persists the in-memory storage engine's committed
// state to disk and recovers it on startup: a write-ahead log of
// committed transactions plus periodic full snapshots.
package durability

import "errors"

// SnapshotMagic identifies a NornicDB storage snapshot file. It is
// followed by the 8-byte SnapshotVersion, which the loader checks so a
// future incompatible layout can be rejected cleanly instead of
// silently misparsed.
var SnapshotMagic = [4]byte{'M', 'G', '0', '1'}

const SnapshotVersion uint64 = 1

// SectionMarker names the regions of a snapshot file: a fixed header,
// the name-mapper dictionaries, the vertex region, the edge region, and
// a trailing footer carrying the recovery fence timestamp. The snapshot
// writer and loader do not write or read these marker bytes, and no
// name-mapper region is written: after the header (magic, version,
// UUID) the file is one zstd stream of the vertex count and vertices,
// the edge count and edges, and the fence timestamp.
type SectionMarker uint8

const (
	SectionHeader SectionMarker = iota
	SectionMappers
	SectionVertices
	SectionEdges
	SectionFooter
)

// Opcode tags one WAL record's payload shape. The set is closed: any
// byte on the wire that isn't one of these is a corrupt log, not an
// unrecognized future extension.
type Opcode uint8

const (
	OpCreateVertex Opcode = iota
	OpDeleteVertex
	OpCreateEdge
	OpDeleteEdge
	OpSetVertexProperty
	OpSetEdgeProperty
	OpAddLabel
	OpRemoveLabel
	OpCommit
)

var ErrCorruptRecord = errors.New("durability: corrupt WAL record")
var ErrUnsupportedVersion = errors.New("durability: unsupported snapshot version")
var ErrBadMagic = errors.New("durability: snapshot magic mismatch")
