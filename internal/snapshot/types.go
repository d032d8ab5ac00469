// Package snapshot implements the Snapshot Engine (C6): capturing full
// memory snapshots and comparing pairs of snapshots under relational
// predicates, tolerant of region drift (spec.md §4.6).
package snapshot

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/kestrelwire/memscan/internal/codec"
	"github.com/kestrelwire/memscan/internal/memio"
)

// MemoryBlock is a contiguous readable slice of the target's address
// space captured at a moment in time (spec.md §3).
type MemoryBlock struct {
	Base memio.Address
	Data []byte
}

// End returns the address one past the block's last byte.
func (b MemoryBlock) End() memio.Address {
	return b.Base + memio.Address(len(b.Data))
}

// overlaps reports whether a and b's address ranges intersect.
func (b MemoryBlock) overlaps(other MemoryBlock) bool {
	return b.Base < other.End() && other.Base < b.End()
}

// MemoryBlocks is an ordered sequence of [MemoryBlock]s, sorted by base
// address, pairwise non-overlapping within the same snapshot.
type MemoryBlocks []MemoryBlock

// Scan is a candidate discovered by snapshot comparison (spec.md §3,
// SnapshotScan).
type Scan struct {
	Address      memio.Address
	ScannedValue []byte
}

// ErrUnsupportedScanType is returned when the snapshot engine is asked to
// compare a variable-width type (String, ByteArray). Snapshot comparison
// compares fixed-width windows of raw memory; without a caller-supplied
// literal there is no width to use for those types.
var ErrUnsupportedScanType = fmt.Errorf("%w: snapshot engine requires a fixed-width scan type",
	codec.ErrUnsupportedOperator)

// ErrNoFreshSnapshot is returned by [Engine.Compare] when called without a
// preceding [Engine.Capture]: spec.md §4.6.2's "free-up rule" says the
// engine never silently drops a prior result set, so a second Compare
// without a new capture is rejected rather than quietly discarding
// whatever Filter already narrowed.
var ErrNoFreshSnapshot = errors.New("compare requires a fresh snapshot; call Capture first")

func fixedWidth(t codec.ScanType) (int, error) {
	w, ok := codec.Width(t)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedScanType, t)
	}

	return w, nil
}

func cloneScan(s Scan) Scan {
	return Scan{Address: s.Address, ScannedValue: bytes.Clone(s.ScannedValue)}
}
