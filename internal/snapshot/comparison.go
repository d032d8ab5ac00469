package snapshot

import (
	"fmt"

	"github.com/kestrelwire/memscan/internal/codec"
	"github.com/kestrelwire/memscan/internal/memio"
)

// Comparator is the pluggable capability behind [Engine.Filter]
// (spec.md §4.6.1): re-reading a scan's current value and deciding
// whether it still satisfies op against the value recorded at the
// previous round. Production wires the default implementation below;
// tests substitute a stub that returns a fixed verdict regardless of
// memory contents, the same pluggable-capability shape as
// [memio.Memory]'s Real/Fake split.
type Comparator interface {
	// CompareScan re-reads s.Address from pid and reports whether the
	// fresh value satisfies op against s.ScannedValue (the value as of
	// the previous round).
	CompareScan(s *Scan, pid int, op codec.OpType, t codec.ScanType) (bool, error)

	// UpdateScannedValue re-reads s.Address from pid and overwrites
	// s.ScannedValue with the fresh bytes. Called only after a CompareScan
	// that returned true (spec.md §4.6.1).
	UpdateScannedValue(s *Scan, pid int, t codec.ScanType) error
}

// defaultComparator backs Comparator with a live [memio.Memory] read.
type defaultComparator struct {
	mem memio.Memory
}

// NewComparator returns the production [Comparator], reading through mem.
func NewComparator(mem memio.Memory) Comparator {
	return &defaultComparator{mem: mem}
}

func (d *defaultComparator) CompareScan(s *Scan, pid int, op codec.OpType, t codec.ScanType) (bool, error) {
	width, err := fixedWidth(t)
	if err != nil {
		return false, err
	}

	fresh, err := d.mem.Read(pid, s.Address, width)
	if err != nil {
		return false, fmt.Errorf("reading %v: %w", s.Address, err)
	}

	return codec.Compare(t, fresh, s.ScannedValue, nil, op)
}

func (d *defaultComparator) UpdateScannedValue(s *Scan, pid int, t codec.ScanType) error {
	width, err := fixedWidth(t)
	if err != nil {
		return err
	}

	fresh, err := d.mem.Read(pid, s.Address, width)
	if err != nil {
		return fmt.Errorf("reading %v: %w", s.Address, err)
	}

	s.ScannedValue = fresh

	return nil
}
