package snapshot

import (
	"fmt"

	"github.com/kestrelwire/memscan/internal/codec"
	"github.com/kestrelwire/memscan/internal/memio"
)

// Engine holds one captured snapshot and the running [Scan] list derived
// from comparing it against the target's live memory (spec.md §4.6).
// It carries no synchronization of its own: the facade's scan mutex
// serializes Capture/Compare/Filter the same way it serializes the
// address scanner's Scan/Filter (spec.md §5).
type Engine struct {
	mem        memio.Memory
	comparator Comparator

	pid    int
	blocks MemoryBlocks

	// unknown is set by Capture and cleared by Compare. It implements the
	// "free-up rule": a second Compare with unknown still true (i.e.
	// following a fresh Capture) is expected and discards whatever scan
	// list existed before; a Compare call with unknown already false is
	// rejected rather than silently discarding Filter's narrowed list
	// (spec.md §4.6.2).
	unknown bool
	scans   []Scan
}

// New returns an Engine reading through mem. If comparator is nil, the
// default production [Comparator] backed by mem is used.
func New(mem memio.Memory, comparator Comparator) *Engine {
	if comparator == nil {
		comparator = NewComparator(mem)
	}

	return &Engine{mem: mem, comparator: comparator}
}

// Capture reads every region of pid into a fresh [MemoryBlocks] snapshot,
// discarding whatever snapshot and scan list the engine held before
// (spec.md §4.6.1 "Capture"). Regions that fail to read are skipped, not
// fatal, matching the scanner's tolerance of a region invalidated
// mid-sweep.
func (e *Engine) Capture(pid int) error {
	regions, err := e.mem.ListRegions(pid)
	if err != nil {
		return fmt.Errorf("listing regions: %w", err)
	}

	blocks := make(MemoryBlocks, 0, len(regions))

	for _, r := range regions {
		data, readErr := e.mem.Read(pid, r.Base, int(r.Size))
		if readErr != nil {
			continue
		}

		blocks = append(blocks, MemoryBlock{Base: r.Base, Data: data})
	}

	e.pid = pid
	e.blocks = blocks
	e.unknown = true
	e.scans = nil

	return nil
}

// Compare runs the first post-capture comparison: it reads pid's live
// memory now and, for every live region, pairwise-compares it against
// every captured block it overlaps, under op and scan type t
// (spec.md §4.6.1 "Compare"). The resulting [Scan] list becomes the seed
// for subsequent Filter rounds, and scan_unknown is cleared.
func (e *Engine) Compare(op codec.OpType, t codec.ScanType) ([]Scan, error) {
	if !e.unknown {
		return nil, ErrNoFreshSnapshot
	}

	live, err := e.liveBlocks()
	if err != nil {
		return nil, err
	}

	var all []Scan

	for _, cur := range live {
		for _, prev := range e.blocks {
			if !cur.overlaps(prev) {
				continue
			}

			pairScans, err := ComparePair(cur, prev, t, op)
			if err != nil {
				return nil, err
			}

			all = append(all, pairScans...)
		}
	}

	e.scans = all
	e.unknown = false

	return all, nil
}

// Filter re-applies op to the engine's current [Scan] list: each scan's
// current value is re-read and judged against its previous value by the
// engine's [Comparator]; entries the comparator confirms survive with
// their ScannedValue advanced to the fresh bytes, everything else is
// dropped (spec.md §4.6.1 "Filter"). A read failure drops that entry
// without aborting the pass, matching the address scanner's Filter.
func (e *Engine) Filter(op codec.OpType, t codec.ScanType) ([]Scan, error) {
	kept := make([]Scan, 0, len(e.scans))

	for _, prev := range e.scans {
		s := cloneScan(prev)

		ok, err := e.comparator.CompareScan(&s, e.pid, op, t)
		if err != nil {
			continue
		}

		if !ok {
			continue
		}

		if err := e.comparator.UpdateScannedValue(&s, e.pid, t); err != nil {
			continue
		}

		kept = append(kept, s)
	}

	e.scans = kept

	return kept, nil
}

// Scans returns the engine's current candidate list.
func (e *Engine) Scans() []Scan {
	return e.scans
}

// Blocks returns the blocks captured by the most recent Capture call.
func (e *Engine) Blocks() MemoryBlocks {
	return e.blocks
}

func (e *Engine) liveBlocks() (MemoryBlocks, error) {
	regions, err := e.mem.ListRegions(e.pid)
	if err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}

	blocks := make(MemoryBlocks, 0, len(regions))

	for _, r := range regions {
		data, readErr := e.mem.Read(e.pid, r.Base, int(r.Size))
		if readErr != nil {
			continue
		}

		blocks = append(blocks, MemoryBlock{Base: r.Base, Data: data})
	}

	return blocks, nil
}
