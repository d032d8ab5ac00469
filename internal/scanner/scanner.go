// Package scanner implements the Address Scanner (C5): a value-directed
// scan over a target's readable memory regions, and filter passes that
// refine a candidate list by re-applying a predicate (spec.md §4.5).
package scanner

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/kestrelwire/memscan/internal/codec"
	"github.com/kestrelwire/memscan/internal/memio"
	"github.com/kestrelwire/memscan/internal/scanexpr"
)

// Candidate is a tracked memory cell: an address, the scan type it was
// found under, and its most recently observed value (spec.md §3).
// Locked/LockValue/Description are populated once a candidate is moved
// into the facade's store list; the scan engine itself never sets them.
type Candidate struct {
	Address     memio.Address
	ScanType    codec.ScanType
	LastValue   []byte
	Locked      bool
	LockValue   []byte
	Description string
}

// Options controls scan/filter probing behavior.
type Options struct {
	// Aligned, if true, probes numeric types only at width(t)-aligned
	// offsets. String and ByteArray are always probed byte-by-byte
	// regardless of this flag (spec.md §4.3).
	Aligned bool
}

// Result is the outcome of a scan or filter pass. When the number of
// matches exceeds the configured visibility cap, Candidates is nil but
// Count remains accurate; the caller's full list (used to seed the next
// filter) is tracked independently by the facade, not by Result
// (spec.md §4.5 "Result cap", §14).
type Result struct {
	Candidates []Candidate
	Count      int
}

// ErrEmptyQuery is returned when a non-composite query on a variable-width
// scan type (String, ByteArray) carries no literal to take its width from.
var ErrEmptyQuery = errors.New("empty query")

// Scanner performs value-directed scans and filters. It holds no mutable
// state and takes no lock of its own: the facade owns the current
// candidate list, passes it back in on each Filter call, and decides which
// mutex, if any, is held around a call.
type Scanner struct {
	mem           memio.Memory
	visibilityCap int
}

// New returns a Scanner reading through mem, capping visible results at
// visibilityCap (0 means unlimited).
func New(mem memio.Memory, visibilityCap int) *Scanner {
	return &Scanner{mem: mem, visibilityCap: visibilityCap}
}

// Scan sweeps every readable region of pid and returns a candidate for
// every aligned-or-byte offset where q matches under scan type t
// (spec.md §4.5 "Initial scan").
func (s *Scanner) Scan(pid int, t codec.ScanType, q scanexpr.Query, opts Options) (Result, error) {
	regions, err := s.mem.ListRegions(pid)
	if err != nil {
		return Result{}, fmt.Errorf("listing regions: %w", err)
	}

	width, err := queryWidth(t, q)
	if err != nil {
		return Result{}, err
	}

	var matches []Candidate

	for _, region := range regions {
		if uint64(width) > region.Size {
			continue
		}

		data, readErr := s.mem.Read(pid, region.Base, int(region.Size))
		if readErr != nil {
			// A region invalidated mid-sweep is dropped, not fatal
			// (spec.md §4.2).
			continue
		}

		stride := 1
		if opts.Aligned && t.IsNumeric() {
			stride = width
		}

		for offset := 0; offset+width <= len(data); offset += stride {
			chunk := data[offset : offset+width]

			ok, matchErr := evaluate(t, chunk, q)
			if matchErr != nil {
				return Result{}, matchErr
			}

			if ok {
				matches = append(matches, Candidate{
					Address:   region.Base + memio.Address(offset),
					ScanType:  t,
					LastValue: cloneBytes(chunk),
				})
			}
		}
	}

	return s.capResult(matches), nil
}

// Filter re-reads each candidate's current value and keeps only those
// that still satisfy q. A read failure drops that candidate without
// aborting the pass (spec.md §4.5 "Filter").
func (s *Scanner) Filter(pid int, candidates []Candidate, q scanexpr.Query) (Result, error) {
	kept := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		width, err := queryWidth(c.ScanType, q)
		if err != nil {
			return Result{}, err
		}

		data, readErr := s.mem.Read(pid, c.Address, width)
		if readErr != nil {
			continue
		}

		ok, matchErr := evaluate(c.ScanType, data, q)
		if matchErr != nil {
			return Result{}, matchErr
		}

		if ok {
			next := c
			next.LastValue = cloneBytes(data)
			kept = append(kept, next)
		}
	}

	return s.capResult(kept), nil
}

// capResult applies the visibility cap (spec.md §4.5 "Result cap", §14):
// above s.visibilityCap matches, Candidates is suppressed but Count stays
// accurate so a subsequent Filter can still narrow the full internal list
// the facade retains.
func (s *Scanner) capResult(matches []Candidate) Result {
	if s.visibilityCap > 0 && len(matches) > s.visibilityCap {
		return Result{Candidates: nil, Count: len(matches)}
	}

	return Result{Candidates: matches, Count: len(matches)}
}

func queryWidth(t codec.ScanType, q scanexpr.Query) (int, error) {
	if len(q.Slots) > 0 {
		width, _ := codec.Width(t)

		return width * len(q.Slots), nil
	}

	if width, fixed := codec.Width(t); fixed {
		return width, nil
	}

	if len(q.Values) == 0 {
		return 0, fmt.Errorf("%w: no literal values", ErrEmptyQuery)
	}

	return len(q.Values[0]), nil
}

func evaluate(t codec.ScanType, data []byte, q scanexpr.Query) (bool, error) {
	if len(q.Slots) > 0 {
		return codec.MatchComposite(t, data, q.Slots)
	}

	if q.Op == codec.Any {
		return true, nil
	}

	var high []byte
	if q.Op == codec.Within && len(q.Values) > 1 {
		high = q.Values[1]
	}

	return codec.Compare(t, data, q.Values[0], high, q.Op)
}

func cloneBytes(b []byte) []byte {
	return bytes.Clone(b)
}
