// Package facade implements the service surface the front-end consumes
// (spec.md §6): process selection, value-directed and snapshot scanning,
// the store list, sessions, and notes, all behind the scan/store mutex
// discipline spec.md §4.5 requires.
package facade

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/kestrelwire/memscan/internal/codec"
	"github.com/kestrelwire/memscan/internal/config"
	"github.com/kestrelwire/memscan/internal/lockworker"
	"github.com/kestrelwire/memscan/internal/memio"
	"github.com/kestrelwire/memscan/internal/scanexpr"
	"github.com/kestrelwire/memscan/internal/scanner"
	"github.com/kestrelwire/memscan/internal/session"
	"github.com/kestrelwire/memscan/internal/snapshot"
)

// Facade-level errors (spec.md §7).
var (
	ErrProcessNotSelected = errors.New("no process selected")
	ErrEmptySelection     = errors.New("empty selection")
	ErrIndexOutOfRange    = errors.New("index out of range")
)

// Facade is the single entry point the CLI/REPL drives. It owns the scan
// mutex (guarding the live candidate list) and the store mutex (guarding
// the saved candidate list) as two independent locks, per spec.md §4.5:
// a scan in progress never blocks a store edit, and vice versa.
type Facade struct {
	mem          memio.Memory
	cfg          config.Config
	scan         *scanner.Scanner
	snap         *snapshot.Engine
	SnapshotType codec.ScanType

	pidMu sync.Mutex
	pid   int

	scanMu     sync.Mutex
	candidates []scanner.Candidate

	storeMu sync.Mutex
	store   []scanner.Candidate
	notes   string
}

// New returns a Facade reading/writing through mem under cfg. The
// underlying scanner is always uncapped: the facade itself applies
// cfg.VisibilityCap when handing a Result back to the caller, so the
// full candidate list survives internally for the next Filter/AddToStore
// even when the display view is suppressed (spec.md §4.5 "Result cap").
func New(mem memio.Memory, cfg config.Config) *Facade {
	return &Facade{
		mem:          mem,
		cfg:          cfg,
		scan:         scanner.New(mem, 0),
		snap:         snapshot.New(mem, nil),
		SnapshotType: codec.Int32,
	}
}

// capForDisplay suppresses r.Candidates once the full internal list
// exceeds the configured visibility cap, leaving r.Count accurate.
func (f *Facade) capForDisplay(r scanner.Result) scanner.Result {
	if f.cfg.VisibilityCap > 0 && len(r.Candidates) > f.cfg.VisibilityCap {
		return scanner.Result{Count: r.Count}
	}

	return r
}

// withLock runs fn while holding mu, releasing it even if fn panics or
// returns early — the guarded-release idiom spec.md §4.5 requires so a
// cancelled edit never leaves a mutex held (grounded in the teacher's
// WithLock/WithTicketLock helpers).
func withLock(mu *sync.Mutex, fn func() error) error {
	mu.Lock()
	defer mu.Unlock()

	return fn()
}

// SelectProcess targets pid for all subsequent operations and discards
// the current scan candidate list (it referred to the previous target).
func (f *Facade) SelectProcess(pid int) {
	f.pidMu.Lock()
	f.pid = pid
	f.pidMu.Unlock()

	_ = withLock(&f.scanMu, func() error {
		f.candidates = nil

		return nil
	})
}

func (f *Facade) currentPID() (int, error) {
	f.pidMu.Lock()
	defer f.pidMu.Unlock()

	if f.pid == 0 {
		return 0, ErrProcessNotSelected
	}

	return f.pid, nil
}

// ListProcesses lists every process visible to the caller.
func (f *Facade) ListProcesses() ([]memio.ProcessInfo, error) {
	procs, err := f.mem.ListProcesses()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	return procs, nil
}

// Scan runs an initial value-directed scan and replaces the live
// candidate list under the scan mutex.
func (f *Facade) Scan(valueString string, t codec.ScanType) (scanner.Result, error) {
	pid, err := f.currentPID()
	if err != nil {
		return scanner.Result{}, err
	}

	q, err := scanexpr.Parse(valueString, t, codec.NewEncoder(f.cfg.Encoding()))
	if err != nil {
		return scanner.Result{}, err
	}

	var result scanner.Result

	lockErr := withLock(&f.scanMu, func() error {
		r, scanErr := f.scan.Scan(pid, t, q, scanner.Options{Aligned: f.cfg.DefaultAligned})
		if scanErr != nil {
			return scanErr
		}

		f.candidates = r.Candidates
		result = f.capForDisplay(r)

		return nil
	})
	if lockErr != nil {
		return scanner.Result{}, lockErr
	}

	return result, nil
}

// Filter refines the live candidate list under the scan mutex.
func (f *Facade) Filter(valueString string, t codec.ScanType) (scanner.Result, error) {
	pid, err := f.currentPID()
	if err != nil {
		return scanner.Result{}, err
	}

	q, err := scanexpr.Parse(valueString, t, codec.NewEncoder(f.cfg.Encoding()))
	if err != nil {
		return scanner.Result{}, err
	}

	var result scanner.Result

	lockErr := withLock(&f.scanMu, func() error {
		if len(f.candidates) == 0 {
			return ErrEmptySelection
		}

		r, filterErr := f.scan.Filter(pid, f.candidates, q)
		if filterErr != nil {
			return filterErr
		}

		f.candidates = r.Candidates
		result = f.capForDisplay(r)

		return nil
	})
	if lockErr != nil {
		return scanner.Result{}, lockErr
	}

	return result, nil
}

// ClearScan discards the live candidate list.
func (f *Facade) ClearScan() {
	_ = withLock(&f.scanMu, func() error {
		f.candidates = nil

		return nil
	})
}

// AddToStore copies the scanRowIndex'th live candidate into the store.
// Returns the new store index.
func (f *Facade) AddToStore(scanRowIndex int) (int, error) {
	var idx int

	err := withLock(&f.scanMu, func() error {
		if scanRowIndex < 0 || scanRowIndex >= len(f.candidates) {
			return fmt.Errorf("%w: scan row %d", ErrIndexOutOfRange, scanRowIndex)
		}

		c := f.candidates[scanRowIndex]

		return withLock(&f.storeMu, func() error {
			f.store = append(f.store, c)
			idx = len(f.store) - 1

			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	return idx, nil
}

// NewStoreEntry appends a blank store entry of the given scan type, for
// a caller who wants to type in an address manually. Returns the new
// index.
func (f *Facade) NewStoreEntry(t codec.ScanType) int {
	var idx int

	_ = withLock(&f.storeMu, func() error {
		f.store = append(f.store, scanner.Candidate{ScanType: t})
		idx = len(f.store) - 1

		return nil
	})

	return idx
}

// DeleteStoreEntry removes the store entry at index.
func (f *Facade) DeleteStoreEntry(index int) error {
	return withLock(&f.storeMu, func() error {
		if index < 0 || index >= len(f.store) {
			return fmt.Errorf("%w: store row %d", ErrIndexOutOfRange, index)
		}

		f.store = append(f.store[:index], f.store[index+1:]...)

		return nil
	})
}

// ShiftStoreEntry adjusts the store entry's address by delta bytes,
// signed (spec.md §6).
func (f *Facade) ShiftStoreEntry(index int, delta int64) error {
	return withLock(&f.storeMu, func() error {
		if index < 0 || index >= len(f.store) {
			return fmt.Errorf("%w: store row %d", ErrIndexOutOfRange, index)
		}

		f.store[index].Address = memio.Address(int64(f.store[index].Address) + delta)

		return nil
	})
}

// SetStoreValue encodes newValueString under the entry's scan type and
// writes it to the entry's address, updating the entry's last observed
// value on success.
func (f *Facade) SetStoreValue(index int, newValueString string) error {
	pid, err := f.currentPID()
	if err != nil {
		return err
	}

	return withLock(&f.storeMu, func() error {
		if index < 0 || index >= len(f.store) {
			return fmt.Errorf("%w: store row %d", ErrIndexOutOfRange, index)
		}

		entry := &f.store[index]

		data, encErr := codec.Encode(entry.ScanType, newValueString, codec.NewEncoder(f.cfg.Encoding()))
		if encErr != nil {
			return encErr
		}

		if writeErr := f.mem.Write(pid, entry.Address, data); writeErr != nil {
			return fmt.Errorf("writing store entry %d: %w", index, writeErr)
		}

		entry.LastValue = data
		if entry.Locked {
			entry.LockValue = data
		}

		return nil
	})
}

// SetStoreType re-interprets the store entry as a different scan type.
func (f *Facade) SetStoreType(index int, t codec.ScanType) error {
	return withLock(&f.storeMu, func() error {
		if index < 0 || index >= len(f.store) {
			return fmt.Errorf("%w: store row %d", ErrIndexOutOfRange, index)
		}

		f.store[index].ScanType = t

		return nil
	})
}

// SetLock toggles the lock flag on a store entry. Locking captures the
// entry's current value as the value the lock worker will keep
// rewriting; unlocking stops the rewrite.
func (f *Facade) SetLock(index int, locked bool) error {
	return withLock(&f.storeMu, func() error {
		if index < 0 || index >= len(f.store) {
			return fmt.Errorf("%w: store row %d", ErrIndexOutOfRange, index)
		}

		f.store[index].Locked = locked
		if locked {
			f.store[index].LockValue = f.store[index].LastValue
		}

		return nil
	})
}

// LockedCandidates implements [lockworker.Source].
func (f *Facade) LockedCandidates() []lockworker.LockedCandidate {
	f.storeMu.Lock()
	defer f.storeMu.Unlock()

	var out []lockworker.LockedCandidate

	for _, c := range f.store {
		if c.Locked {
			out = append(out, lockworker.LockedCandidate{Address: c.Address, LockValue: c.LockValue})
		}
	}

	return out
}

// NotesGet returns the current free-form notes text.
func (f *Facade) NotesGet() string {
	f.storeMu.Lock()
	defer f.storeMu.Unlock()

	return f.notes
}

// NotesSet replaces the free-form notes text.
func (f *Facade) NotesSet(text string) {
	f.storeMu.Lock()
	f.notes = text
	f.storeMu.Unlock()
}

// SaveSession serializes the store, notes, and process context to path,
// written atomically (grounded in the teacher's use of
// natefinch/atomic.WriteFile for ticket persistence).
func (f *Facade) SaveSession(path string) error {
	pid, _ := f.currentPID()

	f.storeMu.Lock()
	s := session.Session{
		PID:          pid,
		TextEncoding: f.cfg.Encoding(),
		Aligned:      f.cfg.DefaultAligned,
		Notes:        f.notes,
	}

	for _, c := range f.store {
		s.Entries = append(s.Entries, session.Entry{
			Address:     c.Address,
			ScanType:    c.ScanType,
			Value:       c.LastValue,
			Locked:      c.Locked,
			LockValue:   c.LockValue,
			Description: c.Description,
		})
	}
	f.storeMu.Unlock()

	text := session.Format(s)

	if err := atomic.WriteFile(path, strings.NewReader(text)); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}

	return nil
}

// OpenSession replaces the store, notes, and target process from path.
func (f *Facade) OpenSession(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled, same as the teacher's session loader
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}

	s, err := session.Parse(string(data))
	if err != nil {
		return fmt.Errorf("parsing session: %w", err)
	}

	f.pidMu.Lock()
	f.pid = s.PID
	f.pidMu.Unlock()

	f.storeMu.Lock()
	f.notes = s.Notes
	f.store = f.store[:0]

	for _, e := range s.Entries {
		f.store = append(f.store, scanner.Candidate{
			Address:     e.Address,
			ScanType:    e.ScanType,
			LastValue:   e.Value,
			Locked:      e.Locked,
			LockValue:   e.LockValue,
			Description: e.Description,
		})
	}
	f.storeMu.Unlock()

	return nil
}

// SnapshotTake captures the target's full memory into the snapshot
// engine.
func (f *Facade) SnapshotTake() error {
	pid, err := f.currentPID()
	if err != nil {
		return err
	}

	if err := f.snap.Capture(pid); err != nil {
		return fmt.Errorf("capturing snapshot: %w", err)
	}

	return nil
}

// SnapshotCompare runs the first post-capture comparison under op.
func (f *Facade) SnapshotCompare(op codec.OpType) ([]snapshot.Scan, error) {
	scans, err := f.snap.Compare(op, f.SnapshotType)
	if err != nil {
		return nil, fmt.Errorf("comparing snapshot: %w", err)
	}

	return scans, nil
}

// SnapshotFilter narrows the snapshot engine's current scan list under op.
func (f *Facade) SnapshotFilter(op codec.OpType) ([]snapshot.Scan, error) {
	scans, err := f.snap.Filter(op, f.SnapshotType)
	if err != nil {
		return nil, fmt.Errorf("filtering snapshot: %w", err)
	}

	return scans, nil
}

// Store returns a copy of the current store list.
func (f *Facade) Store() []scanner.Candidate {
	f.storeMu.Lock()
	defer f.storeMu.Unlock()

	out := make([]scanner.Candidate, len(f.store))
	copy(out, f.store)

	return out
}

// Candidates returns a copy of the current live scan candidate list.
func (f *Facade) Candidates() []scanner.Candidate {
	f.scanMu.Lock()
	defer f.scanMu.Unlock()

	out := make([]scanner.Candidate, len(f.candidates))
	copy(out, f.candidates)

	return out
}
