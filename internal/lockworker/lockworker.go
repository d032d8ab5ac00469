// Package lockworker implements the locked-write worker (spec.md §4.7):
// a ticker that periodically rewrites every locked candidate's value
// back into the target process, so freezing a value survives whatever
// else is writing to it.
package lockworker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kestrelwire/memscan/internal/memio"
)

// LockedCandidate is the minimal view of a store entry the worker needs:
// where to write, and what to write there.
type LockedCandidate struct {
	Address   memio.Address
	LockValue []byte
}

// Source supplies the current set of locked candidates on every tick.
// The facade's store implements this; the worker never reaches into the
// store's own locking beyond this one call per tick.
type Source interface {
	LockedCandidates() []LockedCandidate
}

// Worker rewrites every locked candidate's LockValue to its Address
// every tick, absorbing individual write failures rather than removing
// the lock: a transient unmapped page does not unlock the value (spec.md
// §4.7).
type Worker struct {
	mem      memio.Memory
	source   Source
	interval time.Duration

	// ErrLog receives one line per failed write. Defaults to io.Discard.
	// The teacher threads an explicit io.Writer through its call chain
	// rather than reaching for a logging library, and this worker does
	// the same.
	ErrLog io.Writer

	mu  sync.Mutex
	pid int
}

// New returns a Worker that rewrites locked candidates from source into
// mem every interval.
func New(mem memio.Memory, source Source, interval time.Duration) *Worker {
	return &Worker{mem: mem, source: source, interval: interval, ErrLog: io.Discard}
}

// SetPID changes the target process. Safe to call while Run is active.
func (w *Worker) SetPID(pid int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pid = pid
}

func (w *Worker) currentPID() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.pid
}

// Run ticks until ctx is canceled, rewriting locked candidates each
// period. It holds no lock across a tick: only the brief Source call and
// each individual Write are ever in flight, so a scan or filter pass
// never waits behind the whole candidate list, only behind one write
// (spec.md §5, §4.7).
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Worker) tick() {
	pid := w.currentPID()
	if pid == 0 {
		return
	}

	for _, c := range w.source.LockedCandidates() {
		if err := w.mem.Write(pid, c.Address, c.LockValue); err != nil {
			fmt.Fprintf(w.ErrLog, "lockworker: writing %v: %v\n", c.Address, err)
		}
	}
}
