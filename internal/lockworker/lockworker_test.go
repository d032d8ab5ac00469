package lockworker_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/kestrelwire/memscan/internal/lockworker"
	"github.com/kestrelwire/memscan/internal/memio"
)

type fakeSource struct {
	candidates []lockworker.LockedCandidate
}

func (f *fakeSource) LockedCandidates() []lockworker.LockedCandidate {
	return f.candidates
}

const testPid = 42

func TestRunRewritesLockedValueEveryTick(t *testing.T) {
	t.Parallel()

	mem := memio.NewFake()
	mem.SetRegion(testPid, 0x1000, []byte{0, 0, 0, 0})

	source := &fakeSource{candidates: []lockworker.LockedCandidate{
		{Address: 0x1000, LockValue: []byte{99, 0, 0, 0}},
	}}

	w := lockworker.New(mem, source, 5*time.Millisecond)
	w.SetPID(testPid)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_ = w.Run(ctx)

	got := mem.ReadAll(testPid, 0x1000, 4)
	if !bytes.Equal(got, []byte{99, 0, 0, 0}) {
		t.Fatalf("expected lock value rewritten, got %v", got)
	}
}

func TestRunSurvivesWriteFailureWithoutPanicking(t *testing.T) {
	t.Parallel()

	mem := memio.NewFake()
	mem.SetRegion(testPid, 0x2000, []byte{0, 0, 0, 0})
	mem.FailWrites[0x2000] = true

	var errLog bytes.Buffer

	source := &fakeSource{candidates: []lockworker.LockedCandidate{
		{Address: 0x2000, LockValue: []byte{1, 2, 3, 4}},
	}}

	w := lockworker.New(mem, source, 5*time.Millisecond)
	w.ErrLog = &errLog
	w.SetPID(testPid)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_ = w.Run(ctx)

	if errLog.Len() == 0 {
		t.Fatalf("expected a write failure to be logged")
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	t.Parallel()

	mem := memio.NewFake()
	w := lockworker.New(mem, &fakeSource{}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx); err == nil {
		t.Fatalf("expected Run to report context cancellation")
	}
}
