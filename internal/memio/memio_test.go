package memio_test

import (
	"errors"
	"testing"

	"github.com/kestrelwire/memscan/internal/memio"
)

func TestFakeListRegionsSorted(t *testing.T) {
	t.Parallel()

	m := memio.NewFake()
	m.SetRegion(1, 0x2000, []byte{1, 2, 3})
	m.SetRegion(1, 0x1000, []byte{4, 5})

	regions, err := m.ListRegions(1)
	if err != nil {
		t.Fatalf("ListRegions: %v", err)
	}

	if len(regions) != 2 || regions[0].Base != 0x1000 || regions[1].Base != 0x2000 {
		t.Fatalf("expected sorted regions, got %+v", regions)
	}
}

func TestFakeListRegionsUnknownPid(t *testing.T) {
	t.Parallel()

	m := memio.NewFake()

	_, err := m.ListRegions(42)
	if !errors.Is(err, memio.ErrNoSuchProcess) {
		t.Fatalf("expected ErrNoSuchProcess, got %v", err)
	}
}

func TestFakeReadWriteRoundTrip(t *testing.T) {
	t.Parallel()

	m := memio.NewFake()
	m.SetRegion(1, 0x1000, []byte{10, 20, 30})

	data, err := m.Read(1, 0x1000, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if string(data) != string([]byte{10, 20, 30}) {
		t.Fatalf("unexpected data: %v", data)
	}

	writeErr := m.Write(1, 0x1001, []byte{99})
	if writeErr != nil {
		t.Fatalf("Write: %v", writeErr)
	}

	data, err = m.Read(1, 0x1000, 3)
	if err != nil {
		t.Fatalf("Read after write: %v", err)
	}

	if data[1] != 99 {
		t.Fatalf("write did not take effect: %v", data)
	}
}

func TestFakeReadFailureDoesNotPanic(t *testing.T) {
	t.Parallel()

	m := memio.NewFake()
	m.SetRegion(1, 0x1000, []byte{1, 2, 3, 4})
	m.FailReads[0x1002] = true

	_, err := m.Read(1, 0x1000, 4)

	var rf *memio.ReadFailed
	if !errors.As(err, &rf) {
		t.Fatalf("expected *ReadFailed, got %v", err)
	}

	if rf.Addr != 0x1000 || rf.N != 4 {
		t.Fatalf("unexpected ReadFailed fields: %+v", rf)
	}
}

func TestFakeListProcesses(t *testing.T) {
	t.Parallel()

	m := memio.NewFake()
	m.Processes = []memio.ProcessInfo{{PID: 100, Cmdline: "game.exe"}}

	procs, err := m.ListProcesses()
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}

	if len(procs) != 1 || procs[0].PID != 100 || procs[0].Cmdline != "game.exe" {
		t.Fatalf("unexpected processes: %+v", procs)
	}
}

func TestFakeWriteFailure(t *testing.T) {
	t.Parallel()

	m := memio.NewFake()
	m.SetRegion(1, 0x1000, []byte{0, 0})
	m.FailWrites[0x1000] = true

	err := m.Write(1, 0x1000, []byte{1, 2})

	var wf *memio.WriteFailed
	if !errors.As(err, &wf) {
		t.Fatalf("expected *WriteFailed, got %v", err)
	}
}
