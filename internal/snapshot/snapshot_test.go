package snapshot_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kestrelwire/memscan/internal/codec"
	"github.com/kestrelwire/memscan/internal/memio"
	"github.com/kestrelwire/memscan/internal/snapshot"
)

const testPid = 7

func int32Bytes(v int32) []byte {
	enc := codec.NewEncoder(codec.ASCII)
	b, err := codec.Encode(codec.Int32, itoa(v), enc)
	if err != nil {
		panic(err)
	}

	return b
}

func itoa(v int32) string {
	neg := v < 0
	if neg {
		v = -v
	}

	if v == 0 {
		return "0"
	}

	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}

	if neg {
		digits = append([]byte{'-'}, digits...)
	}

	return string(digits)
}

// TestComparePairEqualAddresses mirrors the spec §8 property #4 scenario 1
// (12-byte Int32 blocks at the same base, cur=[10,_,20,_] vs prev=[30,_,40,_]
// with zero padding between and after): the window slides one byte at a
// time over the 12-byte overlap, so every one of the 9 possible Int32
// windows is compared, not just the two aligned ones. Lt is true for the
// 5 windows that still include one of the two differing bytes (k=0..4);
// it goes false from k=5 on, once both sides read as the same zero run.
func TestComparePairEqualAddresses(t *testing.T) {
	t.Parallel()

	curData := append(append(int32Bytes(10), int32Bytes(20)...), make([]byte, 4)...)
	prevData := append(append(int32Bytes(30), int32Bytes(40)...), make([]byte, 4)...)

	cur := snapshot.MemoryBlock{Base: 0x08002000, Data: curData}
	prev := snapshot.MemoryBlock{Base: 0x08002000, Data: prevData}

	scans, err := snapshot.ComparePair(cur, prev, codec.Int32, codec.Lt)
	if err != nil {
		t.Fatalf("ComparePair: %v", err)
	}

	if len(scans) != 5 {
		t.Fatalf("expected 5 scans, got %d: %+v", len(scans), scans)
	}

	if scans[0].Address != 0x08002000 {
		t.Fatalf("expected first address 0x08002000, got 0x%x", scans[0].Address)
	}

	got, _ := codec.DecodeInt(codec.Int32, scans[0].ScannedValue)
	if got != 10 {
		t.Fatalf("expected first scanned value 10, got %d", got)
	}

	if scans[4].Address != 0x08002004 {
		t.Fatalf("expected fifth address 0x08002004, got 0x%x", scans[4].Address)
	}

	got, _ = codec.DecodeInt(codec.Int32, scans[4].ScannedValue)
	if got != 20 {
		t.Fatalf("expected fifth scanned value 20, got %d", got)
	}
}

// TestComparePairOffsetDrift mirrors the spec §8 property #4 scenario 2:
// prev starts 4 bytes ahead of cur and is only 8 bytes long, so the
// overlap is [0x08002004, 0x0800200C) — 8 bytes, 5 possible Int32
// windows, anchored to the overlap start rather than either block's own
// base. cur's leading word (at 0x08002000) and anything past 0x0800200C
// fall outside the shared range and are never compared.
func TestComparePairOffsetDrift(t *testing.T) {
	t.Parallel()

	curData := append(append(int32Bytes(10), int32Bytes(20)...), make([]byte, 4)...)
	prevData := append(int32Bytes(30), int32Bytes(40)...)

	cur := snapshot.MemoryBlock{Base: 0x08002000, Data: curData}
	prev := snapshot.MemoryBlock{Base: 0x08002004, Data: prevData}

	scans, err := snapshot.ComparePair(cur, prev, codec.Int32, codec.Lt)
	if err != nil {
		t.Fatalf("ComparePair: %v", err)
	}

	if len(scans) != 5 {
		t.Fatalf("expected 5 scans, got %d: %+v", len(scans), scans)
	}

	if scans[0].Address != 0x08002004 {
		t.Fatalf("expected first address 0x08002004, got 0x%x", scans[0].Address)
	}

	got, _ := codec.DecodeInt(codec.Int32, scans[0].ScannedValue)
	if got != 20 {
		t.Fatalf("expected first scanned value 20, got %d", got)
	}

	if scans[4].Address != 0x08002008 {
		t.Fatalf("expected fifth address 0x08002008, got 0x%x", scans[4].Address)
	}

	got, _ = codec.DecodeInt(codec.Int32, scans[4].ScannedValue)
	if got != 0 {
		t.Fatalf("expected fifth scanned value 0, got %d", got)
	}
}

// TestComparePairNoOverlapYieldsNoScans covers two blocks that do not
// intersect at all, which must produce zero scans rather than an error.
func TestComparePairNoOverlapYieldsNoScans(t *testing.T) {
	t.Parallel()

	cur := snapshot.MemoryBlock{Base: 0x1000, Data: int32Bytes(1)}
	prev := snapshot.MemoryBlock{Base: 0x9000, Data: int32Bytes(2)}

	scans, err := snapshot.ComparePair(cur, prev, codec.Int32, codec.Any)
	if err != nil {
		t.Fatalf("ComparePair: %v", err)
	}

	if scans != nil {
		t.Fatalf("expected no scans, got %+v", scans)
	}
}

// TestComparePairRejectsVariableWidthType covers the snapshot engine's
// restriction to fixed-width scan types (no literal width is available
// for String/ByteArray in a pure value-vs-value comparison).
func TestComparePairRejectsVariableWidthType(t *testing.T) {
	t.Parallel()

	cur := snapshot.MemoryBlock{Base: 0x1000, Data: []byte("abc")}
	prev := snapshot.MemoryBlock{Base: 0x1000, Data: []byte("xyz")}

	_, err := snapshot.ComparePair(cur, prev, codec.String, codec.Changed)
	if err == nil {
		t.Fatalf("expected error for variable-width scan type")
	}
}

func setupEngine(t *testing.T) (*snapshot.Engine, *memio.Fake) {
	t.Helper()

	mem := memio.NewFake()
	mem.SetRegion(testPid, 0x08002000, append(int32Bytes(20), make([]byte, 8)...))
	mem.SetRegion(testPid, 0x08003000, append(int32Bytes(30), make([]byte, 16)...))

	engine := snapshot.New(mem, nil)

	if err := engine.Capture(testPid); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	return engine, mem
}

// TestCaptureThenCompareFindsIncreasedValues mirrors the spec's initial
// unknown-scan scenario: two regions are captured, the live process then
// advances both leading values, and Compare(Gt) reports both.
func TestCaptureThenCompareFindsIncreasedValues(t *testing.T) {
	t.Parallel()

	engine, mem := setupEngine(t)

	if err := mem.Write(testPid, 0x08002000, int32Bytes(40)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := mem.Write(testPid, 0x08003000, int32Bytes(50)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	scans, err := engine.Compare(codec.Gt, codec.Int32)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	want := []snapshot.Scan{
		{Address: 0x08002000, ScannedValue: int32Bytes(40)},
		{Address: 0x08003000, ScannedValue: int32Bytes(50)},
	}

	if diff := cmp.Diff(want, scans, cmpopts.SortSlices(func(a, b snapshot.Scan) bool {
		return a.Address < b.Address
	})); diff != "" {
		t.Fatalf("Compare result mismatch (-want +got):\n%s", diff)
	}
}

// TestCompareWithoutCaptureReturnsError enforces the free-up rule: a
// Compare call with no fresh Capture behind it must not silently run.
func TestCompareWithoutCaptureReturnsError(t *testing.T) {
	t.Parallel()

	mem := memio.NewFake()
	mem.SetRegion(testPid, 0x1000, int32Bytes(1))

	engine := snapshot.New(mem, nil)

	_, err := engine.Compare(codec.Gt, codec.Int32)
	if err == nil {
		t.Fatalf("expected error comparing without a capture")
	}
}

// TestFilterNarrowsListAndUpdatesScannedValue runs Compare to seed a scan
// list, advances memory again, then Filter should both narrow the list
// and refresh each surviving entry's recorded value.
func TestFilterNarrowsListAndUpdatesScannedValue(t *testing.T) {
	t.Parallel()

	engine, mem := setupEngine(t)

	if err := mem.Write(testPid, 0x08002000, int32Bytes(40)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := mem.Write(testPid, 0x08003000, int32Bytes(50)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := engine.Compare(codec.Gt, codec.Int32); err != nil {
		t.Fatalf("Compare: %v", err)
	}

	// Only the first cell advances again; the second regresses, so a
	// second Increased-style Gt filter against the now-stale recorded
	// value should drop it.
	if err := mem.Write(testPid, 0x08002000, int32Bytes(45)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := mem.Write(testPid, 0x08003000, int32Bytes(10)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	scans, err := engine.Filter(codec.Gt, codec.Int32)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}

	want := []snapshot.Scan{
		{Address: 0x08002000, ScannedValue: int32Bytes(45)},
	}

	if diff := cmp.Diff(want, scans); diff != "" {
		t.Fatalf("Filter result mismatch (-want +got):\n%s", diff)
	}
}

// TestFilterDropsOnReadFailureWithoutAbortingPass matches the address
// scanner's tolerance of an individual read failure mid-pass.
func TestFilterDropsOnReadFailureWithoutAbortingPass(t *testing.T) {
	t.Parallel()

	engine, mem := setupEngine(t)

	if err := mem.Write(testPid, 0x08002000, int32Bytes(40)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := mem.Write(testPid, 0x08003000, int32Bytes(50)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := engine.Compare(codec.Gt, codec.Int32); err != nil {
		t.Fatalf("Compare: %v", err)
	}

	mem.FailReads[0x08002000] = true

	scans, err := engine.Filter(codec.Any, codec.Int32)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}

	if len(scans) != 1 || scans[0].Address != 0x08003000 {
		t.Fatalf("expected only 0x08003000 to survive, got %+v", scans)
	}
}

type stubComparator struct {
	compareResult bool
	compareErr    error
	updateErr     error
	updated       bool
}

func (s *stubComparator) CompareScan(*snapshot.Scan, int, codec.OpType, codec.ScanType) (bool, error) {
	return s.compareResult, s.compareErr
}

func (s *stubComparator) UpdateScannedValue(scan *snapshot.Scan, _ int, _ codec.ScanType) error {
	s.updated = true
	scan.ScannedValue = []byte{60}

	return s.updateErr
}

// TestFilterUsesInjectedComparator exercises Filter against a stub
// Comparator, the same pluggable-capability seam memio.Real/Fake gives
// the scanner, confirming Filter never reads memory itself.
func TestFilterUsesInjectedComparator(t *testing.T) {
	t.Parallel()

	mem := memio.NewFake()
	mem.SetRegion(testPid, 0x1000, int32Bytes(1))

	stub := &stubComparator{compareResult: true}
	engine := snapshot.New(mem, stub)

	if err := engine.Capture(testPid); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if _, err := engine.Compare(codec.Any, codec.Int32); err != nil {
		t.Fatalf("Compare: %v", err)
	}

	scans, err := engine.Filter(codec.Any, codec.Int32)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}

	if len(scans) != 1 {
		t.Fatalf("expected 1 scan kept, got %d", len(scans))
	}

	if !stub.updated {
		t.Fatalf("expected UpdateScannedValue to be called")
	}

	if scans[0].ScannedValue[0] != 60 {
		t.Fatalf("expected scanned value overwritten by stub, got %+v", scans[0].ScannedValue)
	}
}
