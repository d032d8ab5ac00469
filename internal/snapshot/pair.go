package snapshot

import (
	"bytes"

	"github.com/kestrelwire/memscan/internal/codec"
	"github.com/kestrelwire/memscan/internal/memio"
)

// ComparePair runs the region-drift-tolerant pairwise block comparison
// (spec.md §4.6.2): cur and prev need not share a base address or size.
// Only their overlapping byte range is walked, one width(t)-sized window
// per byte offset, anchored to the overlap's start — never to either
// block's own base — so a region that grew, shrank, or moved since
// capture still compares correctly over whatever bytes both snapshots
// actually cover. The window slides byte-by-byte rather than
// width-by-width: a value can straddle any byte offset once alignment
// between cur and prev has drifted, so every offset needs its own check.
func ComparePair(cur, prev MemoryBlock, t codec.ScanType, op codec.OpType) ([]Scan, error) {
	width, err := fixedWidth(t)
	if err != nil {
		return nil, err
	}

	overlapStart := cur.Base
	if prev.Base > overlapStart {
		overlapStart = prev.Base
	}

	overlapEnd := cur.End()
	if prev.End() < overlapEnd {
		overlapEnd = prev.End()
	}

	if overlapEnd <= overlapStart {
		return nil, nil
	}

	var out []Scan

	curBase := int(overlapStart - cur.Base)
	prevBase := int(overlapStart - prev.Base)

	for k := 0; int(overlapStart)+k+width <= int(overlapEnd); k++ {
		curChunk := cur.Data[curBase+k : curBase+k+width]
		prevChunk := prev.Data[prevBase+k : prevBase+k+width]

		ok, err := codec.Compare(t, curChunk, prevChunk, nil, op)
		if err != nil {
			return nil, err
		}

		if ok {
			out = append(out, Scan{
				Address:      overlapStart + memio.Address(k),
				ScannedValue: bytes.Clone(curChunk),
			})
		}
	}

	return out, nil
}
