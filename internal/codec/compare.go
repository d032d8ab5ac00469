package codec

import (
	"bytes"
	"fmt"
)

// Compare applies op to candidate against ref (and, for [Within], also
// against refHigh) under the semantics of scan type t (spec.md §4.3).
//
// Integer and float comparisons are value-wise. String and ByteArray
// comparisons are byte-wise equality only: Gt, Lt, Ge, Le and Within are
// disallowed on those types and return [ErrUnsupportedOperator].
//
// refHigh is only consulted for [Within] and may be nil otherwise.
func Compare(t ScanType, candidate, ref, refHigh []byte, op OpType) (bool, error) {
	if t.IsVariableWidth() {
		return compareBytewise(candidate, ref, op)
	}

	return compareNumeric(t, candidate, ref, refHigh, op)
}

func compareBytewise(candidate, ref []byte, op OpType) (bool, error) {
	switch op {
	case Eq:
		return bytes.Equal(candidate, ref), nil
	case Neq:
		return !bytes.Equal(candidate, ref), nil
	case Changed:
		return !bytes.Equal(candidate, ref), nil
	case Unchanged:
		return bytes.Equal(candidate, ref), nil
	case Any:
		return true, nil
	case Gt, Lt, Ge, Le, Within, Increased, Decreased:
		return false, fmt.Errorf("%w: %v on string/bytearray", ErrUnsupportedOperator, op)
	default:
		return false, fmt.Errorf("%w: %v", ErrUnsupportedOperator, op)
	}
}

func compareNumeric(t ScanType, candidate, ref, refHigh []byte, op OpType) (bool, error) {
	if op == Any {
		return true, nil
	}

	cv, rv, err := decodePair(t, candidate, ref)
	if err != nil {
		return false, err
	}

	switch op {
	case Eq:
		return cv == rv, nil
	case Neq:
		return cv != rv, nil
	case Gt, Increased:
		return cv > rv, nil
	case Lt, Decreased:
		return cv < rv, nil
	case Ge:
		return cv >= rv, nil
	case Le:
		return cv <= rv, nil
	case Changed:
		return cv != rv, nil
	case Unchanged:
		return cv == rv, nil
	case Within:
		hv, decErr := decodeScalar(t, refHigh)
		if decErr != nil {
			return false, decErr
		}

		lo, hi := rv, hv
		if lo > hi {
			lo, hi = hi, lo
		}

		return cv >= lo && cv <= hi, nil
	case Any:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrUnsupportedOperator, op)
	}
}

// decodePair decodes candidate and ref as the same numeric scan type and
// returns both as float64 for uniform relational comparison. float64 can
// represent every Int8/16/32 and Float32 value exactly, and every Int64
// value used in practice by this scanner (memory cell contents, not
// precision-critical math).
func decodePair(t ScanType, candidate, ref []byte) (float64, float64, error) {
	cv, err := decodeScalar(t, candidate)
	if err != nil {
		return 0, 0, err
	}

	rv, err := decodeScalar(t, ref)
	if err != nil {
		return 0, 0, err
	}

	return cv, rv, nil
}

func decodeScalar(t ScanType, data []byte) (float64, error) {
	if t.IsFloat() {
		return DecodeFloat(t, data)
	}

	v, err := DecodeInt(t, data)

	return float64(v), err
}

// Slot is one element of a composite (space-separated) scan pattern: a
// literal byte value to match exactly, or a wildcard matching any bytes
// of the same width (spec.md §4.4).
type Slot struct {
	Wildcard bool
	Value    []byte
}

// MatchComposite reports whether data matches the sequence of slots,
// where each slot occupies width(t) bytes in order. len(data) must equal
// len(slots)*width(t).
func MatchComposite(t ScanType, data []byte, slots []Slot) (bool, error) {
	if !t.IsInteger() {
		return false, fmt.Errorf("%w: composite query on %v", ErrUnsupportedOperator, t)
	}

	width, _ := Width(t)

	if len(data) != len(slots)*width {
		return false, fmt.Errorf("composite match: data length %d does not match %d slots of width %d",
			len(data), len(slots), width)
	}

	for i, slot := range slots {
		if slot.Wildcard {
			continue
		}

		chunk := data[i*width : (i+1)*width]
		if !bytes.Equal(chunk, slot.Value) {
			return false, nil
		}
	}

	return true, nil
}
