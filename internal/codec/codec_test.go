package codec_test

import (
	"testing"

	"github.com/kestrelwire/memscan/internal/codec"
)

func TestIntRoundTrip(t *testing.T) {
	t.Parallel()

	enc := codec.NewEncoder(codec.ASCII)

	cases := []struct {
		typ ScanTypeAlias
		lit string
		want int64
	}{
		{codec.Int8, "-128", -128},
		{codec.Int8, "127", 127},
		{codec.Int16, "-32768", -32768},
		{codec.Int16, "32767", 32767},
		{codec.Int32, "0x7fffffff", 2147483647},
		{codec.Int32, "-2147483648", -2147483648},
		{codec.Int64, "9223372036854775807", 9223372036854775807},
		{codec.Int64, "-9223372036854775808", -9223372036854775808},
	}

	for _, tc := range cases {
		t.Run(tc.typ.String(), func(t *testing.T) {
			t.Parallel()

			data, err := codec.Encode(codec.ScanType(tc.typ), tc.lit, enc)
			if err != nil {
				t.Fatalf("Encode(%v, %q): %v", tc.typ, tc.lit, err)
			}

			got, err := codec.DecodeInt(codec.ScanType(tc.typ), data)
			if err != nil {
				t.Fatalf("DecodeInt: %v", err)
			}

			if got != tc.want {
				t.Errorf("round-trip mismatch: got %d, want %d", got, tc.want)
			}
		})
	}
}

// ScanTypeAlias lets the table above read naturally without repeating
// codec.ScanType on every line.
type ScanTypeAlias = codec.ScanType

func TestFloatRoundTrip(t *testing.T) {
	t.Parallel()

	enc := codec.NewEncoder(codec.ASCII)

	for _, tc := range []struct {
		typ  codec.ScanType
		lit  string
		want float64
	}{
		{codec.Float32, "3.5", 3.5},
		{codec.Float32, "-1.25", -1.25},
		{codec.Float64, "2.718281828", 2.718281828},
		{codec.Float64, "-0.0009765625", -0.0009765625},
	} {
		data, err := codec.Encode(tc.typ, tc.lit, enc)
		if err != nil {
			t.Fatalf("Encode(%v, %q): %v", tc.typ, tc.lit, err)
		}

		got, err := codec.DecodeFloat(tc.typ, data)
		if err != nil {
			t.Fatalf("DecodeFloat: %v", err)
		}

		if got != tc.want {
			t.Errorf("round-trip mismatch for %v %q: got %v, want %v", tc.typ, tc.lit, got, tc.want)
		}
	}
}

func TestCompareTotality_NumericOps(t *testing.T) {
	t.Parallel()

	enc := codec.NewEncoder(codec.ASCII)
	ten, _ := codec.Encode(codec.Int32, "10", enc)
	twenty, _ := codec.Encode(codec.Int32, "20", enc)

	cases := []struct {
		op   codec.OpType
		a, b []byte
		want bool
	}{
		{codec.Eq, ten, ten, true},
		{codec.Eq, ten, twenty, false},
		{codec.Neq, ten, twenty, true},
		{codec.Gt, twenty, ten, true},
		{codec.Gt, ten, twenty, false},
		{codec.Lt, ten, twenty, true},
		{codec.Ge, ten, ten, true},
		{codec.Le, ten, twenty, true},
		{codec.Changed, ten, twenty, true},
		{codec.Unchanged, ten, ten, true},
		{codec.Increased, twenty, ten, true},
		{codec.Decreased, ten, twenty, true},
		{codec.Any, ten, twenty, true},
	}

	for _, tc := range cases {
		got, err := codec.Compare(codec.Int32, tc.a, tc.b, nil, tc.op)
		if err != nil {
			t.Fatalf("Compare(%v): unexpected error: %v", tc.op, err)
		}

		if got != tc.want {
			t.Errorf("Compare(%v): got %v, want %v", tc.op, got, tc.want)
		}
	}
}

func TestCompareWithin(t *testing.T) {
	t.Parallel()

	enc := codec.NewEncoder(codec.ASCII)
	five, _ := codec.Encode(codec.Int32, "5", enc)
	ten, _ := codec.Encode(codec.Int32, "10", enc)
	fifteen, _ := codec.Encode(codec.Int32, "15", enc)
	twenty, _ := codec.Encode(codec.Int32, "20", enc)

	inRange, err := codec.Compare(codec.Int32, ten, five, fifteen, codec.Within)
	if err != nil || !inRange {
		t.Fatalf("expected 10 within [5,15], got %v err=%v", inRange, err)
	}

	outOfRange, err := codec.Compare(codec.Int32, twenty, five, fifteen, codec.Within)
	if err != nil || outOfRange {
		t.Fatalf("expected 20 not within [5,15], got %v err=%v", outOfRange, err)
	}
}

func TestCompareUnsupportedOperatorOnStringAndByteArray(t *testing.T) {
	t.Parallel()

	enc := codec.NewEncoder(codec.UTF8)
	a, _ := codec.Encode(codec.String, "abc", enc)
	b, _ := codec.Encode(codec.String, "abd", enc)

	for _, op := range []codec.OpType{codec.Gt, codec.Lt, codec.Ge, codec.Le, codec.Within} {
		_, err := codec.Compare(codec.String, a, b, nil, op)
		if err == nil {
			t.Errorf("expected ErrUnsupportedOperator for %v on String, got nil", op)
		}
	}
}

func TestCompareStringEquality(t *testing.T) {
	t.Parallel()

	enc := codec.NewEncoder(codec.UTF8)
	a, _ := codec.Encode(codec.String, "hello", enc)
	b, _ := codec.Encode(codec.String, "hello", enc)
	c, _ := codec.Encode(codec.String, "world", enc)

	eq, err := codec.Compare(codec.String, a, b, nil, codec.Eq)
	if err != nil || !eq {
		t.Fatalf("expected equal strings to compare Eq=true, got %v err=%v", eq, err)
	}

	neq, err := codec.Compare(codec.String, a, c, nil, codec.Neq)
	if err != nil || !neq {
		t.Fatalf("expected different strings to compare Neq=true, got %v err=%v", neq, err)
	}
}

func TestMatchComposite(t *testing.T) {
	t.Parallel()

	enc := codec.NewEncoder(codec.ASCII)
	one, _ := codec.Encode(codec.Int16, "1", enc)
	two, _ := codec.Encode(codec.Int16, "2", enc)
	three, _ := codec.Encode(codec.Int16, "3", enc)

	data := append(append(append([]byte{}, one...), two...), three...)

	slots := []codec.Slot{
		{Value: one},
		{Wildcard: true},
		{Value: three},
	}

	ok, err := codec.MatchComposite(codec.Int16, data, slots)
	if err != nil || !ok {
		t.Fatalf("expected composite match, got %v err=%v", ok, err)
	}

	slotsMismatch := []codec.Slot{
		{Value: two},
		{Wildcard: true},
		{Value: three},
	}

	ok, err = codec.MatchComposite(codec.Int16, data, slotsMismatch)
	if err != nil || ok {
		t.Fatalf("expected composite mismatch, got %v err=%v", ok, err)
	}
}

func TestEncodingManagerDeterministicLengthPreserving(t *testing.T) {
	t.Parallel()

	for _, enc := range []codec.Encoder{
		codec.NewEncoder(codec.ASCII),
		codec.NewEncoder(codec.UTF8),
		codec.NewEncoder(codec.UTF16LE),
	} {
		const text = "Score"

		a, err1 := enc.Encode(text)
		b, err2 := enc.Encode(text)

		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected encode error: %v / %v", err1, err2)
		}

		if string(a) != string(b) {
			t.Errorf("encoding %v is not deterministic", enc.Encoding)
		}

		if enc.Encoding == codec.UTF16LE && len(a) != len(text)*2 {
			t.Errorf("UTF16LE should be length-preserving (2 bytes/rune): got %d, want %d", len(a), len(text)*2)
		}

		if enc.Encoding == codec.ASCII && len(a) != len(text) {
			t.Errorf("ASCII should be length-preserving (1 byte/rune): got %d, want %d", len(a), len(text))
		}
	}
}

func TestParseOpRoundTrip(t *testing.T) {
	t.Parallel()

	for _, op := range []codec.OpType{
		codec.Eq, codec.Neq, codec.Gt, codec.Lt, codec.Ge, codec.Le,
		codec.Within, codec.Changed, codec.Unchanged, codec.Increased,
		codec.Decreased, codec.Any,
	} {
		parsed, err := codec.ParseOp(op.String())
		if err != nil {
			t.Fatalf("ParseOp(%v): %v", op, err)
		}

		if parsed != op {
			t.Fatalf("ParseOp(%v) = %v, want %v", op, parsed, op)
		}
	}
}

func TestParseOpUnknown(t *testing.T) {
	t.Parallel()

	if _, err := codec.ParseOp("nonsense"); err == nil {
		t.Fatalf("expected error for unknown operator name")
	}
}
