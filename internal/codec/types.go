// Package codec encodes and decodes typed scan values and compares byte
// buffers read from a target process under a declared scan type.
package codec

import (
	"errors"
	"fmt"
)

// ScanType is the closed set of value types the scanner understands.
type ScanType int

// Supported scan types.
const (
	Int8 ScanType = iota
	Int16
	Int32
	Int64
	Float32
	Float64
	String
	ByteArray
)

// wire names, used by the parser and the CLI/REPL (spec.md §6).
var scanTypeNames = map[ScanType]string{ //nolint:gochecknoglobals // fixed lookup table
	Int8:      "int8",
	Int16:     "int16",
	Int32:     "int32",
	Int64:     "int64",
	Float32:   "float32",
	Float64:   "float64",
	String:    "string",
	ByteArray: "bytearray",
}

// ErrUnknownScanType is returned by [ParseScanType] for an unrecognized name.
var ErrUnknownScanType = errors.New("unknown scan type")

// String returns the wire-form name of t.
func (t ScanType) String() string {
	if name, ok := scanTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("ScanType(%d)", int(t))
}

// ParseScanType parses a wire-form type name (spec.md §6).
func ParseScanType(name string) (ScanType, error) {
	for t, n := range scanTypeNames {
		if n == name {
			return t, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownScanType, name)
}

// IsVariableWidth reports whether t has a caller-supplied width (String,
// ByteArray) rather than a fixed one.
func (t ScanType) IsVariableWidth() bool {
	return t == String || t == ByteArray
}

// IsNumeric reports whether t is one of the fixed-width integer/float types.
func (t ScanType) IsNumeric() bool {
	return !t.IsVariableWidth()
}

// IsInteger reports whether t is an integer scan type.
func (t ScanType) IsInteger() bool {
	switch t {
	case Int8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether t is a floating-point scan type.
func (t ScanType) IsFloat() bool {
	return t == Float32 || t == Float64
}

// fixedWidths holds the byte width of every fixed-width scan type.
var fixedWidths = map[ScanType]int{ //nolint:gochecknoglobals // fixed lookup table
	Int8:    1,
	Int16:   2,
	Int32:   4,
	Int64:   8,
	Float32: 4,
	Float64: 8,
}

// Width returns the fixed byte width of t and true, or (0, false) if t is
// variable-width (String, ByteArray) and the width must come from the
// caller-supplied pattern instead.
func Width(t ScanType) (int, bool) {
	w, ok := fixedWidths[t]

	return w, ok
}

// WidthOf returns the effective byte width of a value of type t given the
// length of the caller-supplied pattern (used only for variable-width
// types; ignored for fixed-width types).
func WidthOf(t ScanType, patternLen int) int {
	if w, ok := Width(t); ok {
		return w
	}

	return patternLen
}

// OpType is the closed set of relational operators a scan or filter can
// apply (spec.md §3, Operator).
type OpType int

// Supported operators.
const (
	Eq OpType = iota
	Neq
	Gt
	Lt
	Ge
	Le
	Within
	Changed
	Unchanged
	Increased
	Decreased
	Any
)

var opNames = map[OpType]string{ //nolint:gochecknoglobals // fixed lookup table
	Eq:        "=",
	Neq:       "!=",
	Gt:        ">",
	Lt:        "<",
	Ge:        ">=",
	Le:        "<=",
	Within:    "within",
	Changed:   "changed",
	Unchanged: "unchanged",
	Increased: "increased",
	Decreased: "decreased",
	Any:       "any",
}

// String returns a human-readable operator name.
func (op OpType) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}

	return fmt.Sprintf("OpType(%d)", int(op))
}

// ErrUnknownOperator is returned by [ParseOp] for an unrecognized name.
var ErrUnknownOperator = errors.New("unknown operator")

// ParseOp parses an operator's wire-form name (one of the strings
// [OpType.String] produces), used by the snapshot_compare/snapshot_filter
// CLI/REPL commands (spec.md §6) which take a bare operator, not a value.
func ParseOp(name string) (OpType, error) {
	for op, n := range opNames {
		if n == name {
			return op, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, name)
}

// ErrUnsupportedOperator is returned when an operator is not defined for a
// given scan type (spec.md §7).
var ErrUnsupportedOperator = errors.New("unsupported operator for type")
