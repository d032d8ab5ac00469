// Package scanexpr parses caller-supplied scan strings into a structured
// query (spec.md §4.4, C4 Scan Expression Parser).
package scanexpr

import (
	"fmt"
	"strings"

	"github.com/kestrelwire/memscan/internal/codec"
)

// Query is the parsed result of a scan expression: an operator plus the
// literal value(s) it compares against, or — for composite queries — a
// sequence of literal/wildcard slots.
type Query struct {
	Op OpType

	// Values holds the encoded literal(s) for non-composite queries: one
	// value for Eq/Neq/Gt/Lt/Ge/Le/Changed/Unchanged/Increased/Decreased,
	// two (low, high) for Within, none for Any.
	Values [][]byte

	// Slots holds the per-position literal/wildcard pattern for a
	// composite query. Non-nil only when the input was a composite query.
	Slots []codec.Slot
}

// OpType re-exports [codec.OpType] so callers of this package do not need
// to import codec just to name an operator.
type OpType = codec.OpType

// Re-exported operator constants.
const (
	Eq        = codec.Eq
	Neq       = codec.Neq
	Gt        = codec.Gt
	Lt        = codec.Lt
	Ge        = codec.Ge
	Le        = codec.Le
	Within    = codec.Within
	Changed   = codec.Changed
	Unchanged = codec.Unchanged
	Increased = codec.Increased
	Decreased = codec.Decreased
	Any       = codec.Any
)

// operatorPrefixes is checked longest-first so ">=" is not mistaken for ">".
var operatorPrefixes = []struct { //nolint:gochecknoglobals // fixed parse table
	prefix string
	op     OpType
}{
	{">=", Ge},
	{"<=", Le},
	{"!=", Neq},
	{"=", Eq},
	{">", Gt},
	{"<", Lt},
}

// Parse parses input into a [Query] for scan type t, using enc to encode
// any String literals.
//
//   - "a..b" or "a,b"       -> Within(a, b)
//   - "<op><literal>"       -> relational query (= is the default if no
//     operator prefix is given)
//   - "v1 v2 ? v4 ..."      -> composite query; only valid on integer
//     types, each slot occupies width(t) bytes, "?" and "*" are wildcards
func Parse(input string, t codec.ScanType, enc codec.Encoder) (Query, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Query{}, fmt.Errorf("%w: empty scan expression", codec.ErrParse)
	}

	if lo, hi, ok := splitRange(s); ok {
		return parseRange(lo, hi, t, enc)
	}

	if isComposite(s) {
		return parseComposite(s, t, enc)
	}

	return parseSingle(s, t, enc)
}

// splitRange recognizes "a..b" and "a,b" range syntax.
func splitRange(s string) (lo, hi string, ok bool) {
	if before, after, found := strings.Cut(s, ".."); found {
		return strings.TrimSpace(before), strings.TrimSpace(after), true
	}

	if before, after, found := strings.Cut(s, ","); found {
		return strings.TrimSpace(before), strings.TrimSpace(after), true
	}

	return "", "", false
}

func parseRange(lo, hi string, t codec.ScanType, enc codec.Encoder) (Query, error) {
	loBytes, err := codec.Encode(t, lo, enc)
	if err != nil {
		return Query{}, fmt.Errorf("parsing range lower bound: %w", err)
	}

	hiBytes, err := codec.Encode(t, hi, enc)
	if err != nil {
		return Query{}, fmt.Errorf("parsing range upper bound: %w", err)
	}

	return Query{Op: Within, Values: [][]byte{loBytes, hiBytes}}, nil
}

// isComposite reports whether s is a space-separated list of two or more
// items (a composite pattern), as opposed to a single literal possibly
// carrying an operator prefix.
func isComposite(s string) bool {
	return len(strings.Fields(s)) > 1
}

func parseComposite(s string, t codec.ScanType, enc codec.Encoder) (Query, error) {
	if !t.IsInteger() {
		return Query{}, fmt.Errorf("%w: composite query on %v", codec.ErrUnsupportedOperator, t)
	}

	fields := strings.Fields(s)
	slots := make([]codec.Slot, 0, len(fields))

	for _, field := range fields {
		if field == "?" || field == "*" {
			slots = append(slots, codec.Slot{Wildcard: true})

			continue
		}

		value, err := codec.Encode(t, field, enc)
		if err != nil {
			return Query{}, fmt.Errorf("parsing composite slot %q: %w", field, err)
		}

		slots = append(slots, codec.Slot{Value: value})
	}

	return Query{Op: Eq, Slots: slots}, nil
}

func parseSingle(s string, t codec.ScanType, enc codec.Encoder) (Query, error) {
	op := Eq
	literal := s

	for _, p := range operatorPrefixes {
		if after, ok := strings.CutPrefix(s, p.prefix); ok {
			op = p.op
			literal = strings.TrimSpace(after)

			break
		}
	}

	if literal == "" {
		return Query{}, fmt.Errorf("%w: missing literal in %q", codec.ErrParse, s)
	}

	if op != Eq && op != Neq && t.IsVariableWidth() {
		return Query{}, fmt.Errorf("%w: %v on %v", codec.ErrUnsupportedOperator, op, t)
	}

	value, err := codec.Encode(t, literal, enc)
	if err != nil {
		return Query{}, fmt.Errorf("parsing literal %q: %w", literal, err)
	}

	return Query{Op: op, Values: [][]byte{value}}, nil
}
