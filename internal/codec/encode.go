package codec

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ErrParse is returned when a literal cannot be parsed under the declared
// scan type (spec.md §7, ParseError).
var ErrParse = fmt.Errorf("parse error")

// Encode parses a user literal into bytes for scan type t, using platform
// little-endian for integer/float types, raw hex bytes for ByteArray, and
// enc's declared encoding for String (spec.md §4.3).
func Encode(t ScanType, literal string, enc Encoder) ([]byte, error) {
	switch t {
	case Int8, Int16, Int32, Int64:
		v, err := parseIntLiteral(literal)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}

		return encodeInt(t, v), nil
	case Float32, Float64:
		v, err := parseFloatLiteral(literal)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}

		return encodeFloat(t, v), nil
	case String:
		b, err := enc.Encode(literal)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}

		return b, nil
	case ByteArray:
		b, err := parseHexPattern(literal)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}

		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown scan type %v", ErrParse, t)
	}
}

func parseFloatLiteral(literal string) (float64, error) {
	var v float64

	_, err := fmt.Sscanf(strings.TrimSpace(literal), "%g", &v)
	if err != nil {
		return 0, fmt.Errorf("parsing float literal %q: %w", literal, err)
	}

	return v, nil
}

// parseHexPattern parses a raw byte pattern written as hex digits,
// optionally separated by whitespace (e.g. "de ad be ef" or "deadbeef").
func parseHexPattern(literal string) ([]byte, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(literal), " ", "")

	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("parsing byte pattern %q: %w", literal, err)
	}

	return b, nil
}
