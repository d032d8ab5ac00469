package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// errDecodeWidth is returned when the byte slice passed to a decode
// function does not match the scan type's fixed width.
var errDecodeWidth = fmt.Errorf("buffer length does not match scan type width")

// parseIntLiteral parses a signed decimal or 0x-prefixed hex literal
// (spec.md §4.4).
func parseIntLiteral(literal string) (int64, error) {
	s := strings.TrimSpace(literal)

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	var (
		v   uint64
		err error
	)

	if after, ok := strings.CutPrefix(s, "0x"); ok {
		v, err = strconv.ParseUint(after, 16, 64)
	} else if after, ok := strings.CutPrefix(s, "0X"); ok {
		v, err = strconv.ParseUint(after, 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}

	if err != nil {
		return 0, fmt.Errorf("parsing integer literal %q: %w", literal, err)
	}

	n := int64(v) //nolint:gosec // intentional reinterpretation of bit pattern
	if neg {
		n = -n
	}

	return n, nil
}

// encodeInt encodes v as little-endian bytes of the fixed width for t.
func encodeInt(t ScanType, v int64) []byte {
	width, _ := Width(t)
	buf := make([]byte, width)

	switch t {
	case Int8:
		buf[0] = byte(v)
	case Int16:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case Int32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case Int64:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	case Float32, Float64, String, ByteArray:
		// unreachable: callers only pass integer scan types
	}

	return buf
}

// DecodeInt decodes a little-endian integer value from data under scan
// type t. data must be exactly Width(t) bytes.
func DecodeInt(t ScanType, data []byte) (int64, error) {
	width, ok := Width(t)
	if !ok || !t.IsInteger() {
		return 0, fmt.Errorf("%w: DecodeInt called on %v", ErrUnsupportedOperator, t)
	}

	if len(data) != width {
		return 0, fmt.Errorf("%w: %v wants %d bytes, got %d", errDecodeWidth, t, width, len(data))
	}

	switch t {
	case Int8:
		return int64(int8(data[0])), nil
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(data))), nil
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(data))), nil
	case Int64:
		return int64(binary.LittleEndian.Uint64(data)), nil
	case Float32, Float64, String, ByteArray:
	}

	return 0, fmt.Errorf("%w: DecodeInt called on %v", ErrUnsupportedOperator, t)
}

// encodeFloat encodes v as little-endian bytes of the fixed width for t.
func encodeFloat(t ScanType, v float64) []byte {
	width, _ := Width(t)
	buf := make([]byte, width)

	switch t {
	case Float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	case Int8, Int16, Int32, Int64, String, ByteArray:
		// unreachable: callers only pass float scan types
	}

	return buf
}

// DecodeFloat decodes a little-endian float value from data under scan
// type t. data must be exactly Width(t) bytes.
func DecodeFloat(t ScanType, data []byte) (float64, error) {
	width, ok := Width(t)
	if !ok || !t.IsFloat() {
		return 0, fmt.Errorf("%w: DecodeFloat called on %v", ErrUnsupportedOperator, t)
	}

	if len(data) != width {
		return 0, fmt.Errorf("%w: %v wants %d bytes, got %d", errDecodeWidth, t, width, len(data))
	}

	switch t {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data))), nil
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
	case Int8, Int16, Int32, Int64, String, ByteArray:
	}

	return 0, fmt.Errorf("%w: DecodeFloat called on %v", ErrUnsupportedOperator, t)
}
