package codec

import (
	"errors"
	"fmt"
)

// TextEncoding names the deterministic, length-preserving mapping the
// codec's String path uses to turn user-entered text into bytes
// (spec.md §6, "Text encoding").
type TextEncoding int

// Supported text encodings.
const (
	// ASCII encodes one byte per rune; runes outside 0x00-0x7F are an error.
	ASCII TextEncoding = iota
	// UTF8 encodes text using Go's native UTF-8 representation.
	UTF8
	// UTF16LE encodes two bytes per rune (BMP only), little-endian.
	UTF16LE
)

// ErrNonASCII is returned by [Encoder.Encode] under [ASCII] for input
// containing a rune outside the 7-bit ASCII range.
var ErrNonASCII = errors.New("non-ASCII rune under ascii encoding")

// ErrNonBMPRune is returned by [Encoder.Encode] under [UTF16LE] for a rune
// outside the Basic Multilingual Plane (surrogate pairs are not supported).
var ErrNonBMPRune = errors.New("rune outside basic multilingual plane")

// Encoder is the external "encoding manager" collaborator the codec's
// String path consults (spec.md §6, §9 "Global encoding"). It is passed
// explicitly rather than represented as package-level state, so the
// active encoding is always a plain, testable value.
type Encoder struct {
	Encoding TextEncoding
}

// NewEncoder returns an [Encoder] using the given text encoding.
func NewEncoder(enc TextEncoding) Encoder {
	return Encoder{Encoding: enc}
}

// Encode converts s to bytes under the encoder's declared encoding. The
// mapping is deterministic: the same (encoding, s) always produces the
// same bytes, and the output length depends only on the runes of s and
// the encoding (1 byte/rune for ASCII, UTF-8's own per-rune width for UTF8,
// 2 bytes/rune for UTF16LE).
func (e Encoder) Encode(s string) ([]byte, error) {
	switch e.Encoding {
	case ASCII:
		return encodeASCII(s)
	case UTF8:
		return []byte(s), nil
	case UTF16LE:
		return encodeUTF16LE(s)
	default:
		return nil, fmt.Errorf("unknown text encoding %d", e.Encoding)
	}
}

func encodeASCII(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))

	for _, r := range s {
		if r > 0x7F {
			return nil, fmt.Errorf("%w: %q", ErrNonASCII, r)
		}

		out = append(out, byte(r))
	}

	return out, nil
}

const bmpLimit = 0x10000

func encodeUTF16LE(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)*2)

	for _, r := range s {
		if r >= bmpLimit {
			return nil, fmt.Errorf("%w: %q", ErrNonBMPRune, r)
		}

		out = append(out, byte(r), byte(r>>8))
	}

	return out, nil
}
