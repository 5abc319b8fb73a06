package checkin

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding is a strict text decoder tried by Parse. Decoding must fail on the
// first invalid sequence rather than substituting replacement characters.
type Encoding struct {
	Name   string
	decode func([]byte) ([]byte, error)
}

// Decode converts src to UTF-8.
func (e Encoding) Decode(src []byte) ([]byte, error) {
	return e.decode(src)
}

var (
	// UTF8SIG is UTF-8 with an optional leading byte order mark.
	UTF8SIG = Encoding{Name: "utf-8-sig", decode: decodeUTF8SIG}

	// UTF16 is UTF-16 with byte order taken from the BOM, little-endian if absent.
	UTF16 = Encoding{Name: "utf-16", decode: decodeUTF16}
)

var encodingsByName = map[string]Encoding{
	UTF8SIG.Name: UTF8SIG,
	"utf-8":      UTF8SIG,
	"utf8":       UTF8SIG,
	UTF16.Name:   UTF16,
	"utf16":      UTF16,
}

// DefaultEncodings returns the fallback order used when none is configured.
func DefaultEncodings() []Encoding {
	return []Encoding{UTF8SIG, UTF16}
}

// LookupEncoding resolves a configured encoding name.
func LookupEncoding(name string) (Encoding, error) {
	enc, ok := encodingsByName[name]
	if !ok {
		return Encoding{}, fmt.Errorf("unknown encoding %q", name)
	}
	return enc, nil
}

// LookupEncodings resolves names in order.
func LookupEncodings(names []string) ([]Encoding, error) {
	encs := make([]Encoding, 0, len(names))
	for _, name := range names {
		enc, err := LookupEncoding(name)
		if err != nil {
			return nil, err
		}
		encs = append(encs, enc)
	}
	return encs, nil
}

var errOddLength = errors.New("odd number of bytes")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeUTF8SIG(src []byte) ([]byte, error) {
	out := bytes.TrimPrefix(src, utf8BOM)
	if !utf8.Valid(out) {
		return nil, fmt.Errorf("invalid utf-8 at byte %d", invalidUTF8Offset(out))
	}
	return out, nil
}

func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

func decodeUTF16(src []byte) ([]byte, error) {
	if len(src)%2 != 0 {
		return nil, errOddLength
	}

	bigEndian := bytes.HasPrefix(src, []byte{0xFE, 0xFF})
	if err := validateUTF16(src, bigEndian); err != nil {
		return nil, err
	}

	// The decoder honours the BOM and otherwise falls back to little-endian.
	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	out, _, err := transform.Bytes(dec, src)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// validateUTF16 rejects unpaired surrogates, which the x/text decoder would
// otherwise replace silently.
func validateUTF16(src []byte, bigEndian bool) error {
	unit := func(i int) uint16 {
		if bigEndian {
			return uint16(src[i])<<8 | uint16(src[i+1])
		}
		return uint16(src[i+1])<<8 | uint16(src[i])
	}

	for i := 0; i < len(src); i += 2 {
		u := unit(i)
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+2 >= len(src) {
				return fmt.Errorf("truncated surrogate pair at byte %d", i)
			}
			if next := unit(i + 2); next < 0xDC00 || next > 0xDFFF {
				return fmt.Errorf("unpaired high surrogate at byte %d", i)
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return fmt.Errorf("unpaired low surrogate at byte %d", i)
		}
	}
	return nil
}
