package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// Gate thresholds for the printable ratio, expressed as tenths so the
// comparison stays exact: 7 means printable/total >= 0.7.
const (
	TextGate = 7
	PoolGate = 5
)

// IsPrintable reports whether b is printable ASCII or one of \t \n \r.
func IsPrintable(b byte) bool {
	return (b >= 0x20 && b < 0x7f) || b == '\t' || b == '\n' || b == '\r'
}

// PrintableCount returns the number of printable bytes in data.
func PrintableCount(data []byte) int {
	n := 0
	for _, b := range data {
		if IsPrintable(b) {
			n++
		}
	}
	return n
}

// PrintableRatio returns the fraction of printable bytes, 0 for empty input.
func PrintableRatio(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	return float64(PrintableCount(data)) / float64(len(data))
}

// PassesGate reports whether printable/len(data) >= tenths/10. Empty input never passes.
func PassesGate(data []byte, tenths int) bool {
	if len(data) == 0 {
		return false
	}
	return PrintableCount(data)*10 >= len(data)*tenths
}

// Confidence scores a recovered string: its printable ratio damped for short strings.
func Confidence(data []byte) float32 {
	if len(data) == 0 {
		return 0
	}
	lengthFactor := float64(len(data)) / 16
	if lengthFactor > 1 {
		lengthFactor = 1
	}
	c := PrintableRatio(data) * lengthFactor
	return float32(float64(int(c*1000+0.5)) / 1000)
}

// AlphaRatio returns the fraction of letters in s.
func AlphaRatio(s string) float64 {
	total, alpha := 0, 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alpha) / float64(total)
}

// Decoder turns 8-bit extended-Latin bytes into a Go string.
type Decoder struct {
	name string
	cm   *charmap.Charmap
}

var (
	Latin1   = Decoder{name: "latin1", cm: charmap.ISO8859_1}
	MacRoman = Decoder{name: "macroman", cm: charmap.Macintosh}
)

// DecoderFor returns the decoder registered under name.
func DecoderFor(name string) (Decoder, error) {
	switch strings.ToLower(name) {
	case "", "latin1", "iso8859-1", "iso-8859-1":
		return Latin1, nil
	case "macroman", "mac", "macintosh":
		return MacRoman, nil
	}
	return Decoder{}, fmt.Errorf("unknown text encoding %q", name)
}

// Name returns the canonical encoding name.
func (d Decoder) Name() string {
	if d.cm == nil {
		return Latin1.name
	}
	return d.name
}

func (d Decoder) charmap() *charmap.Charmap {
	if d.cm == nil {
		return charmap.ISO8859_1
	}
	return d.cm
}

// IsTextByte reports whether b is printable ASCII or, above 0x7F, decodes to
// a letter in d's charset.
func (d Decoder) IsTextByte(b byte) bool {
	if b < 0x80 {
		return b >= 0x20 && b <= 0x7e
	}
	return unicode.IsLetter(d.charmap().DecodeByte(b))
}

// Decode converts data. Every byte maps to exactly one rune.
func (d Decoder) Decode(data []byte) string {
	cm := d.charmap()
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		sb.WriteRune(cm.DecodeByte(b))
	}
	return sb.String()
}

// Encode converts s back to 8-bit bytes. Runes outside the charset are an error.
func (d Decoder) Encode(s string) ([]byte, error) {
	cm := d.charmap()
	out := make([]byte, 0, len(s))
	for i, r := range s {
		b, ok := cm.EncodeRune(r)
		if !ok {
			return nil, fmt.Errorf("rune %q at %d not representable in %s", r, i, d.Name())
		}
		out = append(out, b)
	}
	return out, nil
}

// Hash computes a SHA-256 hex hash of a string for deduplication.
func Hash(s string) string {
	return HashBytes([]byte(s))
}

// HashBytes computes a SHA-256 hex hash of raw bytes.
func HashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Truncate shortens a string to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
