// Package scan recovers text from raw bytes when structural decoding is not
// available. Every scanner is a pure function over a byte slice and an offset
// base; none of them mutate their input.
package scan

import (
	"cast-extractor/internal/textutil"
)

// MaxPascalLength is the longest Pascal string accepted anywhere.
const MaxPascalLength = 200

// Kinds of candidates produced by the scanners.
const (
	KindPascal         = "pascal_string"
	KindNullTerminated = "null_terminated"
	KindPrintableRun   = "printable_run"
	KindPoolString     = "pool_string"
)

// StringCandidate is a recovered string. Confidence is advisory and never
// claims the bytes were really laid out as a string.
type StringCandidate struct {
	Kind       string  `json:"kind"`
	Offset     uint64  `json:"offset"`
	Length     uint32  `json:"length"`
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

func candidate(kind string, base uint64, off int, raw []byte, dec textutil.Decoder) StringCandidate {
	return StringCandidate{
		Kind:       kind,
		Offset:     base + uint64(off),
		Length:     uint32(len(raw)),
		Text:       dec.Decode(raw),
		Confidence: textutil.Confidence(raw),
	}
}

// ReadPascal reads a length-prefixed string at off. It succeeds only when the
// length byte is in [max(minLen,1), 200], the string stays inside data, and
// the printable ratio passes gate (in tenths).
func ReadPascal(data []byte, off, minLen, gate int) ([]byte, bool) {
	if off < 0 || off >= len(data) {
		return nil, false
	}
	if minLen < 1 {
		minLen = 1
	}
	n := int(data[off])
	if n < minLen || n > MaxPascalLength {
		return nil, false
	}
	if off+1+n > len(data) {
		return nil, false
	}
	raw := data[off+1 : off+1+n]
	if !textutil.PassesGate(raw, gate) {
		return nil, false
	}
	return raw, true
}

// PascalStrings tries every byte position as a Pascal length byte. Overlapping
// candidates are all reported, as each position is judged independently.
func PascalStrings(data []byte, base uint64, minLen int, dec textutil.Decoder) []StringCandidate {
	var out []StringCandidate
	for i := 0; i < len(data)-1; i++ {
		if raw, ok := ReadPascal(data, i, minLen, textutil.TextGate); ok {
			out = append(out, candidate(KindPascal, base, i, raw, dec))
		}
	}
	return out
}

// NullTerminated finds runs of at least minLen printable ASCII bytes
// (0x20-0x7E) immediately followed by a zero byte.
func NullTerminated(data []byte, base uint64, minLen int, dec textutil.Decoder) []StringCandidate {
	if minLen < 1 {
		minLen = 1
	}
	var out []StringCandidate
	start := -1
	for i, b := range data {
		if b >= 0x20 && b <= 0x7e {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && b == 0x00 && i-start >= minLen {
			out = append(out, candidate(KindNullTerminated, base, start, data[start:i], dec))
		}
		start = -1
	}
	return out
}

// PrintableRuns finds maximal runs of at least minLen bytes that are printable
// ASCII or letters of dec's charset, keeping those whose decoded letter ratio
// exceeds 0.3.
func PrintableRuns(data []byte, base uint64, minLen int, dec textutil.Decoder) []StringCandidate {
	if minLen < 1 {
		minLen = 1
	}
	var out []StringCandidate
	flush := func(start, end int) {
		if end-start < minLen {
			return
		}
		c := candidate(KindPrintableRun, base, start, data[start:end], dec)
		if textutil.AlphaRatio(c.Text) > 0.3 {
			out = append(out, c)
		}
	}

	start := -1
	for i, b := range data {
		if dec.IsTextByte(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			flush(start, i)
			start = -1
		}
	}
	if start >= 0 {
		flush(start, len(data))
	}
	return out
}
