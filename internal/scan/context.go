package scan

import (
	"bytes"
	"fmt"
	"strings"

	"cast-extractor/internal/textutil"
)

// ContextMatch is one occurrence of a needle with the strings recovered from
// the window around it.
type ContextMatch struct {
	NeedleOffset uint64            `json:"needle_offset"`
	WindowStart  uint64            `json:"window_start"`
	WindowEnd    uint64            `json:"window_end"`
	Strings      []StringCandidate `json:"strings"`
}

// Context finds every occurrence of needle in data and scans radius bytes on
// either side for Pascal and null-terminated strings.
func Context(data, needle []byte, radius, minLen int, dec textutil.Decoder) []ContextMatch {
	if len(needle) == 0 {
		return nil
	}
	var out []ContextMatch
	for from := 0; from < len(data); {
		i := bytes.Index(data[from:], needle)
		if i < 0 {
			break
		}
		at := from + i
		start := max(0, at-radius)
		end := min(len(data), at+len(needle)+radius)
		window := data[start:end]

		strs := PascalStrings(window, uint64(start), minLen, dec)
		strs = append(strs, NullTerminated(window, uint64(start), minLen, dec)...)
		out = append(out, ContextMatch{
			NeedleOffset: uint64(at),
			WindowStart:  uint64(start),
			WindowEnd:    uint64(end),
			Strings:      strs,
		})
		from = at + 1
	}
	return out
}

// HexDump renders data as offset, hex and ASCII columns, 16 bytes per line.
func HexDump(data []byte, base uint64) string {
	var sb strings.Builder
	for i := 0; i < len(data); i += 16 {
		line := data[i:min(i+16, len(data))]
		hex := make([]string, len(line))
		ascii := make([]byte, len(line))
		for j, b := range line {
			hex[j] = fmt.Sprintf("%02x", b)
			if b >= 0x20 && b < 0x7f {
				ascii[j] = b
			} else {
				ascii[j] = '.'
			}
		}
		fmt.Fprintf(&sb, "%08x  %-47s  %s\n", base+uint64(i), strings.Join(hex, " "), ascii)
	}
	return sb.String()
}
