package scan

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"cast-extractor/internal/textutil"
)

func pascal(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

func TestReadPascalLengthBounds(t *testing.T) {
	tests := []struct {
		name string
		n    int
		ok   bool
	}{
		{"zero", 0, false},
		{"max", 200, true},
		{"over max", 201, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte{byte(tt.n)}, bytes.Repeat([]byte("a"), 250)...)
			raw, ok := ReadPascal(data, 0, 1, textutil.TextGate)
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if ok && len(raw) != tt.n {
				t.Errorf("length: got %d, want %d", len(raw), tt.n)
			}
		})
	}
}

func TestReadPascalMaxLengthEndsAtBoundary(t *testing.T) {
	data := append([]byte{200}, bytes.Repeat([]byte("b"), 200)...)
	if len(data) != 201 {
		t.Fatalf("fixture: got %d bytes", len(data))
	}
	raw, ok := ReadPascal(data, 0, 1, textutil.TextGate)
	if !ok || len(raw) != 200 {
		t.Fatalf("got %d bytes, ok %v", len(raw), ok)
	}
	if _, ok := ReadPascal(data[:200], 0, 1, textutil.TextGate); ok {
		t.Error("accepted a 200-byte string with one byte missing")
	}
}

func TestReadPascalStaysInBounds(t *testing.T) {
	data := []byte{10, 'a', 'b', 'c'}
	if _, ok := ReadPascal(data, 0, 1, textutil.TextGate); ok {
		t.Error("accepted a string running past the end of the data")
	}
	if _, ok := ReadPascal(data, 4, 1, textutil.TextGate); ok {
		t.Error("accepted an offset past the end of the data")
	}
}

func TestPascalStringsFindsNames(t *testing.T) {
	data := []byte{0xff, 0x00}
	data = append(data, pascal("03d047v0")...)
	data = append(data, 0x00, 0x00)
	data = append(data, pascal("hi")...)

	got := PascalStrings(data, 100, 5, textutil.Latin1)
	if len(got) != 1 {
		t.Fatalf("candidates: got %+v", got)
	}
	c := got[0]
	if c.Text != "03d047v0" || c.Offset != 102 || c.Kind != KindPascal {
		t.Errorf("candidate: got %+v", c)
	}
	if c.Confidence != 0.5 {
		t.Errorf("confidence: got %v, want 0.5", c.Confidence)
	}
}

func TestNullTerminated(t *testing.T) {
	data := []byte("\x01\x02Hello world\x00abc\x00longer run\x01more text")
	got := NullTerminated(data, 0, 5, textutil.Latin1)
	if len(got) != 1 {
		t.Fatalf("candidates: got %+v", got)
	}
	if got[0].Text != "Hello world" || got[0].Offset != 2 {
		t.Errorf("candidate: got %+v", got[0])
	}
}

func TestPrintableRuns(t *testing.T) {
	data := []byte("\x00\x00Bonjour \xe0 tous\x00\x00123456789012345\x00")
	got := PrintableRuns(data, 0, 10, textutil.Latin1)
	if len(got) != 1 {
		t.Fatalf("candidates: got %+v", got)
	}
	if got[0].Text != "Bonjour à tous" {
		t.Errorf("text: got %q", got[0].Text)
	}
}

func TestPrintableRunsFollowDecoder(t *testing.T) {
	got := PrintableRuns([]byte("\x00Het caf\x8e is \x8e\x8en grote zaak\x00"), 0, 10, textutil.MacRoman)
	if len(got) != 1 || got[0].Text != "Het café is één grote zaak" || got[0].Offset != 1 {
		t.Errorf("macroman: got %+v", got)
	}

	// 0xC0-0xC2 are punctuation in Mac Roman and end the run.
	got = PrintableRuns([]byte("Bonjour tous\xc0\xc1\xc2Salut les amis"), 0, 10, textutil.MacRoman)
	if len(got) != 2 || got[0].Text != "Bonjour tous" || got[1].Text != "Salut les amis" {
		t.Errorf("macroman symbols: got %+v", got)
	}
}

// poolChunk lays out an almost-valid table at 8 whose only string fails the
// printable gate, and a valid two-string table at 16. The header read at 12
// is the first offset of the table at 8 and claims 60 entries, which do not
// fit in the chunk.
func poolChunk(order binary.ByteOrder) []byte {
	data := make([]byte, 64)
	order.PutUint32(data[8:], 1)
	order.PutUint32(data[12:], 60)
	order.PutUint32(data[16:], 2)
	order.PutUint32(data[20:], 28)
	order.PutUint32(data[24:], 34)
	copy(data[28:], pascal("Hello"))
	copy(data[34:], pascal("World"))
	copy(data[60:], []byte{3, 0x01, 0x02, 0x03})
	return data
}

func TestScriptPoolPicksFirstCompleteTable(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		t.Run(order.String(), func(t *testing.T) {
			pool, rejected := ScriptPool(poolChunk(order), 1000, order, textutil.Latin1)
			if pool == nil {
				t.Fatalf("no pool found: %v", rejected)
			}
			if pool.HeaderOffset != 16 {
				t.Errorf("header offset: got %d, want 16", pool.HeaderOffset)
			}
			if len(pool.Strings) != 2 || pool.Strings[0].Text != "Hello" || pool.Strings[1].Text != "World" {
				t.Errorf("strings: got %+v", pool.Strings)
			}
			if pool.Strings[0].Offset != 1028 {
				t.Errorf("offset: got %d, want 1028", pool.Strings[0].Offset)
			}
			if len(rejected) != 2 {
				t.Fatalf("rejected: got %d, want 2", len(rejected))
			}
			var pe *PoolError
			if !errors.As(rejected[0], &pe) || pe.Strategy != "header@8" {
				t.Errorf("first rejection: got %v", rejected[0])
			}
		})
	}
}

func TestScriptPoolRawWhenNothingFits(t *testing.T) {
	data := bytes.Repeat([]byte{0xff}, 80)
	pool, rejected := ScriptPool(data, 0, binary.BigEndian, textutil.Latin1)
	if pool != nil {
		t.Fatalf("unexpected pool: %+v", pool)
	}
	if len(rejected) != len(PoolStrategies) {
		t.Errorf("rejected: got %d, want %d", len(rejected), len(PoolStrategies))
	}
}

func TestStrategyIsAllOrNothing(t *testing.T) {
	data := make([]byte, 48)
	binary.BigEndian.PutUint32(data[8:], 2)
	binary.BigEndian.PutUint32(data[12:], 20)
	binary.BigEndian.PutUint32(data[16:], 47)
	copy(data[20:], pascal("valid"))

	s := Strategy{Name: "test", HeaderOffset: 8}
	if pool, err := s.Try(data, 0, binary.BigEndian, textutil.Latin1); err == nil {
		t.Fatalf("partial table accepted: %+v", pool)
	}
}

func TestContextFindsNeighbours(t *testing.T) {
	data := []byte("\x00\x00")
	data = append(data, pascal("Member name")...)
	data = append(data, 0x00, 0x00)
	data = append(data, "snd "...)
	data = append(data, make([]byte, 40)...)
	data = append(data, "snd "...)

	got := Context(data, []byte("snd "), 20, 5, textutil.Latin1)
	if len(got) != 2 {
		t.Fatalf("matches: got %d, want 2", len(got))
	}
	if got[0].NeedleOffset != 16 {
		t.Errorf("needle offset: got %d", got[0].NeedleOffset)
	}
	found := false
	for _, s := range got[0].Strings {
		if s.Text == "Member name" {
			found = true
		}
	}
	if !found {
		t.Errorf("member name not recovered: %+v", got[0].Strings)
	}
}

func TestHexDump(t *testing.T) {
	out := HexDump([]byte("ABCDEFGHIJKLMNOP\x00Q"), 0x10)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "00000010  41 42") || !strings.HasSuffix(lines[0], "ABCDEFGHIJKLMNOP") {
		t.Errorf("first line: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ".Q") {
		t.Errorf("second line: %q", lines[1])
	}
}
