package extract

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cast-extractor/internal/cast"
	"cast-extractor/internal/diag"
	"cast-extractor/internal/payload"
	"cast-extractor/internal/testsupport"
)

// movie builds one library of five members: styled text, sound, a script
// with a string pool, a bitmap whose BITD is not decoded, and a field whose
// rich text has no start marker. A plain text table is left unlinked.
func movie(order binary.ByteOrder) *testsupport.Movie {
	m := testsupport.NewMovie()
	m.Order = order
	text := m.Add("CASt", testsupport.Member(uint32(cast.TypeText), "Greeting"))
	sound := m.Add("CASt", testsupport.Member(uint32(cast.TypeSound), "03d047v0"))
	script := m.Add("CASt", testsupport.Member(uint32(cast.TypeScript), "Main"))
	bitmap := m.Add("CASt", testsupport.Member(uint32(cast.TypeBitmap), "Logo"))
	field := m.Add("CASt", testsupport.Member(uint32(cast.TypeField), "Broken"))
	stxt := m.Add("STXT", testsupport.Styled("Bonjour"))
	snd := m.Add("snd ", []byte{1, 2, 3, 4})
	lscr := m.Add("Lscr", m.ScriptPool(16, "on exitFrame", "go the frame"))
	bitd := m.Add("BITD", make([]byte, 8))
	rte := m.Add("RTE0", []byte("\x00\x01no marker here at all"))
	m.Add("TXTS", testsupport.Styled("Orphan text"))
	lib := m.Add("CAS*", testsupport.CastLibrary(text, sound, script, bitmap, field))
	m.Add("KEY*", m.KeyTable(
		testsupport.KeyEntry{Resource: stxt, Owner: text, Tag: "STXT"},
		testsupport.KeyEntry{Resource: snd, Owner: sound, Tag: "snd "},
		testsupport.KeyEntry{Resource: lscr, Owner: script, Tag: "Lscr"},
		testsupport.KeyEntry{Resource: bitd, Owner: bitmap, Tag: "BITD"},
		testsupport.KeyEntry{Resource: rte, Owner: field, Tag: "RTE0"},
		testsupport.KeyEntry{Resource: lib, Owner: cast.FirstLibraryID, Tag: "CAS*"},
	))
	return m
}

func TestBytesIndexed(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		t.Run(order.String(), func(t *testing.T) {
			buf, _ := movie(order).Build()
			rep := Bytes("movie.dir", buf, DefaultOptions())

			if rep.Status != StatusOK || rep.Mode != ModeIndexed {
				t.Fatalf("status %q mode %q: %v", rep.Status, rep.Mode, rep.Diagnostics)
			}
			if rep.ChunkTypes["CASt"] != 5 {
				t.Errorf("CASt count: got %d", rep.ChunkTypes["CASt"])
			}
			if len(rep.Libraries) != 1 || len(rep.Libraries[0].Members) != 5 {
				t.Fatalf("libraries: got %+v", rep.Libraries)
			}
			ms := rep.Libraries[0].Members

			if ms[0].Outcome != OutcomeDecoded || ms[0].Texts[0].Text.Text != "Bonjour" {
				t.Errorf("text member: got %+v", ms[0])
			}
			if ms[1].Outcome != OutcomeDecoded || len(ms[1].Sounds) != 1 || ms[1].Sounds[0].Length != 4 {
				t.Errorf("sound member: got %+v", ms[1])
			}
			if ms[2].Outcome != OutcomeFallback || ms[2].Scripts[0].Script.Strings()[0].Text != "on exitFrame" {
				t.Errorf("script member: got %+v", ms[2])
			}
			if ms[3].Outcome != OutcomeNoContent || len(ms[3].Skipped) != 1 || ms[3].Skipped[0].FourCC != "BITD" {
				t.Errorf("bitmap member: got %+v", ms[3])
			}
			field := ms[4]
			if field.Outcome != OutcomeFallback || field.Texts[0].Text.Kind != payload.KindUnknown {
				t.Errorf("field member: got %+v", field)
			}
			if len(field.Texts[0].Candidates) == 0 || field.Texts[0].Candidates[0].Text != "no marker here at all" {
				t.Errorf("field salvage: got %+v", field.Texts[0].Candidates)
			}

			if len(rep.Texts) != 1 || rep.Texts[0].Text.Text != "Orphan text" {
				t.Errorf("orphan texts: got %+v", rep.Texts)
			}

			s := rep.Summary
			if s.Members != 5 || s.Decoded != 2 || s.Fallback != 2 || s.NoContent != 1 || s.Failed != 0 {
				t.Errorf("summary: got %+v", s)
			}
			if len(rep.Diagnostics) != 1 || rep.Diagnostics[0].Kind != diag.KindDecodeFailure {
				t.Errorf("diagnostics: got %v", rep.Diagnostics)
			}
		})
	}
}

func TestIndexMismatchDegradesToRawDump(t *testing.T) {
	m := movie(binary.BigEndian)
	m.ImapTag = "XXXX"
	buf, _ := m.Build()

	rep := Bytes("bad-index.dir", buf, DefaultOptions())
	if rep.Status != StatusPartial || rep.Mode != ModeRawDump {
		t.Fatalf("status %q mode %q", rep.Status, rep.Mode)
	}
	if len(rep.Chunks) == 0 {
		t.Fatal("raw dump is empty")
	}
	for i, c := range rep.Chunks {
		if !c.Synthetic || c.ID != uint32(i+1) {
			t.Errorf("chunk %d: got %+v", i, c)
		}
	}
	if rep.Chunks[0].FourCC != "XXXX" {
		t.Errorf("first chunk: got %q", rep.Chunks[0].FourCC)
	}
	if rep.Summary.Fatal != 0 {
		t.Errorf("fatal diagnostics: got %d", rep.Summary.Fatal)
	}
	if n := countKind(rep, diag.KindIndexMismatch); n != 1 {
		t.Errorf("index mismatch diagnostics: got %d", n)
	}

	salvaged := map[string]bool{}
	for _, ct := range rep.Texts {
		if ct.Text.OK() {
			salvaged[ct.Text.Text] = true
		}
	}
	if !salvaged["Bonjour"] || !salvaged["Orphan text"] {
		t.Errorf("raw dump text salvage: got %v", salvaged)
	}
}

func TestMemoryMapMismatchDegradesToRawDump(t *testing.T) {
	m := movie(binary.LittleEndian)
	m.MmapTag = "junk"
	buf, _ := m.Build()

	rep := Bytes("bad-map.dxr", buf, DefaultOptions())
	if rep.Status != StatusPartial || rep.Mode != ModeRawDump {
		t.Fatalf("status %q mode %q", rep.Status, rep.Mode)
	}
	if n := countKind(rep, diag.KindMemoryMapMismatch); n != 1 {
		t.Errorf("memory map mismatch diagnostics: got %d", n)
	}
}

func TestMalformedHeaderFails(t *testing.T) {
	rep := Bytes("junk.bin", []byte("JUNKJUNKJUNKJUNK"), DefaultOptions())
	if rep.Status != StatusFailed {
		t.Fatalf("status: got %q", rep.Status)
	}
	if rep.Summary.Fatal != 1 || rep.Diagnostics[0].Kind != diag.KindMalformedHeader {
		t.Errorf("diagnostics: got %v", rep.Diagnostics)
	}
}

func TestTruncatedFileIsPartial(t *testing.T) {
	m := movie(binary.BigEndian)
	m.Add("STXT", testsupport.Styled("hello world!"))
	buf, _ := m.Build()
	buf = buf[:len(buf)-4]

	rep := Bytes("short.dir", buf, DefaultOptions())
	if rep.Status != StatusPartial || rep.Mode != ModeIndexed {
		t.Fatalf("status %q mode %q", rep.Status, rep.Mode)
	}
	if countKind(rep, diag.KindOutOfBoundsChunk) == 0 {
		t.Error("no out-of-bounds diagnostic for the cut chunk")
	}
	for _, c := range rep.Chunks {
		if c.Offset+8+uint64(c.Length) > uint64(len(buf)) {
			t.Errorf("chunk %d addresses past end of file", c.ID)
		}
	}
	if rep.Summary.Members != 5 {
		t.Errorf("members: got %d", rep.Summary.Members)
	}
}

func TestMemberFailureIsIsolated(t *testing.T) {
	m := testsupport.NewMovie()
	text := m.Add("CASt", testsupport.Member(uint32(cast.TypeText), "Ok"))
	stxt := m.Add("STXT", testsupport.Styled("still here"))
	m.Add("CAS*", testsupport.CastLibrary(999, text))
	m.Add("KEY*", m.KeyTable(testsupport.KeyEntry{Resource: stxt, Owner: text, Tag: "STXT"}))
	buf, _ := m.Build()

	rep := Bytes("isolated.dir", buf, DefaultOptions())
	ms := rep.Libraries[0].Members
	if len(ms) != 2 {
		t.Fatalf("members: got %d", len(ms))
	}
	if ms[0].Outcome != OutcomeFailed {
		t.Errorf("missing definition: got %q", ms[0].Outcome)
	}
	if ms[1].Outcome != OutcomeDecoded || ms[1].Texts[0].Text.Text != "still here" {
		t.Errorf("sibling: got %+v", ms[1])
	}
	if countKind(rep, diag.KindUnresolvedLink) != 1 {
		t.Errorf("diagnostics: got %v", rep.Diagnostics)
	}
}

func TestBatchContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	good, _ := movie(binary.BigEndian).Build()
	goodPath := filepath.Join(dir, "good.dir")
	badPath := filepath.Join(dir, "bad.dir")
	if err := os.WriteFile(goodPath, good, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(badPath, []byte("not a movie"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.dir")

	paths := []string{badPath, missing, goodPath}
	reps := Batch(context.Background(), paths, DefaultOptions(), BatchOptions{Workers: 2, Timeout: 10 * time.Second})
	if len(reps) != 3 {
		t.Fatalf("reports: got %d", len(reps))
	}
	want := []Status{StatusFailed, StatusFailed, StatusOK}
	for i, r := range reps {
		if r.File != paths[i] || r.Status != want[i] {
			t.Errorf("report %d: file %q status %q, want %q", i, r.File, r.Status, want[i])
		}
	}
	if reps[1].Error == "" {
		t.Error("missing file has no error message")
	}
}

func countKind(rep *Report, k diag.Kind) int {
	n := 0
	for _, d := range rep.Diagnostics {
		if d.Kind == k {
			n++
		}
	}
	return n
}
