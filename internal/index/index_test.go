package index

import (
	"encoding/binary"
	"errors"
	"testing"

	"cast-extractor/internal/container"
	"cast-extractor/internal/diag"
	"cast-extractor/internal/testsupport"
)

func build(t *testing.T, m *testsupport.Movie) (*container.Handle, testsupport.Layout) {
	t.Helper()
	buf, lay := m.Build()
	h, err := container.Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return h, lay
}

func TestBuildResolvesEntries(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		m := testsupport.NewMovie()
		m.Order = order
		stxt := m.Add("STXT", testsupport.Styled("hello"))
		snd := m.Add("snd ", []byte{1, 2, 3, 4})
		h, lay := build(t, m)

		tbl, diags, err := Build(h)
		if err != nil {
			t.Fatalf("%v: Build: %v", order, err)
		}
		if len(diags) != 0 {
			t.Errorf("%v: unexpected diagnostics %v", order, diags)
		}

		e, ok := tbl.Lookup(stxt)
		if !ok {
			t.Fatalf("%v: STXT entry %d missing", order, stxt)
		}
		if e.FourCC != "STXT" || e.DataLength != 17 {
			t.Errorf("%v: STXT entry: got %+v", order, e)
		}
		if e.DataOffset != uint64(lay.ChunkPos[stxt]+8) {
			t.Errorf("%v: data offset: got %d, want %d", order, e.DataOffset, lay.ChunkPos[stxt]+8)
		}
		if got := tbl.ByType("snd "); len(got) != 1 || got[0].ID != snd {
			t.Errorf("%v: ByType(snd): got %+v", order, got)
		}
	}
}

func TestBuildDropsOutOfBoundsEntries(t *testing.T) {
	m := testsupport.NewMovie()
	good := m.Add("STXT", testsupport.Styled("ok"))
	bad := m.Add("STXT", testsupport.Styled("too long"))
	buf, lay := m.Build()
	m.PutU32(buf, lay.EntryPos[bad]+4, 1<<20)

	h, err := container.Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tbl, diags, err := Build(h)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, ok := tbl.Lookup(bad); ok {
		t.Error("out-of-bounds entry kept")
	}
	if _, ok := tbl.Lookup(good); !ok {
		t.Error("in-bounds entry dropped")
	}
	if len(diags) != 1 || diags[0].Kind != diag.KindOutOfBoundsChunk || diags[0].Chunk == nil || *diags[0].Chunk != bad {
		t.Errorf("diagnostics: got %+v", diags)
	}

	for _, e := range tbl.Entries() {
		if e.DataOffset+uint64(e.DataLength) > uint64(h.Size()) {
			t.Errorf("entry %d addresses past end of file", e.ID)
		}
	}
}

func TestBuildIndexMismatch(t *testing.T) {
	m := testsupport.NewMovie()
	m.ImapTag = "XXXX"
	h, _ := build(t, m)

	_, _, err := Build(h)
	if !errors.Is(err, diag.ErrIndexMismatch) {
		t.Fatalf("got %v, want ErrIndexMismatch", err)
	}
}

func TestBuildMemoryMapMismatch(t *testing.T) {
	m := testsupport.NewMovie()
	m.MmapTag = "junk"
	h, _ := build(t, m)

	_, _, err := Build(h)
	if !errors.Is(err, diag.ErrMemoryMapMismatch) {
		t.Fatalf("got %v, want ErrMemoryMapMismatch", err)
	}
}

func TestBuildSkipsFreeSlots(t *testing.T) {
	m := testsupport.NewMovie()
	free := m.Add("free", nil)
	h, _ := build(t, m)

	tbl, _, err := Build(h)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := tbl.Lookup(free); ok {
		t.Error("free slot resolved as a chunk")
	}
}

func TestBuildReportsRootEntryByID(t *testing.T) {
	m := testsupport.NewMovie()
	m.Add("STXT", testsupport.Styled("ok"))
	buf, lay := m.Build()
	m.PutU32(buf, lay.EntryPos[testsupport.IDRoot]+4, 1<<20)

	h, err := container.Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, diags, err := Build(h)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(diags) != 1 || diags[0].Chunk == nil || *diags[0].Chunk != testsupport.IDRoot {
		t.Errorf("diagnostics: got %+v", diags)
	}
}
