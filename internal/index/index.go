// Package index builds the authoritative chunk table of a container from its
// imap and mmap chunks.
package index

import (
	"fmt"
	"sort"

	"cast-extractor/internal/container"
	"cast-extractor/internal/diag"

	"github.com/rs/zerolog/log"
)

const (
	TagIndex     = "imap"
	TagMemoryMap = "mmap"

	defaultEntrySize = 20
	minEntrySize     = 16
)

// Entry is one resolved chunk: its id, tag, and the byte range of its payload.
type Entry struct {
	ID         uint32 `json:"id"`
	FourCC     string `json:"fourcc"`
	Offset     uint64 `json:"offset"`
	DataOffset uint64 `json:"data_offset"`
	DataLength uint32 `json:"data_length"`
	Flags      uint32 `json:"flags,omitempty"`
}

// Table maps chunk ids to entries. It is immutable once built.
type Table struct {
	entries map[uint32]Entry
	order   []uint32
}

// Lookup returns the entry for id.
func (t *Table) Lookup(id uint32) (Entry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// Entries returns all entries in ascending id order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.entries[id])
	}
	return out
}

// ByType returns the entries tagged fourCC in ascending id order.
func (t *Table) ByType(fourCC string) []Entry {
	var out []Entry
	for _, id := range t.order {
		if e := t.entries[id]; e.FourCC == fourCC {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.order) }

// Build reads the index chunk at the fixed offset, follows it to the memory
// map and parses one record per entry. A tag mismatch on either chunk returns
// an error wrapping diag.ErrIndexMismatch or diag.ErrMemoryMapMismatch; the
// caller is expected to degrade. Records addressing bytes past the end of the
// file are dropped and reported as diagnostics.
func Build(h *container.Handle) (*Table, []diag.Diagnostic, error) {
	imap, err := h.ChunkAt(container.HeaderSize)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read index chunk: %v", diag.ErrIndexMismatch, err)
	}
	if imap.FourCC != TagIndex {
		return nil, nil, fmt.Errorf("%w: expected %q at %d, found %q", diag.ErrIndexMismatch, TagIndex, imap.Offset, imap.FourCC)
	}

	cur, err := h.Cursor().At(imap.PayloadOffset)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", diag.ErrIndexMismatch, err)
	}
	if _, err := cur.U32(); err != nil {
		return nil, nil, fmt.Errorf("%w: map count: %v", diag.ErrIndexMismatch, err)
	}
	mmapOff, err := cur.U32()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: memory map offset: %v", diag.ErrIndexMismatch, err)
	}

	mmap, err := h.ChunkAt(int(mmapOff))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read memory map at %d: %v", diag.ErrMemoryMapMismatch, mmapOff, err)
	}
	if mmap.FourCC != TagMemoryMap {
		return nil, nil, fmt.Errorf("%w: expected %q at %d, found %q", diag.ErrMemoryMapMismatch, TagMemoryMap, mmapOff, mmap.FourCC)
	}

	return parseMemoryMap(h, mmap)
}

func parseMemoryMap(h *container.Handle, mmap container.ChunkHeader) (*Table, []diag.Diagnostic, error) {
	cur, err := h.Cursor().At(mmap.PayloadOffset)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", diag.ErrMemoryMapMismatch, err)
	}
	headerLen, err1 := cur.U16()
	entryLen, err2 := cur.U16()
	_, err3 := cur.I32()
	used, err4 := cur.I32()
	for _, e := range []error{err1, err2, err3, err4} {
		if e != nil {
			return nil, nil, fmt.Errorf("%w: memory map header: %v", diag.ErrMemoryMapMismatch, e)
		}
	}
	if entryLen < minEntrySize {
		log.Warn().Uint16("entry_len", entryLen).Msg("Memory map entry length too small, assuming default")
		entryLen = defaultEntrySize
	}
	if used < 0 {
		used = 0
	}

	t := &Table{entries: make(map[uint32]Entry)}
	var diags []diag.Diagnostic
	size := uint64(h.Size())
	base := mmap.PayloadOffset + int(headerLen)

	for i := 0; i < int(used); i++ {
		rec, err := cur.At(base + i*int(entryLen))
		if err == nil && rec.Remaining() < minEntrySize {
			err = fmt.Errorf("record %d incomplete", i)
		}
		if err != nil {
			d := diag.New(fmt.Errorf("%w: memory map ends after %d of %d records", diag.ErrTruncated, i, used))
			d.Offset = int64(base + i*int(entryLen))
			diags = append(diags, d)
			break
		}
		tag, _ := rec.FourCC()
		length, _ := rec.U32()
		offset, _ := rec.U32()
		flags, _ := rec.U32()

		if tag == "free" || tag == "junk" {
			continue
		}

		id := uint32(i)
		dataOff := uint64(offset) + container.ChunkHeaderSize
		if dataOff+uint64(length) > size {
			d := diag.New(fmt.Errorf("%w: chunk %d %q at %d+%d exceeds file size %d",
				diag.ErrOutOfBoundsChunk, id, tag, dataOff, length, size))
			d.OnChunk(id)
			d.Offset = int64(offset)
			diags = append(diags, d)
			continue
		}
		t.entries[id] = Entry{
			ID:         id,
			FourCC:     tag,
			Offset:     uint64(offset),
			DataOffset: dataOff,
			DataLength: length,
			Flags:      flags,
		}
		t.order = append(t.order, id)
	}
	sort.Slice(t.order, func(a, b int) bool { return t.order[a] < t.order[b] })

	log.Debug().Int("entries", len(t.order)).Int("dropped", len(diags)).Msg("Built chunk index")
	return t, diags, nil
}

// Payload returns the bytes addressed by e.
func Payload(h *container.Handle, e Entry) ([]byte, error) {
	return h.Slice(int(e.DataOffset), int(e.DataLength))
}
