// Package cast resolves cast libraries and their members from the KEY*, CAS*,
// CASt and MCsL chunks of an indexed container.
package cast

import (
	"encoding/binary"
	"errors"
	"fmt"

	"cast-extractor/internal/bytecursor"
	"cast-extractor/internal/container"
	"cast-extractor/internal/diag"
	"cast-extractor/internal/index"
	"cast-extractor/internal/textutil"

	"github.com/rs/zerolog/log"
)

const (
	TagKeyTable    = "KEY*"
	TagCastLibrary = "CAS*"
	TagMember      = "CASt"
	TagLibraryList = "MCsL"

	// FirstLibraryID is the owner id of the internal cast library in KEY*.
	FirstLibraryID = 1024
)

type keyEntry struct {
	resource uint32
	owner    uint32
	fourCC   string
}

// Resolve builds every cast library in the file. Problems with a single
// library, member, or link are recorded as diagnostics and never abort the
// remaining work. The result is deterministic for a given file.
func Resolve(h *container.Handle, tbl *index.Table, dec textutil.Decoder) ([]Library, []diag.Diagnostic) {
	r := &resolver{h: h, tbl: tbl, dec: dec}
	r.loadKeys()

	names := r.libraryNames()
	libs := tbl.ByType(TagCastLibrary)
	out := make([]Library, 0, len(libs))
	for i, e := range libs {
		libID := r.libraryOwner(e.ID, i)
		name := defaultLibraryName(libID)
		if n, ok := names[int(libID-FirstLibraryID)]; ok && n != "" {
			name = n
		}
		out = append(out, r.library(e, libID, name))
	}

	log.Debug().Int("libraries", len(out)).Int("diagnostics", len(r.diags)).Msg("Resolved cast libraries")
	return out, r.diags
}

type resolver struct {
	h     *container.Handle
	tbl   *index.Table
	dec   textutil.Decoder
	keys  []keyEntry
	owned map[uint32][]keyEntry
	diags []diag.Diagnostic
}

func (r *resolver) note(err error, chunk, member uint32) {
	d := diag.New(err)
	d.OnChunk(chunk)
	d.Member = member
	r.diags = append(r.diags, d)
}

func (r *resolver) loadKeys() {
	r.owned = make(map[uint32][]keyEntry)

	tables := r.tbl.ByType(TagKeyTable)
	if len(tables) == 0 {
		return
	}
	e := tables[0]
	data, err := index.Payload(r.h, e)
	if err != nil {
		r.note(fmt.Errorf("%w: key table: %v", diag.ErrDecodeFailure, err), e.ID, 0)
		return
	}

	c := bytecursor.New(data, r.h.Order())
	headerLen, err1 := c.U16()
	entryLen, err2 := c.U16()
	_, err3 := c.U32()
	used, err4 := c.U32()
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		r.note(fmt.Errorf("%w: key table header: %v", diag.ErrDecodeFailure, err), e.ID, 0)
		return
	}
	if entryLen < 12 {
		entryLen = 12
	}

	for i := 0; i < int(used); i++ {
		rec, err := c.At(int(headerLen) + i*int(entryLen))
		if err == nil && rec.Remaining() < 12 {
			err = fmt.Errorf("record %d incomplete", i)
		}
		if err != nil {
			r.note(fmt.Errorf("%w: key table ends after %d of %d records", diag.ErrTruncated, i, used), e.ID, 0)
			break
		}
		res, _ := rec.U32()
		owner, _ := rec.U32()
		tag, _ := rec.FourCC()
		k := keyEntry{resource: res, owner: owner, fourCC: tag}
		r.keys = append(r.keys, k)
		r.owned[owner] = append(r.owned[owner], k)
	}
}

// libraryOwner finds the library id owning a CAS* chunk, falling back to
// position order when the key table does not mention it.
func (r *resolver) libraryOwner(chunkID uint32, pos int) uint32 {
	for _, k := range r.keys {
		if k.resource == chunkID && k.fourCC == TagCastLibrary && k.owner >= FirstLibraryID {
			return k.owner
		}
	}
	return FirstLibraryID + uint32(pos)
}

func defaultLibraryName(libID uint32) string {
	if libID == FirstLibraryID {
		return "Internal"
	}
	return fmt.Sprintf("Cast %d", libID-FirstLibraryID+1)
}

// libraryNames reads MCsL, which lists library names in library order.
func (r *resolver) libraryNames() map[int]string {
	lists := r.tbl.ByType(TagLibraryList)
	if len(lists) == 0 {
		return nil
	}
	e := lists[0]
	data, err := index.Payload(r.h, e)
	if err == nil {
		var items [][]byte
		items, err = parseList(data)
		if err == nil {
			names := make(map[int]string, len(items))
			for i, it := range items {
				names[i] = r.pascal(it)
			}
			return names
		}
	}
	r.note(fmt.Errorf("%w: library list: %v", diag.ErrDecodeFailure, err), e.ID, 0)
	return nil
}

func (r *resolver) library(e index.Entry, libID uint32, name string) Library {
	lib := Library{ID: libID, Name: name, ChunkID: e.ID, Members: make(map[uint32]Member)}

	data, err := index.Payload(r.h, e)
	if err != nil {
		r.note(fmt.Errorf("%w: cast library %q: %v", diag.ErrDecodeFailure, name, err), e.ID, 0)
		return lib
	}
	if len(data)%4 != 0 {
		r.note(fmt.Errorf("%w: cast library %q has %d trailing bytes", diag.ErrTruncated, name, len(data)%4), e.ID, 0)
	}

	for slot := 0; slot+4 <= len(data); slot += 4 {
		castID := binary.BigEndian.Uint32(data[slot:])
		if castID == 0 {
			continue
		}
		num := uint32(slot/4 + 1)
		lib.Members[num] = r.member(num, castID)
	}
	return lib
}

func (r *resolver) member(num, castID uint32) Member {
	m := Member{ID: num, ChunkID: castID, Linked: []uint32{}}

	e, ok := r.tbl.Lookup(castID)
	if !ok || e.FourCC != TagMember {
		reason := "definition chunk not in index"
		if ok {
			reason = fmt.Sprintf("definition chunk is %q", e.FourCC)
		}
		m.Dangling = append(m.Dangling, DanglingLink{ID: castID, FourCC: TagMember, Reason: reason})
		r.note(fmt.Errorf("%w: member %d: %s", diag.ErrUnresolvedLink, num, reason), castID, num)
		return m
	}

	if err := r.parseDefinition(e, &m); err != nil {
		r.note(fmt.Errorf("%w: member %d definition: %v", diag.ErrDecodeFailure, num, err), castID, num)
	}

	for _, k := range r.owned[castID] {
		if reason := r.checkLink(k); reason != "" {
			m.Dangling = append(m.Dangling, DanglingLink{ID: k.resource, FourCC: k.fourCC, Reason: reason})
			r.note(fmt.Errorf("%w: member %d link %d: %s", diag.ErrUnresolvedLink, num, k.resource, reason), k.resource, num)
			continue
		}
		m.Linked = append(m.Linked, k.resource)
	}
	return m
}

// parseDefinition reads the CASt layout: type, info length, specific length,
// info list block whose item 1 is the member name.
func (r *resolver) parseDefinition(e index.Entry, m *Member) error {
	data, err := index.Payload(r.h, e)
	if err != nil {
		return err
	}
	c := bytecursor.New(data, binary.BigEndian)
	typ, err := c.U32()
	if err != nil {
		return err
	}
	m.Type = CastType(typ)

	infoLen, err := c.U32()
	if err != nil {
		return err
	}
	if _, err := c.U32(); err != nil {
		return err
	}
	if infoLen == 0 {
		return nil
	}
	info, err := c.Bytes(int(infoLen))
	if err != nil {
		return err
	}
	items, err := parseList(info)
	if err != nil {
		return err
	}
	if len(items) > 1 {
		m.Name = r.pascal(items[1])
	}
	return nil
}

// checkLink verifies a key-table link against the index and the chunk header
// on disk. An empty result means the link resolves.
func (r *resolver) checkLink(k keyEntry) string {
	e, ok := r.tbl.Lookup(k.resource)
	if !ok {
		return "not in index"
	}
	if e.FourCC != k.fourCC {
		return fmt.Sprintf("index has %q, key table expects %q", e.FourCC, k.fourCC)
	}
	hdr, err := r.h.ChunkAt(int(e.Offset))
	if err != nil {
		return fmt.Sprintf("chunk header unreadable: %v", err)
	}
	if hdr.FourCC != e.FourCC {
		return fmt.Sprintf("resource id mismatch: chunk header is %q, index has %q", hdr.FourCC, e.FourCC)
	}
	return ""
}

func (r *resolver) pascal(item []byte) string {
	if len(item) == 0 {
		return ""
	}
	n := int(item[0])
	if n > len(item)-1 {
		n = len(item) - 1
	}
	return r.dec.Decode(item[1 : 1+n])
}

// parseList splits a list block: u32 offset to the table, u16 count, count
// u32 item offsets, u32 items length, then the items.
func parseList(data []byte) ([][]byte, error) {
	c := bytecursor.New(data, binary.BigEndian)
	tableOff, err := c.U32()
	if err != nil {
		return nil, err
	}
	if err := c.Seek(int(tableOff)); err != nil {
		return nil, err
	}
	count, err := c.U16()
	if err != nil {
		return nil, err
	}
	offsets := make([]uint32, count)
	for i := range offsets {
		if offsets[i], err = c.U32(); err != nil {
			return nil, err
		}
	}
	itemsLen, err := c.U32()
	if err != nil {
		return nil, err
	}
	if int(itemsLen) > c.Remaining() {
		itemsLen = uint32(c.Remaining())
	}
	items, _ := c.Bytes(int(itemsLen))

	out := make([][]byte, count)
	for i, off := range offsets {
		end := itemsLen
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if off > end || end > itemsLen {
			return nil, fmt.Errorf("list item %d spans %d..%d of %d", i, off, end, itemsLen)
		}
		out[i] = items[off:end]
	}
	return out, nil
}
