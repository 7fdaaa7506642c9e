// Package testsupport builds synthetic Director containers for tests.
package testsupport

import (
	"encoding/binary"
)

// Resource ids of the chunks every built movie starts with.
const (
	IDRoot = 0
	IDImap = 1
	IDMmap = 2

	entrySize    = 20
	mmapHeadSize = 24
)

type chunk struct {
	tag  string
	data []byte
}

// Movie assembles a RIFX/XFIR file with an imap, an mmap and user chunks.
type Movie struct {
	Order   binary.ByteOrder
	Codec   string
	ImapTag string
	MmapTag string

	chunks []chunk
}

// Layout records where things landed in a built file.
type Layout struct {
	// EntryPos is the absolute offset of each memory-map entry, keyed by id.
	EntryPos map[uint32]int
	// ChunkPos is the absolute offset of each chunk header, keyed by id.
	ChunkPos map[uint32]int
	MmapPos  int
}

// NewMovie returns a big-endian movie builder.
func NewMovie() *Movie {
	return &Movie{Order: binary.BigEndian, Codec: "MV93", ImapTag: "imap", MmapTag: "mmap"}
}

// Add appends a chunk and returns its resource id.
func (m *Movie) Add(tag string, data []byte) uint32 {
	m.chunks = append(m.chunks, chunk{tag: tag, data: data})
	return uint32(len(m.chunks) + 2)
}

// Build serialises the movie.
func (m *Movie) Build() ([]byte, Layout) {
	lay := Layout{EntryPos: map[uint32]int{}, ChunkPos: map[uint32]int{}}

	const imapPos = 12
	imapPayload := 8
	mmapPos := imapPos + 8 + imapPayload
	entries := len(m.chunks) + 3
	mmapPayload := mmapHeadSize + entries*entrySize
	lay.MmapPos = mmapPos

	pos := mmapPos + 8 + mmapPayload
	offsets := make([]int, len(m.chunks))
	for i, c := range m.chunks {
		offsets[i] = pos
		pos += 8 + len(c.data)
		if len(c.data)%2 == 1 {
			pos++
		}
	}

	out := make([]byte, 0, pos)
	out = append(out, m.tag("RIFX")...)
	out = m.u32(out, uint32(pos-8))
	out = append(out, m.tag(m.Codec)...)

	out = append(out, m.tag(m.ImapTag)...)
	out = m.u32(out, uint32(imapPayload))
	out = m.u32(out, 1)
	out = m.u32(out, uint32(mmapPos))

	out = append(out, m.tag(m.MmapTag)...)
	out = m.u32(out, uint32(mmapPayload))
	out = m.u16(out, mmapHeadSize)
	out = m.u16(out, entrySize)
	out = m.u32(out, uint32(entries))
	out = m.u32(out, uint32(entries))
	out = m.u32(out, 0xffffffff)
	out = m.u32(out, 0xffffffff)
	out = m.u32(out, 0xffffffff)

	entry := func(id uint32, tag string, length, offset int) {
		lay.EntryPos[id] = len(out)
		lay.ChunkPos[id] = offset
		out = append(out, m.tag(tag)...)
		out = m.u32(out, uint32(length))
		out = m.u32(out, uint32(offset))
		out = m.u32(out, 0)
		out = m.u32(out, 0)
	}
	entry(IDRoot, "RIFX", pos-8, 0)
	entry(IDImap, m.ImapTag, imapPayload, imapPos)
	entry(IDMmap, m.MmapTag, mmapPayload, mmapPos)
	for i, c := range m.chunks {
		entry(uint32(i+3), c.tag, len(c.data), offsets[i])
	}

	for _, c := range m.chunks {
		out = append(out, m.tag(c.tag)...)
		out = m.u32(out, uint32(len(c.data)))
		out = append(out, c.data...)
		if len(c.data)%2 == 1 {
			out = append(out, 0)
		}
	}
	return out, lay
}

func (m *Movie) tag(s string) []byte {
	b := []byte(s)
	if m.Order == binary.LittleEndian {
		return []byte{b[3], b[2], b[1], b[0]}
	}
	return b
}

func (m *Movie) u32(out []byte, v uint32) []byte {
	var b [4]byte
	m.Order.PutUint32(b[:], v)
	return append(out, b[:]...)
}

func (m *Movie) u16(out []byte, v uint16) []byte {
	var b [2]byte
	m.Order.PutUint16(b[:], v)
	return append(out, b[:]...)
}

// PutU32 overwrites a 32-bit value in a built file using the movie's byte order.
func (m *Movie) PutU32(buf []byte, off int, v uint32) { m.Order.PutUint32(buf[off:], v) }

// KeyEntry is one record of a KEY* table.
type KeyEntry struct {
	Resource uint32
	Owner    uint32
	Tag      string
}

// KeyTable encodes a KEY* payload in the movie's byte order.
func (m *Movie) KeyTable(entries ...KeyEntry) []byte {
	var out []byte
	out = m.u16(out, 12)
	out = m.u16(out, 12)
	out = m.u32(out, uint32(len(entries)))
	out = m.u32(out, uint32(len(entries)))
	for _, e := range entries {
		out = m.u32(out, e.Resource)
		out = m.u32(out, e.Owner)
		out = append(out, m.tag(e.Tag)...)
	}
	return out
}

// ScriptPool encodes a string table at the given header offset in the movie's
// byte order. Strings follow the offset table as Pascal strings.
func (m *Movie) ScriptPool(at int, strs ...string) []byte {
	out := make([]byte, at)
	out = m.u32(out, uint32(len(strs)))
	pos := at + 4 + 4*len(strs)
	for _, s := range strs {
		out = m.u32(out, uint32(pos))
		pos += 1 + len(s)
	}
	for _, s := range strs {
		out = append(out, byte(len(s)))
		out = append(out, s...)
	}
	return out
}
