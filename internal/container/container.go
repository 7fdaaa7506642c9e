// Package container reads the chunked RIFX/XFIR framing of Director movie and
// cast files. A Handle owns the file's bytes; every other component holds only
// offsets into it.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"cast-extractor/internal/bytecursor"
	"cast-extractor/internal/diag"
)

const (
	SigBigEndian    = "RIFX"
	SigLittleEndian = "XFIR"

	// HeaderSize is the size of the top-level form header: tag, length, codec.
	HeaderSize = 12
	// ChunkHeaderSize is the size of every chunk header: fourCC and length.
	ChunkHeaderSize = 8
)

// Handle is an opened container.
type Handle struct {
	buf       []byte
	order     binary.ByteOrder
	signature string
	codec     string
	declared  uint32
}

// ChunkHeader describes one chunk without copying its payload.
type ChunkHeader struct {
	FourCC        string
	Offset        int
	Length        uint32
	PayloadOffset int
}

// End returns the offset just past the declared payload.
func (h ChunkHeader) End() int { return h.PayloadOffset + int(h.Length) }

// RawChunk is a chunk found by sequential walking, tagged with a synthetic id.
type RawChunk struct {
	ID uint32
	ChunkHeader
	Truncated bool
}

// Open validates the form header and detects the byte order.
func Open(buf []byte) (*Handle, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: file is %d bytes", diag.ErrMalformedHeader, len(buf))
	}

	var order binary.ByteOrder
	sig := string(buf[:4])
	switch sig {
	case SigBigEndian:
		order = binary.BigEndian
	case SigLittleEndian:
		order = binary.LittleEndian
	default:
		return nil, fmt.Errorf("%w: unrecognised signature %q", diag.ErrMalformedHeader, sig)
	}

	cur := bytecursor.New(buf, order)
	_ = cur.Skip(4)
	declared, _ := cur.U32()
	codec, _ := cur.FourCC()

	return &Handle{
		buf:       buf,
		order:     order,
		signature: sig,
		codec:     codec,
		declared:  declared,
	}, nil
}

// Signature returns the tag found at offset 0.
func (h *Handle) Signature() string { return h.signature }

// Codec returns the form type following the length, e.g. MV93.
func (h *Handle) Codec() string { return h.codec }

// Order returns the byte order selected by the signature.
func (h *Handle) Order() binary.ByteOrder { return h.order }

// Size returns the number of bytes actually available.
func (h *Handle) Size() int { return len(h.buf) }

// Truncated reports whether the form header declares more bytes than the file holds.
func (h *Handle) Truncated() bool {
	return int64(h.declared)+8 > int64(len(h.buf))
}

// DeclaredLength returns the form length field.
func (h *Handle) DeclaredLength() uint32 { return h.declared }

// Cursor returns a fresh cursor positioned at the first top-level chunk.
// Each call starts a new, independent walk.
func (h *Handle) Cursor() *bytecursor.Cursor {
	c := bytecursor.New(h.buf, h.order)
	_ = c.Seek(HeaderSize)
	return c
}

// Slice returns n bytes at off, aliasing the buffer.
func (h *Handle) Slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off > len(h.buf) || n > len(h.buf)-off {
		return nil, fmt.Errorf("%w: range %d+%d exceeds file size %d", diag.ErrOutOfBoundsChunk, off, n, len(h.buf))
	}
	return h.buf[off : off+n : off+n], nil
}

// Bytes returns the whole backing buffer.
func (h *Handle) Bytes() []byte { return h.buf }

// ChunkAt reads the chunk header at an absolute offset.
func (h *Handle) ChunkAt(off int) (ChunkHeader, error) {
	c, err := bytecursor.New(h.buf, h.order).At(off)
	if err != nil {
		return ChunkHeader{}, err
	}
	return readHeader(c)
}

// NextChunk reads the chunk header at the cursor and advances the cursor past
// the chunk's payload and pad byte. It returns io.EOF when the cursor sits at
// the end of the buffer. A chunk whose payload runs past the end is returned
// together with an error wrapping diag.ErrTruncated; the cursor is left at the end.
func (h *Handle) NextChunk(cur *bytecursor.Cursor) (ChunkHeader, error) {
	if cur.Remaining() == 0 {
		return ChunkHeader{}, io.EOF
	}
	if cur.Remaining() < ChunkHeaderSize {
		off := cur.Pos()
		_ = cur.Seek(cur.Len())
		return ChunkHeader{}, fmt.Errorf("%w: %d trailing bytes at %d", diag.ErrTruncated, cur.Len()-off, off)
	}

	hdr, err := readHeader(cur)
	if err != nil {
		return ChunkHeader{}, err
	}

	end := hdr.End()
	if end > cur.Len() {
		_ = cur.Seek(cur.Len())
		return hdr, fmt.Errorf("%w: chunk %q at %d declares %d bytes, %d available",
			diag.ErrTruncated, hdr.FourCC, hdr.Offset, hdr.Length, cur.Len()-hdr.PayloadOffset)
	}
	if hdr.Length%2 == 1 && end < cur.Len() {
		end++
	}
	_ = cur.Seek(end)
	return hdr, nil
}

// Walk enumerates every top-level chunk sequentially, assigning ids 1..n.
// A truncated final chunk is included with Truncated set.
func (h *Handle) Walk() []RawChunk {
	var chunks []RawChunk
	cur := h.Cursor()
	for {
		hdr, err := h.NextChunk(cur)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if hdr.FourCC != "" {
				chunks = append(chunks, RawChunk{ID: uint32(len(chunks) + 1), ChunkHeader: hdr, Truncated: true})
			}
			break
		}
		chunks = append(chunks, RawChunk{ID: uint32(len(chunks) + 1), ChunkHeader: hdr})
	}
	return chunks
}

// Payload returns the bytes of a walked chunk, clamped to the file end.
func (h *Handle) Payload(hdr ChunkHeader) []byte {
	start := hdr.PayloadOffset
	if start > len(h.buf) {
		return nil
	}
	end := hdr.End()
	if end > len(h.buf) {
		end = len(h.buf)
	}
	return h.buf[start:end:end]
}

// Close releases the backing buffer.
func (h *Handle) Close() {
	h.buf = nil
}

func readHeader(c *bytecursor.Cursor) (ChunkHeader, error) {
	off := c.Pos()
	tag, err := c.FourCC()
	if err != nil {
		return ChunkHeader{}, err
	}
	length, err := c.U32()
	if err != nil {
		return ChunkHeader{}, err
	}
	return ChunkHeader{
		FourCC:        tag,
		Offset:        off,
		Length:        length,
		PayloadOffset: off + ChunkHeaderSize,
	}, nil
}
