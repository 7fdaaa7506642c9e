// Package bytecursor provides bounds-checked sequential and random reads over
// an in-memory byte buffer. The cursor never copies the buffer; Bytes returns
// sub-slices that alias it.
package bytecursor

import (
	"encoding/binary"
	"fmt"
)

// Error is returned when a read would cross the end of the buffer or a seek
// lands outside it.
type Error struct {
	Op     string
	Offset int
	Want   int
	Have   int
}

func (e *Error) Error() string {
	return fmt.Sprintf("bytecursor: %s at offset %d: want %d bytes, have %d", e.Op, e.Offset, e.Want, e.Have)
}

// Cursor reads integers in a fixed byte order from buf.
type Cursor struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

// New creates a Cursor positioned at offset 0.
func New(buf []byte, order binary.ByteOrder) *Cursor {
	if order == nil {
		order = binary.BigEndian
	}
	return &Cursor{buf: buf, order: order}
}

// Order returns the byte order used for multi-byte reads.
func (c *Cursor) Order() binary.ByteOrder { return c.order }

// WithOrder returns a cursor over the same buffer and position using order.
func (c *Cursor) WithOrder(order binary.ByteOrder) *Cursor {
	return &Cursor{buf: c.buf, pos: c.pos, order: order}
}

// Pos returns the current offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of bytes after the current offset.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Seek moves to an absolute offset. Seeking to Len() is allowed.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return &Error{Op: "seek", Offset: off, Want: 0, Have: len(c.buf) - off}
	}
	c.pos = off
	return nil
}

// Skip advances by n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.need("skip", n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

func (c *Cursor) need(op string, n int) error {
	if n < 0 || n > len(c.buf)-c.pos {
		return &Error{Op: op, Offset: c.pos, Want: n, Have: len(c.buf) - c.pos}
	}
	return nil
}

// U8 reads one byte.
func (c *Cursor) U8() (uint8, error) {
	if err := c.need("u8", 1); err != nil {
		return 0, err
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// U16 reads a 16-bit unsigned integer.
func (c *Cursor) U16() (uint16, error) {
	if err := c.need("u16", 2); err != nil {
		return 0, err
	}
	v := c.order.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

// U32 reads a 32-bit unsigned integer.
func (c *Cursor) U32() (uint32, error) {
	if err := c.need("u32", 4); err != nil {
		return 0, err
	}
	v := c.order.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

// I32 reads a 32-bit signed integer.
func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

// Bytes returns the next n bytes as a sub-slice of the buffer.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need("bytes", n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

// FourCC reads a four-character tag. In little-endian data tags are stored
// byte-reversed; they are returned in their canonical reading order.
func (c *Cursor) FourCC() (string, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return "", err
	}
	if c.order == binary.LittleEndian {
		return string([]byte{b[3], b[2], b[1], b[0]}), nil
	}
	return string(b), nil
}

// At returns a new cursor over the same buffer positioned at off.
func (c *Cursor) At(off int) (*Cursor, error) {
	n := &Cursor{buf: c.buf, order: c.order}
	if err := n.Seek(off); err != nil {
		return nil, err
	}
	return n, nil
}
