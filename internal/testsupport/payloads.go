package testsupport

import "encoding/binary"

// Styled encodes a STXT payload: unknown, big-endian length, padding, text.
func Styled(text string) []byte {
	out := make([]byte, 12, 12+len(text))
	binary.BigEndian.PutUint32(out[4:], uint32(len(text)))
	return append(out, text...)
}

// Rich encodes an RTE0 payload with junk before the 0x2C marker and a 0x03 terminator.
func Rich(text []byte) []byte {
	out := []byte{0x00, 0x01, 0x02, 0x2c}
	out = append(out, text...)
	return append(out, 0x03, 0x00)
}

// CastLibrary encodes a CAS* payload listing member chunk ids.
func CastLibrary(ids ...uint32) []byte {
	var out []byte
	for _, id := range ids {
		out = binary.BigEndian.AppendUint32(out, id)
	}
	return out
}

// InfoList encodes a list block whose items are Pascal strings.
func InfoList(items ...string) []byte {
	out := make([]byte, 20)
	binary.BigEndian.PutUint32(out, 20)
	out = binary.BigEndian.AppendUint16(out, uint16(len(items)))
	pos := 0
	for _, it := range items {
		out = binary.BigEndian.AppendUint32(out, uint32(pos))
		pos += 1 + len(it)
	}
	out = binary.BigEndian.AppendUint32(out, uint32(pos))
	for _, it := range items {
		out = append(out, byte(len(it)))
		out = append(out, it...)
	}
	return out
}

// Member encodes a CASt payload with the given cast type and name.
func Member(castType uint32, name string) []byte {
	var info []byte
	if name != "" {
		info = InfoList("", name)
	}
	out := binary.BigEndian.AppendUint32(nil, castType)
	out = binary.BigEndian.AppendUint32(out, uint32(len(info)))
	out = binary.BigEndian.AppendUint32(out, 0)
	return append(out, info...)
}
