// Package payload decodes the chunks linked from cast members into typed
// content.
package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"cast-extractor/internal/textutil"
)

// Kind tags a decoded text payload.
type Kind string

const (
	KindStyled  Kind = "styled"
	KindRich    Kind = "rich"
	KindPlain   Kind = "plain"
	KindUnknown Kind = "unknown"
)

const (
	TagStyled = "STXT"
	TagRich   = "RTE0"
	TagPlain  = "TXTS"

	// textHeaderSize covers the unknown word, the big-endian length and the padding word.
	textHeaderSize = 12
	richMarker     = 0x2c
	minRichLength  = 6
)

var richTerminators = []byte{0x03, 0x00, 0x0c}

// Text is a decoded text payload. Unknown payloads keep their raw bytes and
// the reason they were not accepted.
type Text struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text,omitempty"`
	Raw    []byte `json:"raw,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// OK reports whether the payload decoded to text.
func (t Text) OK() bool { return t.Kind != KindUnknown }

func unknown(data []byte, format string, args ...any) Text {
	return Text{Kind: KindUnknown, Raw: data, Reason: fmt.Sprintf(format, args...)}
}

// TextDecoder is the signature shared by the text decoders.
type TextDecoder func(data []byte, dec textutil.Decoder) Text

// TextDecoderFor returns the decoder for a linked chunk tag.
func TextDecoderFor(fourCC string) (TextDecoder, bool) {
	switch fourCC {
	case TagStyled:
		return DecodeStyled, true
	case TagRich:
		return DecodeRich, true
	case TagPlain:
		return DecodePlain, true
	}
	return nil, false
}

// lengthPrefixed returns the text region of a [unknown][len BE][pad][text] record.
func lengthPrefixed(data []byte) ([]byte, error) {
	if len(data) < textHeaderSize {
		return nil, fmt.Errorf("record header needs %d bytes, have %d", textHeaderSize, len(data))
	}
	n := binary.BigEndian.Uint32(data[4:])
	if uint64(n) > uint64(len(data)-textHeaderSize) {
		return nil, fmt.Errorf("declared length %d exceeds %d remaining bytes", n, len(data)-textHeaderSize)
	}
	return data[textHeaderSize : textHeaderSize+int(n)], nil
}

// DecodeStyled decodes a styled-text record. A declared length past the end
// of the chunk yields Unknown.
func DecodeStyled(data []byte, dec textutil.Decoder) Text {
	raw, err := lengthPrefixed(data)
	if err != nil {
		return unknown(data, "styled text: %v", err)
	}
	return Text{Kind: KindStyled, Text: dec.Decode(raw)}
}

// EncodeStyled builds a styled-text record for text.
func EncodeStyled(text string, dec textutil.Decoder) ([]byte, error) {
	raw, err := dec.Encode(text)
	if err != nil {
		return nil, err
	}
	out := make([]byte, textHeaderSize, textHeaderSize+len(raw))
	binary.BigEndian.PutUint32(out[4:], uint32(len(raw)))
	return append(out, raw...), nil
}

// DecodeRich decodes rich text: bytes after the first 0x2C up to the first
// terminator or the chunk end, accepted when at least six bytes long and
// printable at the text gate.
func DecodeRich(data []byte, dec textutil.Decoder) Text {
	i := bytes.IndexByte(data, richMarker)
	if i < 0 {
		return unknown(data, "rich text: no start marker")
	}
	raw := data[i+1:]
	for j, b := range raw {
		if bytes.IndexByte(richTerminators, b) >= 0 {
			raw = raw[:j]
			break
		}
	}
	if err := accept(raw); err != nil {
		return unknown(data, "rich text: %v", err)
	}
	return Text{Kind: KindRich, Text: dec.Decode(raw)}
}

// DecodePlain decodes a plain text table record with the rich text acceptance rule.
func DecodePlain(data []byte, dec textutil.Decoder) Text {
	raw, err := lengthPrefixed(data)
	if err == nil {
		err = accept(raw)
	}
	if err != nil {
		return unknown(data, "plain text: %v", err)
	}
	return Text{Kind: KindPlain, Text: dec.Decode(raw)}
}

func accept(raw []byte) error {
	if len(raw) < minRichLength {
		return fmt.Errorf("%d bytes is shorter than %d", len(raw), minRichLength)
	}
	if !textutil.PassesGate(raw, textutil.TextGate) {
		return fmt.Errorf("printable ratio %.2f below threshold", textutil.PrintableRatio(raw))
	}
	return nil
}
