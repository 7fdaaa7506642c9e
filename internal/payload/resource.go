package payload

import (
	"encoding/binary"

	"cast-extractor/internal/container"
	"cast-extractor/internal/index"
	"cast-extractor/internal/scan"
	"cast-extractor/internal/textutil"
)

var (
	soundTags  = map[string]bool{"snd ": true, "sndS": true, "sndH": true, "ediM": true}
	scriptTags = map[string]bool{"Lscr": true, "Lctx": true}
)

// IsSound reports whether fourCC holds audio data.
func IsSound(fourCC string) bool { return soundTags[fourCC] }

// IsScript reports whether fourCC holds a script or script context.
func IsScript(fourCC string) bool { return scriptTags[fourCC] }

// DecodeSound returns the exact byte range addressed by e. The slice aliases
// the container buffer and must be copied if it outlives the handle.
func DecodeSound(h *container.Handle, e index.Entry) ([]byte, error) {
	return index.Payload(h, e)
}

// Script is the result of scanning a script chunk for its string pool.
type Script struct {
	Pool        *scan.Pool `json:"pool,omitempty"`
	RawAnalyzed bool       `json:"raw_analyzed"`
	Rejected    []string   `json:"rejected,omitempty"`
}

// Strings returns the recovered pool strings, or nil when analysed raw.
func (s Script) Strings() []scan.StringCandidate {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Strings
}

// DecodeScript locates the string pool of a script chunk. base is the file
// offset of data.
func DecodeScript(data []byte, base uint64, order binary.ByteOrder, dec textutil.Decoder) Script {
	pool, rejected := scan.ScriptPool(data, base, order, dec)
	s := Script{Pool: pool, RawAnalyzed: pool == nil}
	for _, err := range rejected {
		s.Rejected = append(s.Rejected, err.Error())
	}
	return s
}
