package extract

import (
	"time"

	"cast-extractor/internal/cast"
	"cast-extractor/internal/diag"
	"cast-extractor/internal/payload"
	"cast-extractor/internal/scan"
)

// Status is the file-level outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Mode records which path produced the chunk table.
type Mode string

const (
	ModeIndexed Mode = "indexed"
	ModeRawDump Mode = "raw_dump"
)

// Outcome is the per-member result.
type Outcome string

const (
	OutcomeDecoded   Outcome = "decoded"
	OutcomeFallback  Outcome = "fallback"
	OutcomeFailed    Outcome = "failed"
	OutcomeNoContent Outcome = "no_content"
)

// Report is the result of extracting one file.
type Report struct {
	File        string            `json:"file"`
	Size        int               `json:"size"`
	SHA256      string            `json:"sha256,omitempty"`
	Signature   string            `json:"signature,omitempty"`
	Codec       string            `json:"codec,omitempty"`
	ByteOrder   string            `json:"byte_order,omitempty"`
	Status      Status            `json:"status"`
	Mode        Mode              `json:"mode,omitempty"`
	Error       string            `json:"error,omitempty"`
	ChunkTypes  map[string]int    `json:"chunk_types"`
	Chunks      []Chunk           `json:"chunks"`
	Libraries   []LibraryReport   `json:"libraries,omitempty"`
	Texts       []ChunkText       `json:"texts,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Summary     Summary           `json:"summary"`
	Elapsed     time.Duration     `json:"elapsed"`
}

// Chunk is one entry of the chunk table. Synthetic ids come from a raw walk.
type Chunk struct {
	ID        uint32 `json:"id"`
	FourCC    string `json:"fourcc"`
	Offset    uint64 `json:"offset"`
	Length    uint32 `json:"length"`
	Synthetic bool   `json:"synthetic,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// LibraryReport is a resolved cast library with its decoded members.
type LibraryReport struct {
	ID      uint32         `json:"id"`
	Name    string         `json:"name"`
	ChunkID uint32         `json:"chunk_id"`
	Members []MemberReport `json:"members"`
}

// MemberReport is a cast member and everything decoded from its links.
type MemberReport struct {
	ID       uint32              `json:"id"`
	ChunkID  uint32              `json:"chunk_id"`
	Name     string              `json:"name"`
	Type     string              `json:"cast_type"`
	Linked   []uint32            `json:"linked_entries"`
	Dangling []cast.DanglingLink `json:"dangling,omitempty"`
	Outcome  Outcome             `json:"outcome"`
	Texts    []ChunkText         `json:"texts,omitempty"`
	Sounds   []SoundRef          `json:"sounds,omitempty"`
	Scripts  []ScriptRef         `json:"scripts,omitempty"`
	Skipped  []Chunk             `json:"skipped,omitempty"`
}

// ChunkText is a decoded text chunk. Candidates hold the heuristic salvage of
// a chunk whose structural decode failed.
type ChunkText struct {
	ChunkID    uint32                 `json:"chunk_id"`
	FourCC     string                 `json:"fourcc"`
	Offset     uint64                 `json:"offset"`
	Text       payload.Text           `json:"payload"`
	Candidates []scan.StringCandidate `json:"candidates,omitempty"`
}

// SoundRef addresses the audio bytes of a sound link.
type SoundRef struct {
	ChunkID uint32 `json:"chunk_id"`
	FourCC  string `json:"fourcc"`
	Offset  uint64 `json:"offset"`
	Length  uint32 `json:"length"`
}

// ScriptRef is the string pool scan of a script link.
type ScriptRef struct {
	ChunkID uint32         `json:"chunk_id"`
	FourCC  string         `json:"fourcc"`
	Offset  uint64         `json:"offset"`
	Script  payload.Script `json:"script"`
}

// Summary holds the counts shown to the user for one file.
type Summary struct {
	Chunks      int `json:"chunks"`
	Members     int `json:"members"`
	Decoded     int `json:"decoded"`
	Fallback    int `json:"fallback"`
	Failed      int `json:"failed"`
	NoContent   int `json:"no_content"`
	Dangling    int `json:"dangling_links"`
	Texts       int `json:"texts"`
	Sounds      int `json:"sounds"`
	Diagnostics int `json:"diagnostics"`
	Fatal       int `json:"fatal"`
}

// Members iterates every member of every library in report order.
func (r *Report) Members(fn func(lib LibraryReport, m MemberReport)) {
	for _, lib := range r.Libraries {
		for _, m := range lib.Members {
			fn(lib, m)
		}
	}
}

func (r *Report) summarize() {
	s := Summary{Chunks: len(r.Chunks), Texts: len(r.Texts), Diagnostics: len(r.Diagnostics)}
	r.Members(func(_ LibraryReport, m MemberReport) {
		s.Members++
		s.Dangling += len(m.Dangling)
		s.Texts += len(m.Texts)
		s.Sounds += len(m.Sounds)
		switch m.Outcome {
		case OutcomeDecoded:
			s.Decoded++
		case OutcomeFallback:
			s.Fallback++
		case OutcomeFailed:
			s.Failed++
		case OutcomeNoContent:
			s.NoContent++
		}
	})
	for _, d := range r.Diagnostics {
		if d.Kind.Fatal() {
			s.Fatal++
		}
	}
	r.Summary = s
}
