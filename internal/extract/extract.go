// Package extract runs the container reader, index resolver, cast resolver and
// payload decoders over one file. When the index cannot be trusted it
// degrades to a sequential raw dump instead of failing the file.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"cast-extractor/internal/cast"
	"cast-extractor/internal/container"
	"cast-extractor/internal/diag"
	"cast-extractor/internal/index"
	"cast-extractor/internal/payload"
	"cast-extractor/internal/scan"
	"cast-extractor/internal/textutil"

	"github.com/rs/zerolog/log"
)

// Options controls decoding and heuristic salvage.
type Options struct {
	Decoder         textutil.Decoder
	PascalMinLength int
	PrintableRunMin int
}

// DefaultOptions returns Latin-1 decoding with the standard scanner minimums.
func DefaultOptions() Options {
	return Options{Decoder: textutil.Latin1, PascalMinLength: 5, PrintableRunMin: 10}
}

// File reads path and extracts it. Only I/O errors are returned; parse
// problems are recorded in the report.
func File(path string, opts Options) (*Report, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Bytes(path, buf, opts), nil
}

// Bytes extracts a container already in memory. The handle over buf is
// released before returning.
func Bytes(name string, buf []byte, opts Options) *Report {
	start := time.Now()
	x := &extractor{
		opts: opts,
		list: &diag.List{File: name},
		rep: &Report{
			File:       name,
			Size:       len(buf),
			SHA256:     textutil.HashBytes(buf),
			ChunkTypes: make(map[string]int),
			Chunks:     []Chunk{},
		},
	}
	x.run(buf)

	x.rep.Diagnostics = x.list.Items()
	if x.rep.Diagnostics == nil {
		x.rep.Diagnostics = []diag.Diagnostic{}
	}
	x.rep.summarize()
	x.rep.Elapsed = time.Since(start)

	log.Info().
		Str("file", name).
		Str("status", string(x.rep.Status)).
		Str("mode", string(x.rep.Mode)).
		Int("members", x.rep.Summary.Members).
		Int("texts", x.rep.Summary.Texts).
		Int("diagnostics", x.rep.Summary.Diagnostics).
		Dur("elapsed", x.rep.Elapsed).
		Msg("Extracted file")
	return x.rep
}

type extractor struct {
	opts Options
	list *diag.List
	rep  *Report
	h    *container.Handle
	tbl  *index.Table
}

// chunkTable is one way of obtaining the chunk table. Strategies run in
// order until one succeeds.
type chunkTable struct {
	mode Mode
	run  func(x *extractor) error
}

var chunkTables = []chunkTable{
	{mode: ModeIndexed, run: (*extractor).indexed},
	{mode: ModeRawDump, run: (*extractor).rawDump},
}

func (x *extractor) run(buf []byte) {
	h, err := container.Open(buf)
	if err != nil {
		x.list.Add(diag.New(err))
		x.rep.Status = StatusFailed
		x.rep.Error = err.Error()
		return
	}
	defer h.Close()

	x.h = h
	x.rep.Signature = h.Signature()
	x.rep.Codec = h.Codec()
	x.rep.ByteOrder = h.Order().String()
	x.rep.Status = StatusOK

	if h.Truncated() {
		x.list.Add(diag.New(fmt.Errorf("%w: header declares %d bytes, file has %d",
			diag.ErrTruncated, int(h.DeclaredLength())+container.ChunkHeaderSize, h.Size())))
		x.rep.Status = StatusPartial
	}

	for _, s := range chunkTables {
		if err := s.run(x); err != nil {
			x.list.Add(diag.New(err))
			continue
		}
		x.rep.Mode = s.mode
		break
	}
	if x.rep.Mode == ModeRawDump {
		x.rep.Status = StatusPartial
	}
}

func (x *extractor) addChunk(c Chunk) {
	x.rep.Chunks = append(x.rep.Chunks, c)
	x.rep.ChunkTypes[c.FourCC]++
}

func (x *extractor) indexed() error {
	tbl, diags, err := index.Build(x.h)
	if err != nil {
		return err
	}
	x.tbl = tbl
	for _, d := range diags {
		x.list.Add(d)
		if d.Kind == diag.KindOutOfBoundsChunk || d.Kind == diag.KindTruncated {
			x.rep.Status = StatusPartial
		}
	}
	for _, e := range tbl.Entries() {
		x.addChunk(Chunk{ID: e.ID, FourCC: e.FourCC, Offset: e.Offset, Length: e.DataLength})
	}

	libs, cdiags := cast.Resolve(x.h, tbl, x.opts.Decoder)
	for _, d := range cdiags {
		x.list.Add(d)
	}

	linked := make(map[uint32]bool)
	for _, lib := range libs {
		lr := LibraryReport{ID: lib.ID, Name: lib.Name, ChunkID: lib.ChunkID, Members: []MemberReport{}}
		for _, m := range lib.Sorted() {
			for _, id := range m.Linked {
				linked[id] = true
			}
			lr.Members = append(lr.Members, x.member(m))
		}
		x.rep.Libraries = append(x.rep.Libraries, lr)
	}

	// Text chunks no member links to are still decoded.
	for _, e := range tbl.Entries() {
		if _, ok := payload.TextDecoderFor(e.FourCC); !ok || linked[e.ID] {
			continue
		}
		data, err := index.Payload(x.h, e)
		if err != nil {
			x.list.AddErr(err, e.ID)
			continue
		}
		ct, _ := x.decodeText(e.ID, 0, e.FourCC, e.DataOffset, data)
		x.rep.Texts = append(x.rep.Texts, ct)
	}
	return nil
}

func (x *extractor) rawDump() error {
	walked := x.h.Walk()
	for _, rc := range walked {
		x.addChunk(Chunk{
			ID:        rc.ID,
			FourCC:    rc.FourCC,
			Offset:    uint64(rc.Offset),
			Length:    rc.Length,
			Synthetic: true,
			Truncated: rc.Truncated,
		})
		if rc.Truncated {
			d := diag.New(fmt.Errorf("%w: chunk %q at %d declares %d bytes past end of file",
				diag.ErrTruncated, rc.FourCC, rc.Offset, rc.End()-x.h.Size()))
			d.OnChunk(rc.ID)
			d.Offset = int64(rc.Offset)
			x.list.Add(d)
		}
		if _, ok := payload.TextDecoderFor(rc.FourCC); ok {
			ct, _ := x.decodeText(rc.ID, 0, rc.FourCC, uint64(rc.PayloadOffset), x.h.Payload(rc.ChunkHeader))
			x.rep.Texts = append(x.rep.Texts, ct)
		}
	}
	log.Warn().Str("file", x.list.File).Int("chunks", len(walked)).Msg("Index unusable, dumped raw chunks")
	return nil
}

// member decodes every link of m. A panic while decoding is confined to the
// member and recorded as a decode failure.
func (x *extractor) member(m cast.Member) (mr MemberReport) {
	mr = MemberReport{
		ID:       m.ID,
		ChunkID:  m.ChunkID,
		Name:     m.Name,
		Type:     m.Type.String(),
		Linked:   m.Linked,
		Dangling: m.Dangling,
		Outcome:  OutcomeNoContent,
	}
	defer func() {
		if r := recover(); r != nil {
			d := diag.New(fmt.Errorf("%w: member %d: %v", diag.ErrDecodeFailure, m.ID, r))
			d.Member = m.ID
			d.OnChunk(m.ChunkID)
			x.list.Add(d)
			mr.Outcome = OutcomeFailed
		}
	}()

	for _, dl := range m.Dangling {
		if dl.ID == m.ChunkID && dl.FourCC == cast.TagMember {
			mr.Outcome = OutcomeFailed
		}
	}
	for _, id := range m.Linked {
		e, ok := x.tbl.Lookup(id)
		if !ok {
			continue
		}
		mr.Outcome = worse(mr.Outcome, x.link(&mr, e))
	}
	return mr
}

func (x *extractor) link(mr *MemberReport, e index.Entry) Outcome {
	data, err := index.Payload(x.h, e)
	if err != nil {
		d := diag.New(fmt.Errorf("%w: %v", diag.ErrDecodeFailure, err))
		d.OnChunk(e.ID)
		d.Member = mr.ID
		x.list.Add(d)
		return OutcomeFailed
	}

	switch {
	case isText(e.FourCC):
		ct, out := x.decodeText(e.ID, mr.ID, e.FourCC, e.DataOffset, data)
		mr.Texts = append(mr.Texts, ct)
		return out

	case payload.IsSound(e.FourCC):
		mr.Sounds = append(mr.Sounds, SoundRef{ChunkID: e.ID, FourCC: e.FourCC, Offset: e.DataOffset, Length: e.DataLength})
		return OutcomeDecoded

	case payload.IsScript(e.FourCC):
		s := payload.DecodeScript(data, e.DataOffset, x.h.Order(), x.opts.Decoder)
		mr.Scripts = append(mr.Scripts, ScriptRef{ChunkID: e.ID, FourCC: e.FourCC, Offset: e.DataOffset, Script: s})
		if s.RawAnalyzed {
			d := diag.New(fmt.Errorf("%w: chunk %d %s: no string pool candidate matched, analysed raw",
				diag.ErrDecodeFailure, e.ID, e.FourCC))
			d.OnChunk(e.ID)
			d.Member = mr.ID
			x.list.Add(d)
			return OutcomeFailed
		}
		return OutcomeFallback
	}

	mr.Skipped = append(mr.Skipped, Chunk{ID: e.ID, FourCC: e.FourCC, Offset: e.Offset, Length: e.DataLength})
	return OutcomeNoContent
}

func isText(fourCC string) bool {
	_, ok := payload.TextDecoderFor(fourCC)
	return ok
}

// decodeText runs the structural decoder for tag and falls back to the
// heuristic scanners when it rejects the chunk.
func (x *extractor) decodeText(id, member uint32, tag string, off uint64, data []byte) (ChunkText, Outcome) {
	decode, _ := payload.TextDecoderFor(tag)
	t := decode(data, x.opts.Decoder)
	ct := ChunkText{ChunkID: id, FourCC: tag, Offset: off, Text: t}
	if t.OK() {
		return ct, OutcomeDecoded
	}

	ct.Text.Raw = bytes.Clone(t.Raw)
	d := diag.New(fmt.Errorf("%w: chunk %d %s: %s", diag.ErrDecodeFailure, id, tag, t.Reason))
	d.OnChunk(id)
	d.Member = member
	d.Offset = int64(off)
	x.list.Add(d)

	ct.Candidates = scan.PascalStrings(data, off, x.opts.PascalMinLength, x.opts.Decoder)
	ct.Candidates = append(ct.Candidates, scan.PrintableRuns(data, off, x.opts.PrintableRunMin, x.opts.Decoder)...)
	if len(ct.Candidates) > 0 {
		return ct, OutcomeFallback
	}
	return ct, OutcomeFailed
}

var outcomeRank = map[Outcome]int{
	OutcomeNoContent: 0,
	OutcomeDecoded:   1,
	OutcomeFallback:  2,
	OutcomeFailed:    3,
}

func worse(a, b Outcome) Outcome {
	if outcomeRank[b] > outcomeRank[a] {
		return b
	}
	return a
}
