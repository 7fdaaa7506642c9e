// Package export writes extraction reports for downstream tooling.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cast-extractor/internal/extract"
	"cast-extractor/internal/scan"

	"github.com/rs/zerolog/log"
)

// Entry kinds.
const (
	KindText       = "text"
	KindScript     = "script_string"
	KindCandidate  = "candidate"
	KindSound      = "sound"
	KindChunkText  = "chunk_text"
	KindChunkGuess = "chunk_candidate"
)

// Entry is one recovered string or resource addressed by a stable key:
// "library:member:name" for member content, "chunk:id" otherwise.
type Entry struct {
	Key        string  `json:"key"`
	File       string  `json:"file"`
	Library    string  `json:"library,omitempty"`
	Member     uint32  `json:"member,omitempty"`
	Name       string  `json:"name,omitempty"`
	CastType   string  `json:"cast_type,omitempty"`
	ChunkID    uint32  `json:"chunk_id"`
	FourCC     string  `json:"fourcc"`
	Offset     uint64  `json:"offset"`
	Kind       string  `json:"kind"`
	Text       string  `json:"text,omitempty"`
	Length     uint32  `json:"length,omitempty"`
	Confidence float32 `json:"confidence,omitempty"`
}

// MemberKey returns the key of a cast member.
func MemberKey(lib string, member uint32, name string) string {
	return lib + ":" + strconv.FormatUint(uint64(member), 10) + ":" + name
}

// Entries flattens reports into entries, member content first, in report order.
func Entries(reps []*extract.Report) []Entry {
	var out []Entry
	for _, rep := range reps {
		rep.Members(func(lib extract.LibraryReport, m extract.MemberReport) {
			base := Entry{
				Key:      MemberKey(lib.Name, m.ID, m.Name),
				File:     rep.File,
				Library:  lib.Name,
				Member:   m.ID,
				Name:     m.Name,
				CastType: m.Type,
			}
			for _, ct := range m.Texts {
				out = append(out, textEntries(base, ct, KindText, KindCandidate)...)
			}
			for _, s := range m.Sounds {
				e := base
				e.ChunkID, e.FourCC, e.Offset, e.Length, e.Kind = s.ChunkID, s.FourCC, s.Offset, s.Length, KindSound
				out = append(out, e)
			}
			for _, sr := range m.Scripts {
				for _, c := range sr.Script.Strings() {
					out = append(out, candidateEntry(base, sr.ChunkID, sr.FourCC, KindScript, c))
				}
			}
		})
		for _, ct := range rep.Texts {
			base := Entry{Key: "chunk:" + strconv.FormatUint(uint64(ct.ChunkID), 10), File: rep.File}
			out = append(out, textEntries(base, ct, KindChunkText, KindChunkGuess)...)
		}
	}
	return out
}

func textEntries(base Entry, ct extract.ChunkText, kind, guess string) []Entry {
	if ct.Text.OK() {
		e := base
		e.ChunkID, e.FourCC, e.Offset, e.Kind = ct.ChunkID, ct.FourCC, ct.Offset, kind
		e.Text = ct.Text.Text
		e.Length = uint32(len(ct.Text.Text))
		e.Confidence = 1
		return []Entry{e}
	}
	out := make([]Entry, 0, len(ct.Candidates))
	for _, c := range ct.Candidates {
		out = append(out, candidateEntry(base, ct.ChunkID, ct.FourCC, guess, c))
	}
	return out
}

func candidateEntry(base Entry, chunk uint32, fourCC, kind string, c scan.StringCandidate) Entry {
	e := base
	e.ChunkID, e.FourCC, e.Offset, e.Kind = chunk, fourCC, c.Offset, kind
	e.Text, e.Length, e.Confidence = c.Text, c.Length, c.Confidence
	return e
}

// WriteJSON writes v as indented JSON without HTML escaping.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// WriteTSV writes entries with a header row.
func WriteTSV(w io.Writer, entries []Entry) error {
	if _, err := fmt.Fprintln(w, "key\tfile\tchunk_id\tfourcc\toffset\tkind\tconfidence\ttext"); err != nil {
		return err
	}
	for _, e := range entries {
		_, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\t%.3f\t%s\n",
			escapeTSV(e.Key),
			escapeTSV(e.File),
			e.ChunkID,
			escapeTSV(e.FourCC),
			e.Offset,
			e.Kind,
			e.Confidence,
			escapeTSV(e.Text),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Write renders reports in format ("json", "tsv" or "entries") to w.
func Write(w io.Writer, format string, reps []*extract.Report) error {
	switch format {
	case "json":
		return WriteJSON(w, reps)
	case "entries":
		return WriteJSON(w, Entries(reps))
	case "tsv":
		return WriteTSV(w, Entries(reps))
	}
	return fmt.Errorf("unknown output format %q", format)
}

// WriteFile renders reports into outputPath.
func WriteFile(outputPath, format string, reps []*extract.Report) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s file: %w", format, err)
	}
	defer f.Close()

	if err := Write(f, format, reps); err != nil {
		return err
	}

	log.Info().Str("path", outputPath).Str("format", format).Int("files", len(reps)).Msg("Exported reports")
	return nil
}

// escapeTSV replaces tabs and newlines in a string for TSV safety.
func escapeTSV(s string) string {
	s = strings.ReplaceAll(s, "\t", "\\t")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}
