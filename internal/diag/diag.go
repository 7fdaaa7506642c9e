package diag

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Kind classifies a problem found while reading a container.
// Only KindMalformedHeader is fatal for a file.
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindMalformedHeader   Kind = "malformed_header"
	KindIndexMismatch     Kind = "index_mismatch"
	KindMemoryMapMismatch Kind = "memory_map_mismatch"
	KindOutOfBoundsChunk  Kind = "out_of_bounds_chunk"
	KindUnresolvedLink    Kind = "unresolved_link"
	KindDecodeFailure     Kind = "decode_failure"
	KindTruncated         Kind = "truncated"
)

var (
	ErrMalformedHeader   = errors.New("malformed header")
	ErrIndexMismatch     = errors.New("index chunk mismatch")
	ErrMemoryMapMismatch = errors.New("memory map chunk mismatch")
	ErrOutOfBoundsChunk  = errors.New("chunk out of bounds")
	ErrUnresolvedLink    = errors.New("unresolved link")
	ErrDecodeFailure     = errors.New("decode failure")
	ErrTruncated         = errors.New("truncated data")
)

// Fatal reports whether a kind aborts extraction of the whole file.
func (k Kind) Fatal() bool { return k == KindMalformedHeader }

// Classify maps an error onto the taxonomy using sentinel errors only.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrMalformedHeader):
		return KindMalformedHeader
	case errors.Is(err, ErrIndexMismatch):
		return KindIndexMismatch
	case errors.Is(err, ErrMemoryMapMismatch):
		return KindMemoryMapMismatch
	case errors.Is(err, ErrOutOfBoundsChunk):
		return KindOutOfBoundsChunk
	case errors.Is(err, ErrUnresolvedLink):
		return KindUnresolvedLink
	case errors.Is(err, ErrDecodeFailure):
		return KindDecodeFailure
	case errors.Is(err, ErrTruncated):
		return KindTruncated
	}
	return KindUnknown
}

// Diagnostic is one recorded problem. Chunk is nil and Member zero when not
// applicable; chunk id 0 is the root entry and a valid reference.
type Diagnostic struct {
	Kind    Kind    `json:"kind"`
	Message string  `json:"message"`
	Chunk   *uint32 `json:"chunk,omitempty"`
	Member  uint32  `json:"member,omitempty"`
	Offset  int64   `json:"offset,omitempty"`
}

// OnChunk records the chunk d refers to.
func (d *Diagnostic) OnChunk(id uint32) {
	d.Chunk = &id
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// New builds a Diagnostic from an error, classifying it.
func New(err error) Diagnostic {
	return Diagnostic{Kind: Classify(err), Message: err.Error()}
}

// List accumulates diagnostics for one file and logs each one as it is added.
type List struct {
	File  string
	items []Diagnostic
}

// Add records d and logs it.
func (l *List) Add(d Diagnostic) {
	l.items = append(l.items, d)

	var ev *zerolog.Event
	if d.Kind.Fatal() {
		ev = log.Error()
	} else {
		ev = log.Warn()
	}
	ev = ev.Str("kind", string(d.Kind))
	if l.File != "" {
		ev = ev.Str("file", l.File)
	}
	if d.Chunk != nil {
		ev = ev.Uint32("chunk", *d.Chunk)
	}
	if d.Member != 0 {
		ev = ev.Uint32("member", d.Member)
	}
	ev.Msg(d.Message)
}

// AddErr classifies err and records it against a chunk id.
func (l *List) AddErr(err error, chunk uint32) {
	d := New(err)
	d.OnChunk(chunk)
	l.Add(d)
}

// Merge appends already-logged diagnostics without logging them again.
func (l *List) Merge(ds []Diagnostic) {
	l.items = append(l.items, ds...)
}

// Items returns the recorded diagnostics in order.
func (l *List) Items() []Diagnostic {
	return l.items
}

// Count returns how many diagnostics of kind k were recorded.
func (l *List) Count(k Kind) int {
	n := 0
	for _, d := range l.items {
		if d.Kind == k {
			n++
		}
	}
	return n
}
