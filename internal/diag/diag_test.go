package diag

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{errors.New("boom"), KindUnknown},
		{fmt.Errorf("%w: bad magic", ErrMalformedHeader), KindMalformedHeader},
		{fmt.Errorf("read imap: %w", fmt.Errorf("%w: got XXXX", ErrIndexMismatch)), KindIndexMismatch},
		{fmt.Errorf("%w: junk", ErrMemoryMapMismatch), KindMemoryMapMismatch},
		{ErrOutOfBoundsChunk, KindOutOfBoundsChunk},
		{ErrUnresolvedLink, KindUnresolvedLink},
		{ErrDecodeFailure, KindDecodeFailure},
		{ErrTruncated, KindTruncated},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestOnlyMalformedHeaderIsFatal(t *testing.T) {
	for _, k := range []Kind{KindUnknown, KindIndexMismatch, KindMemoryMapMismatch, KindOutOfBoundsChunk,
		KindUnresolvedLink, KindDecodeFailure, KindTruncated} {
		if k.Fatal() {
			t.Errorf("%s reported fatal", k)
		}
	}
	if !KindMalformedHeader.Fatal() {
		t.Error("malformed header not fatal")
	}
}

func TestList(t *testing.T) {
	l := &List{File: "movie.dir"}
	l.Add(New(fmt.Errorf("%w: chunk 9", ErrUnresolvedLink)))
	l.AddErr(ErrDecodeFailure, 12)
	l.Merge([]Diagnostic{{Kind: KindUnresolvedLink, Message: "merged"}})

	items := l.Items()
	if len(items) != 3 {
		t.Fatalf("items: got %d", len(items))
	}
	if items[1].Chunk == nil || *items[1].Chunk != 12 || items[1].Kind != KindDecodeFailure {
		t.Errorf("AddErr: got %+v", items[1])
	}
	if n := l.Count(KindUnresolvedLink); n != 2 {
		t.Errorf("Count: got %d", n)
	}
	if s := items[0].String(); s != "unresolved_link: unresolved link: chunk 9" {
		t.Errorf("String: got %q", s)
	}
}

func TestDiagnosticKeepsChunkZero(t *testing.T) {
	root := New(ErrOutOfBoundsChunk)
	root.OnChunk(0)
	b, err := json.Marshal(root)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"chunk":0`) {
		t.Errorf("chunk 0 dropped: %s", b)
	}

	b, err = json.Marshal(New(ErrDecodeFailure))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), `"chunk"`) {
		t.Errorf("unset chunk serialised: %s", b)
	}
}
