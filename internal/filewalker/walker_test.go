package filewalker

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWalkFindsMovies(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.DXR", "a.dir", "sub/c.cst", "readme.txt", "sub/d.lua", "e.dcr", "sub/f.cct"} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("RIFX"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := NewWalker().Walk(dir)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	got := make([]string, len(entries))
	for i, e := range entries {
		rel, _ := filepath.Rel(dir, e.Path)
		got[i] = filepath.ToSlash(rel)
	}
	want := []string{"a.dir", "b.DXR", "sub/c.cst"}
	if len(got) != len(want) {
		t.Fatalf("entries: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %q, want %q", i, got[i], want[i])
		}
	}
	if entries[1].Ext != ".dxr" || entries[1].Size != 4 {
		t.Errorf("entry metadata: got %+v", entries[1])
	}
}

func TestWalkSingleFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "movie.bin")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := NewWalker().Walk(p)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if paths := Paths(entries); len(paths) != 1 || paths[0] != p {
		t.Errorf("paths: got %v", paths)
	}
}

func TestWalkMissingRoot(t *testing.T) {
	if _, err := NewWalker().Walk(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected an error for a missing root")
	}
}
