package filewalker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// SupportedExtensions lists the uncompressed Director movie and cast file
// types. Shockwave .dcr and .cct files are FGDM/FGDC containers and are left
// out; naming one directly still extracts it and reports a malformed header.
var SupportedExtensions = map[string]bool{
	".dir": true,
	".dxr": true,
	".cst": true,
	".cxt": true,
}

// Walker traverses directories looking for container files.
type Walker struct {
	extensions map[string]bool
}

// NewWalker creates a Walker for SupportedExtensions.
func NewWalker() *Walker {
	return &Walker{extensions: SupportedExtensions}
}

// FileEntry represents a discovered file ready for processing.
type FileEntry struct {
	Path string
	Ext  string
	Size int64
}

// Walk discovers all supported files under root. A root that is a single
// file is returned as-is regardless of extension. Entries are sorted by path.
func (w *Walker) Walk(root string) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return []FileEntry{{Path: root, Ext: strings.ToLower(filepath.Ext(root)), Size: info.Size()}}, nil
	}

	var entries []FileEntry

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}

		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !w.extensions[ext] {
			return nil
		}

		entries = append(entries, FileEntry{Path: path, Ext: ext, Size: info.Size()})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	log.Info().Int("count", len(entries)).Str("root", root).Msg("Discovered files")
	return entries, nil
}

// Paths returns the paths of entries.
func Paths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}
