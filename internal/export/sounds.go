package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cast-extractor/internal/extract"

	"github.com/rs/zerolog/log"
)

// SoundFile is one written audio resource.
type SoundFile struct {
	Key  string
	Path string
	Size int
}

// WriteSounds writes the bytes of every sound link in rep into dir. buf must
// be the buffer the report was extracted from. When match is non-empty only
// members whose name contains it are written.
func WriteSounds(buf []byte, rep *extract.Report, dir, match string) ([]SoundFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []SoundFile
	var firstErr error
	rep.Members(func(lib extract.LibraryReport, m extract.MemberReport) {
		if match != "" && !strings.Contains(m.Name, match) {
			return
		}
		for i, s := range m.Sounds {
			end := s.Offset + uint64(s.Length)
			if end > uint64(len(buf)) {
				log.Warn().Str("member", m.Name).Uint32("chunk", s.ChunkID).Msg("Sound range past end of buffer, skipping")
				continue
			}
			name := fmt.Sprintf("%s_%d_%s", safeName(lib.Name), m.ID, safeName(m.Name))
			if i > 0 {
				name += fmt.Sprintf("_%d", i)
			}
			path := filepath.Join(dir, name+".snd")
			if err := os.WriteFile(path, buf[s.Offset:end], 0644); err != nil {
				log.Error().Err(err).Str("path", path).Msg("Write sound file")
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			written = append(written, SoundFile{Key: MemberKey(lib.Name, m.ID, m.Name), Path: path, Size: int(s.Length)})
		}
	})

	log.Info().Int("sounds", len(written)).Str("dir", dir).Msg("Exported sounds")
	return written, firstErr
}

func safeName(s string) string {
	if s == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, s)
}
