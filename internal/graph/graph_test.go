package graph

import (
	"strings"
	"testing"

	"cast-extractor/internal/cast"
	"cast-extractor/internal/extract"
)

func TestStatements(t *testing.T) {
	rep := &extract.Report{
		File:   "movie.dir",
		Status: extract.StatusOK,
		Mode:   extract.ModeIndexed,
		Chunks: []extract.Chunk{{ID: 3, FourCC: "CASt"}, {ID: 4, FourCC: "STXT"}},
		Libraries: []extract.LibraryReport{{
			ID:   cast.FirstLibraryID,
			Name: "Internal",
			Members: []extract.MemberReport{{
				ID:       1,
				ChunkID:  3,
				Name:     "Greeting",
				Linked:   []uint32{4},
				Dangling: []cast.DanglingLink{{ID: 9, FourCC: "snd ", Reason: "not in index"}},
				Outcome:  extract.OutcomeDecoded,
			}},
		}},
	}

	stmts := Statements(rep)
	// movie, two chunks, library, member, link, dangling link
	if len(stmts) != 7 {
		t.Fatalf("statements: got %d", len(stmts))
	}
	if !strings.Contains(stmts[0].Cypher, "MERGE (m:Movie") || stmts[0].Params["file"] != "movie.dir" {
		t.Errorf("movie statement: %+v", stmts[0])
	}
	link := stmts[5]
	if link.Params["member"] != "movie.dir#1024#1" || link.Params["chunk"] != "movie.dir@4" {
		t.Errorf("link params: %v", link.Params)
	}
	dangling := stmts[6]
	if !strings.Contains(dangling.Cypher, "DANGLING") || dangling.Params["reason"] != "not in index" {
		t.Errorf("dangling statement: %+v", dangling)
	}
}

func TestStatementsRawDump(t *testing.T) {
	rep := &extract.Report{
		File:   "raw.dir",
		Status: extract.StatusPartial,
		Mode:   extract.ModeRawDump,
		Chunks: []extract.Chunk{{ID: 1, FourCC: "XXXX", Synthetic: true}},
	}
	stmts := Statements(rep)
	if len(stmts) != 2 {
		t.Fatalf("statements: got %d", len(stmts))
	}
	if stmts[1].Params["synthetic"] != true {
		t.Errorf("chunk params: %v", stmts[1].Params)
	}
}
