package graph

import (
	"context"
	"fmt"

	"cast-extractor/internal/extract"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// Statement is one parameterised Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// GraphBuilder writes the cross-reference graph of extracted movies:
// Movie -> CastLibrary -> Member -> Chunk, plus DANGLING edges for links
// that failed resolution.
type GraphBuilder struct {
	driver neo4j.DriverWithContext
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder(driver neo4j.DriverWithContext) *GraphBuilder {
	return &GraphBuilder{driver: driver}
}

// EnsureSchema creates constraints and indexes on the Neo4j database.
func (gb *GraphBuilder) EnsureSchema(ctx context.Context) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (m:Movie) REQUIRE m.file IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (l:CastLibrary) REQUIRE l.key IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (m:Member) REQUIRE m.key IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (c:Chunk) REQUIRE c.key IS UNIQUE",
	}

	for _, c := range constraints {
		if _, err := session.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	log.Info().Msg("Graph schema ensured")
	return nil
}

// AddReport writes one report. Statements for a file run in a single write
// transaction so a failure leaves no half-written movie.
func (gb *GraphBuilder) AddReport(ctx context.Context, rep *extract.Report) error {
	stmts := Statements(rep)

	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, s := range stmts {
			if _, err := tx.Run(ctx, s.Cypher, s.Params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("write graph for %s: %w", rep.File, err)
	}

	log.Info().Str("file", rep.File).Int("statements", len(stmts)).Msg("Wrote cross-reference graph")
	return nil
}

func libraryKey(file string, lib uint32) string { return fmt.Sprintf("%s#%d", file, lib) }

func memberKey(file string, lib, member uint32) string {
	return fmt.Sprintf("%s#%d#%d", file, lib, member)
}

func chunkKey(file string, id uint32) string { return fmt.Sprintf("%s@%d", file, id) }

// Statements builds the Cypher for one report. Only indexed reports carry
// libraries; raw dumps contribute the movie and its chunks.
func Statements(rep *extract.Report) []Statement {
	stmts := []Statement{{
		Cypher: `
			MERGE (m:Movie {file: $file})
			SET m.signature = $signature,
			    m.codec = $codec,
			    m.status = $status,
			    m.mode = $mode`,
		Params: map[string]any{
			"file":      rep.File,
			"signature": rep.Signature,
			"codec":     rep.Codec,
			"status":    string(rep.Status),
			"mode":      string(rep.Mode),
		},
	}}

	for _, c := range rep.Chunks {
		stmts = append(stmts, Statement{
			Cypher: `
				MATCH (m:Movie {file: $file})
				MERGE (c:Chunk {key: $key})
				SET c.id = $id, c.fourcc = $fourcc, c.offset = $offset, c.length = $length, c.synthetic = $synthetic
				MERGE (m)-[:CONTAINS]->(c)`,
			Params: map[string]any{
				"file":      rep.File,
				"key":       chunkKey(rep.File, c.ID),
				"id":        int64(c.ID),
				"fourcc":    c.FourCC,
				"offset":    int64(c.Offset),
				"length":    int64(c.Length),
				"synthetic": c.Synthetic,
			},
		})
	}

	for _, lib := range rep.Libraries {
		lk := libraryKey(rep.File, lib.ID)
		stmts = append(stmts, Statement{
			Cypher: `
				MATCH (m:Movie {file: $file})
				MERGE (l:CastLibrary {key: $key})
				SET l.name = $name, l.id = $id
				MERGE (m)-[:HAS_LIBRARY]->(l)`,
			Params: map[string]any{"file": rep.File, "key": lk, "name": lib.Name, "id": int64(lib.ID)},
		})

		for _, mem := range lib.Members {
			mk := memberKey(rep.File, lib.ID, mem.ID)
			stmts = append(stmts, Statement{
				Cypher: `
					MATCH (l:CastLibrary {key: $library})
					MERGE (mem:Member {key: $key})
					SET mem.id = $id, mem.name = $name, mem.cast_type = $type, mem.outcome = $outcome
					MERGE (l)-[:HAS_MEMBER]->(mem)`,
				Params: map[string]any{
					"library": lk,
					"key":     mk,
					"id":      int64(mem.ID),
					"name":    mem.Name,
					"type":    mem.Type,
					"outcome": string(mem.Outcome),
				},
			})
			for _, id := range mem.Linked {
				stmts = append(stmts, Statement{
					Cypher: `
						MATCH (mem:Member {key: $member})
						MATCH (c:Chunk {key: $chunk})
						MERGE (mem)-[:LINKS]->(c)`,
					Params: map[string]any{"member": mk, "chunk": chunkKey(rep.File, id)},
				})
			}
			for _, d := range mem.Dangling {
				stmts = append(stmts, Statement{
					Cypher: `
						MATCH (mem:Member {key: $member})
						MERGE (c:Chunk {key: $chunk})
						ON CREATE SET c.id = $id, c.fourcc = $fourcc, c.missing = true
						MERGE (mem)-[r:DANGLING]->(c)
						SET r.reason = $reason`,
					Params: map[string]any{
						"member": mk,
						"chunk":  chunkKey(rep.File, d.ID),
						"id":     int64(d.ID),
						"fourcc": d.FourCC,
						"reason": d.Reason,
					},
				})
			}
		}
	}
	return stmts
}
