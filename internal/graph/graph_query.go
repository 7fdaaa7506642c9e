package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// DanglingResult is one unresolved member link stored in the graph.
type DanglingResult struct {
	File    string
	Library string
	Member  int64
	Name    string
	ChunkID int64
	FourCC  string
	Reason  string
}

// GraphQuerier reads the cross-reference graph.
type GraphQuerier struct {
	driver neo4j.DriverWithContext
}

// NewGraphQuerier creates a new graph querier.
func NewGraphQuerier(driver neo4j.DriverWithContext) *GraphQuerier {
	return &GraphQuerier{driver: driver}
}

// DanglingLinks lists every dangling member link, optionally limited to
// movies whose file path contains fileFilter.
func (gq *GraphQuerier) DanglingLinks(ctx context.Context, fileFilter string) ([]DanglingResult, error) {
	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (m:Movie)-[:HAS_LIBRARY]->(l:CastLibrary)-[:HAS_MEMBER]->(mem:Member)-[r:DANGLING]->(c:Chunk)
		WHERE $filter = '' OR m.file CONTAINS $filter
		RETURN m.file AS file, l.name AS library, mem.id AS member, mem.name AS name,
		       c.id AS chunk, c.fourcc AS fourcc, r.reason AS reason
		ORDER BY file, library, member, chunk
	`, map[string]any{"filter": fileFilter})
	if err != nil {
		return nil, fmt.Errorf("query dangling links: %w", err)
	}

	var out []DanglingResult
	for result.Next(ctx) {
		record := result.Record()
		file, _ := record.Get("file")
		library, _ := record.Get("library")
		member, _ := record.Get("member")
		name, _ := record.Get("name")
		chunk, _ := record.Get("chunk")
		fourcc, _ := record.Get("fourcc")
		reason, _ := record.Get("reason")

		out = append(out, DanglingResult{
			File:    fmt.Sprintf("%v", file),
			Library: fmt.Sprintf("%v", library),
			Member:  asInt(member),
			Name:    fmt.Sprintf("%v", name),
			ChunkID: asInt(chunk),
			FourCC:  fmt.Sprintf("%v", fourcc),
			Reason:  fmt.Sprintf("%v", reason),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read dangling links: %w", err)
	}

	log.Debug().Int("links", len(out)).Msg("Graph query complete")
	return out, nil
}

func asInt(v any) int64 {
	if n, ok := v.(int64); ok {
		return n
	}
	return 0
}
