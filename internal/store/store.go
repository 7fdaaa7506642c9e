// Package store persists extraction reports and their recovered strings in
// PostgreSQL, with pgvector fingerprints for near-duplicate search.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"cast-extractor/internal/export"
	"cast-extractor/internal/extract"
	"cast-extractor/internal/textutil"
	"cast-extractor/internal/worker"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

const insertBatchSize = 500

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS extraction_runs (
		id UUID PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS extraction_reports (
		id UUID PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES extraction_runs(id),
		file TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		mode TEXT NOT NULL,
		signature TEXT NOT NULL,
		codec TEXT NOT NULL,
		summary JSONB NOT NULL,
		diagnostics JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS extraction_reports_hash_idx ON extraction_reports (content_hash)`,
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS extracted_texts (
		id BIGSERIAL PRIMARY KEY,
		report_id UUID NOT NULL REFERENCES extraction_reports(id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		chunk_id BIGINT NOT NULL,
		fourcc TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		text_hash TEXT NOT NULL,
		confidence REAL NOT NULL,
		fingerprint vector(%d)
	)`, FingerprintDims),
}

// Store writes reports for one extraction run.
type Store struct {
	pool  *pgxpool.Pool
	runID uuid.UUID
}

// New creates a store with a fresh run id.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, runID: uuid.New()}
}

// RunID identifies the reports written by this store.
func (s *Store) RunID() uuid.UUID { return s.runID }

// Migrate creates the tables and registers the run.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO extraction_runs (id) VALUES ($1) ON CONFLICT DO NOTHING`, s.runID); err != nil {
		return fmt.Errorf("register run: %w", err)
	}
	log.Info().Str("run", s.runID.String()).Msg("Store schema ensured")
	return nil
}

// SaveReport stores rep and every recovered string in one transaction.
func (s *Store) SaveReport(ctx context.Context, rep *extract.Report, contentHash string) (uuid.UUID, error) {
	id := uuid.New()
	summary, err := json.Marshal(rep.Summary)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode summary: %w", err)
	}
	diags, err := json.Marshal(rep.Diagnostics)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode diagnostics: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO extraction_reports (id, run_id, file, content_hash, status, mode, signature, codec, summary, diagnostics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, s.runID, rep.File, contentHash, string(rep.Status), string(rep.Mode), rep.Signature, rep.Codec, summary, diags)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert report %s: %w", rep.File, err)
	}

	entries := textEntries(export.Entries([]*extract.Report{rep}))
	for _, chunk := range worker.Batch(entries, insertBatchSize) {
		batch := &pgx.Batch{}
		for _, e := range chunk {
			var fp any
			if vec := Fingerprint(e.Text); vec != nil {
				fp = pgvector.NewVector(vec)
			}
			batch.Queue(`
				INSERT INTO extracted_texts (report_id, key, chunk_id, fourcc, kind, text, text_hash, confidence, fingerprint)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				id, e.Key, int64(e.ChunkID), e.FourCC, e.Kind, e.Text, textutil.Hash(e.Text), e.Confidence, fp)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return uuid.Nil, fmt.Errorf("insert texts for %s: %w", rep.File, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	log.Info().Str("file", rep.File).Str("report", id.String()).Int("texts", len(entries)).Msg("Stored report")
	return id, nil
}

func textEntries(entries []export.Entry) []export.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Text != "" {
			out = append(out, e)
		}
	}
	return out
}

// Match is a stored string similar to a query.
type Match struct {
	File     string
	Key      string
	Kind     string
	Text     string
	Distance float64
}

// Similar returns the k stored strings closest to text by fingerprint.
func (s *Store) Similar(ctx context.Context, text string, k int) ([]Match, error) {
	vec := Fingerprint(text)
	if vec == nil {
		return nil, fmt.Errorf("query %q is too short to fingerprint", text)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT r.file, t.key, t.kind, t.text, t.fingerprint <=> $1 AS distance
		FROM extracted_texts t
		JOIN extraction_reports r ON r.id = t.report_id
		WHERE t.fingerprint IS NOT NULL
		ORDER BY t.fingerprint <=> $1
		LIMIT $2`, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.File, &m.Key, &m.Kind, &m.Text, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
