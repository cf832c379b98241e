package vectorstore

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// FindingRecord is one archived finding chunk with its embedding.
type FindingRecord struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Content    string    `json:"content"`
	Source     string    `json:"source"`
	CitationID int       `json:"citation_id"`
	Confidence string    `json:"confidence,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// FindingsStore archives research findings in a pgvector table so completed
// sessions can be queried by the follow-up assistant.
type FindingsStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// isValidTableName validates that a table name contains only safe characters
// to prevent SQL injection attacks
func isValidTableName(name string) bool {
	// Table names must start with a letter or underscore and be between
	// 1-63 chars (PostgreSQL limit)
	matched, _ := regexp.MatchString(`^[a-z_][a-zA-Z0-9_]{0,62}$`, name)
	return matched
}

// NewFindingsStore creates a findings store bound to one collection table.
func NewFindingsStore(pool *pgxpool.Pool, tableName string) (*FindingsStore, error) {
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid table name: must contain only alphanumeric characters and underscores, start with a letter or underscore, and be 1-63 characters long")
	}
	return &FindingsStore{
		pool:      pool,
		tableName: tableName,
	}, nil
}

// Add inserts finding records in one batch.
func (s *FindingsStore) Add(ctx context.Context, records []FindingRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (job_id, content, source, citation_id, confidence, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, pgx.Identifier{s.tableName}.Sanitize())

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query, r.JobID, r.Content, r.Source, r.CitationID, r.Confidence, pgvector.NewVector(r.Embedding))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}
	return nil
}

// SearchHit is one similarity-search result with its cosine similarity.
type SearchHit struct {
	Record FindingRecord
	Score  float64
}

// SimilaritySearch returns the topK findings nearest to queryEmbedding,
// optionally restricted to a single source URL.
func (s *FindingsStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, sourceFilter string) ([]SearchHit, error) {
	embedding := pgvector.NewVector(queryEmbedding)

	var query string
	var args []interface{}
	if sourceFilter != "" {
		query = fmt.Sprintf(`
			SELECT id, job_id, content, source, citation_id, COALESCE(confidence, ''), 1 - (embedding <=> $1) as similarity
			FROM %s
			WHERE source = $2
			ORDER BY embedding <=> $1
			LIMIT $3
		`, pgx.Identifier{s.tableName}.Sanitize())
		args = []interface{}{embedding, sourceFilter, topK}
	} else {
		query = fmt.Sprintf(`
			SELECT id, job_id, content, source, citation_id, COALESCE(confidence, ''), 1 - (embedding <=> $1) as similarity
			FROM %s
			ORDER BY embedding <=> $1
			LIMIT $2
		`, pgx.Identifier{s.tableName}.Sanitize())
		args = []interface{}{embedding, topK}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		if err := rows.Scan(&hit.Record.ID, &hit.Record.JobID, &hit.Record.Content, &hit.Record.Source,
			&hit.Record.CitationID, &hit.Record.Confidence, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return hits, nil
}

// GetBySource returns every archived finding for one source URL.
func (s *FindingsStore) GetBySource(ctx context.Context, source string) ([]FindingRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, job_id, content, source, citation_id, COALESCE(confidence, '')
		FROM %s
		WHERE source = $1
		ORDER BY citation_id, created_at
	`, pgx.Identifier{s.tableName}.Sanitize())

	rows, err := s.pool.Query(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var records []FindingRecord
	for rows.Next() {
		var r FindingRecord
		if err := rows.Scan(&r.ID, &r.JobID, &r.Content, &r.Source, &r.CitationID, &r.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// SourceCitation pairs one archived source URL with its citation number.
type SourceCitation struct {
	Source     string `json:"source"`
	CitationID int    `json:"citation_id"`
}

// ListSources returns the distinct archived sources with their citation IDs,
// ordered by citation number.
func (s *FindingsStore) ListSources(ctx context.Context) ([]SourceCitation, error) {
	query := fmt.Sprintf(`
		SELECT source, MIN(citation_id)
		FROM %s
		GROUP BY source
		ORDER BY MIN(citation_id)
	`, pgx.Identifier{s.tableName}.Sanitize())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []SourceCitation
	for rows.Next() {
		var sc SourceCitation
		if err := rows.Scan(&sc.Source, &sc.CitationID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
