package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"
)

// Config holds pgvector store configuration.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string `koanf:"dsn"`

	// Table is the passages table name. Default: "passages".
	Table string `koanf:"table"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("%w: dsn required", ErrInvalidConfig)
	}
	return nil
}

// PGStore implements Store on PostgreSQL with the pgvector extension.
//
// Schema expectations: a table with columns id (text primary key),
// content (text), embedding (vector(N)), metadata (jsonb). The metadata
// column carries document_id, document_title, hierarchy, doc_type, status,
// and valid_until alongside free-form keys, so filters translate to JSONB
// predicates.
type PGStore struct {
	pool   *pgxpool.Pool
	table  string
	logger *zap.Logger
}

// New connects to PostgreSQL, registers pgvector types on each connection,
// and fails fast if the vector extension is missing.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*PGStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Table == "" {
		cfg.Table = "passages"
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing DSN: %v", ErrInvalidConfig, err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var extExists bool
	err = pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')",
	).Scan(&extExists)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: checking pgvector extension: %v", ErrStoreUnavailable, err)
	}
	if !extExists {
		pool.Close()
		return nil, fmt.Errorf("%w: pgvector extension not installed", ErrInvalidConfig)
	}

	logger.Info("connected to pgvector store",
		zap.String("table", cfg.Table))

	return &PGStore{pool: pool, table: cfg.Table, logger: logger}, nil
}

// Search performs ANN similarity search with cosine distance. Similarity is
// 1 - distance. Ordering is distance ascending then id ascending so equal
// similarities resolve deterministically.
func (s *PGStore) Search(ctx context.Context, embedding []float32, k int, filter *Filter) ([]ScoredPassage, error) {
	start := time.Now()

	where, args := buildFilterSQL(filter, 2)
	querySQL := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		%s
		ORDER BY embedding <=> $1, id ASC
		LIMIT %d`,
		s.table, where, k)

	allArgs := append([]any{pgvector.NewVector(embedding)}, args...)
	rows, err := s.pool.Query(ctx, querySQL, allArgs...)
	if err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: search: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	results := make([]ScoredPassage, 0, k)
	for rows.Next() {
		var (
			id, content  string
			metadataJSON []byte
			similarity   float32
		)
		if err := rows.Scan(&id, &content, &metadataJSON, &similarity); err != nil {
			searchesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
		}
		passage, err := parsePassage(id, content, metadataJSON)
		if err != nil {
			s.logger.Warn("skipping passage with malformed metadata",
				zap.String("id", id), zap.Error(err))
			continue
		}
		results = append(results, ScoredPassage{Passage: passage, Score: similarity})
	}
	if err := rows.Err(); err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: rows: %v", ErrStoreUnavailable, err)
	}

	searchesTotal.WithLabelValues("ok").Inc()
	searchDuration.Observe(time.Since(start).Seconds())
	return results, nil
}

// Fetch re-hydrates passages by ID. Order follows the input ID order;
// unknown IDs are dropped.
func (s *PGStore) Fetch(ctx context.Context, ids []string) ([]Passage, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	querySQL := fmt.Sprintf(
		`SELECT id, content, metadata FROM %s WHERE id = ANY($1)`, s.table)

	rows, err := s.pool.Query(ctx, querySQL, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	byID := make(map[string]Passage, len(ids))
	for rows.Next() {
		var (
			id, content  string
			metadataJSON []byte
		)
		if err := rows.Scan(&id, &content, &metadataJSON); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
		}
		passage, err := parsePassage(id, content, metadataJSON)
		if err != nil {
			s.logger.Warn("skipping passage with malformed metadata",
				zap.String("id", id), zap.Error(err))
			continue
		}
		byID[id] = passage
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrStoreUnavailable, err)
	}

	out := make([]Passage, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Dimension reads the vector column's declared dimension from the catalog.
func (s *PGStore) Dimension(ctx context.Context) (int, error) {
	var typmod int
	err := s.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		s.table,
	).Scan(&typmod)
	if err != nil {
		return 0, fmt.Errorf("%w: reading vector dimension: %v", ErrStoreUnavailable, err)
	}
	// pgvector stores the dimension directly in the type modifier.
	return typmod, nil
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// buildFilterSQL renders filter clauses as a parameterized WHERE fragment.
// Single-value clauses use JSONB containment so the GIN index applies;
// multi-value clauses fall back to ->> with ANY.
func buildFilterSQL(filter *Filter, firstArg int) (string, []any) {
	if filter.IsEmpty() {
		return "", nil
	}

	clauses := filter.Clauses()
	fields := make([]string, 0, len(clauses))
	for field := range clauses {
		fields = append(fields, field)
	}
	// Deterministic SQL text for equal filters.
	sort.Strings(fields)

	var (
		parts []string
		args  []any
		n     = firstArg
	)
	for _, field := range fields {
		values := clauses[field]
		if len(values) == 1 {
			containment, _ := json.Marshal(map[string]string{field: values[0]})
			parts = append(parts, fmt.Sprintf("metadata @> $%d::jsonb", n))
			args = append(args, string(containment))
			n++
			continue
		}
		parts = append(parts, fmt.Sprintf("metadata->>$%d = ANY($%d)", n, n+1))
		args = append(args, field, values)
		n += 2
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}

// parsePassage maps a row's metadata JSONB onto the typed passage fields,
// leaving unrecognized keys in Metadata untouched.
func parsePassage(id, content string, metadataJSON []byte) (Passage, error) {
	p := Passage{ID: id, Content: content}
	if len(metadataJSON) == 0 {
		return p, nil
	}

	var meta map[string]any
	if err := json.Unmarshal(metadataJSON, &meta); err != nil {
		return p, fmt.Errorf("parsing metadata: %w", err)
	}

	if v, ok := meta["document_id"].(string); ok {
		p.DocumentID = v
	}
	if v, ok := meta["document_title"].(string); ok {
		p.DocumentTitle = v
	}
	if v, ok := meta["doc_type"].(string); ok {
		p.DocType = DocType(v)
	}
	if v, ok := meta["status"].(string); ok {
		p.Status = Status(v)
	}
	if v, ok := meta["hierarchy"].([]any); ok {
		p.Hierarchy = make([]string, 0, len(v))
		for _, h := range v {
			if s, ok := h.(string); ok {
				p.Hierarchy = append(p.Hierarchy, s)
			}
		}
	}
	if v, ok := meta["valid_until"].(string); ok && v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.ValidUntil = &t
		}
	}
	p.Metadata = meta
	return p, nil
}
