// Package vectordao implements the vector backend adapter on
// PostgreSQL with the pgvector extension, using
// github.com/jackc/pgx/v5/pgxpool — the teacher's lightweight
// alternative to GORM for direct SQL access (db/postgres_pgx.go).
package vectordao

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.dataops.dev/dao"
	"go.dataops.dev/dlog"
	"go.dataops.dev/embedding"
	"go.dataops.dev/uuidv7"
)

// Config describes the table and embedding dimension this adapter
// manages, plus the pool size spec.md §5 assigns the vector binding.
type Config struct {
	ConnString  string
	Table       string
	Dimension   int
	MaxPoolSize int32
}

// Scored pairs a found entity with its similarity distance, the
// out-of-band metadata VectorSearch attaches per spec.md §4.5.
type Scored struct {
	Entity   dao.Entity
	Distance float64
}

// VectorDAO is the dao.DAO contract plus the two similarity-search
// operations spec.md §4.5 names.
type VectorDAO interface {
	dao.DAO
	VectorSearch(ctx context.Context, query []float32, limit int) ([]Scored, error)
	SemanticSearch(ctx context.Context, text string, limit int) ([]Scored, error)
}

// Adapter is the VectorDAO implementation for one table/dimension pair.
type Adapter struct {
	cfg       Config
	pool      *pgxpool.Pool
	generator embedding.Generator
	log       *logrus.Entry
}

// NewAdapter constructs an Adapter; generator is used for
// SemanticSearch and to embed rows on Create/Update.
func NewAdapter(cfg Config, generator embedding.Generator) *Adapter {
	return &Adapter{cfg: cfg, generator: generator, log: dlog.ForStorage("vectordao", cfg.Table)}
}

func (a *Adapter) Connect(ctx context.Context) error {
	if !dao.ValidIdentifier(a.cfg.Table) {
		return fmt.Errorf("vectordao: invalid table identifier %q", a.cfg.Table)
	}
	poolCfg, err := pgxpool.ParseConfig(a.cfg.ConnString)
	if err != nil {
		return fmt.Errorf("vectordao: parse connection string: %w", err)
	}
	if a.cfg.MaxPoolSize > 0 {
		poolCfg.MaxConns = a.cfg.MaxPoolSize
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("vectordao: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("vectordao: ping: %w", err)
	}
	a.pool = pool

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		a.log.Warnf("could not ensure vector extension (tolerated, may already exist): %v", err)
	}

	createTable := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (
			id TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT now(),
			updated_at TIMESTAMP DEFAULT now()
		)`, a.cfg.Table, a.cfg.Dimension)
	if _, err := pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("vectordao: create table: %w", err)
	}

	ivfflat := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %q USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
		a.cfg.Table, a.cfg.Table)
	if _, err := pool.Exec(ctx, ivfflat); err != nil {
		a.log.Warnf("ivfflat index creation failed (tolerated): %v", err)
	}

	a.log.Infof("connected, table ensured")
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.TestConnection(ctx)
}

// CreateIndexes adds a gin+gin_trgm_ops index for fulltext-declared
// fields and a plain btree expression index on data->'field' for
// everything else, per spec.md §4.5.
func (a *Adapter) CreateIndexes(ctx context.Context, indexes []dao.IndexSpec) error {
	for _, idx := range indexes {
		if !dao.ValidIdentifier(idx.Field) {
			a.log.Warnf("skipping index on invalid field identifier %q", idx.Field)
			continue
		}
		var stmt string
		switch idx.Kind {
		case "fulltext", "text":
			stmt = fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %s_%s_trgm_idx ON %q USING gin ((data->>'%s') gin_trgm_ops)`,
				a.cfg.Table, idx.Field, a.cfg.Table, idx.Field)
		default:
			stmt = fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %s_%s_idx ON %q ((data->'%s'))`,
				a.cfg.Table, idx.Field, a.cfg.Table, idx.Field)
		}
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			a.log.Warnf("index creation for %q failed (tolerated): %v", idx.Field, err)
		}
	}
	return nil
}

func (a *Adapter) embedEntity(ctx context.Context, entity dao.Entity) ([]float32, error) {
	return embedding.EmbedEntity(ctx, a.generator, entity)
}

func (a *Adapter) Create(ctx context.Context, entity dao.Entity) (string, error) {
	id, _ := entity["id"].(string)
	if id == "" {
		id = uuidv7.New()
		entity["id"] = id
	}
	payload, err := json.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("vectordao: marshal entity: %w", err)
	}
	vec, err := a.embedEntity(ctx, entity)
	if err != nil {
		return "", fmt.Errorf("vectordao: embed: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %q (id, data, embedding) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET data = $2, embedding = $3, updated_at = now()`, a.cfg.Table)
	if _, err := a.pool.Exec(ctx, query, id, payload, vecLiteral(vec)); err != nil {
		return "", fmt.Errorf("vectordao: insert: %w", err)
	}
	return id, nil
}

// Update re-reads the current JSON, merges patch over it, regenerates
// the embedding from the merged document, and writes both back.
func (a *Adapter) Update(ctx context.Context, id string, patch dao.Entity) (bool, error) {
	existing, err := a.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	merged := make(dao.Entity, len(existing)+len(patch))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	if _, err := a.Create(ctx, merged); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) Delete(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %q WHERE id = $1`, a.cfg.Table)
	tag, err := a.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("vectordao: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (a *Adapter) FindByID(ctx context.Context, id string) (dao.Entity, error) {
	query := fmt.Sprintf(`SELECT data FROM %q WHERE id = $1`, a.cfg.Table)
	row := a.pool.QueryRow(ctx, query, id)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("vectordao: find by id: %w", err)
	}
	var entity dao.Entity
	if err := json.Unmarshal(raw, &entity); err != nil {
		return nil, fmt.Errorf("vectordao: unmarshal: %w", err)
	}
	return entity, nil
}

func (a *Adapter) Exists(ctx context.Context, id string) (bool, error) {
	entity, err := a.FindByID(ctx, id)
	return entity != nil, err
}

func (a *Adapter) FindOne(ctx context.Context, q dao.Query) (dao.Entity, error) {
	results, err := a.Find(ctx, q, 1, 0)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

func (a *Adapter) Find(ctx context.Context, q dao.Query, limit, skip int) ([]dao.Entity, error) {
	where, params, err := sqlWhere(q, 1)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT data FROM %q`, a.cfg.Table)
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" OFFSET $%d", len(params)+1)
	params = append(params, skip)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(params)+1)
		params = append(params, limit)
	}

	rows, err := a.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("vectordao: find: %w", err)
	}
	defer rows.Close()

	var out []dao.Entity
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var entity dao.Entity
		if err := json.Unmarshal(raw, &entity); err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

func (a *Adapter) Count(ctx context.Context, q dao.Query) (int64, error) {
	where, params, err := sqlWhere(q, 1)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT count(*) FROM %q`, a.cfg.Table)
	if where != "" {
		query += " WHERE " + where
	}
	var count int64
	err = a.pool.QueryRow(ctx, query, params...).Scan(&count)
	return count, err
}

func (a *Adapter) BulkCreate(ctx context.Context, entities []dao.Entity) ([]string, error) {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		id, err := a.Create(ctx, e)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *Adapter) BulkUpdate(ctx context.Context, updates map[string]dao.Entity) (int, error) {
	n := 0
	for id, patch := range updates {
		ok, err := a.Update(ctx, id, patch)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (a *Adapter) BulkDelete(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		ok, err := a.Delete(ctx, id)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (a *Adapter) RawReadQuery(ctx context.Context, query string, params map[string]any) ([]dao.Entity, error) {
	args := make([]any, 0, len(params))
	for _, v := range params {
		args = append(args, v)
	}
	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []dao.Entity
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(dao.Entity, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (a *Adapter) RawWriteQuery(ctx context.Context, query string, params map[string]any) (int64, error) {
	args := make([]any, 0, len(params))
	for _, v := range params {
		args = append(args, v)
	}
	tag, err := a.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	return a.scanStrings(ctx, "SELECT datname FROM pg_database WHERE datistemplate = false")
}

func (a *Adapter) ListSchemas(ctx context.Context) ([]string, error) {
	return a.scanStrings(ctx, "SELECT schema_name FROM information_schema.schemata")
}

func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{a.cfg.Table}, nil
}

func (a *Adapter) GetModelInfo(ctx context.Context, model string) (map[string]any, error) {
	return map[string]any{"table": a.cfg.Table, "dimension": a.cfg.Dimension, "backend": "vector"}, nil
}

func (a *Adapter) GetModelSchema(ctx context.Context, model string) (map[string]any, error) {
	return a.GetModelInfo(ctx, model)
}

func (a *Adapter) GetModelFields(ctx context.Context, model string) ([]string, error) {
	return []string{"id", "data", "embedding", "created_at", "updated_at"}, nil
}

func (a *Adapter) GetModelIndexes(ctx context.Context, model string) ([]dao.IndexSpec, error) {
	return nil, nil
}

func (a *Adapter) scanStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// VectorSearch ranks rows by pgvector's <-> (Euclidean) distance to
// query.
func (a *Adapter) VectorSearch(ctx context.Context, query []float32, limit int) ([]Scored, error) {
	sql := fmt.Sprintf(
		`SELECT data, embedding <-> $1 AS distance FROM %q ORDER BY embedding <-> $1 LIMIT $2`, a.cfg.Table)
	rows, err := a.pool.Query(ctx, sql, vecLiteral(query), limit)
	if err != nil {
		return nil, fmt.Errorf("vectordao: vector search: %w", err)
	}
	defer rows.Close()

	var out []Scored
	for rows.Next() {
		var raw []byte
		var distance float64
		if err := rows.Scan(&raw, &distance); err != nil {
			return nil, err
		}
		var entity dao.Entity
		if err := json.Unmarshal(raw, &entity); err != nil {
			return nil, err
		}
		out = append(out, Scored{Entity: entity, Distance: distance})
	}
	return out, rows.Err()
}

// SemanticSearch embeds text then delegates to VectorSearch.
func (a *Adapter) SemanticSearch(ctx context.Context, text string, limit int) ([]Scored, error) {
	vec, err := a.generator.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectordao: embed query text: %w", err)
	}
	return a.VectorSearch(ctx, vec, limit)
}

func vecLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// sqlWhere renders a dao.Query as a parameterized `data->>'field'`
// predicate list starting at placeholder index startAt, casting
// numeric/boolean literals so Postgres compares them against the JSONB
// value correctly; NULL matches IS NULL and consumes no parameter slot.
func sqlWhere(q dao.Query, startAt int) (string, []any, error) {
	params := []any{}
	clause, err := renderSQLClause(q, &params, startAt)
	return clause, params, err
}

func renderSQLClause(q dao.Query, params *[]any, next int) (string, error) {
	if q.IsZero() {
		return "", nil
	}
	if q.Kind() != "and" && q.Kind() != "or" && !dao.ValidIdentifier(q.Field()) {
		return "", fmt.Errorf("vectordao: invalid field identifier %q", q.Field())
	}
	switch q.Kind() {
	case "eq":
		if q.Value() == nil {
			return fmt.Sprintf("data->>'%s' IS NULL", q.Field()), nil
		}
		*params = append(*params, fmt.Sprintf("%v", q.Value()))
		if cast := castSuffix(q.Value()); cast != "" {
			return fmt.Sprintf("(data->>'%s')%s = $%d%s", q.Field(), cast, len(*params)+next-1, cast), nil
		}
		return fmt.Sprintf("data->>'%s' = $%d", q.Field(), len(*params)+next-1), nil
	case "cmp":
		*params = append(*params, fmt.Sprintf("%v", q.Value()))
		return fmt.Sprintf("(data->>'%s')%s %s $%d%s", q.Field(), castSuffix(q.Value()), sqlOp(q.Op()), len(*params)+next-1, castSuffix(q.Value())), nil
	case "in":
		*params = append(*params, q.Values())
		return fmt.Sprintf("data->>'%s' = ANY($%d)", q.Field(), len(*params)+next-1), nil
	case "regex":
		*params = append(*params, q.Pattern())
		return fmt.Sprintf("data->>'%s' ~ $%d", q.Field(), len(*params)+next-1), nil
	case "and", "or":
		parts := make([]string, 0, len(q.Clauses()))
		for _, c := range q.Clauses() {
			part, err := renderSQLClause(c, params, next)
			if err != nil {
				return "", err
			}
			if part != "" {
				parts = append(parts, "("+part+")")
			}
		}
		sep := " AND "
		if q.Kind() == "or" {
			sep = " OR "
		}
		return strings.Join(parts, sep), nil
	default:
		return "", fmt.Errorf("vectordao: unsupported query kind %q", q.Kind())
	}
}

func castSuffix(v any) string {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return "::numeric"
	case bool:
		return "::boolean"
	default:
		return ""
	}
}

func sqlOp(op dao.CmpOp) string {
	switch op {
	case dao.OpGT:
		return ">"
	case dao.OpGTE:
		return ">="
	case dao.OpLT:
		return "<"
	case dao.OpLTE:
		return "<="
	case dao.OpNE:
		return "<>"
	default:
		return "="
	}
}
