// Package relationaldao implements the relational backend adapter in
// its dynamic-schema mode: tables and columns are inferred from
// payload shape on first write and evolved as new fields appear. A
// fixed-schema mode built on GORM lives alongside it in gorm.go for
// callers that prefer declared models over inference.
package relationaldao

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.dataops.dev/dao"
	"go.dataops.dev/dlog"
)

// Config describes the table this adapter owns and its pool limits.
type Config struct {
	ConnString  string
	Table       string
	MaxPoolSize int32 // spec default: 20 for the dynamic-schema variant
}

// Adapter is a dao.DAO backed by one dynamically-evolving Postgres
// table: columns are inferred from payload types on first write and
// added via ALTER TABLE as new fields appear in later writes.
type Adapter struct {
	cfg  Config
	pool *pgxpool.Pool
	log  *logrus.Entry

	mu      sync.Mutex
	columns map[string]string // known column name -> sql type
	legacy  bool              // table has a catch-all "data" JSONB column
}

// NewAdapter constructs an Adapter for the given table.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, log: dlog.ForStorage("relationaldao", cfg.Table), columns: map[string]string{}}
}

func (a *Adapter) Connect(ctx context.Context) error {
	if !dao.ValidIdentifier(a.cfg.Table) {
		return fmt.Errorf("relationaldao: invalid table identifier %q", a.cfg.Table)
	}
	poolCfg, err := pgxpool.ParseConfig(a.cfg.ConnString)
	if err != nil {
		return fmt.Errorf("relationaldao: parse connection string: %w", err)
	}
	if a.cfg.MaxPoolSize > 0 {
		poolCfg.MaxConns = a.cfg.MaxPoolSize
	} else {
		poolCfg.MaxConns = 20
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("relationaldao: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("relationaldao: ping: %w", err)
	}
	a.pool = pool
	a.loadExistingColumns(ctx)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) error { return a.pool.Ping(ctx) }
func (a *Adapter) Health(ctx context.Context) error         { return a.TestConnection(ctx) }

// loadExistingColumns populates the column cache from
// information_schema so Create/Update know what already exists
// without issuing a DDL statement for columns that are already there,
// and detects a legacy catch-all "data" JSONB column.
func (a *Adapter) loadExistingColumns(ctx context.Context) {
	rows, err := a.pool.Query(ctx,
		`SELECT column_name, data_type FROM information_schema.columns WHERE table_name = $1`, a.cfg.Table)
	if err != nil {
		return // table doesn't exist yet; first write will create it
	}
	defer rows.Close()
	a.mu.Lock()
	defer a.mu.Unlock()
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			continue
		}
		a.columns[name] = kind
		if name == "data" && strings.Contains(kind, "json") {
			a.legacy = true
		}
	}
}

// sqlType maps a Go value's dynamic type to the column type this
// adapter uses for it, per the Python→SQL inference table.
func sqlType(v any) string {
	switch v.(type) {
	case string:
		return "TEXT"
	case bool:
		return "BOOLEAN"
	case int, int32, int64:
		return "BIGINT"
	case float32, float64:
		return "DOUBLE PRECISION"
	case time.Time:
		return "TIMESTAMPTZ"
	case []any, map[string]any:
		return "JSONB"
	default:
		return "JSONB"
	}
}

// ensureTable creates the table on first use and evolves its columns
// to cover every field in entity, skipping unsafe identifiers with a
// warning rather than failing the write.
func (a *Adapter) ensureTable(ctx context.Context, entity dao.Entity) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.columns) == 0 {
		create := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ DEFAULT now(),
				updated_at TIMESTAMPTZ DEFAULT now(),
				_metadata JSONB
			)`, a.cfg.Table)
		if _, err := a.pool.Exec(ctx, create); err != nil {
			return fmt.Errorf("relationaldao: create table: %w", err)
		}
		a.columns["id"] = "text"
		a.columns["created_at"] = "timestamptz"
		a.columns["updated_at"] = "timestamptz"
		a.columns["_metadata"] = "jsonb"
	}

	for field, value := range entity {
		if field == "id" {
			continue
		}
		if _, known := a.columns[field]; known {
			continue
		}
		if !dao.ValidIdentifier(field) {
			a.log.Warnf("skipping column for unsafe identifier %q", field)
			continue
		}
		kind := sqlType(value)
		alter := fmt.Sprintf(`ALTER TABLE %q ADD COLUMN IF NOT EXISTS %q %s`, a.cfg.Table, field, kind)
		if _, err := a.pool.Exec(ctx, alter); err != nil {
			a.log.Warnf("failed to add column %q: %v", field, err)
			continue
		}
		a.columns[field] = strings.ToLower(kind)

		switch kind {
		case "JSONB":
			idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_%s_gin ON %q USING gin (%q)`, a.cfg.Table, field, a.cfg.Table, field)
			if _, err := a.pool.Exec(ctx, idx); err != nil {
				a.log.Warnf("gin index creation for %q failed (tolerated): %v", field, err)
			}
		case "TIMESTAMPTZ":
			idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_%s_btree ON %q (%q)`, a.cfg.Table, field, a.cfg.Table, field)
			if _, err := a.pool.Exec(ctx, idx); err != nil {
				a.log.Warnf("btree index creation for %q failed (tolerated): %v", field, err)
			}
		}
	}
	return nil
}

func (a *Adapter) knownColumnsLocked() []string {
	cols := make([]string, 0, len(a.columns))
	for c := range a.columns {
		cols = append(cols, c)
	}
	return cols
}

func (a *Adapter) Create(ctx context.Context, entity dao.Entity) (string, error) {
	id, _ := entity["id"].(string)
	if id == "" {
		return "", fmt.Errorf("relationaldao: entity requires an id")
	}
	if a.legacy {
		if _, ok := entity["data"]; !ok {
			entity = cloneEntity(entity)
			entity["data"] = map[string]any{}
		}
	}
	if err := a.ensureTable(ctx, entity); err != nil {
		return "", err
	}

	a.mu.Lock()
	cols := make([]string, 0, len(entity))
	placeholders := make([]string, 0, len(entity))
	args := make([]any, 0, len(entity))
	i := 1
	for field, value := range entity {
		if field == "id" {
			continue
		}
		if _, known := a.columns[field]; !known {
			continue
		}
		cols = append(cols, fmt.Sprintf("%q", field))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		args = append(args, value)
		i++
	}
	a.mu.Unlock()

	cols = append([]string{"id"}, cols...)
	placeholders = append([]string{fmt.Sprintf("$%d", i)}, placeholders...)
	args = append(args, id)

	setClauses := make([]string, 0, len(cols))
	for _, c := range cols[1:] {
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	setClauses = append(setClauses, "updated_at = now()")

	query := fmt.Sprintf(
		`INSERT INTO %q (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		a.cfg.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(setClauses, ", "))

	if _, err := a.pool.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("relationaldao: upsert: %w", err)
	}
	return id, nil
}

func (a *Adapter) Update(ctx context.Context, id string, patch dao.Entity) (bool, error) {
	merged := cloneEntity(patch)
	merged["id"] = id
	_, err := a.Create(ctx, merged)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) Delete(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %q WHERE id = $1`, a.cfg.Table)
	tag, err := a.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("relationaldao: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (a *Adapter) FindByID(ctx context.Context, id string) (dao.Entity, error) {
	a.mu.Lock()
	cols := a.knownColumnsLocked()
	a.mu.Unlock()
	if len(cols) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM %q WHERE id = $1`, quotedList(cols), a.cfg.Table)
	rows, err := a.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("relationaldao: find by id: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRow(rows, cols)
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
	a.mu.Lock()
	cols := a.knownColumnsLocked()
	a.mu.Unlock()
	if len(cols) == 0 {
		return nil, nil
	}
	where, params, err := columnWhere(q, 1)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %q`, quotedList(cols), a.cfg.Table)
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
		return nil, fmt.Errorf("relationaldao: find: %w", err)
	}
	defer rows.Close()

	var out []dao.Entity
	for rows.Next() {
		entity, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

func (a *Adapter) Count(ctx context.Context, q dao.Query) (int64, error) {
	where, params, err := columnWhere(q, 1)
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

func (a *Adapter) CreateIndexes(ctx context.Context, indexes []dao.IndexSpec) error {
	// Index creation is driven by ensureTable as columns appear; an
	// explicit call here just re-evolves against a probe entity's
	// declared fields so indexes exist even before the first real write.
	probe := make(dao.Entity, len(indexes))
	for _, idx := range indexes {
		switch idx.Kind {
		case "fulltext", "text":
			probe[idx.Field] = ""
		case "timestamp":
			probe[idx.Field] = time.Now()
		default:
			probe[idx.Field] = map[string]any{}
		}
	}
	return a.ensureTable(ctx, probe)
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
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = string(f.Name)
	}
	var out []dao.Entity
	for rows.Next() {
		entity, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
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
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{"table": a.cfg.Table, "columns": a.columns, "legacy_data_column": a.legacy}, nil
}

func (a *Adapter) GetModelSchema(ctx context.Context, model string) (map[string]any, error) {
	return a.GetModelInfo(ctx, model)
}

func (a *Adapter) GetModelFields(ctx context.Context, model string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.knownColumnsLocked(), nil
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

func cloneEntity(e dao.Entity) dao.Entity {
	out := make(dao.Entity, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	return out
}

func quotedList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(quoted, ", ")
}

func scanRow(rows pgx.Rows, cols []string) (dao.Entity, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, err
	}
	entity := make(dao.Entity, len(cols))
	for i, c := range cols {
		entity[c] = values[i]
	}
	return entity, nil
}

// columnWhere renders a dao.Query against real typed columns (as
// opposed to vectordao/timeseriesdao's JSONB text-extraction queries),
// since this adapter's fields are genuine SQL columns.
func columnWhere(q dao.Query, startAt int) (string, []any, error) {
	params := []any{}
	clause, err := renderColumnClause(q, &params, startAt)
	return clause, params, err
}

func renderColumnClause(q dao.Query, params *[]any, next int) (string, error) {
	if q.IsZero() {
		return "", nil
	}
	if q.Kind() != "and" && q.Kind() != "or" && !dao.ValidIdentifier(q.Field()) {
		return "", fmt.Errorf("relationaldao: invalid field identifier %q", q.Field())
	}
	switch q.Kind() {
	case "eq":
		if q.Value() == nil {
			return fmt.Sprintf("%q IS NULL", q.Field()), nil
		}
		*params = append(*params, q.Value())
		return fmt.Sprintf("%q = $%d", q.Field(), len(*params)+next-1), nil
	case "cmp":
		*params = append(*params, q.Value())
		return fmt.Sprintf("%q %s $%d", q.Field(), columnOp(q.Op()), len(*params)+next-1), nil
	case "in":
		*params = append(*params, q.Values())
		return fmt.Sprintf("%q = ANY($%d)", q.Field(), len(*params)+next-1), nil
	case "regex":
		*params = append(*params, q.Pattern())
		return fmt.Sprintf("%q ~ $%d", q.Field(), len(*params)+next-1), nil
	case "and", "or":
		parts := make([]string, 0, len(q.Clauses()))
		for _, c := range q.Clauses() {
			part, err := renderColumnClause(c, params, next)
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
		return "", fmt.Errorf("relationaldao: unsupported query kind %q", q.Kind())
	}
}

func columnOp(op dao.CmpOp) string {
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
