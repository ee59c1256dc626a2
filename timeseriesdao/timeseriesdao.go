// Package timeseriesdao implements the time-series backend adapter: an
// append-heavy Postgres table indexed on its timestamp column, with a
// windowed-aggregation query alongside the standard dao.DAO surface for
// callers that want bucketed rollups instead of row-by-row reads.
package timeseriesdao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"go.dataops.dev/dao"
	"go.dataops.dev/dlog"
	"go.dataops.dev/uuidv7"
)

// Config describes the table this adapter owns and its pool limits.
type Config struct {
	ConnString  string
	Table       string
	MaxPoolSize int32 // spec default: 10, lower than the relational adapter's since writes are append-only
}

// DataPoint is one bucket of a windowed aggregation.
type DataPoint struct {
	Timestamp time.Time
	Value     float64
}

// Adapter is a dao.DAO over one append-only Postgres table: every
// entity is stored as an opaque JSONB payload alongside an indexed
// timestamp column extracted from the entity's "timestamp" field (or
// the write time if absent), the way MetricsRepository.SaveRun stamps
// created_at and leaves the rest of the record inside a JSONB blob.
type Adapter struct {
	cfg  Config
	pool *pgxpool.Pool
	log  *logrus.Entry
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, log: dlog.ForStorage("timeseriesdao", cfg.Table)}
}

func (a *Adapter) Connect(ctx context.Context) error {
	if !dao.ValidIdentifier(a.cfg.Table) {
		return fmt.Errorf("timeseriesdao: invalid table identifier %q", a.cfg.Table)
	}
	poolCfg, err := pgxpool.ParseConfig(a.cfg.ConnString)
	if err != nil {
		return fmt.Errorf("timeseriesdao: parse connection string: %w", err)
	}
	if a.cfg.MaxPoolSize > 0 {
		poolCfg.MaxConns = a.cfg.MaxPoolSize
	} else {
		poolCfg.MaxConns = 10
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("timeseriesdao: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("timeseriesdao: ping: %w", err)
	}
	a.pool = pool
	return a.ensureTable(ctx)
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) error { return a.pool.Ping(ctx) }
func (a *Adapter) Health(ctx context.Context) error         { return a.TestConnection(ctx) }

func (a *Adapter) ensureTable(ctx context.Context) error {
	create := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			payload JSONB NOT NULL
		)`, a.cfg.Table)
	if _, err := a.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("timeseriesdao: create table: %w", err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_ts_btree ON %q (ts)`, a.cfg.Table, a.cfg.Table)
	if _, err := a.pool.Exec(ctx, idx); err != nil {
		a.log.Warnf("ts index creation failed (tolerated): %v", err)
	}
	return nil
}

// CreateIndexes is a no-op beyond the standing ts BTREE index: points
// have no declared schema to index against, only the JSONB payload.
func (a *Adapter) CreateIndexes(ctx context.Context, indexes []dao.IndexSpec) error { return nil }

func (a *Adapter) Create(ctx context.Context, entity dao.Entity) (string, error) {
	id, _ := entity["id"].(string)
	if id == "" {
		id = uuidv7.New()
	}
	ts := extractTimestamp(entity)
	query := fmt.Sprintf(`INSERT INTO %q (id, ts, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET ts = EXCLUDED.ts, payload = EXCLUDED.payload`, a.cfg.Table)
	if _, err := a.pool.Exec(ctx, query, id, ts, entity); err != nil {
		return "", fmt.Errorf("timeseriesdao: insert: %w", err)
	}
	return id, nil
}

// Update is tolerated for API symmetry but discouraged for this
// adapter's append-only workload: points are expected to be written
// once, not revised.
func (a *Adapter) Update(ctx context.Context, id string, patch dao.Entity) (bool, error) {
	existing, err := a.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	for k, v := range patch {
		existing[k] = v
	}
	existing["id"] = id
	if _, err := a.Create(ctx, existing); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := a.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = $1`, a.cfg.Table), id)
	if err != nil {
		return false, fmt.Errorf("timeseriesdao: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (a *Adapter) FindByID(ctx context.Context, id string) (dao.Entity, error) {
	row := a.pool.QueryRow(ctx, fmt.Sprintf(`SELECT payload FROM %q WHERE id = $1`, a.cfg.Table), id)
	var payload map[string]any
	if err := row.Scan(&payload); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("timeseriesdao: find by id: %w", err)
	}
	payload["id"] = id
	return payload, nil
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
	query := fmt.Sprintf(`SELECT id, payload FROM %q`, a.cfg.Table)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY ts DESC"
	query += fmt.Sprintf(" OFFSET $%d", len(params)+1)
	params = append(params, skip)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(params)+1)
		params = append(params, limit)
	}

	rows, err := a.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("timeseriesdao: find: %w", err)
	}
	defer rows.Close()

	var out []dao.Entity
	for rows.Next() {
		var id string
		var payload map[string]any
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		payload["id"] = id
		out = append(out, payload)
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
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = string(f.Name)
	}
	var out []dao.Entity
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		entity := make(dao.Entity, len(cols))
		for i, c := range cols {
			entity[c] = values[i]
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

// Aggregate buckets the numeric field across [from, to) into
// bucketWidth windows, mirroring GetAggregatedMetrics's hourly
// duration-average rollup but generalized to an arbitrary payload
// field, bucket width, and aggregation function ("avg", "sum", "min",
// "max", "count").
func (a *Adapter) Aggregate(ctx context.Context, field string, from, to time.Time, bucketWidth time.Duration, agg string) ([]DataPoint, error) {
	if !dao.ValidIdentifier(field) {
		return nil, fmt.Errorf("timeseriesdao: invalid field identifier %q", field)
	}
	fn := aggFunc(agg)
	interval := fmt.Sprintf("%d seconds", int64(bucketWidth.Seconds()))
	query := fmt.Sprintf(`
		SELECT to_timestamp(floor(extract(epoch FROM ts) / extract(epoch FROM interval '%s')) * extract(epoch FROM interval '%s')) AS bucket,
		       %s((payload->>%q)::double precision) AS value
		FROM %q
		WHERE ts >= $1 AND ts < $2
		GROUP BY bucket
		ORDER BY bucket ASC`, interval, interval, fn, field, a.cfg.Table)

	rows, err := a.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("timeseriesdao: aggregate: %w", err)
	}
	defer rows.Close()

	var out []DataPoint
	for rows.Next() {
		var bucket time.Time
		var value *float64
		if err := rows.Scan(&bucket, &value); err != nil {
			return nil, err
		}
		if value != nil {
			out = append(out, DataPoint{Timestamp: bucket, Value: *value})
		}
	}
	return out, rows.Err()
}

func aggFunc(agg string) string {
	switch agg {
	case "sum":
		return "sum"
	case "min":
		return "min"
	case "max":
		return "max"
	case "count":
		return "count"
	default:
		return "avg"
	}
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
	return map[string]any{"table": a.cfg.Table, "backend": "timeseries"}, nil
}

func (a *Adapter) GetModelSchema(ctx context.Context, model string) (map[string]any, error) {
	return a.GetModelInfo(ctx, model)
}

func (a *Adapter) GetModelFields(ctx context.Context, model string) ([]string, error) {
	return []string{"id", "ts", "payload"}, nil
}

func (a *Adapter) GetModelIndexes(ctx context.Context, model string) ([]dao.IndexSpec, error) {
	return []dao.IndexSpec{{Field: "ts", Kind: "timestamp"}}, nil
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

// extractTimestamp pulls a "timestamp" field off the entity if present
// (accepting time.Time or RFC3339 string), falling back to the write
// time otherwise.
func extractTimestamp(entity dao.Entity) time.Time {
	switch v := entity["timestamp"].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Now()
}

// sqlWhere renders a dao.Query against the JSONB payload column, the
// same ->> text-extraction technique vectordao uses, since points have
// no declared schema to filter against.
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
		return "", fmt.Errorf("timeseriesdao: invalid field identifier %q", q.Field())
	}
	switch q.Kind() {
	case "eq":
		if q.Value() == nil {
			return fmt.Sprintf("payload->>'%s' IS NULL", q.Field()), nil
		}
		*params = append(*params, fmt.Sprintf("%v", q.Value()))
		return fmt.Sprintf("payload->>'%s' = $%d", q.Field(), len(*params)+next-1), nil
	case "cmp":
		*params = append(*params, q.Value())
		return fmt.Sprintf("(payload->>'%s')::double precision %s $%d", q.Field(), sqlOp(q.Op()), len(*params)+next-1), nil
	case "in":
		values := make([]string, 0, len(q.Values()))
		for _, v := range q.Values() {
			values = append(values, fmt.Sprintf("%v", v))
		}
		*params = append(*params, values)
		return fmt.Sprintf("payload->>'%s' = ANY($%d)", q.Field(), len(*params)+next-1), nil
	case "regex":
		*params = append(*params, q.Pattern())
		return fmt.Sprintf("payload->>'%s' ~ $%d", q.Field(), len(*params)+next-1), nil
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
		return "", fmt.Errorf("timeseriesdao: unsupported query kind %q", q.Kind())
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
