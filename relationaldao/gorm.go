package relationaldao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"go.dataops.dev/dao"
	"go.dataops.dev/dlog"
)

// FixedRow is the declared-schema counterpart to the dynamic-schema
// Adapter's inferred columns: a GORM model with the same id/timestamps
// shape plus one JSONB catch-all for fields callers don't want to
// promote to real columns.
type FixedRow struct {
	ID        string `gorm:"primaryKey"`
	Data      []byte `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FixedRow) TableName() string { return "" } // overridden per-instance via db.Table(cfg.Table)

// FixedConfig configures the GORM-backed fixed-schema mode.
type FixedConfig struct {
	ConnString  string
	Table       string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
}

// FixedAdapter is a dao.DAO over one GORM-managed table whose schema
// is declared up front rather than inferred, for callers who prefer a
// known, migratable schema over the dynamic adapter's inference.
type FixedAdapter struct {
	cfg Config
	db  *gorm.DB
	log *logrus.Entry
}

// NewFixedAdapter constructs a FixedAdapter over the given table name.
// Connect sizes the connection pool at 10 idle and 20 open connections
// with a one-hour lifetime; FixedConfig's MaxIdle, MaxOpen and
// MaxLifetime are not applied.
func NewFixedAdapter(cfg FixedConfig) *FixedAdapter {
	return &FixedAdapter{
		cfg: Config{ConnString: cfg.ConnString, Table: cfg.Table},
		log: dlog.ForStorage("relationaldao.fixed", cfg.Table),
	}
}

func (a *FixedAdapter) Connect(ctx context.Context) error {
	if !dao.ValidIdentifier(a.cfg.Table) {
		return fmt.Errorf("relationaldao: invalid table identifier %q", a.cfg.Table)
	}
	db, err := gorm.Open(postgres.Open(a.cfg.ConnString), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("relationaldao: gorm open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("relationaldao: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.Table(a.cfg.Table).AutoMigrate(&FixedRow{}); err != nil {
		return fmt.Errorf("relationaldao: automigrate: %w", err)
	}
	a.db = db
	return nil
}

func (a *FixedAdapter) Disconnect(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (a *FixedAdapter) TestConnection(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *FixedAdapter) Health(ctx context.Context) error { return a.TestConnection(ctx) }

func (a *FixedAdapter) table() *gorm.DB { return a.db.Table(a.cfg.Table) }

func (a *FixedAdapter) Create(ctx context.Context, entity dao.Entity) (string, error) {
	row, err := entityToRow(entity)
	if err != nil {
		return "", err
	}
	if err := a.table().WithContext(ctx).Save(row).Error; err != nil {
		return "", fmt.Errorf("relationaldao: save: %w", err)
	}
	return row.ID, nil
}

func (a *FixedAdapter) Update(ctx context.Context, id string, patch dao.Entity) (bool, error) {
	existing, err := a.FindByID(ctx, id)
	if err != nil || existing == nil {
		return false, err
	}
	for k, v := range patch {
		existing[k] = v
	}
	existing["id"] = id
	_, err = a.Create(ctx, existing)
	return err == nil, err
}

func (a *FixedAdapter) Delete(ctx context.Context, id string) (bool, error) {
	res := a.table().WithContext(ctx).Delete(&FixedRow{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

func (a *FixedAdapter) FindByID(ctx context.Context, id string) (dao.Entity, error) {
	var row FixedRow
	err := a.table().WithContext(ctx).First(&row, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rowToEntity(row)
}

func (a *FixedAdapter) Exists(ctx context.Context, id string) (bool, error) {
	entity, err := a.FindByID(ctx, id)
	return entity != nil, err
}

func (a *FixedAdapter) FindOne(ctx context.Context, q dao.Query) (dao.Entity, error) {
	results, err := a.Find(ctx, q, 1, 0)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// Find loads candidate rows and filters in Go, since FixedRow stores
// payload fields inside one opaque JSONB blob rather than as columns
// a SQL WHERE clause can address directly.
func (a *FixedAdapter) Find(ctx context.Context, q dao.Query, limit, skip int) ([]dao.Entity, error) {
	var rows []FixedRow
	query := a.table().WithContext(ctx).Order("created_at")
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	var out []dao.Entity
	for _, row := range rows {
		entity, err := rowToEntity(row)
		if err != nil {
			continue
		}
		if dao.MatchesInMemory(q, entity) {
			out = append(out, entity)
		}
	}
	if skip < len(out) {
		out = out[skip:]
	} else {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (a *FixedAdapter) Count(ctx context.Context, q dao.Query) (int64, error) {
	results, err := a.Find(ctx, q, 0, 0)
	return int64(len(results)), err
}

func (a *FixedAdapter) BulkCreate(ctx context.Context, entities []dao.Entity) ([]string, error) {
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

func (a *FixedAdapter) BulkUpdate(ctx context.Context, updates map[string]dao.Entity) (int, error) {
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

func (a *FixedAdapter) BulkDelete(ctx context.Context, ids []string) (int, error) {
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

func (a *FixedAdapter) CreateIndexes(ctx context.Context, indexes []dao.IndexSpec) error {
	return nil // schema is declared, not evolved; migrations own indexing
}

func (a *FixedAdapter) RawReadQuery(ctx context.Context, query string, params map[string]any) ([]dao.Entity, error) {
	rows, err := a.db.WithContext(ctx).Raw(query, params).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []dao.Entity
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		entity := make(dao.Entity, len(cols))
		for i, c := range cols {
			entity[c] = values[i]
		}
		out = append(out, entity)
	}
	return out, nil
}

func (a *FixedAdapter) RawWriteQuery(ctx context.Context, query string, params map[string]any) (int64, error) {
	res := a.db.WithContext(ctx).Exec(query, params)
	return res.RowsAffected, res.Error
}

func (a *FixedAdapter) ListDatabases(ctx context.Context) ([]string, error) { return nil, nil }
func (a *FixedAdapter) ListSchemas(ctx context.Context) ([]string, error)   { return nil, nil }
func (a *FixedAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{a.cfg.Table}, nil
}
func (a *FixedAdapter) GetModelInfo(ctx context.Context, model string) (map[string]any, error) {
	return map[string]any{"table": a.cfg.Table, "mode": "fixed-schema"}, nil
}
func (a *FixedAdapter) GetModelSchema(ctx context.Context, model string) (map[string]any, error) {
	return a.GetModelInfo(ctx, model)
}
func (a *FixedAdapter) GetModelFields(ctx context.Context, model string) ([]string, error) {
	return []string{"id", "data", "created_at", "updated_at"}, nil
}
func (a *FixedAdapter) GetModelIndexes(ctx context.Context, model string) ([]dao.IndexSpec, error) {
	return nil, nil
}

func entityToRow(entity dao.Entity) (*FixedRow, error) {
	id, _ := entity["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("relationaldao: entity requires an id")
	}
	payload := make(dao.Entity, len(entity))
	for k, v := range entity {
		if k == "id" {
			continue
		}
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("relationaldao: marshal payload: %w", err)
	}
	return &FixedRow{ID: id, Data: raw}, nil
}

func rowToEntity(row FixedRow) (dao.Entity, error) {
	entity := make(dao.Entity)
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &entity); err != nil {
			return nil, fmt.Errorf("relationaldao: unmarshal payload: %w", err)
		}
	}
	entity["id"] = row.ID
	entity["created_at"] = row.CreatedAt
	entity["updated_at"] = row.UpdatedAt
	return entity, nil
}
