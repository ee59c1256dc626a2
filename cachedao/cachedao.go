// Package cachedao implements the cache backend adapter on Redis:
// namespaced keys, a companion metadata hash per entry, and
// per-indexed-field sets for constant-time filter lookups.
package cachedao

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"go.dataops.dev/dao"
	"go.dataops.dev/dlog"
	"go.dataops.dev/uuidv7"
)

const defaultTTL = 24 * time.Hour

// Config describes the Redis connection and the collection namespace
// this adapter manages.
type Config struct {
	RedisURL    string
	Collection  string
	IndexFields []string // fields maintained as {collection}:idx:{field}:{value} sets
}

// Adapter is a dao.DAO over one namespaced Redis collection.
type Adapter struct {
	cfg    Config
	client *redis.Client
	log    *logrus.Entry
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, log: dlog.ForStorage("cachedao", cfg.Collection)}
}

func (a *Adapter) Connect(ctx context.Context) error {
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("cachedao: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cachedao: ping: %w", err)
	}
	a.client = client
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error { return a.client.Close() }
func (a *Adapter) TestConnection(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}
func (a *Adapter) Health(ctx context.Context) error { return a.TestConnection(ctx) }

func (a *Adapter) key(id string) string     { return fmt.Sprintf("%s:%s", a.cfg.Collection, id) }
func (a *Adapter) metaKey(id string) string { return fmt.Sprintf("%s:meta:%s", a.cfg.Collection, id) }
func (a *Adapter) idxKey(field string, value any) string {
	return fmt.Sprintf("%s:idx:%s:%v", a.cfg.Collection, field, value)
}
func (a *Adapter) prefix() string { return a.cfg.Collection + ":" }

func (a *Adapter) CreateIndexes(ctx context.Context, indexes []dao.IndexSpec) error {
	fields := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		fields = append(fields, idx.Field)
	}
	a.cfg.IndexFields = fields
	return nil
}

// Create encodes entity as JSON with a TTL (default 24h, overridable
// via an "_ttl" seconds field), records companion metadata, and adds
// the id to every configured index-field set.
func (a *Adapter) Create(ctx context.Context, entity dao.Entity) (string, error) {
	id, _ := entity["id"].(string)
	if id == "" {
		id = uuidv7.New()
		entity["id"] = id
	}

	ttl := defaultTTL
	if raw, ok := entity["_ttl"]; ok {
		if secs, ok := toSeconds(raw); ok {
			ttl = time.Duration(secs) * time.Second
		}
		delete(entity, "_ttl")
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("cachedao: marshal: %w", err)
	}

	pipe := a.client.TxPipeline()
	if ttl > 0 {
		pipe.Set(ctx, a.key(id), payload, ttl)
	} else {
		pipe.Set(ctx, a.key(id), payload, 0)
	}
	now := time.Now()
	meta := map[string]any{
		"created_at":    now.Format(time.RFC3339),
		"updated_at":    now.Format(time.RFC3339),
		"ttl":           int64(ttl / time.Second),
		"size":          len(payload),
		"last_accessed": now.Format(time.RFC3339),
		"last_touched":  now.Format(time.RFC3339),
	}
	pipe.HSet(ctx, a.metaKey(id), meta)
	if ttl > 0 {
		pipe.Expire(ctx, a.metaKey(id), ttl)
	}
	for _, field := range a.cfg.IndexFields {
		if value, ok := entity[field]; ok {
			pipe.SAdd(ctx, a.idxKey(field, value), id)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("cachedao: write: %w", err)
	}
	return id, nil
}

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
	entity, err := a.FindByID(ctx, id)
	if err != nil || entity == nil {
		return false, err
	}
	pipe := a.client.TxPipeline()
	pipe.Del(ctx, a.key(id))
	pipe.Del(ctx, a.metaKey(id))
	for _, field := range a.cfg.IndexFields {
		if value, ok := entity[field]; ok {
			pipe.SRem(ctx, a.idxKey(field, value), id)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("cachedao: delete: %w", err)
	}
	return true, nil
}

func (a *Adapter) FindByID(ctx context.Context, id string) (dao.Entity, error) {
	raw, err := a.client.Get(ctx, a.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cachedao: get: %w", err)
	}
	var entity dao.Entity
	if err := json.Unmarshal(raw, &entity); err != nil {
		return nil, fmt.Errorf("cachedao: unmarshal: %w", err)
	}
	a.touchAccess(ctx, id)
	return entity, nil
}

func (a *Adapter) touchAccess(ctx context.Context, id string) {
	a.client.HSet(ctx, a.metaKey(id), "last_accessed", time.Now().Format(time.RFC3339))
}

func (a *Adapter) Exists(ctx context.Context, id string) (bool, error) {
	n, err := a.client.Exists(ctx, a.key(id)).Result()
	return n > 0, err
}

func (a *Adapter) FindOne(ctx context.Context, q dao.Query) (dao.Entity, error) {
	results, err := a.Find(ctx, q, 1, 0)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// Find intersects indexed-field sets when q is a conjunction of
// indexable Eq clauses (query by filters), or scans the collection
// prefix otherwise (query without filters), skipping meta/idx keys.
func (a *Adapter) Find(ctx context.Context, q dao.Query, limit, skip int) ([]dao.Entity, error) {
	ids, ok := a.idsFromIndexes(ctx, q)
	var entities []dao.Entity
	if ok {
		for _, id := range ids {
			entity, err := a.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if entity != nil && dao.MatchesInMemory(q, entity) {
				entities = append(entities, entity)
			}
		}
	} else {
		all, err := a.scanCollection(ctx)
		if err != nil {
			return nil, err
		}
		for _, entity := range all {
			if dao.MatchesInMemory(q, entity) {
				entities = append(entities, entity)
			}
		}
	}

	if skip < len(entities) {
		entities = entities[skip:]
	} else {
		entities = nil
	}
	if limit > 0 && limit < len(entities) {
		entities = entities[:limit]
	}
	return entities, nil
}

// idsFromIndexes returns candidate ids by intersecting indexed-field
// set membership for every Eq clause over an indexed field it can
// find in q; ok is false when q has no indexable clauses, meaning the
// caller should fall back to a full collection scan.
func (a *Adapter) idsFromIndexes(ctx context.Context, q dao.Query) ([]string, bool) {
	var eqClauses []dao.Query
	switch q.Kind() {
	case "eq":
		eqClauses = []dao.Query{q}
	case "and":
		for _, c := range q.Clauses() {
			if c.Kind() == "eq" {
				eqClauses = append(eqClauses, c)
			}
		}
	}

	indexed := map[string]bool{}
	for _, f := range a.cfg.IndexFields {
		indexed[f] = true
	}

	var keys []string
	for _, c := range eqClauses {
		if indexed[c.Field()] {
			keys = append(keys, a.idxKey(c.Field(), c.Value()))
		}
	}
	if len(keys) == 0 {
		return nil, false
	}
	ids, err := a.client.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, false
	}
	return ids, true
}

func (a *Adapter) scanCollection(ctx context.Context) ([]dao.Entity, error) {
	var entities []dao.Entity
	prefix := a.prefix()
	var cursor uint64
	for {
		keys, next, err := a.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("cachedao: scan: %w", err)
		}
		for _, k := range keys {
			rest := strings.TrimPrefix(k, prefix)
			if strings.HasPrefix(rest, "meta:") || strings.HasPrefix(rest, "idx:") {
				continue
			}
			raw, err := a.client.Get(ctx, k).Bytes()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, err
			}
			var entity dao.Entity
			if err := json.Unmarshal(raw, &entity); err != nil {
				continue
			}
			entities = append(entities, entity)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return entities, nil
}

func (a *Adapter) Count(ctx context.Context, q dao.Query) (int64, error) {
	results, err := a.Find(ctx, q, 0, 0)
	return int64(len(results)), err
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
	return nil, fmt.Errorf("cachedao: raw queries are not supported by the cache adapter")
}

func (a *Adapter) RawWriteQuery(ctx context.Context, query string, params map[string]any) (int64, error) {
	return 0, fmt.Errorf("cachedao: raw queries are not supported by the cache adapter")
}

func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) { return nil, nil }
func (a *Adapter) ListSchemas(ctx context.Context) ([]string, error)   { return nil, nil }
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{a.cfg.Collection}, nil
}
func (a *Adapter) GetModelInfo(ctx context.Context, model string) (map[string]any, error) {
	return map[string]any{"collection": a.cfg.Collection, "index_fields": a.cfg.IndexFields}, nil
}
func (a *Adapter) GetModelSchema(ctx context.Context, model string) (map[string]any, error) {
	return a.GetModelInfo(ctx, model)
}
func (a *Adapter) GetModelFields(ctx context.Context, model string) ([]string, error) {
	return nil, nil
}
func (a *Adapter) GetModelIndexes(ctx context.Context, model string) ([]dao.IndexSpec, error) {
	specs := make([]dao.IndexSpec, 0, len(a.cfg.IndexFields))
	for _, f := range a.cfg.IndexFields {
		specs = append(specs, dao.IndexSpec{Field: f, Kind: "set"})
	}
	return specs, nil
}

// Expire resets an entry's TTL directly.
func (a *Adapter) Expire(ctx context.Context, id string, seconds int64) error {
	ttl := time.Duration(seconds) * time.Second
	pipe := a.client.TxPipeline()
	pipe.Expire(ctx, a.key(id), ttl)
	pipe.HSet(ctx, a.metaKey(id), "ttl", seconds, "last_touched", time.Now().Format(time.RFC3339))
	pipe.Expire(ctx, a.metaKey(id), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Touch re-applies the TTL recorded in an entry's metadata, refreshing
// its expiry without changing the stored duration.
func (a *Adapter) Touch(ctx context.Context, id string) error {
	ttlStr, err := a.client.HGet(ctx, a.metaKey(id), "ttl").Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cachedao: touch: %w", err)
	}
	secs, err := strconv.ParseInt(ttlStr, 10, 64)
	if err != nil {
		return nil
	}
	return a.Expire(ctx, id, secs)
}

// ClearCollection mass-deletes every key (entry, meta, and index sets)
// belonging to this collection.
func (a *Adapter) ClearCollection(ctx context.Context) error {
	prefix := a.prefix()
	var cursor uint64
	for {
		keys, next, err := a.client.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("cachedao: scan: %w", err)
		}
		if len(keys) > 0 {
			if err := a.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cachedao: clear: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

func toSeconds(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
