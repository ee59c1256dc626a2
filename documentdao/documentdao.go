// Package documentdao implements the document backend adapter on
// CouchDB via the Kivik driver: native JSON document storage with
// Mango-query filtering and MVCC revision tracking.
package documentdao

import (
	"context"
	"encoding/json"
	"fmt"

	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb" // registers the "couch" driver
	"github.com/sirupsen/logrus"

	"go.dataops.dev/dao"
	"go.dataops.dev/dlog"
	"go.dataops.dev/uuidv7"
)

// Config describes the CouchDB server and the database this adapter
// owns, one database per declared collection.
type Config struct {
	URL      string
	Database string
}

// Adapter is a dao.DAO over one CouchDB database. Every document
// carries CouchDB's own "_id"/"_rev" fields alongside the uniform "id"
// field the dao.Entity contract expects; Create/Update/FindByID
// translate between the two so "_rev" never appears in the entity
// shape callers see.
type Adapter struct {
	cfg      Config
	client   *kivik.Client
	database *kivik.DB
	log      *logrus.Entry
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, log: dlog.ForStorage("documentdao", cfg.Database)}
}

func (a *Adapter) Connect(ctx context.Context) error {
	if !dao.ValidIdentifier(a.cfg.Database) {
		return fmt.Errorf("documentdao: invalid database identifier %q", a.cfg.Database)
	}
	client, err := kivik.New("couch", a.cfg.URL)
	if err != nil {
		return fmt.Errorf("documentdao: connect: %w", err)
	}
	exists, err := client.DBExists(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("documentdao: check database exists: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, a.cfg.Database); err != nil {
			return fmt.Errorf("documentdao: create database: %w", err)
		}
	}
	a.client = client
	a.database = client.DB(a.cfg.Database)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error { return a.client.Close() }
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.client.Ping(ctx)
	return err
}
func (a *Adapter) Health(ctx context.Context) error { return a.TestConnection(ctx) }

// CreateIndexes declares Mango indexes so field filters in Find don't
// force a full-database scan.
func (a *Adapter) CreateIndexes(ctx context.Context, indexes []dao.IndexSpec) error {
	for _, idx := range indexes {
		if !dao.ValidIdentifier(idx.Field) {
			a.log.Warnf("skipping index on invalid field identifier %q", idx.Field)
			continue
		}
		def := map[string]any{
			"index": map[string]any{"fields": []string{idx.Field}},
			"type":  "json",
			"name":  idx.Field + "-index",
		}
		if err := a.database.CreateIndex(ctx, "", "", def); err != nil {
			a.log.Warnf("index creation for %q failed (tolerated): %v", idx.Field, err)
		}
	}
	return nil
}

func (a *Adapter) Create(ctx context.Context, entity dao.Entity) (string, error) {
	id, _ := entity["id"].(string)
	if id == "" {
		id = uuidv7.New()
	}
	doc := toDoc(id, entity)
	if _, err := a.database.Put(ctx, id, doc); err != nil {
		return "", fmt.Errorf("documentdao: put: %w", err)
	}
	return id, nil
}

// Update re-reads the current revision, merges patch over the
// existing document, and writes it back under that revision, the
// MVCC dance every CouchDB write requires.
func (a *Adapter) Update(ctx context.Context, id string, patch dao.Entity) (bool, error) {
	existing, rev, err := a.getWithRev(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	for k, v := range patch {
		existing[k] = v
	}
	doc := toDoc(id, existing)
	doc["_rev"] = rev
	if _, err := a.database.Put(ctx, id, doc); err != nil {
		return false, fmt.Errorf("documentdao: update put: %w", err)
	}
	return true, nil
}

func (a *Adapter) Delete(ctx context.Context, id string) (bool, error) {
	_, rev, err := a.getWithRev(ctx, id)
	if err != nil {
		return false, err
	}
	if rev == "" {
		return false, nil
	}
	if _, err := a.database.Delete(ctx, id, rev); err != nil {
		return false, fmt.Errorf("documentdao: delete: %w", err)
	}
	return true, nil
}

func (a *Adapter) getWithRev(ctx context.Context, id string) (dao.Entity, string, error) {
	row := a.database.Get(ctx, id)
	if row.Err() != nil {
		if kivik.HTTPStatus(row.Err()) == 404 {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("documentdao: get: %w", row.Err())
	}
	var doc map[string]any
	if err := row.ScanDoc(&doc); err != nil {
		return nil, "", fmt.Errorf("documentdao: scan: %w", err)
	}
	rev, _ := doc["_rev"].(string)
	return fromDoc(doc), rev, nil
}

func (a *Adapter) FindByID(ctx context.Context, id string) (dao.Entity, error) {
	entity, _, err := a.getWithRev(ctx, id)
	return entity, err
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
	selector, err := mangoSelector(q)
	if err != nil {
		return nil, err
	}
	params := map[string]any{"skip": skip}
	if limit > 0 {
		params["limit"] = limit
	}
	rows := a.database.Find(ctx, selector, kivik.Params(params))
	defer rows.Close()

	var out []dao.Entity
	for rows.Next() {
		var doc map[string]any
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("documentdao: scan: %w", err)
		}
		out = append(out, fromDoc(doc))
	}
	return out, rows.Err()
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
	var selector map[string]any
	if err := json.Unmarshal([]byte(query), &selector); err != nil {
		return nil, fmt.Errorf("documentdao: raw query must be a JSON mango selector: %w", err)
	}
	rows := a.database.Find(ctx, selector, kivik.Params(params))
	defer rows.Close()
	var out []dao.Entity
	for rows.Next() {
		var doc map[string]any
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, err
		}
		out = append(out, fromDoc(doc))
	}
	return out, rows.Err()
}

func (a *Adapter) RawWriteQuery(ctx context.Context, query string, params map[string]any) (int64, error) {
	return 0, fmt.Errorf("documentdao: raw write queries are not supported; use Create/Update")
}

func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	return a.client.AllDBs(ctx)
}
func (a *Adapter) ListSchemas(ctx context.Context) ([]string, error) { return nil, nil }
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{a.cfg.Database}, nil
}
func (a *Adapter) GetModelInfo(ctx context.Context, model string) (map[string]any, error) {
	return map[string]any{"database": a.cfg.Database, "backend": "document"}, nil
}
func (a *Adapter) GetModelSchema(ctx context.Context, model string) (map[string]any, error) {
	return a.GetModelInfo(ctx, model)
}
func (a *Adapter) GetModelFields(ctx context.Context, model string) ([]string, error) {
	return nil, nil
}
func (a *Adapter) GetModelIndexes(ctx context.Context, model string) ([]dao.IndexSpec, error) {
	return nil, nil
}

// toDoc stamps the uniform "id" field onto CouchDB's "_id" and drops
// the uniform field so it isn't duplicated in the stored document.
func toDoc(id string, entity dao.Entity) map[string]any {
	doc := make(map[string]any, len(entity)+1)
	for k, v := range entity {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	doc["_id"] = id
	return doc
}

// fromDoc reverses toDoc, presenting "_id" back as "id" and dropping
// CouchDB's internal "_rev" from the entity callers see.
func fromDoc(doc map[string]any) dao.Entity {
	entity := make(dao.Entity, len(doc))
	for k, v := range doc {
		if k == "_rev" {
			continue
		}
		if k == "_id" {
			entity["id"] = v
			continue
		}
		entity[k] = v
	}
	return entity
}

// mangoSelector renders a dao.Query into a CouchDB Mango selector,
// reusing the same operator names the wire dialect already uses.
func mangoSelector(q dao.Query) (map[string]any, error) {
	if q.IsZero() {
		return map[string]any{}, nil
	}
	return q.MarshalWire()
}
