// Package dao defines the contract every backend adapter implements
// (spec.md §4.3): connection lifecycle, singular and bulk CRUD, query,
// raw query passthrough, schema introspection, and health.
package dao

import "context"

// Entity is the wire shape every adapter reads and writes: a flat map of
// field name to value, with "id" always present once assigned.
type Entity = map[string]any

// IndexSpec mirrors model.IndexDeclaration without importing package
// model, keeping dao free of a dependency on the entity metadata layer.
type IndexSpec struct {
	Field string
	Kind  string
}

// DAO is the abstract backend operation set every adapter implements.
type DAO interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	TestConnection(ctx context.Context) error

	Create(ctx context.Context, entity Entity) (string, error)
	FindByID(ctx context.Context, id string) (Entity, error)
	FindOne(ctx context.Context, q Query) (Entity, error)
	Find(ctx context.Context, q Query, limit, skip int) ([]Entity, error)
	Update(ctx context.Context, id string, patch Entity) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, q Query) (int64, error)
	Exists(ctx context.Context, id string) (bool, error)

	BulkCreate(ctx context.Context, entities []Entity) ([]string, error)
	BulkUpdate(ctx context.Context, updates map[string]Entity) (int, error)
	BulkDelete(ctx context.Context, ids []string) (int, error)

	CreateIndexes(ctx context.Context, indexes []IndexSpec) error

	RawReadQuery(ctx context.Context, query string, params map[string]any) ([]Entity, error)
	RawWriteQuery(ctx context.Context, query string, params map[string]any) (int64, error)

	ListDatabases(ctx context.Context) ([]string, error)
	ListSchemas(ctx context.Context) ([]string, error)
	ListModels(ctx context.Context) ([]string, error)
	GetModelInfo(ctx context.Context, model string) (map[string]any, error)
	GetModelSchema(ctx context.Context, model string) (map[string]any, error)
	GetModelFields(ctx context.Context, model string) ([]string, error)
	GetModelIndexes(ctx context.Context, model string) ([]IndexSpec, error)

	Health(ctx context.Context) error
}

// FindOrCreate returns the first entity matching q, creating and
// returning factory() if none exists. Implemented once here in terms of
// FindOne+Create so adapters never reimplement it (spec.md §4.3).
func FindOrCreate(ctx context.Context, d DAO, q Query, factory func() Entity) (Entity, bool, error) {
	existing, err := d.FindOne(ctx, q)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	created := factory()
	id, err := d.Create(ctx, created)
	if err != nil {
		return nil, false, err
	}
	created["id"] = id
	return created, true, nil
}

// UpdateOrCreate updates the first entity matching q with patch, or
// creates factory() merged with patch if none exists.
func UpdateOrCreate(ctx context.Context, d DAO, q Query, patch Entity, factory func() Entity) (Entity, bool, error) {
	existing, err := d.FindOne(ctx, q)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		id, _ := existing["id"].(string)
		if _, err := d.Update(ctx, id, patch); err != nil {
			return nil, false, err
		}
		merged := mergeEntity(existing, patch)
		return merged, false, nil
	}
	created := mergeEntity(factory(), patch)
	id, err := d.Create(ctx, created)
	if err != nil {
		return nil, false, err
	}
	created["id"] = id
	return created, true, nil
}

func mergeEntity(base, patch Entity) Entity {
	out := make(Entity, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
