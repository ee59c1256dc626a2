package crud

import (
	"context"
	"fmt"
	"sync"

	"go.dataops.dev/dao"
	"go.dataops.dev/storagekind"
	"go.dataops.dev/uuidv7"
)

// memDAO is an in-memory fake backing dao.DAO, used in place of a real
// adapter so the engine's fan-out, rollback, and permission logic can
// be exercised without a network dependency.
type memDAO struct {
	mu        sync.Mutex
	rows      map[string]dao.Entity
	failWrite bool
}

func newMemDAO() *memDAO { return &memDAO{rows: map[string]dao.Entity{}} }

func (m *memDAO) Connect(ctx context.Context) error      { return nil }
func (m *memDAO) Disconnect(ctx context.Context) error   { return nil }
func (m *memDAO) TestConnection(ctx context.Context) error { return nil }
func (m *memDAO) Health(ctx context.Context) error       { return nil }

func (m *memDAO) Create(ctx context.Context, entity dao.Entity) (string, error) {
	if m.failWrite {
		return "", fmt.Errorf("memdao: forced write failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, _ := entity["id"].(string)
	if id == "" {
		id = uuidv7.New()
	}
	row := cloneEntity(entity)
	row["id"] = id
	m.rows[id] = row
	return id, nil
}

func (m *memDAO) FindByID(ctx context.Context, id string) (dao.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return cloneEntity(row), nil
}

func (m *memDAO) FindOne(ctx context.Context, q dao.Query) (dao.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if dao.MatchesInMemory(q, row) {
			return cloneEntity(row), nil
		}
	}
	return nil, nil
}

func (m *memDAO) Find(ctx context.Context, q dao.Query, limit, skip int) ([]dao.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dao.Entity
	for _, row := range m.rows {
		if dao.MatchesInMemory(q, row) {
			out = append(out, cloneEntity(row))
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

func (m *memDAO) Update(ctx context.Context, id string, patch dao.Entity) (bool, error) {
	if m.failWrite {
		return false, fmt.Errorf("memdao: forced write failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	merged := cloneEntity(row)
	for k, v := range patch {
		merged[k] = v
	}
	m.rows[id] = merged
	return true, nil
}

func (m *memDAO) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	delete(m.rows, id)
	return ok, nil
}

func (m *memDAO) Count(ctx context.Context, q dao.Query) (int64, error) {
	rows, err := m.Find(ctx, q, 0, 0)
	return int64(len(rows)), err
}

func (m *memDAO) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memDAO) BulkCreate(ctx context.Context, entities []dao.Entity) ([]string, error) {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		id, err := m.Create(ctx, e)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memDAO) BulkUpdate(ctx context.Context, updates map[string]dao.Entity) (int, error) {
	n := 0
	for id, patch := range updates {
		ok, err := m.Update(ctx, id, patch)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (m *memDAO) BulkDelete(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		ok, _ := m.Delete(ctx, id)
		if ok {
			n++
		}
	}
	return n, nil
}

func (m *memDAO) CreateIndexes(ctx context.Context, indexes []dao.IndexSpec) error { return nil }

func (m *memDAO) RawReadQuery(ctx context.Context, query string, params map[string]any) ([]dao.Entity, error) {
	return nil, fmt.Errorf("memdao: raw queries not supported")
}

func (m *memDAO) RawWriteQuery(ctx context.Context, query string, params map[string]any) (int64, error) {
	return 0, fmt.Errorf("memdao: raw queries not supported")
}

func (m *memDAO) ListDatabases(ctx context.Context) ([]string, error) { return nil, nil }
func (m *memDAO) ListSchemas(ctx context.Context) ([]string, error)   { return nil, nil }
func (m *memDAO) ListModels(ctx context.Context) ([]string, error)    { return nil, nil }
func (m *memDAO) GetModelInfo(ctx context.Context, model string) (map[string]any, error) {
	return nil, nil
}
func (m *memDAO) GetModelSchema(ctx context.Context, model string) (map[string]any, error) {
	return nil, nil
}
func (m *memDAO) GetModelFields(ctx context.Context, model string) ([]string, error) { return nil, nil }
func (m *memDAO) GetModelIndexes(ctx context.Context, model string) ([]dao.IndexSpec, error) {
	return nil, nil
}

// fakeKind is a storagekind.Kind used only by tests, registered against
// a Constructor that looks up a pre-built memDAO by the binding's
// Database field (used here to carry the binding name through the
// Constructor signature, which is otherwise keyed on kind+collection
// only).
const fakeKind storagekind.Kind = "FAKE_TEST_KIND"
