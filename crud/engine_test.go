package crud

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.dataops.dev/dao"
	"go.dataops.dev/daofactory"
	"go.dataops.dev/model"
	"go.dataops.dev/secmodel"
	"go.dataops.dev/security"
	"go.dataops.dev/storagekind"
)

type Doc struct {
	model.SecuredEntity
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Plain struct {
	model.Entity
	Name string `json:"name"`
}

func newTestRegistry(stores map[string]*memDAO) *daofactory.Registry {
	r := daofactory.NewRegistry(nil)
	r.Register(fakeKind, func(b storagekind.BackendBinding, collection string) (dao.DAO, error) {
		d, ok := stores[b.Database]
		if !ok {
			return nil, fmt.Errorf("no store registered for %q", b.Database)
		}
		return d, nil
	})
	return r
}

func binding(name string) model.NamedBinding {
	return model.NamedBinding{Name: name, Binding: storagekind.BackendBinding{Kind: fakeKind, Database: name}}
}

func TestCreateSecuredStampsOwnerACLAndReplicatesToSecondary(t *testing.T) {
	graph, cache := newMemDAO(), newMemDAO()
	registry := newTestRegistry(map[string]*memDAO{"graph": graph, "cache": cache})
	md := model.NewMetadata("docs", "id", []model.NamedBinding{binding("graph"), binding("cache")}, nil)

	engine := NewEngine[Doc](md, registry)
	require.True(t, engine.Secured)

	owner := &secmodel.SecurityContext{UserID: "u1"}
	created, err := engine.Create(context.Background(), Doc{Title: "T", Content: "C"}, owner)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.OwnerID)
	assert.Equal(t, "u1", created.CreatedBy)
	require.Len(t, created.ACL, 1)
	assert.Equal(t, model.PermAdmin, created.ACL[0].Permissions)

	cached, err := cache.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "T", cached["title"])

	ops := engine.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, "graph", ops[0].StorageName)
	assert.Equal(t, "cache", ops[1].StorageName)
}

func TestCreateSecuredWithoutContextFails(t *testing.T) {
	graph := newMemDAO()
	registry := newTestRegistry(map[string]*memDAO{"graph": graph})
	md := model.NewMetadata("docs", "id", []model.NamedBinding{binding("graph")}, nil)
	engine := NewEngine[Doc](md, registry)

	_, err := engine.Create(context.Background(), Doc{Title: "T"}, nil)
	require.Error(t, err)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
}

func TestReadDeniedWithoutPermissionOwnerStillAllowed(t *testing.T) {
	graph := newMemDAO()
	registry := newTestRegistry(map[string]*memDAO{"graph": graph})
	md := model.NewMetadata("docs", "id", []model.NamedBinding{binding("graph")}, nil)
	engine := NewEngine[Doc](md, registry)

	owner := &secmodel.SecurityContext{UserID: "u1"}
	stranger := &secmodel.SecurityContext{UserID: "u2"}
	created, err := engine.Create(context.Background(), Doc{Title: "T"}, owner)
	require.NoError(t, err)

	_, err = engine.Read(context.Background(), created.ID, "", stranger)
	require.Error(t, err)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	got, err := engine.Read(context.Background(), created.ID, "", owner)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)
}

func TestReadDeniedWhenPasswordVerifyAuthDirectiveFails(t *testing.T) {
	graph := newMemDAO()
	registry := newTestRegistry(map[string]*memDAO{"graph": graph})
	md := model.NewMetadata("docs", "id", []model.NamedBinding{binding("graph")}, nil)
	engine := NewEngine[Doc](md, registry)

	hash, err := security.HashPassword("sesame")
	require.NoError(t, err)

	owner := &secmodel.SecurityContext{UserID: "u1"}
	created, err := engine.Create(context.Background(), Doc{
		Title: "T",
		SecuredEntity: model.SecuredEntity{
			AuthRules: []model.AuthDirective{
				{Name: "password_verify", Params: map[string]any{"hash": hash}},
			},
		},
	}, owner)
	require.NoError(t, err)

	wrongPassword := &secmodel.SecurityContext{UserID: "u1", Claims: map[string]any{"password": "not-sesame"}}
	_, err = engine.Read(context.Background(), created.ID, "", wrongPassword)
	require.Error(t, err)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	rightPassword := &secmodel.SecurityContext{UserID: "u1", Claims: map[string]any{"password": "sesame"}}
	got, err := engine.Read(context.Background(), created.ID, "", rightPassword)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)
}

func TestUpdateStampsModifiedByAndRequiresWritePermission(t *testing.T) {
	graph := newMemDAO()
	registry := newTestRegistry(map[string]*memDAO{"graph": graph})
	md := model.NewMetadata("docs", "id", []model.NamedBinding{binding("graph")}, nil)
	engine := NewEngine[Doc](md, registry)

	owner := &secmodel.SecurityContext{UserID: "u1"}
	stranger := &secmodel.SecurityContext{UserID: "u2"}
	created, err := engine.Create(context.Background(), Doc{Title: "T"}, owner)
	require.NoError(t, err)

	updated, err := engine.Update(context.Background(), created.ID, dao.Entity{"title": "T2"}, owner)
	require.NoError(t, err)
	assert.Equal(t, "T2", updated.Title)
	assert.Equal(t, "u1", updated.ModifiedBy)

	_, err = engine.Update(context.Background(), created.ID, dao.Entity{"title": "T3"}, stranger)
	require.Error(t, err)
}

func TestDeletePrimaryFirstDeletesSecondariesBeforePrimary(t *testing.T) {
	graph, cache := newMemDAO(), newMemDAO()
	registry := newTestRegistry(map[string]*memDAO{"graph": graph, "cache": cache})
	md := model.NewMetadata("docs", "id", []model.NamedBinding{binding("graph"), binding("cache")}, nil)
	engine := NewEngine[Doc](md, registry)

	owner := &secmodel.SecurityContext{UserID: "u1"}
	created, err := engine.Create(context.Background(), Doc{Title: "T"}, owner)
	require.NoError(t, err)
	engine.ClearOperations()

	require.NoError(t, engine.Delete(context.Background(), created.ID, owner))

	ops := engine.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, "cache", ops[0].StorageName)
	assert.Equal(t, "graph", ops[1].StorageName)

	row, err := graph.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestCreateParallelRollsBackAllOnSecondaryFailure(t *testing.T) {
	graph, cache := newMemDAO(), newMemDAO()
	cache.failWrite = true
	registry := newTestRegistry(map[string]*memDAO{"graph": graph, "cache": cache})
	md := model.NewMetadata("docs", "id", []model.NamedBinding{binding("graph"), binding("cache")}, nil)
	engine := NewEngine[Doc](md, registry)
	engine.Strategy = Parallel

	owner := &secmodel.SecurityContext{UserID: "u1"}
	_, err := engine.Create(context.Background(), Doc{Title: "T"}, owner)
	require.Error(t, err)

	rows, err := graph.Find(context.Background(), dao.Query{}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, rows, "graph's successful write should have been rolled back")
}

func TestFindAppliesOwnershipSecurityFilter(t *testing.T) {
	graph := newMemDAO()
	registry := newTestRegistry(map[string]*memDAO{"graph": graph})
	md := model.NewMetadata("docs", "id", []model.NamedBinding{binding("graph")}, nil)
	engine := NewEngine[Doc](md, registry)

	owner := &secmodel.SecurityContext{UserID: "u1"}
	stranger := &secmodel.SecurityContext{UserID: "u2"}
	_, err := engine.Create(context.Background(), Doc{Title: "mine"}, owner)
	require.NoError(t, err)

	results, err := engine.Find(context.Background(), dao.Query{}, 0, 0, stranger)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = engine.Find(context.Background(), dao.Query{}, 0, 0, owner)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "mine", results[0].Title)
}

func TestUnsecuredModelSkipsPermissionChecks(t *testing.T) {
	graph := newMemDAO()
	registry := newTestRegistry(map[string]*memDAO{"graph": graph})
	md := model.NewMetadata("plains", "id", []model.NamedBinding{binding("graph")}, nil)
	engine := NewEngine[Plain](md, registry)
	assert.False(t, engine.Secured)

	created, err := engine.Create(context.Background(), Plain{Name: "x"}, nil)
	require.NoError(t, err)

	got, err := engine.Read(context.Background(), created.ID, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Name)
}
