package daofactory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.dataops.dev/dao"
	"go.dataops.dev/storagekind"
)

type stubDAO struct{ dao.DAO }

func (stubDAO) Connect(ctx context.Context) error { return nil }

func TestResolveUsesRegisteredConstructor(t *testing.T) {
	r := NewRegistry(nil)
	var gotCollection string
	r.Register(storagekind.Kind("STUB"), func(b storagekind.BackendBinding, collection string) (dao.DAO, error) {
		gotCollection = collection
		return stubDAO{}, nil
	})

	d, err := r.Resolve(context.Background(), storagekind.BackendBinding{Kind: storagekind.Kind("STUB")}, "widgets")
	require.NoError(t, err)
	assert.NotNil(t, d)
	assert.Equal(t, "widgets", gotCollection)
}

func TestResolveUnknownKindErrors(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Resolve(context.Background(), storagekind.BackendBinding{Kind: storagekind.Kind("NOPE")}, "widgets")
	assert.Error(t, err)
}

func TestResolveVectorWithoutGeneratorErrors(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Resolve(context.Background(), storagekind.BackendBinding{Kind: storagekind.Vector, ConnectionString: "postgres://x"}, "widgets")
	assert.Error(t, err)
}

func TestRegisterOverridesDefault(t *testing.T) {
	r := NewRegistry(nil)
	called := false
	r.Register(storagekind.Cache, func(b storagekind.BackendBinding, collection string) (dao.DAO, error) {
		called = true
		return stubDAO{}, nil
	})
	_, err := r.Resolve(context.Background(), storagekind.BackendBinding{Kind: storagekind.Cache}, "widgets")
	require.NoError(t, err)
	assert.True(t, called)
}
