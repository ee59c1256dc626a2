//go:build integration
// +build integration

package documentdao

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"go.dataops.dev/dao"
)

func setupCouchDBContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "couchdb:3.3",
		ExposedPorts: []string{"5984/tcp"},
		Env: map[string]string{
			"COUCHDB_USER":     "admin",
			"COUCHDB_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForHTTP("/_up").WithPort("5984/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start couchdb container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5984")
	require.NoError(t, err)

	url := fmt.Sprintf("http://admin:testpass@%s:%s", host, port.Port())
	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return url, cleanup
}

func TestAdapterCRUDAgainstRealCouchDB(t *testing.T) {
	url, cleanup := setupCouchDBContainer(t)
	defer cleanup()

	a := NewAdapter(Config{URL: url, Database: "widgets"})
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))
	defer a.Disconnect(ctx)

	id, err := a.Create(ctx, dao.Entity{"name": "widget-1"})
	require.NoError(t, err)

	entity, err := a.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "widget-1", entity["name"])

	ok, err := a.Update(ctx, id, dao.Entity{"name": "widget-1-updated"})
	require.NoError(t, err)
	assert.True(t, ok)

	entity, err = a.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "widget-1-updated", entity["name"])

	ok, err = a.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	entity, err = a.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, entity)
}
