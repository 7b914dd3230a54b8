package container

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fleet-worklog/internal/application/worklog"
	"github.com/garyjia/fleet-worklog/pkg/database"
)

func localConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database.Path = database.MemoryPath
	cfg.Storage.ExportDir = filepath.Join(t.TempDir(), "exports")
	return cfg
}

func startContainer(t *testing.T, cfg *Config) *Container {
	t.Helper()
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		if !c.closed.Load() {
			_ = c.Close()
		}
	})
	return c
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Backend.Mode = "cloud"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_LocalLifecycle(t *testing.T) {
	c := startContainer(t, localConfig(t))

	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()))

	health := c.Health()
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, "local", health.Components["backend"].Message)

	srv, err := c.HTTPServer()
	require.NoError(t, err)
	assert.NotNil(t, srv.Router())

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(context.Background()))
}

func TestContainer_RemoteAgainstLocal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	owner := startContainer(t, localConfig(t))
	srv, err := owner.HTTPServer()
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	cfg := DefaultConfig()
	cfg.Backend.Mode = BackendRemote
	cfg.Backend.Client.BaseURL = ts.URL
	cfg.Storage.ExportDir = filepath.Join(t.TempDir(), "exports")
	remote := startContainer(t, cfg)
	assert.Nil(t, remote.Repositories())
	_, hasDB := remote.Health().Components["database"]
	assert.False(t, hasDB)

	ctx := context.Background()
	worklogs := remote.Services().WorkLogs
	_, err = worklogs.Load(ctx, 4, time.March, 2024)
	require.NoError(t, err)

	_, err = worklogs.Generate(4, worklog.BulkRequest{
		Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		Defaults: worklog.BulkDefaults{
			WorkTypeID:  2,
			WorkedHours: decimal.RequireFromString("7.5"),
			DriverID:    9,
		},
	})
	require.NoError(t, err)

	saved, err := worklogs.SaveAll(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Succeeded)

	stored, err := owner.Backend().FetchSingleEntries(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	path, content, err := worklogs.Export(ctx, 4)
	require.NoError(t, err)
	assert.NotEmpty(t, content)
	assert.True(t, remote.FileStorage().Exists(ctx, path))
}
