package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: MemoryPath}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func schema() fstest.MapFS {
	return fstest.MapFS{
		"001_equipment.sql": {Data: []byte("CREATE TABLE equipment (id INTEGER PRIMARY KEY);")},
		"002_notes.sql":     {Data: []byte("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);")},
		"README.md":         {Data: []byte("not a migration")},
	}
}

func TestMigrate_AppliesPendingOnce(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	ran, err := NewMigrator(db, schema(), zap.NewNop()).Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ran)

	ran, err = NewMigrator(db, schema(), zap.NewNop()).Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, ran)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE length(checksum) = 64").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrate_AppliesNewVersionsOnly(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	fsys := schema()
	delete(fsys, "002_notes.sql")
	_, err := NewMigrator(db, fsys, zap.NewNop()).Migrate(ctx)
	require.NoError(t, err)

	ran, err := NewMigrator(db, schema(), zap.NewNop()).Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
}

func TestMigrate_RejectsModifiedMigration(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	_, err := NewMigrator(db, schema(), zap.NewNop()).Migrate(ctx)
	require.NoError(t, err)

	changed := schema()
	changed["001_equipment.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE equipment (id INTEGER PRIMARY KEY, name TEXT);")}
	changed["003_extra.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE extra (id INTEGER);")}

	ran, err := NewMigrator(db, changed, zap.NewNop()).Migrate(ctx)
	assert.ErrorIs(t, err, ErrMigrationChanged)
	assert.Zero(t, ran)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'extra'").Scan(&count))
	assert.Zero(t, count)
}

func TestMigrate_FailedStepIsRolledBack(t *testing.T) {
	db := openMemory(t)
	broken := fstest.MapFS{
		"001_bad.sql": {Data: []byte("CREATE TABLE ok (id INTEGER); CREATE TABLE nope (")},
	}

	_, err := NewMigrator(db, broken, zap.NewNop()).Migrate(context.Background())
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Zero(t, count)
}

func TestLoad_OrdersAndRejectsDuplicateVersions(t *testing.T) {
	fsys := schema()
	fsys["010_late.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}

	migs, err := NewMigrator(nil, fsys, zap.NewNop()).Load()
	require.NoError(t, err)
	require.Len(t, migs, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{migs[0].Version, migs[1].Version, migs[2].Version})
	assert.Equal(t, "late", migs[2].Name)

	fsys["1_again.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
	_, err = NewMigrator(nil, fsys, zap.NewNop()).Load()
	assert.Error(t, err)
}

func TestConfig_DSN(t *testing.T) {
	mem := Config{Path: MemoryPath}
	assert.True(t, mem.InMemory())
	assert.Contains(t, mem.dsn(), "file::memory:?")
	assert.NotContains(t, mem.dsn(), "_journal_mode")
	open, idle, _ := Config{Path: MemoryPath, MaxOpenConns: 8}.pool()
	assert.Equal(t, 1, open)
	assert.Equal(t, 1, idle)

	file := Config{Path: "data/worklog.db", MaxOpenConns: 4, MaxIdleConns: 9}
	assert.Contains(t, file.dsn(), "_journal_mode=WAL")
	assert.Contains(t, file.dsn(), "_busy_timeout=5000")
	open, idle, _ = file.pool()
	assert.Equal(t, 4, open)
	assert.Equal(t, 4, idle)
}

func TestNew_FileDatabase(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "worklog.db")
	db, err := New(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	assert.NoError(t, db.Healthy(context.Background()))
}
