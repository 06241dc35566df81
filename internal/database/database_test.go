package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/hlabridge/internal/model"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSqliteDB_MigrateAndDump(t *testing.T) {
	db, err := GetSqliteDB("file:dbtest?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m))
	}

	session := model.Session{Execution: "Exercise", Federate: "bridge"}
	require.NoError(t, db.Create(&session).Error)
	assert.NotZero(t, session.ID)

	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.db")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	disk, err := GetSqliteDB(path)
	require.NoError(t, err)
	var count int64
	require.NoError(t, disk.Model(&model.Session{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
}

func TestDumpMemoryDBToDisk_RequiresPath(t *testing.T) {
	err := DumpMemoryDBToDisk(nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite file path not set")
}

func TestPostgresDSN(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("db.host", "db")
	viper.Set("db.port", "5433")
	viper.Set("db.username", "u")
	viper.Set("db.password", "p")
	viper.Set("db.database", "bridge")

	assert.Equal(t, "host=db port=5433 user=u password=p dbname=bridge sslmode=disable", PostgresDSN())
}

func TestManager_SetupOnSqlite(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.useSqlite("file:managertest?mode=memory&cache=shared"))
	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.Actor{}))
}
