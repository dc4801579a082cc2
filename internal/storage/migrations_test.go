package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_Migrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store1, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Migrate(ctx))

	version, err := store1.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
	require.NoError(t, store1.Close())

	// Running migrations again is a no-op.
	store2, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store2.Close() })

	require.NoError(t, store2.Migrate(ctx))
	require.NoError(t, store2.CreateTask(ctx, newTestTask("acct", "after migrate")))
}

func TestMigrations_AreOrdered(t *testing.T) {
	for i, migration := range migrations {
		assert.Equal(t, i+1, migration.Version, "migration %q", migration.Description)
	}
	assert.Equal(t, ExpectedSchemaVersion, migrations[len(migrations)-1].Version)
}

func TestSQLiteStorage_Backup(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewSQLiteStorage(filepath.Join(dir, "live.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	require.NoError(t, store.CreateTask(ctx, newTestTask("acct", "Back me up")))
	require.NoError(t, store.CreateGoal(ctx, newTestGoal("acct", "Survive restore", model.GoalOther, 0)))

	dest := filepath.Join(dir, "backups", "copy.db")
	info, err := store.Backup(ctx, dest)
	require.NoError(t, err)
	assert.Equal(t, 1, info.RowCounts["tasks"])
	assert.Equal(t, 1, info.RowCounts["goals"])
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
	assert.Positive(t, info.FileSize)

	restored, err := NewSQLiteStorage(dest)
	require.NoError(t, err)
	t.Cleanup(func() { _ = restored.Close() })
	tasks, err := restored.ListTasks(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Back me up", tasks[0].Title)

	_, err = store.Backup(ctx, dest)
	assert.ErrorIs(t, err, ErrBackupExists)

	_, err = store.Backup(ctx, filepath.Join(dir, "bad';.db"))
	assert.ErrorIs(t, err, ErrInvalidBackup)
}
