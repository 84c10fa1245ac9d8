package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"toursync/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "pending.db")
	backupDir := filepath.Join(tmpDir, "backups")

	logger := zerolog.New(os.Stdout)
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)

	_, err = db.Enqueue(context.Background(), testBooking("tour-1", 1))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	svc := NewBackupService(dbPath, config.BackupConfig{
		Enabled:     true,
		StoragePath: backupDir,
	}, &logger)

	require.NoError(t, svc.PerformBackup())

	files, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	// The snapshot must be a usable pending store with the record intact.
	restored, err := NewDB(filepath.Join(backupDir, files[0].Name()), &logger)
	require.NoError(t, err)
	defer restored.Close()

	count, err := restored.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
