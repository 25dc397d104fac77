package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simcore/locomotion/internal/database"
	"github.com/simcore/locomotion/internal/model"
	"github.com/simcore/locomotion/internal/storage"
	"github.com/simcore/locomotion/pkg/core"
)

var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

func newBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	if cfg.DSN == "" {
		cfg.DSN = filepath.Join(t.TempDir(), "live.db")
	}
	b, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	return b
}

func newRun() *core.Run {
	return &core.Run{Name: "dump", Scenario: "yard", StartTime: time.Now().UTC(), OriginLongitude: 1, OriginLatitude: 1}
}

func TestEndRunWritesDump(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "out", "run.db")
	b := newBackend(t, Config{DumpPath: dump})
	defer b.Close()

	run := newRun()
	require.NoError(t, b.StartRun(run))
	id := core.NewEntityID()
	require.NoError(t, b.AddEntity(&core.EntityRecord{ID: id, Name: "skimmer", JoinTime: run.StartTime}))

	run.Ticks = 10
	require.NoError(t, b.EndRun(run))
	assert.Equal(t, dump, b.ExportedFilePath())

	disk, err := database.OpenSQLite(dump)
	require.NoError(t, err)
	var e model.Entity
	require.NoError(t, disk.Where("run_id = ? AND id = ?", run.ID, id).First(&e).Error)
	assert.Equal(t, "skimmer", e.Name)
	var r model.Run
	require.NoError(t, disk.First(&r, run.ID).Error)
	assert.Equal(t, uint64(10), r.Ticks)
}

func TestDumpLoopWritesPeriodically(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "periodic.db")
	b := newBackend(t, Config{DumpPath: dump, DumpInterval: 10 * time.Millisecond})

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Close())
}

func TestDumpWithoutPathIsNoop(t *testing.T) {
	b := newBackend(t, Config{})
	defer b.Close()
	assert.NoError(t, b.Dump())
	assert.Empty(t, b.ExportedFilePath())
}

func TestCloseIsIdempotent(t *testing.T) {
	b := newBackend(t, Config{})
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}
