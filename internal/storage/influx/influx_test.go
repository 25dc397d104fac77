package influx

import (
	"bufio"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simcore/locomotion/internal/config"
	"github.com/simcore/locomotion/internal/storage"
	"github.com/simcore/locomotion/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func unreachable(backup string) config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:    true,
		Host:       "127.0.0.1",
		Port:       "1",
		Protocol:   "http",
		Org:        "simcore",
		Bucket:     "simcore",
		BackupPath: backup,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var lines []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestWritePointBeforeConnect(t *testing.T) {
	m := NewManager(zerolog.Nop(), unreachable(""))
	assert.ErrorIs(t, m.WritePoint(nil), ErrNotConnected)
	assert.NoError(t, m.Close())
}

func TestConnectFallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup", "influx.lp.gz")
	m := NewManager(zerolog.Nop(), unreachable(path))
	require.NoError(t, m.Connect(t.Context()))
	assert.False(t, m.Valid())
	require.NoError(t, m.Close())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestConnectWithoutBackupPath(t *testing.T) {
	m := NewManager(zerolog.Nop(), unreachable(""))
	assert.Error(t, m.Connect(t.Context()))
}

func TestBackendWritesLineProtocol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx.lp.gz")
	b := New(zerolog.Nop(), unreachable(path))
	require.NoError(t, b.Init())

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := &core.Run{Scenario: "yard", StartTime: start, TickRate: 60, OriginLongitude: 13.4, OriginLatitude: 52.5}
	require.NoError(t, b.StartRun(run))
	assert.Equal(t, uint(1), run.ID)

	tractor := core.NewEntityID()
	require.NoError(t, b.AddEntity(&core.EntityRecord{ID: tractor, Name: "tractor", Kind: "ground_vehicle"}))
	require.NoError(t, b.RecordEntityState(&core.EntityState{ID: tractor, Tick: 1, Time: start, Position: mgl64.Vec3{0, 5, 0}, Velocity: mgl64.Vec3{0, 3, 4}}))
	require.NoError(t, b.RecordDetonation(&core.DetonationEvent{Tick: 2, Time: start, Munition: "he", Point: mgl64.Vec3{1, 1, 0}}))
	require.NoError(t, b.RecordDamage(&core.DamageEvent{Tick: 2, Time: start, Munition: "he", Target: tractor, Probabilities: [5]float64{0, 0, 0, 0, 1}, Severity: "kill"}))
	require.NoError(t, b.RecordHitchEvent(&core.HitchEvent{Tick: 3, Time: start, Action: core.HitchDetached, Tractor: tractor, Trailer: core.NewEntityID(), Mode: "applied"}))
	require.NoError(t, b.RecordRemoval(&core.EntityRemovedEvent{Tick: 4, Time: start, ID: tractor}))

	run.Ticks = 4
	run.EndTime = start.Add(time.Second)
	require.NoError(t, b.EndRun(run))
	require.NoError(t, b.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "run,"))
	assert.Contains(t, lines[0], "state=started")
	assert.True(t, strings.HasPrefix(lines[1], "entity_state,"))
	assert.Contains(t, lines[1], "name=tractor")
	assert.Contains(t, lines[1], "speed=5")
	assert.True(t, strings.HasPrefix(lines[2], "detonation,"))
	assert.True(t, strings.HasPrefix(lines[3], "damage,"))
	assert.Contains(t, lines[3], "p_kill=1")
	assert.Contains(t, lines[3], "severity=kill")
	assert.True(t, strings.HasPrefix(lines[4], "hitch,"))
	assert.Contains(t, lines[4], "action=detached")
	assert.True(t, strings.HasPrefix(lines[5], "entity_removed,"))
	assert.Contains(t, lines[6], "state=ended")
}

func TestBackendRequiresRun(t *testing.T) {
	b := New(zerolog.Nop(), unreachable(filepath.Join(t.TempDir(), "x.lp.gz")))
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Error(t, b.AddEntity(&core.EntityRecord{}))
	assert.Error(t, b.RecordEntityState(&core.EntityState{}))
	assert.Error(t, b.EndRun(&core.Run{}))
}
