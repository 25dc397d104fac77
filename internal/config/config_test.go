package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simcore/locomotion/internal/geo"
	"github.com/simcore/locomotion/internal/hitch"
	"github.com/simcore/locomotion/internal/hover"
	"github.com/simcore/locomotion/internal/sim"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"sim": { "tickRate": 30, "ticks": 90 },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", GetString("db.host"))
	assert.Equal(t, 90, GetInt("sim.ticks"))

	s := GetSimConfig()
	assert.Equal(t, 30.0, s.TickRate)
	assert.InDelta(t, 1.0/30, s.DT(), 1e-12)
	assert.Equal(t, 0.1, s.MaxTick, "unset keys keep defaults")
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", GetString("logLevel"))
	assert.Equal(t, "./logs", GetString("logsDir"))
	assert.False(t, GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", GetString("graylog.address"))

	st := GetStorageConfig()
	assert.Equal(t, "memory", st.Type)
	assert.Equal(t, MemoryConfig{OutputDir: "./recordings", CompressOutput: true}, st.Memory)
	assert.Equal(t, 3*time.Minute, st.SQLite.DumpInterval)
	assert.Equal(t, DBConfig{Host: "localhost", Port: "5432", Username: "postgres", Password: "postgres", Database: "simcore"}, st.DB)
	assert.Equal(t, "http://localhost:8086", st.Influx.URL())
	assert.Equal(t, "simcore", st.Influx.Bucket)
	assert.False(t, st.Influx.Enabled)

	o := GetOTelConfig()
	assert.False(t, o.Enabled)
	assert.Equal(t, "simcore", o.ServiceName)
	assert.Equal(t, 5*time.Second, o.BatchTimeout)
	assert.Empty(t, o.Endpoint)
	assert.True(t, o.Insecure)

	s := GetSimConfig()
	assert.Equal(t, 60.0, s.TickRate)
	assert.Equal(t, 600, s.Ticks)
	assert.Equal(t, 0.01, s.MinTick)
	assert.Equal(t, int64(1), s.Seed)
	assert.Equal(t, Origin{}, s.Origin)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(filepath.Join(t.TempDir(), "nowhere"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestSimConfig_DTWithoutRate(t *testing.T) {
	assert.Zero(t, SimConfig{}.DT())
}

func TestBindFlags(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"storage": {"type": "sqlite"}}`)))

	fs := pflag.NewFlagSet("simcore", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--ticks", "42", "--dt", "0.05", "--log-level", "warn"}))
	require.NoError(t, BindFlags(fs))

	assert.Equal(t, 42, GetSimConfig().Ticks)
	assert.InDelta(t, 20, GetSimConfig().TickRate, 1e-9)
	assert.Equal(t, "warn", GetString("logLevel"))
	assert.Equal(t, "sqlite", GetStorageConfig().Type, "unset flags leave the file value alone")
}

func TestBindFlags_RejectsBadDT(t *testing.T) {
	t.Cleanup(viper.Reset)

	fs := pflag.NewFlagSet("simcore", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--dt", "-1"}))
	assert.Error(t, BindFlags(fs))
}

func TestOrigin(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"world": {"origin": {"coords": "13.405, 52.52"}}}`)))
	assert.Equal(t, Origin{Longitude: 13.405, Latitude: 52.52}, GetSimConfig().Origin)

	fs := pflag.NewFlagSet("simcore", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--origin", "-0.1276,51.5072"}))
	require.NoError(t, BindFlags(fs))
	assert.Equal(t, Origin{Longitude: -0.1276, Latitude: 51.5072}, GetSimConfig().Origin)
}

func TestOrigin_Invalid(t *testing.T) {
	t.Cleanup(viper.Reset)
	err := Load(writeConfig(t, `{"world": {"origin": {"coords": "north pole"}}}`))
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

const catalog = `{
	"archetypes": {
		"hauler": {
			"kind": "groundVehicle",
			"driver": "kinematic",
			"kinematic": { "maxVel": 12 },
			"hitch": { "maxYaw": 60 },
			"nodes": { "hitch_node": { "position": [0, -3, 0.4] } }
		},
		"skimmer": {
			"kind": "hover",
			"driver": "hover",
			"mass": 250,
			"hover": { "groundClearance": 1.5 }
		}
	},
	"munitions": {
		"mortar": {
			"indirectFire": { "kill": 0.4 },
			"ranges": [
				{ "angleOfFall": 45, "forward": { "kill": 10 }, "deflect": { "kill": 8 } }
			],
			"cutoffRange": 50,
			"newtonForce": 2000
		}
	},
	"scenario": {
		"name": "yard",
		"ground": { "height": 0.5 },
		"entities": [
			{ "name": "H1", "archetype": "hauler", "controls": [ { "at": 0, "thrust": 0.5 } ],
			  "tuning": { "MaxVel": 8 } },
			{ "name": "S1", "archetype": "skimmer", "position": [10, 0, 2] }
		],
		"hitches": [ { "tractor": "H1", "trailer": "S1", "detachAt": 4 } ],
		"detonations": [ { "at": 1.5, "munition": "mortar", "point": [5, 5, 0], "trajectory": [0, 1, -1] } ]
	}
}`

func TestGetArchetypes(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, catalog)))

	archetypes, err := GetArchetypes()
	require.NoError(t, err)
	require.Len(t, archetypes, 2)

	hauler := archetypes[0]
	assert.Equal(t, "hauler", hauler.Name)
	assert.Equal(t, sim.DriverKinematic, hauler.Driver)
	assert.Equal(t, 12.0, hauler.Kinematic.MaxVel)
	assert.Equal(t, 6.0, hauler.Kinematic.MaxAccel, "defaults survive partial overrides")
	require.NotNil(t, hauler.Hitch)
	assert.Equal(t, 60.0, hauler.Hitch.MaxYaw)
	assert.Equal(t, hitch.HitchFifthWheel, hauler.Hitch.HitchType)
	assert.True(t, hauler.Hitch.CascadeDeletes)
	assert.Equal(t, mgl64.Vec3{0, -3, 0.4}, hauler.Nodes["hitch_node"].Position)

	skimmer := archetypes[1]
	assert.Nil(t, skimmer.Hitch)
	assert.Equal(t, 250.0, skimmer.Mass)
	assert.Equal(t, 1.5, skimmer.Hover.GroundClearance)
	assert.Equal(t, hover.DefaultConfig().MaxForwardSpeed, skimmer.Hover.MaxForwardSpeed)
}

func TestGetMunitions(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, catalog)))

	table, err := GetMunitions()
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	d, err := table.Get("MORTAR")
	require.NoError(t, err)
	assert.Equal(t, "mortar", d.Name)
	assert.Equal(t, 0.4, d.IndirectFire.Kill)
	require.Len(t, d.Ranges, 1)
	assert.Equal(t, 10.0, d.Ranges[0].Forward.Kill)
	assert.Equal(t, 2000.0, d.NewtonForce)
}

func TestGetMunitions_Invalid(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"munitions": {"bad": {"directFire": {"kill": -1}}}}`)))

	_, err := GetMunitions()
	assert.Error(t, err)
}

func TestGetScenario(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, catalog)))

	sc, err := GetScenario()
	require.NoError(t, err)
	assert.Equal(t, "yard", sc.Name)
	assert.Equal(t, 0.5, sc.Ground.Height)
	require.Len(t, sc.Entities, 2)
	assert.Equal(t, "H1", sc.Entities[0].Name)
	assert.Equal(t, 0.5, sc.Entities[0].Controls[0].Thrust)
	assert.Equal(t, mgl64.Vec3{10, 0, 2}, sc.Entities[1].Position)
	require.Len(t, sc.Hitches, 1)
	assert.Equal(t, 4.0, sc.Hitches[0].DetachAt)
	require.Len(t, sc.Detonations, 1)
	assert.Equal(t, mgl64.Vec3{0, 1, -1}, sc.Detonations[0].Trajectory)
}

func TestCatalogBuildsWorld(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, catalog)))

	archetypes, err := GetArchetypes()
	require.NoError(t, err)
	table, err := GetMunitions()
	require.NoError(t, err)
	sc, err := GetScenario()
	require.NoError(t, err)

	w, err := sim.NewWorld(sim.Options{Archetypes: archetypes, Munitions: table})
	require.NoError(t, err)
	require.NoError(t, w.LoadScenario(sc))
	assert.Equal(t, 2, w.Registry().Len())
	assert.NotNil(t, w.Coupler(w.Registry().FindByName("H1").ID))
}
