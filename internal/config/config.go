package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/simcore/locomotion/internal/geo"
)

// FileName is the config file looked up in the config directory.
const FileName = "simcore.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB connection settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
	// BackupPath receives gzipped line protocol when the server is unreachable.
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// StorageConfig selects and configures the recording backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	DB     DBConfig     `json:"db" mapstructure:"db"`
	Influx InfluxConfig `json:"influx" mapstructure:"influx"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// GraylogConfig holds the GELF sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Origin places the local simulation frame on the globe (WGS84 degrees).
type Origin struct {
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
}

// SimConfig holds the simulation loop settings.
type SimConfig struct {
	TickRate float64 `json:"tickRate" mapstructure:"tickRate"`
	Ticks    int     `json:"ticks" mapstructure:"ticks"`
	MinTick  float64 `json:"minTick" mapstructure:"minTick"`
	MaxTick  float64 `json:"maxTick" mapstructure:"maxTick"`
	// Realtime paces ticks against the wall clock.
	Realtime bool   `json:"realtime" mapstructure:"realtime"`
	Seed     int64  `json:"seed" mapstructure:"seed"`
	Origin   Origin `json:"origin" mapstructure:"origin"`
}

// DT is the fixed step length implied by the tick rate.
func (c SimConfig) DT() float64 {
	if c.TickRate <= 0 {
		return 0
	}
	return 1 / c.TickRate
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("sim.tickRate", 60.0)
	viper.SetDefault("sim.ticks", 600)
	viper.SetDefault("sim.minTick", 0.01)
	viper.SetDefault("sim.maxTick", 0.1)
	viper.SetDefault("sim.realtime", false)
	viper.SetDefault("sim.seed", 1)

	viper.SetDefault("world.origin.longitude", 0.0)
	viper.SetDefault("world.origin.latitude", 0.0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./recordings/simcore.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "simcore")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "simcore")
	viper.SetDefault("influx.bucket", "simcore")
	viper.SetDefault("influx.backupPath", "./recordings/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "simcore")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from the JSON file in configDir and sets default values.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if coords := viper.GetString("world.origin.coords"); coords != "" {
		return setOrigin(coords)
	}
	return nil
}

// setOrigin overrides the origin with a "long,lat" pair.
func setOrigin(coords string) error {
	lon, lat, err := geo.ParseLonLat(coords)
	if err != nil {
		return fmt.Errorf("world origin %q: %w", coords, err)
	}
	viper.Set("world.origin.longitude", lon)
	viper.Set("world.origin.latitude", lat)
	return nil
}

// Flags registers the command-line flags understood by BindFlags.
func Flags(fs *pflag.FlagSet) {
	fs.String("config-dir", ".", "directory containing "+FileName)
	fs.Int("ticks", 0, "number of ticks to run (0 uses sim.ticks)")
	fs.Float64("dt", 0, "fixed tick length in seconds (0 uses 1/sim.tickRate)")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.String("storage", "", "storage backend: memory, sqlite, postgres or influx")
	fs.String("origin", "", "world origin as \"long,lat\" in WGS84 degrees")
}

// flagKeys maps flag names onto config keys.
var flagKeys = map[string]string{
	"ticks":     "sim.ticks",
	"log-level": "logLevel",
	"storage":   "storage.type",
}

// BindFlags makes explicitly set flags override the config file.
func BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	if f := fs.Lookup("dt"); f != nil && f.Changed {
		dt, err := fs.GetFloat64("dt")
		if err != nil {
			return fmt.Errorf("read flag dt: %w", err)
		}
		if dt <= 0 {
			return fmt.Errorf("flag dt must be positive, got %v", dt)
		}
		viper.Set("sim.tickRate", 1/dt)
	}
	if f := fs.Lookup("origin"); f != nil && f.Changed {
		return setOrigin(f.Value.String())
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: strings.ToLower(viper.GetString("storage.type")),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		Influx: InfluxConfig{
			Enabled:    viper.GetBool("influx.enabled"),
			Host:       viper.GetString("influx.host"),
			Port:       viper.GetString("influx.port"),
			Protocol:   viper.GetString("influx.protocol"),
			Token:      viper.GetString("influx.token"),
			Org:        viper.GetString("influx.org"),
			Bucket:     viper.GetString("influx.bucket"),
			BackupPath: viper.GetString("influx.backupPath"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetSimConfig returns the simulation loop settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		TickRate: viper.GetFloat64("sim.tickRate"),
		Ticks:    viper.GetInt("sim.ticks"),
		MinTick:  viper.GetFloat64("sim.minTick"),
		MaxTick:  viper.GetFloat64("sim.maxTick"),
		Realtime: viper.GetBool("sim.realtime"),
		Seed:     viper.GetInt64("sim.seed"),
		Origin: Origin{
			Longitude: viper.GetFloat64("world.origin.longitude"),
			Latitude:  viper.GetFloat64("world.origin.latitude"),
		},
	}
}
