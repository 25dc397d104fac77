package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/simcore/locomotion/internal/config"
	"github.com/simcore/locomotion/internal/logging"
	intOtel "github.com/simcore/locomotion/internal/otel"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "simcore"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now().UTC()

	// currentRunID is stamped onto every log record once a run has started.
	currentRunID atomic.Uint64
)

func main() {
	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = strings.ToLower(args[0]), args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runCommand(args)
	case "export":
		err = exportCommand(args)
	case "version":
		fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
	default:
		err = fmt.Errorf("unknown command %q, expected run, export or version", cmd)
	}
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// parseFlags registers the shared flags plus any extras, parses args and
// loads the config file.
func parseFlags(name string, args []string, extra func(fs *pflag.FlagSet)) (*pflag.FlagSet, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	config.Flags(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	configDir, _ := fs.GetString("config-dir")
	if err := config.Load(configDir); err != nil {
		// defaults are already in place
		fmt.Fprintln(os.Stderr, "Failed to load config, using defaults:", err)
	}
	if err := config.BindFlags(fs); err != nil {
		return nil, err
	}
	return fs, nil
}

// initLogging sets up stdout logging, then the session log file, OTel and
// Graylog once the config is known.
func initLogging() error {
	level := config.GetString("logLevel")

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, level, nil)
	Logger = SlogManager.Logger()

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)

	// keep the previous file of the same second around
	if _, err := os.Stat(LogFilePath); err == nil {
		_ = os.Rename(LogFilePath, LogFilePath+".old")
	}

	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", LogFilePath, err)
	}
	Logger.Info("Begin logging in logs directory", "path", LogFilePath)

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(context.Background(), intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      LogFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath)
		}
	}

	var extra []slog.Handler
	if gl := config.GetGraylogConfig(); gl.Enabled {
		h, err := logging.NewGraylogHandler(gl.Address, AppName, SlogManager.Level())
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err, "address", gl.Address)
		} else {
			extra = append(extra, h)
		}
	}

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(LogFile, level, otelLogProvider, extra...)
	Logger = SlogManager.WithContext(func() []slog.Attr {
		if id := currentRunID.Load(); id != 0 {
			return []slog.Attr{slog.Uint64("runId", id)}
		}
		return nil
	})
	slog.SetDefault(Logger)
	Logger.Info("Logging to file", "path", LogFilePath, "version", CurrentVersion, "buildDate", BuildDate)
	return nil
}

// closeLogging flushes OTel and Graylog and closes the log file.
func closeLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if SlogManager != nil {
		if err := SlogManager.Close(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to flush logs:", err)
		}
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to shut down OTel:", err)
		}
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}
