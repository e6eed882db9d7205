package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sensordash/internal/api"
	"sensordash/internal/config"
	"sensordash/internal/data"
	"sensordash/internal/session"
	"sensordash/internal/storage"
)

var (
	// Global flags
	cfgPath     string
	serverURL   string
	sessionFile string
	verbose     bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sensordash",
	Short: "sensordash - client for the sensor-measurement dashboard",
	Long: `sensordash is a command-line client for the sensor-measurement dashboard.

It keeps a persisted session (login survives between invocations), manages
series, measurements, and sensors against the backend API, and can serve a
local dashboard backed by an in-memory backend for development.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// app wires one config/client/store graph per invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	client   *api.Client
	sessions *session.Store
	store    *data.Store
}

// newApp builds the stores and waits for the session bootstrap to settle so
// commands see a confirmed (or cleanly reverted) session.
func newApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if sessionFile != "" {
		cfg.Storage.SessionFile = sessionFile
	}

	timeout, err := time.ParseDuration(cfg.Server.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := api.NewWithConfig(api.Config{BaseURL: cfg.Server.BaseURL, Timeout: timeout}, logger)
	slot := storage.NewFileSlot(cfg.Storage.SessionFile)
	sessions := session.New(client, slot, logger)

	select {
	case <-sessions.BootstrapDone():
	case <-time.After(timeout + time.Second):
		logger.Warn("session bootstrap did not settle in time")
	}

	return &app{
		cfg:      cfg,
		log:      logger,
		client:   client,
		sessions: sessions,
		store:    data.New(client, logger),
	}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "path to the config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "persisted session file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sensordash.yaml"
	}
	return home + "/.sensordash/config.yaml"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
