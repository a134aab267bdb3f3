package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/armchr/junitmig/internal/config"
	"github.com/armchr/junitmig/internal/ledger"
	"github.com/armchr/junitmig/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	logLevel   string
)

// parseLogLevel converts a string log level to zapcore.Level
func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel // default to info
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "junitmig",
		Short: "Migrate JUnit 3/4 tests to JUnit 5",
		Long: `junitmig rewrites JUnit 3/4 test sources to JUnit 5 (Jupiter).

Commands:
  migrate   Rewrite the Java sources of a directory or configured repository
  serve     Serve the migration API over HTTP
  mcp       Serve the migration tools over MCP stdio
  rules     List the available cleanups`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides the config)")

	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewMCPCommand())
	rootCmd.AddCommand(NewRulesCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command shares. Logs go to
// stderr so stdout stays free for results and the MCP transport.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(parseLogLevel(cfg.App.LogLevel))
	cfgZap.OutputPaths = []string{"stderr"}
	logger, err := cfgZap.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// newService wires the migration service, with the ledger when it is enabled.
func newService(cfg *config.Config, metrics *service.Metrics, logger *zap.Logger) (*service.MigrationService, error) {
	var l *ledger.Ledger
	if cfg.Ledger.Enabled {
		var err error
		if l, err = ledger.New(cfg.Ledger, logger); err != nil {
			return nil, err
		}
	}
	return service.NewMigrationService(cfg, l, metrics, logger), nil
}
