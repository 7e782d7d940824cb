package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradegate/config"
)

var rootCmd = &cobra.Command{
	Use:   "tradegate",
	Short: "Per-user risk gate and paper execution for trade signals",
	Long: `Tradegate checks trade signals against per-user, per-day risk limits and
executes the ones that pass through a paper broker.

It provides tools for:
  - Executing single signals or batches from JSON/JSONL files
  - Dry-run risk evaluation
  - Inspecting and resetting daily risk state
  - Querying the execution journal`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile   string
	envFiles  []string
	logLevel  string
	logFormat string

	cfg *config.Config
	log *slog.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files with broker credentials (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (text or json)")
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(envFiles...); err != nil {
		return err
	}

	if cfgFile != "" {
		c, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
	} else {
		cfg = config.Default()
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	l, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	log = l
	slog.SetDefault(log)
	return nil
}

func newLogger(c config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(c.Level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}

	switch c.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
}
