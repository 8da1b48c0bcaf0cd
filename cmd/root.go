package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/surveyloom-cli/internal/cleaning"
	cfgpkg "github.com/KaramelBytes/surveyloom-cli/internal/config"
	"github.com/KaramelBytes/surveyloom-cli/internal/logging"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	logFormat string

	// Loaded configuration and the logger built from it
	cfg    *cfgpkg.Global
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "surveyloom",
	Short: "SurveyLoom CLI: clean survey responses and balance question weights",
	Long: `SurveyLoom reads survey exports (CSV, TSV or XLSX), applies a column schema,
runs the cleaning modules (deduplication, missing values, outliers, invalid data,
straight-liners, speeders) and lets you redistribute weights across the response
columns. The same pipeline is served over HTTP by "surveyloom serve".`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.surveyloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console | json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{LogLevel: "info", LogFormat: "console", MaxUploadMB: 50, Cleaning: cleaning.DefaultConfig()}
		c.Seed = c.Cleaning.Seed
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if debug {
		cfg.LogLevel = "debug"
	}
	if f.Changed("log-format") && logFormat != "" {
		cfg.LogFormat = logFormat
	}

	l, err := logging.Install(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: logging disabled: %v\n", err)
		l = zap.NewNop()
	}
	logger = l
}
