package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/surveyloom-cli/internal/cleaning"
	cfgpkg "github.com/KaramelBytes/surveyloom-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set SurveyLoom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		fmt.Printf("log_format: %s\n", cfg.LogFormat)
		fmt.Printf("server_addr: %s\n", cfg.ServerAddr)
		fmt.Printf("max_upload_mb: %d\n", cfg.MaxUploadMB)
		fmt.Printf("seed: %d\n", cfg.Seed)
		c := cfg.Cleaning
		fmt.Printf("cleaning.deduplication: %s (threshold %.2f)\n", onOff(c.Deduplication.Enabled, string(c.Deduplication.Method)), c.Deduplication.Threshold)
		fmt.Printf("cleaning.missing_values: %s (threshold %.2f)\n", onOff(c.MissingValues.Enabled, string(c.MissingValues.Method)), c.MissingValues.Threshold)
		fmt.Printf("cleaning.outliers: %s (contamination %.2f)\n", onOff(c.Outliers.Enabled, string(c.Outliers.Method)), c.Outliers.Contamination)
		fmt.Printf("cleaning.invalid_data: %s (%d rules)\n", onOff(c.InvalidData.Enabled, ""), len(c.InvalidData.Rules))
		fmt.Printf("cleaning.straight_liners: %s (run %d, variance %.2f)\n", onOff(c.StraightLiners.Enabled, ""), c.StraightLiners.ConsecutiveThreshold, c.StraightLiners.VarianceThreshold)
		fmt.Printf("cleaning.speeders: %s (%s, %.0fs..%.0fs)\n", onOff(c.Speeders.Enabled, ""), c.Speeders.TimeColumn, c.Speeders.MinTimeSeconds, c.Speeders.MaxTimeSeconds)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk.

Keys: log_level, log_format, server_addr, max_upload_mb, seed, and
cleaning.<module>.enabled / cleaning.<module>.method for the cleaning modules
(deduplication, missing_values, outliers, invalid_data, straight_liners, speeders).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "log_level":
			switch strings.ToLower(val) {
			case "debug", "info", "warn", "error":
				cfg.LogLevel = strings.ToLower(val)
			default:
				return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
			}
		case "log_format":
			switch strings.ToLower(val) {
			case "console", "json":
				cfg.LogFormat = strings.ToLower(val)
			default:
				return fmt.Errorf("invalid log_format: %s (use console or json)", val)
			}
		case "server_addr":
			cfg.ServerAddr = val
		case "max_upload_mb":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for max_upload_mb: %v", val)
			}
			cfg.MaxUploadMB = i
		case "seed":
			i, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid int for seed: %w", err)
			}
			cfg.Seed = i
			cfg.Cleaning.Seed = i
		default:
			if !strings.HasPrefix(key, "cleaning.") {
				return fmt.Errorf("unknown key: %s", key)
			}
			next := cfg.Cleaning
			if err := setCleaningKey(&next, strings.TrimPrefix(key, "cleaning."), val); err != nil {
				return err
			}
			if err := next.Validate(); err != nil {
				return err
			}
			cfg.Cleaning = next
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setCleaningKey(c *cleaning.Config, key, val string) error {
	module, field, ok := strings.Cut(key, ".")
	if !ok || (field != "enabled" && field != "method") {
		return fmt.Errorf("unknown key: cleaning.%s", key)
	}
	var enabled *bool
	hasMethod := true
	switch cleaning.ModuleName(module) {
	case cleaning.ModuleDeduplication:
		enabled = &c.Deduplication.Enabled
		if field == "method" {
			c.Deduplication.Method = cleaning.DedupMethod(val)
		}
	case cleaning.ModuleMissingValues:
		enabled = &c.MissingValues.Enabled
		if field == "method" {
			c.MissingValues.Method = cleaning.ImputeMethod(val)
		}
	case cleaning.ModuleOutliers:
		enabled = &c.Outliers.Enabled
		if field == "method" {
			c.Outliers.Method = cleaning.OutlierMethod(val)
		}
	case cleaning.ModuleInvalidData:
		enabled = &c.InvalidData.Enabled
		hasMethod = false
	case cleaning.ModuleStraightLiners:
		enabled = &c.StraightLiners.Enabled
		hasMethod = false
	case cleaning.ModuleSpeeders:
		enabled = &c.Speeders.Enabled
		hasMethod = false
	default:
		return fmt.Errorf("unknown cleaning module: %s", module)
	}
	if field == "method" {
		if !hasMethod {
			return fmt.Errorf("module %s has no method", module)
		}
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid bool for cleaning.%s: %v", key, val)
	}
	*enabled = b
	return nil
}

func onOff(enabled bool, method string) string {
	if !enabled {
		return "off"
	}
	if method == "" {
		return "on"
	}
	return "on, " + method
}
