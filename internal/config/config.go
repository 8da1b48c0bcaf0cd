package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/surveyloom-cli/internal/cleaning"
)

// Global configuration structure.
type Global struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// HTTP server
	ServerAddr  string `mapstructure:"server_addr" yaml:"server_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// Seed drives every randomized cleaning method. It overrides cleaning.seed.
	Seed     int64           `mapstructure:"seed" yaml:"seed"`
	Cleaning cleaning.Config `mapstructure:"cleaning" yaml:"cleaning"`
}

// Dir is ~/.surveyloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".surveyloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.surveyloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// cleaningDefaults renders cleaning.DefaultConfig as a nested map so viper can
// merge a partial cleaning block from the file over it key by key.
func cleaningDefaults() (map[string]any, error) {
	b, err := yaml.Marshal(cleaning.DefaultConfig())
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Load loads configuration from file, env (and a .env file in the working
// directory), and defaults.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SURVEYLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("server_addr", "127.0.0.1:8080")
	v.SetDefault("max_upload_mb", 50)
	v.SetDefault("seed", cleaning.DefaultConfig().Seed)
	defs, err := cleaningDefaults()
	if err != nil {
		return nil, fmt.Errorf("cleaning defaults: %w", err)
	}
	v.SetDefault("cleaning", defs)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Cleaning.Seed = c.Seed
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 50
	}
	return &c, nil
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Global) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
