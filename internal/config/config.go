package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment variable read by Build.
const EnvPrefix = "STMT"

// Config holds the application configuration.
type Config struct {
	// Bank forces an issuer profile; empty means auto-detect.
	Bank string `mapstructure:"bank"`
	// Profile is the path of a YAML keyword profile overriding Bank.
	Profile string `mapstructure:"profile"`
	// Format is the output format: json or csv.
	Format string `mapstructure:"format"`
	// Output is the output file; empty means stdout.
	Output   string `mapstructure:"output"`
	LogLevel string `mapstructure:"log_level"`
	// Addr is the listen address of the HTTP server.
	Addr string `mapstructure:"addr"`
	// MaxAmount overrides the profile's implausible-amount ceiling.
	MaxAmount string `mapstructure:"max_amount"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"bank":       "bank",
	"profile":    "profile",
	"format":     "format",
	"output":     "output",
	"log-level":  "log_level",
	"addr":       "addr",
	"max-amount": "max_amount",
}

// Build loads configuration from defaults, the config file, the environment
// (a .env file is loaded first) and flags, in increasing precedence. With an
// empty cfgFile, statement-parser.yaml in the working directory is used when
// present.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("format", "json")
	v.SetDefault("log_level", "info")
	v.SetDefault("addr", ":8080")

	v.SetEnvPrefix(EnvPrefix)
	for _, key := range flagKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("statement-parser")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Bank = strings.ToLower(strings.TrimSpace(cfg.Bank))
	cfg.Format = strings.ToLower(cfg.Format)
	if cfg.Format != "json" && cfg.Format != "csv" {
		return nil, fmt.Errorf("unsupported format %q (use json or csv)", cfg.Format)
	}
	return &cfg, nil
}
