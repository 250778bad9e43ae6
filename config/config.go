// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/stratastor/logger"
	"gopkg.in/yaml.v3"

	"github.com/coldforge/veriwipe/internal/constants"
)

var (
	instance   *Config
	once       sync.Once
	configPath string
)

// Config is the top-level configuration, loaded from YAML with viper and
// overridable by VERIWIPE_-prefixed environment variables.
type Config struct {
	Server struct {
		LogLevel string `mapstructure:"logLevel"`
		APIAddr  string `mapstructure:"apiAddr"`
	} `mapstructure:"server"`

	// Health is consulted by the "health" CLI command, which hits the
	// running daemon's own local API surface rather than reimplementing
	// the checks it already exposes.
	Health struct {
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"health"`

	// Logs controls where the daemon's own stdout/stderr logging goes
	// when run detached. This is distinct from LogChain.Path, which is
	// the hash-chained evidence log of wipe operations, not a text log.
	Logs struct {
		Path   string `mapstructure:"path"`
		Output string `mapstructure:"output"`
	} `mapstructure:"logs"`

	Logger struct {
		LogLevel     string `mapstructure:"logLevel"`
		EnableSentry bool   `mapstructure:"enableSentry"`
		SentryDSN    string `mapstructure:"sentryDSN"`
	} `mapstructure:"logger"`

	// Tools holds host paths for the vendor binaries. These values are
	// loaded and saved with the rest of the configuration, but the probe
	// and the wipe executor do not read them: they invoke the bare tool
	// names, which are resolved against PATH.
	Tools struct {
		Lsblk      string `mapstructure:"lsblk"`
		Smartctl   string `mapstructure:"smartctl"`
		Hdparm     string `mapstructure:"hdparm"`
		Nvme       string `mapstructure:"nvme"`
		Blkdiscard string `mapstructure:"blkdiscard"`
		Cryptsetup string `mapstructure:"cryptsetup"`
		Umount     string `mapstructure:"umount"`
	} `mapstructure:"tools"`

	Signer struct {
		KeysDir string `mapstructure:"keysDir"`

		// TrustDir, if set, points --verify at a directory of
		// `<fingerprint>.pub.pem` files (a fleet's signer roster)
		// instead of trusting only this host's own signer.
		TrustDir string `mapstructure:"trustDir"`
	} `mapstructure:"signer"`

	LogChain struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"logChain"`

	Certificates struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"certificates"`

	// Anchor holds settings for the optional, non-default external
	// timestamp anchor fetch. No command builds an anchor client from
	// these values, so setting TSAURL does not by itself trigger a
	// fetch; the verifier never uses this regardless of configuration.
	Anchor struct {
		TSAURL  string `mapstructure:"tsaURL"`
		Timeout string `mapstructure:"timeout"`
	} `mapstructure:"anchor"`

	// Compliance maps each wipe strategy to its NIST SP 800-88
	// classification; operators may override entries (e.g. to mark a
	// site-local strategy variant) without a code change.
	Compliance struct {
		Standards         []string          `mapstructure:"standards"`
		ClassificationMap map[string]string `mapstructure:"classificationMap"`
	} `mapstructure:"compliance"`

	Queue struct {
		MaxConcurrentWipes int `mapstructure:"maxConcurrentWipes"`

		// ChainVerifyCron schedules the daemon's periodic hash-chain
		// re-verification job (standard 5-field cron syntax).
		ChainVerifyCron string `mapstructure:"chainVerifyCron"`
	} `mapstructure:"queue"`

	Development struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"development"`

	Environment string `mapstructure:"environment"`
}

// LoadConfig loads configuration with precedence: explicit path >
// VERIWIPE_CONFIG env var > system default path.
func LoadConfig(configFilePath string) *Config {
	once.Do(func() {
		logConfig := logger.Config{LogLevel: "info"}
		l, err := logger.NewTag(logConfig, "config")
		if err != nil {
			fmt.Printf("failed to create logger: %v\n", err)
			os.Exit(1)
		}

		viper.Reset()
		viper.SetConfigType("yaml")

		systemConfigPath := filepath.Join(GetConfigDir(), constants.ConfigFileName)

		switch {
		case configFilePath != "":
			configPath = configFilePath
		case os.Getenv("VERIWIPE_CONFIG") != "":
			configPath = os.Getenv("VERIWIPE_CONFIG")
		default:
			configPath = systemConfigPath
		}

		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
		viper.SetConfigFile(configPath)

		viper.SetDefault("environment", "dev")
		viper.SetDefault("server.logLevel", "info")
		viper.SetDefault("server.apiAddr", "127.0.0.1:8842")
		viper.SetDefault("health.endpoint", "/health")
		viper.SetDefault("logs.path", filepath.Join(GetConfigDir(), "veriwipe.log"))
		viper.SetDefault("logs.output", "stdout")
		viper.SetDefault("logger.logLevel", "info")
		viper.SetDefault("logger.enableSentry", false)

		viper.SetDefault("tools.lsblk", "lsblk")
		viper.SetDefault("tools.smartctl", "smartctl")
		viper.SetDefault("tools.hdparm", "hdparm")
		viper.SetDefault("tools.nvme", "nvme")
		viper.SetDefault("tools.blkdiscard", "blkdiscard")
		viper.SetDefault("tools.cryptsetup", "cryptsetup")
		viper.SetDefault("tools.umount", "umount")

		viper.SetDefault("signer.keysDir", GetKeysDir())
		viper.SetDefault("signer.trustDir", "")
		viper.SetDefault("logChain.path", filepath.Join(GetLogDir(), "operations.log.json"))
		viper.SetDefault("certificates.dir", GetCertDir())

		viper.SetDefault("anchor.tsaURL", "")
		viper.SetDefault("anchor.timeout", "10s")

		viper.SetDefault("compliance.standards", []string{"NIST SP 800-88"})
		viper.SetDefault("compliance.classificationMap", defaultClassificationMap())

		viper.SetDefault("queue.maxConcurrentWipes", 4)
		viper.SetDefault("queue.chainVerifyCron", "0 */6 * * *")
		viper.SetDefault("development.enabled", false)

		viper.AutomaticEnv()
		viper.SetEnvPrefix("VERIWIPE")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		err = viper.ReadInConfig()
		if err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				l.Info("config file not found, creating default at system path",
					"path", systemConfigPath)

				if err := os.MkdirAll(GetConfigDir(), 0755); err != nil {
					l.Error("failed to create config directory", "err", err)
				}

				var cfg Config
				if err := viper.Unmarshal(&cfg); err != nil {
					l.Error("failed to unmarshal default configuration", "err", err)
				}
				instance = &cfg
				configPath = systemConfigPath

				if err := SaveConfig(systemConfigPath); err != nil {
					l.Error("failed to save default configuration", "err", err)
				}
			} else {
				l.Error("error reading config file", "err", err)

				var cfg Config
				if err := viper.Unmarshal(&cfg); err != nil {
					l.Error("failed to unmarshal default configuration", "err", err)
				}
				instance = &cfg
			}
		} else {
			l.Info("config file loaded successfully", "path", viper.ConfigFileUsed())
			configPath = viper.ConfigFileUsed()

			var cfg Config
			if err := viper.Unmarshal(&cfg); err != nil {
				l.Error("failed to parse configuration", "err", err)
			} else {
				instance = &cfg
			}
		}

		l.Debug("loaded configuration", "config", fmt.Sprintf("%+v", *instance))
	})

	return instance
}

// defaultClassificationMap is the strategy → NIST SP 800-88 classification
// table used by the certificate builder's compliance section.
func defaultClassificationMap() map[string]string {
	return map[string]string{
		"ata_secure_erase":    "Purge",
		"nvme_secure_erase":   "Purge",
		"nvme_crypto_erase":   "Purge",
		"crypto_erase_luks":   "Purge",
		"multipass_overwrite": "Clear",
		"single_pass_random":  "Clear",
		"factory_reset":       "Clear",
	}
}

// SaveConfig persists the current configuration to path, defaulting to
// the system or user config directory depending on privilege.
func SaveConfig(path string) error {
	if path == "" {
		if os.Geteuid() == 0 {
			if err := os.MkdirAll(GetConfigDir(), 0755); err != nil {
				return fmt.Errorf("failed to create system config directory: %w", err)
			}
			path = filepath.Join(GetConfigDir(), constants.ConfigFileName)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			userConfigDir := filepath.Join(home, ".veriwipe")
			if err := os.MkdirAll(userConfigDir, 0755); err != nil {
				return fmt.Errorf("failed to create user config directory: %w", err)
			}
			path = filepath.Join(userConfigDir, constants.ConfigFileName)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configYAML, err := yaml.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}

	if err := os.WriteFile(path, configYAML, 0644); err != nil {
		return fmt.Errorf("failed to write configuration to file: %w", err)
	}

	configPath = path
	return nil
}

// GetLoadedConfigPath returns the path the active configuration was loaded
// from.
func GetLoadedConfigPath() string {
	return configPath
}

// ReloadConfig re-reads the already-loaded config file from disk and
// replaces the singleton instance, for daemon callers (the SIGHUP
// reload hook in cmd/serve) that need to pick up edits without a
// restart. Unlike LoadConfig it bypasses the once-guard, so it must
// only be called after LoadConfig has already run at least once.
func ReloadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reload config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("reload config: unmarshal: %w", err)
	}

	instance = &cfg
	return instance, nil
}

// GetConfig returns the current configuration instance, loading defaults
// if none has been loaded yet.
func GetConfig() *Config {
	if instance == nil {
		return LoadConfig("")
	}
	return instance
}

// NewLoggerConfig builds a logger.Config from cfg, or a sane default when
// cfg is nil.
func NewLoggerConfig(cfg *Config) logger.Config {
	if cfg == nil {
		return logger.Config{LogLevel: "info"}
	}

	return logger.Config{
		LogLevel:     cfg.Logger.LogLevel,
		EnableSentry: cfg.Logger.EnableSentry,
		SentryDSN:    cfg.Logger.SentryDSN,
	}
}
