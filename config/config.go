// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package config loads sanitor's YAML configuration via viper,
// following the same load-or-create-defaults precedence the rest of
// the engine's persisted state uses.
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

	"github.com/tinkershack/sanitor/internal/common"
)

const configFileName = "sanitor.yaml"

var (
	instance   *Config
	once       sync.Once
	configPath string
)

// Config is the engine's full runtime configuration.
type Config struct {
	Logger struct {
		LogLevel     string `mapstructure:"logLevel"`
		EnableSentry bool   `mapstructure:"enableSentry"`
		SentryDSN    string `mapstructure:"sentryDSN"`
	} `mapstructure:"logger"`

	Tools struct {
		Smartctl string `mapstructure:"smartctl"`
		Hdparm   string `mapstructure:"hdparm"`
		Nvme     string `mapstructure:"nvme"`
		Lsblk    string `mapstructure:"lsblk"`
		Blockdev string `mapstructure:"blockdev"`
		Udevadm  string `mapstructure:"udevadm"`
	} `mapstructure:"tools"`

	Probe struct {
		// RescanInterval is how often the background inventory scan
		// (gocron) re-enumerates block devices.
		RescanInterval string `mapstructure:"rescanInterval"`
	} `mapstructure:"probe"`

	Sanitize struct {
		// AllowRealDevices gates every hardware-sanitize and
		// pass-executor operation that would actually touch a block
		// device. When false, C4/C5 run in simulation mode and report
		// SimulatedOk instead of issuing I/O.
		AllowRealDevices bool `mapstructure:"allowRealDevices"`

		// SystemDeviceOverrideAllowed permits operating on the device
		// backing the running OS; refused by default by the planner
		// and controller.
		SystemDeviceOverrideAllowed bool `mapstructure:"systemDeviceOverrideAllowed"`

		// PassBufferSizeBytes is the chunk size the pass executor
		// writes per iteration; must be a multiple of the device's
		// logical sector size.
		PassBufferSizeBytes int `mapstructure:"passBufferSizeBytes"`

		// PatternRegenIntervalMiB is the pattern source's regeneration
		// window in MiB (clamped to at least 16). Random fills already
		// draw fresh bytes from the OS CSPRNG on every call, so no
		// random buffer is reused within the window.
		PatternRegenIntervalMiB int `mapstructure:"patternRegenIntervalMiB"`

		HardwarePollInterval string `mapstructure:"hardwarePollInterval"`

		// ReaperInterval is how often the Controller's background
		// reaper scans for jobs that have run longer than
		// StuckJobTimeout and requests their cancellation.
		ReaperInterval string `mapstructure:"reaperInterval"`
		// StuckJobTimeout is how long a job may run before the reaper
		// requests cooperative cancellation on it.
		StuckJobTimeout string `mapstructure:"stuckJobTimeout"`
	} `mapstructure:"sanitize"`

	Verification struct {
		SampleBlockCount int `mapstructure:"sampleBlockCount"`
		// StrictMode fails a job outright when verification sampling
		// finds inconsistent data, instead of completing the job with
		// VerifierOutcome.Passed=false.
		StrictMode bool `mapstructure:"strictMode"`
	} `mapstructure:"verification"`

	Keys struct {
		Issuer struct {
			DirPath   string `mapstructure:"dirPath"`
			Algorithm string `mapstructure:"algorithm"`
			OrgName   string `mapstructure:"orgName"`
		} `mapstructure:"issuer"`
	} `mapstructure:"keys"`

	Development struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"development"`

	Environment string `mapstructure:"environment"`
}

// LoadConfig loads configuration with precedence: explicit path, then
// SANITOR_CONFIG env var, then the system/user default location.
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

		stateDir, err := common.StateDir()
		if err != nil {
			l.Error("failed to resolve state directory", "err", err)
			stateDir = "."
		}
		systemConfigPath := filepath.Join(stateDir, configFileName)

		switch {
		case configFilePath != "":
			configPath = configFilePath
		case os.Getenv("SANITOR_CONFIG") != "":
			configPath = os.Getenv("SANITOR_CONFIG")
		default:
			configPath = systemConfigPath
		}

		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
		viper.SetConfigFile(configPath)

		setDefaults()

		viper.AutomaticEnv()
		viper.SetEnvPrefix("SANITOR")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		err = viper.ReadInConfig()
		if err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				l.Info("config file not found, creating default", "path", systemConfigPath)
				if err := common.EnsureDir(stateDir, 0755); err != nil {
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
			l.Info("config file loaded", "path", viper.ConfigFileUsed())
			configPath = viper.ConfigFileUsed()
			var cfg Config
			if err := viper.Unmarshal(&cfg); err != nil {
				l.Error("failed to parse configuration", "err", err)
			} else {
				instance = &cfg
			}
		}

		if instance.Sanitize.AllowRealDevices {
			l.Warn("allowRealDevices is enabled; sanitize operations will issue real device I/O")
		}
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("environment", "dev")

	viper.SetDefault("logger.logLevel", "info")
	viper.SetDefault("logger.enableSentry", false)

	viper.SetDefault("tools.smartctl", "/usr/sbin/smartctl")
	viper.SetDefault("tools.hdparm", "/sbin/hdparm")
	viper.SetDefault("tools.nvme", "/usr/sbin/nvme")
	viper.SetDefault("tools.lsblk", "/usr/bin/lsblk")
	viper.SetDefault("tools.blockdev", "/sbin/blockdev")
	viper.SetDefault("tools.udevadm", "/usr/bin/udevadm")

	viper.SetDefault("probe.rescanInterval", "5m")

	viper.SetDefault("sanitize.allowRealDevices", false)
	viper.SetDefault("sanitize.systemDeviceOverrideAllowed", false)
	viper.SetDefault("sanitize.passBufferSizeBytes", 16*1024*1024)
	viper.SetDefault("sanitize.patternRegenIntervalMiB", 64)
	viper.SetDefault("sanitize.hardwarePollInterval", "1s")
	viper.SetDefault("sanitize.reaperInterval", "5m")
	viper.SetDefault("sanitize.stuckJobTimeout", "4h")

	viper.SetDefault("verification.sampleBlockCount", 10)
	viper.SetDefault("verification.strictMode", false)

	viper.SetDefault("keys.issuer.dirPath", "~/.sanitor/issuer")
	viper.SetDefault("keys.issuer.algorithm", "ed25519")
	viper.SetDefault("keys.issuer.orgName", "sanitor")

	viper.SetDefault("development.enabled", false)
}

// SaveConfig persists the current configuration to path, creating
// parent directories as needed.
func SaveConfig(path string) error {
	if path == "" {
		stateDir, err := common.StateDir()
		if err != nil {
			return fmt.Errorf("failed to resolve state directory: %w", err)
		}
		path = filepath.Join(stateDir, configFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}

	if err := common.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	configPath = path
	return nil
}

// GetLoadedConfigPath returns the path the active configuration was
// loaded from (or will be saved to, if not yet persisted).
func GetLoadedConfigPath() string {
	return configPath
}

// GetConfig returns the process-wide configuration, loading defaults
// if it has not been loaded yet.
func GetConfig() *Config {
	if instance == nil {
		return LoadConfig("")
	}
	return instance
}

// NewLoggerConfig adapts cfg's logger section into a logger.Config.
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
