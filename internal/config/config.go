package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Device  DeviceConfig  `yaml:"device"`
	Monitor MonitorConfig `yaml:"monitor"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type StorageConfig struct {
	JobsPath     string `yaml:"jobs_path"`
	SettingsPath string `yaml:"settings_path"`
}

type DeviceConfig struct {
	Port           int           `yaml:"port"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	TimeTimeout    time.Duration `yaml:"time_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AppName        string        `yaml:"app_name"`
}

type MonitorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8090,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{},
		Device: DeviceConfig{
			Port:           8080,
			ProbeTimeout:   3 * time.Second,
			TimeTimeout:    6 * time.Second,
			RequestTimeout: 15 * time.Second,
			AppName:        "raybox-panel",
		},
		Monitor: MonitorConfig{
			PollInterval: 2 * time.Second,
			ErrorBackoff: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RAYBOX_PANEL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("RAYBOX_PANEL_JOBS_PATH"); v != "" {
		c.Storage.JobsPath = v
	}
	if v := os.Getenv("RAYBOX_PANEL_SETTINGS_PATH"); v != "" {
		c.Storage.SettingsPath = v
	}
	if v := os.Getenv("RAYBOX_PANEL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Device.Port < 1 || c.Device.Port > 65535 {
		return fmt.Errorf("device port must be between 1 and 65535, got %d", c.Device.Port)
	}

	if c.Device.ProbeTimeout < 0 || c.Device.TimeTimeout < 0 || c.Device.RequestTimeout < 0 {
		return fmt.Errorf("device timeouts must be non-negative")
	}

	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor poll interval must be positive")
	}

	if c.Monitor.ErrorBackoff <= 0 {
		return fmt.Errorf("monitor error backoff must be positive")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}

	return nil
}
