// Package config loads and validates the steptrack configuration from YAML,
// with a .env overlay and STEPTRACK_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Tracking TrackingConfig `yaml:"tracking"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Notify   NotifyConfig   `yaml:"notify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// TrackingConfig holds coordinator tuning knobs. SyncThreshold and the poll
// intervals are hot-reloadable via the config watcher.
type TrackingConfig struct {
	SyncThreshold          uint32        `yaml:"sync_threshold"`
	PollInterval           time.Duration `yaml:"poll_interval"`
	BackgroundPollInterval time.Duration `yaml:"background_poll_interval"`
	PermissionTimeout      time.Duration `yaml:"permission_timeout"`
}

// SensorConfig points the polling adapters at their platform sources.
type SensorConfig struct {
	CounterFile string `yaml:"counter_file,omitempty"`
	HealthFile  string `yaml:"health_file,omitempty"`
}

// NotifyConfig configures the out-of-process notification surface.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load loads configuration from the specified file. A missing file is not an
// error; defaults apply. A present but malformed file is an error.
func Load(configPath string) (*Config, error) {
	// Load .env/.env.local if present; existing process env wins.
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			break
		}
	}

	cfg := &Config{}
	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps STEPTRACK_* variables onto the config. Environment
// always wins over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STEPTRACK_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("STEPTRACK_SYNC_THRESHOLD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.Tracking.SyncThreshold = uint32(n)
		}
	}
	if v := os.Getenv("STEPTRACK_NATS_URL"); v != "" {
		c.Notify.NATSURL = v
	}
	if v := os.Getenv("STEPTRACK_LOG_LEVEL"); v != "" {
		c.Log.Level = NormalizeLogLevel(v)
	}
}

// ApplyDefaults fills zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./steptrack-data"
	}
	if c.Tracking.SyncThreshold == 0 {
		c.Tracking.SyncThreshold = 50
	}
	if c.Tracking.PollInterval <= 0 {
		c.Tracking.PollInterval = 5 * time.Second
	}
	if c.Tracking.BackgroundPollInterval <= 0 {
		c.Tracking.BackgroundPollInterval = 60 * time.Second
	}
	if c.Tracking.PermissionTimeout <= 0 {
		c.Tracking.PermissionTimeout = 30 * time.Second
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = "steptrack.status"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9151"
	}
	if c.Log.Level == "" {
		c.Log.Level = LogLevelInfo
	}
	if c.Log.Format == "" {
		c.Log.Format = LogFormatText
	}
}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Tracking.PollInterval < time.Second {
		return fmt.Errorf("tracking.poll_interval must be at least 1s, got %v", c.Tracking.PollInterval)
	}
	if c.Tracking.BackgroundPollInterval < c.Tracking.PollInterval {
		return fmt.Errorf("tracking.background_poll_interval (%v) must not be shorter than poll_interval (%v)",
			c.Tracking.BackgroundPollInterval, c.Tracking.PollInterval)
	}
	return nil
}
