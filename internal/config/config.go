// Package config loads runtime configuration for the shop-floor binaries.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file, then SHOPFLOOR_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
)

// Remote transport kinds.
const (
	RemoteSimulated = "simulated"
	RemoteHTTP      = "http"
	RemoteMQTT      = "mqtt"
)

// DefaultTenantID is stamped on records created before any tenant is known.
const DefaultTenantID = "tenant_demo"

// Config holds application configuration.
type Config struct {
	DataDir  string `yaml:"data_dir"`
	DBFile   string `yaml:"db_file"`
	TenantID string `yaml:"tenant_id"`

	Log            LogConfig            `yaml:"log"`
	Sync           SyncConfig           `yaml:"sync"`
	Remote         RemoteConfig         `yaml:"remote"`
	Connectivity   ConnectivityConfig   `yaml:"connectivity"`
	AlertGenerator AlertGeneratorConfig `yaml:"alert_generator"`
	Desktop        DesktopConfig        `yaml:"desktop"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// SyncConfig controls the scheduling controller.
type SyncConfig struct {
	Interval    time.Duration `yaml:"interval"`
	PassTimeout time.Duration `yaml:"pass_timeout"`
}

// RemoteConfig selects and configures the remote transport.
type RemoteConfig struct {
	Kind      string                `yaml:"kind"`
	HTTP      HTTPRemoteConfig      `yaml:"http"`
	MQTT      MQTTRemoteConfig      `yaml:"mqtt"`
	Simulated SimulatedRemoteConfig `yaml:"simulated"`
}

// HTTPRemoteConfig configures the JSON-over-HTTP transport.
type HTTPRemoteConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

// MQTTRemoteConfig configures the broker transport.
type MQTTRemoteConfig struct {
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TopicPrefix string        `yaml:"topic_prefix"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SimulatedRemoteConfig configures the in-process stand-in remote.
type SimulatedRemoteConfig struct {
	Latency     time.Duration `yaml:"latency"`
	Jitter      time.Duration `yaml:"jitter"`
	FailureRate float64       `yaml:"failure_rate"`
}

// ConnectivityConfig configures reachability probing.
type ConnectivityConfig struct {
	ProbeURL     string        `yaml:"probe_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// AlertGeneratorConfig configures the simulated alert source.
type AlertGeneratorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// DesktopConfig configures the localhost API.
type DesktopConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:  "./shopfloor-data",
		DBFile:   "shopfloor.db",
		TenantID: DefaultTenantID,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Sync: SyncConfig{
			Interval:    60 * time.Second,
			PassTimeout: 2 * time.Minute,
		},
		Remote: RemoteConfig{
			Kind: RemoteSimulated,
			HTTP: HTTPRemoteConfig{
				BaseURL:       "https://api.shopfloor.local",
				Timeout:       10 * time.Second,
				RatePerSecond: 5,
				Burst:         5,
			},
			MQTT: MQTTRemoteConfig{
				Broker:      "tcp://localhost:1883",
				ClientID:    "shopfloor-device",
				TopicPrefix: "shopfloor",
				Timeout:     10 * time.Second,
			},
			Simulated: SimulatedRemoteConfig{
				Latency: 500 * time.Millisecond,
				Jitter:  500 * time.Millisecond,
			},
		},
		Connectivity: ConnectivityConfig{
			PollInterval: 10 * time.Second,
			Timeout:      3 * time.Second,
		},
		AlertGenerator: AlertGeneratorConfig{
			Enabled:  false,
			Interval: 30 * time.Second,
		},
		Desktop: DesktopConfig{
			Addr: "127.0.0.1:8765",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfig, "read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfig, "parse config file", err)
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DBPath returns the absolute location of the SQLite file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, c.DBFile)
}

// Validate rejects configurations the binaries cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return apperrors.New(apperrors.ErrConfig, "data_dir is required")
	}
	if c.DBFile == "" {
		return apperrors.New(apperrors.ErrConfig, "db_file is required")
	}
	if c.TenantID == "" {
		return apperrors.New(apperrors.ErrConfig, "tenant_id is required")
	}
	if c.Sync.Interval <= 0 {
		return apperrors.New(apperrors.ErrConfig, "sync.interval must be positive")
	}
	if c.Sync.PassTimeout <= 0 {
		return apperrors.New(apperrors.ErrConfig, "sync.pass_timeout must be positive")
	}

	switch c.Remote.Kind {
	case RemoteSimulated:
		if fr := c.Remote.Simulated.FailureRate; fr < 0 || fr > 1 {
			return apperrors.Newf(apperrors.ErrConfig, "remote.simulated.failure_rate %v outside [0,1]", fr)
		}
		if c.Remote.Simulated.Latency < 0 || c.Remote.Simulated.Jitter < 0 {
			return apperrors.New(apperrors.ErrConfig, "remote.simulated latency must not be negative")
		}
	case RemoteHTTP:
		if c.Remote.HTTP.BaseURL == "" {
			return apperrors.New(apperrors.ErrConfig, "remote.http.base_url is required")
		}
		if c.Remote.HTTP.Timeout <= 0 {
			return apperrors.New(apperrors.ErrConfig, "remote.http.timeout must be positive")
		}
		if c.Remote.HTTP.RatePerSecond < 0 {
			return apperrors.New(apperrors.ErrConfig, "remote.http.rate_per_second must not be negative")
		}
	case RemoteMQTT:
		if c.Remote.MQTT.Broker == "" {
			return apperrors.New(apperrors.ErrConfig, "remote.mqtt.broker is required")
		}
		if c.Remote.MQTT.Timeout <= 0 {
			return apperrors.New(apperrors.ErrConfig, "remote.mqtt.timeout must be positive")
		}
	default:
		return apperrors.Newf(apperrors.ErrConfig, "unknown remote.kind %q", c.Remote.Kind)
	}

	if c.Connectivity.PollInterval <= 0 {
		return apperrors.New(apperrors.ErrConfig, "connectivity.poll_interval must be positive")
	}
	if c.Connectivity.Timeout <= 0 {
		return apperrors.New(apperrors.ErrConfig, "connectivity.timeout must be positive")
	}
	if c.AlertGenerator.Enabled && c.AlertGenerator.Interval <= 0 {
		return apperrors.New(apperrors.ErrConfig, "alert_generator.interval must be positive")
	}
	return nil
}

// applyEnv overlays SHOPFLOOR_* variables.
func (c *Config) applyEnv() error {
	setString(&c.DataDir, "SHOPFLOOR_DATA_DIR")
	setString(&c.DBFile, "SHOPFLOOR_DB_FILE")
	setString(&c.TenantID, "SHOPFLOOR_TENANT_ID")
	setString(&c.Log.Level, "SHOPFLOOR_LOG_LEVEL")
	setString(&c.Log.Format, "SHOPFLOOR_LOG_FORMAT")
	setString(&c.Remote.Kind, "SHOPFLOOR_REMOTE_KIND")
	setString(&c.Remote.HTTP.BaseURL, "SHOPFLOOR_REMOTE_HTTP_BASE_URL")
	setString(&c.Remote.HTTP.Token, "SHOPFLOOR_REMOTE_HTTP_TOKEN")
	setString(&c.Remote.MQTT.Broker, "SHOPFLOOR_REMOTE_MQTT_BROKER")
	setString(&c.Remote.MQTT.ClientID, "SHOPFLOOR_REMOTE_MQTT_CLIENT_ID")
	setString(&c.Remote.MQTT.Username, "SHOPFLOOR_REMOTE_MQTT_USERNAME")
	setString(&c.Remote.MQTT.Password, "SHOPFLOOR_REMOTE_MQTT_PASSWORD")
	setString(&c.Remote.MQTT.TopicPrefix, "SHOPFLOOR_REMOTE_MQTT_TOPIC_PREFIX")
	setString(&c.Connectivity.ProbeURL, "SHOPFLOOR_PROBE_URL")
	setString(&c.Desktop.Addr, "SHOPFLOOR_DESKTOP_ADDR")

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.Sync.Interval, "SHOPFLOOR_SYNC_INTERVAL"},
		{&c.Sync.PassTimeout, "SHOPFLOOR_SYNC_PASS_TIMEOUT"},
		{&c.Remote.HTTP.Timeout, "SHOPFLOOR_REMOTE_HTTP_TIMEOUT"},
		{&c.Remote.MQTT.Timeout, "SHOPFLOOR_REMOTE_MQTT_TIMEOUT"},
		{&c.Remote.Simulated.Latency, "SHOPFLOOR_REMOTE_SIM_LATENCY"},
		{&c.Connectivity.PollInterval, "SHOPFLOOR_PROBE_INTERVAL"},
		{&c.Connectivity.Timeout, "SHOPFLOOR_PROBE_TIMEOUT"},
		{&c.AlertGenerator.Interval, "SHOPFLOOR_ALERTGEN_INTERVAL"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}

	if err := setFloat(&c.Remote.HTTP.RatePerSecond, "SHOPFLOOR_REMOTE_HTTP_RATE"); err != nil {
		return err
	}
	if err := setFloat(&c.Remote.Simulated.FailureRate, "SHOPFLOOR_REMOTE_SIM_FAILURE_RATE"); err != nil {
		return err
	}
	if err := setBool(&c.AlertGenerator.Enabled, "SHOPFLOOR_ALERTGEN_ENABLED"); err != nil {
		return err
	}
	return setBool(&c.Metrics.Enabled, "SHOPFLOOR_METRICS_ENABLED")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConfig, fmt.Sprintf("parse %s", key), err)
	}
	*dst = d
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConfig, fmt.Sprintf("parse %s", key), err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConfig, fmt.Sprintf("parse %s", key), err)
	}
	*dst = b
	return nil
}
