package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"toursync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Remote       RemoteConfig       `yaml:"remote"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Sync         SyncConfig         `yaml:"sync"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Exports      ExportConfig       `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig describes the remote document store connection. DeviceID
// namespaces idempotency markers so two devices never collide.
type RemoteConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	DeviceID string `yaml:"device_id"`
}

type ConnectivityConfig struct {
	ProbeURL        string `yaml:"probe_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

func (c ConnectivityConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ConnectivityConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

type SyncConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	CooldownSeconds int `yaml:"cooldown_seconds"`
	ItemDelayMillis int `yaml:"item_delay_ms"`
	MaxRetries      int `yaml:"max_retries"`
}

func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c SyncConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

func (c SyncConfig) ItemDelay() time.Duration {
	return time.Duration(c.ItemDelayMillis) * time.Millisecond
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env, если есть; отсутствие файла не ошибка
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Подстановка переменных окружения в YAML до разбора
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Remote.Address == "" {
		return errors.New("remote address is required")
	}
	if c.Remote.DeviceID == "" {
		return errors.New("remote device_id is required")
	}
	if c.Sync.CooldownSeconds > c.Sync.IntervalSeconds {
		return fmt.Errorf("sync cooldown (%ds) must not exceed interval (%ds)",
			c.Sync.CooldownSeconds, c.Sync.IntervalSeconds)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Connectivity.ProbeURL == "" {
		c.Connectivity.ProbeURL = "https://clients3.google.com/generate_204"
	}
	if c.Connectivity.TimeoutSeconds == 0 {
		c.Connectivity.TimeoutSeconds = models.DefaultProbeTimeoutSeconds
	}
	if c.Connectivity.CacheTTLSeconds == 0 {
		c.Connectivity.CacheTTLSeconds = models.DefaultProbeCacheSeconds
	}

	if c.Sync.IntervalSeconds == 0 {
		c.Sync.IntervalSeconds = models.DefaultSyncIntervalSeconds
	}
	if c.Sync.CooldownSeconds == 0 {
		c.Sync.CooldownSeconds = models.DefaultSyncCooldownSeconds
	}
	if c.Sync.ItemDelayMillis == 0 {
		c.Sync.ItemDelayMillis = models.DefaultItemDelayMillis
	}
	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = models.DefaultMaxRetries
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Enabled && !c.API.HTTP.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}
