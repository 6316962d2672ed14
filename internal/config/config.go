package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	VDR       VDRConfig       `mapstructure:"vdr"`
	Timeshift TimeshiftConfig `mapstructure:"timeshift"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig defines the daemon's own listeners
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	EventsPort  int    `mapstructure:"events_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// VDRConfig defines how to reach the VDR instance over SVDRP
type VDRConfig struct {
	Host             string `mapstructure:"host"`
	SVDRPPort        int    `mapstructure:"svdrp_port"`
	ConnectTimeout   string `mapstructure:"connect_timeout"`
	CommandTimeout   string `mapstructure:"command_timeout"`
	ChannelCacheSize int    `mapstructure:"channel_cache_size"`
}

// TimeshiftConfig defines the background recording behavior
type TimeshiftConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	MaxLengthHours     int    `mapstructure:"max_length_hours"`
	PausePriority      int    `mapstructure:"pause_priority"`
	PauseLifetime      int    `mapstructure:"pause_lifetime"`
	CheckIntervalTicks int    `mapstructure:"check_interval_ticks"`
	PromptTimeout      string `mapstructure:"prompt_timeout"`
	UserInactiveAfter  string `mapstructure:"user_inactive_after"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the Redis backend connection
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// JournalConfig defines session journal retention
type JournalConfig struct {
	RetentionDays int    `mapstructure:"retention_days"`
	CleanupTime   string `mapstructure:"cleanup_time"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PERMASHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.events_port", 6420)
	v.SetDefault("server.metrics_port", 9090)

	// VDR defaults
	v.SetDefault("vdr.host", "127.0.0.1")
	v.SetDefault("vdr.svdrp_port", 6419)
	v.SetDefault("vdr.connect_timeout", "5s")
	v.SetDefault("vdr.command_timeout", "10s")
	v.SetDefault("vdr.channel_cache_size", 256)

	// Timeshift defaults
	v.SetDefault("timeshift.enabled", true)
	v.SetDefault("timeshift.max_length_hours", 3)
	v.SetDefault("timeshift.pause_priority", 10)
	v.SetDefault("timeshift.pause_lifetime", 1)
	v.SetDefault("timeshift.check_interval_ticks", 60)
	v.SetDefault("timeshift.prompt_timeout", "5m")
	v.SetDefault("timeshift.user_inactive_after", "5m")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/permashift/permashift.bolt")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Journal defaults
	v.SetDefault("journal.retention_days", 90)
	v.SetDefault("journal.cleanup_time", "04:00")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.EventsPort <= 0 || cfg.Server.EventsPort > 65535 {
		return fmt.Errorf("invalid events port: %d", cfg.Server.EventsPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.VDR.Host == "" {
		return fmt.Errorf("vdr host is required")
	}
	if cfg.VDR.SVDRPPort <= 0 || cfg.VDR.SVDRPPort > 65535 {
		return fmt.Errorf("invalid svdrp port: %d", cfg.VDR.SVDRPPort)
	}

	if cfg.Timeshift.MaxLengthHours < 1 || cfg.Timeshift.MaxLengthHours > 23 {
		return fmt.Errorf("max_length_hours must be between 1 and 23, got %d", cfg.Timeshift.MaxLengthHours)
	}
	if cfg.Timeshift.CheckIntervalTicks <= 0 {
		return fmt.Errorf("check_interval_ticks must be positive, got %d", cfg.Timeshift.CheckIntervalTicks)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"timeshift.prompt_timeout", cfg.Timeshift.PromptTimeout},
		{"timeshift.user_inactive_after", cfg.Timeshift.UserInactiveAfter},
		{"vdr.connect_timeout", cfg.VDR.ConnectTimeout},
		{"vdr.command_timeout", cfg.VDR.CommandTimeout},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid %s: %w", field.name, err)
		}
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for bolt")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	case "none":
		// Journal disabled, sessions run without persistence
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	if cfg.Journal.RetentionDays <= 0 {
		return fmt.Errorf("journal retention_days must be positive, got %d", cfg.Journal.RetentionDays)
	}
	if _, err := time.Parse("15:04", cfg.Journal.CleanupTime); err != nil {
		return fmt.Errorf("invalid journal cleanup_time: %w", err)
	}

	return nil
}

// ParseDuration parses a duration string, falling back when empty or invalid.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
