package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Store   StoreConfig   `mapstructure:"store"`
	Intake  IntakeConfig  `mapstructure:"intake"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig holds REST API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxUploadBytes bounds the multipart body of a submit request.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// GatewayConfig holds WhatsApp Cloud API client and dispatch tuning.
type GatewayConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	APIVersion    string        `mapstructure:"api_version"`
	PhoneNumberID string        `mapstructure:"phone_number_id"`
	AccessToken   string        `mapstructure:"access_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// Pacing is the minimum interval between consecutive sends in one
	// fan-out.
	Pacing time.Duration `mapstructure:"pacing"`
	// SendRetries is the transient-failure retry budget per recipient.
	SendRetries int `mapstructure:"send_retries"`
	// UploadFallback degrades a request to text-only when the media
	// upload fails instead of failing every recipient.
	UploadFallback bool `mapstructure:"upload_fallback"`
}

// StoreConfig holds message store backend configuration.
type StoreConfig struct {
	Type        string `mapstructure:"type"` // memory, postgres, redis
	PostgresURL string `mapstructure:"postgres_url"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"`
}

// IntakeConfig holds attachment storage configuration.
type IntakeConfig struct {
	Type       string `mapstructure:"type"` // local or s3
	Path       string `mapstructure:"path"`
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Region   string `mapstructure:"s3_region"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"` // stdout or file
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix WADISPATCH_ override file values.
// For example, WADISPATCH_GATEWAY_ACCESS_TOKEN overrides gateway.access_token.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("WADISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
