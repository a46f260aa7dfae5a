// Package config loads process configuration from environment variables.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Storage backend selection values.
const (
	StorageTypeLocal = "local"
	StorageTypeOSS   = "oss"
)

// OSSConfig configures the S3-compatible object storage backend.
type OSSConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	CDNDomain string
	UseSSL    bool
	Prefix    string
}

// GenAIConfig configures the generation API client.
type GenAIConfig struct {
	APIKey  string
	BaseURL string
}

// Config is the full process configuration. It is constructed once in main
// and passed by reference to whatever needs it.
type Config struct {
	ServerHost string
	ServerPort int

	// RelayTargetURL enables the relay listener when non-empty.
	RelayTargetURL string
	RelayPort      int

	HistoryLimit int

	StorageType      string
	LocalStoragePath string
	DBPath           string
	// PublicReadURL overrides the base URL used in file links served by the
	// local backend.
	PublicReadURL string
	OSS           OSSConfig

	GenAI GenAIConfig

	LogLevel string
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 9004)
	v.SetDefault("RELAY_TARGET_URL", "")
	v.SetDefault("RELAY_PORT", 9006)
	v.SetDefault("HISTORY_LIMIT", 256)
	v.SetDefault("STORAGE_TYPE", StorageTypeLocal)
	v.SetDefault("LOCAL_STORAGE_PATH", "data/files")
	v.SetDefault("DB_PATH", "data/files.db")
	v.SetDefault("PUBLIC_READ_URL", "")
	v.SetDefault("OSS_ENDPOINT", "")
	v.SetDefault("OSS_BUCKET", "story-board")
	v.SetDefault("OSS_ACCESS_KEY", "")
	v.SetDefault("OSS_SECRET_KEY", "")
	v.SetDefault("OSS_CDN_DOMAIN", "")
	v.SetDefault("OSS_USE_SSL", true)
	v.SetDefault("OSS_PREFIX", "mcp_base_files/")
	v.SetDefault("GENAI_API_KEY", "")
	v.SetDefault("GENAI_BASE_URL", "https://api.minimax.chat")
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		ServerHost:       v.GetString("SERVER_HOST"),
		ServerPort:       v.GetInt("SERVER_PORT"),
		RelayTargetURL:   v.GetString("RELAY_TARGET_URL"),
		RelayPort:        v.GetInt("RELAY_PORT"),
		HistoryLimit:     v.GetInt("HISTORY_LIMIT"),
		StorageType:      v.GetString("STORAGE_TYPE"),
		LocalStoragePath: v.GetString("LOCAL_STORAGE_PATH"),
		DBPath:           v.GetString("DB_PATH"),
		PublicReadURL:    v.GetString("PUBLIC_READ_URL"),
		OSS: OSSConfig{
			Endpoint:  v.GetString("OSS_ENDPOINT"),
			Bucket:    v.GetString("OSS_BUCKET"),
			AccessKey: v.GetString("OSS_ACCESS_KEY"),
			SecretKey: v.GetString("OSS_SECRET_KEY"),
			CDNDomain: v.GetString("OSS_CDN_DOMAIN"),
			UseSSL:    v.GetBool("OSS_USE_SSL"),
			Prefix:    v.GetString("OSS_PREFIX"),
		},
		GenAI: GenAIConfig{
			APIKey:  v.GetString("GENAI_API_KEY"),
			BaseURL: v.GetString("GENAI_BASE_URL"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("invalid SERVER_PORT: %d", cfg.ServerPort)
	}
	if cfg.StorageType != StorageTypeLocal && cfg.StorageType != StorageTypeOSS {
		return nil, fmt.Errorf("unsupported STORAGE_TYPE: %s", cfg.StorageType)
	}

	return cfg, nil
}

// Addr returns the broker listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// RelayAddr returns the relay listen address.
func (c *Config) RelayAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.RelayPort)
}

// BaseURL returns the base URL for file links, preferring PUBLIC_READ_URL.
func (c *Config) BaseURL() string {
	if c.PublicReadURL != "" {
		return c.PublicReadURL
	}
	return fmt.Sprintf("http://%s:%d", c.ServerHost, c.ServerPort)
}

// RelayEnabled reports whether a relay target is configured.
func (c *Config) RelayEnabled() bool {
	return c.RelayTargetURL != ""
}
