package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	fileName = "zonemap"
	fileType = "yaml"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Input    InputConfig    `mapstructure:"input"`
	Log      LogConfig      `mapstructure:"log"`
	Owners   []OwnerConfig  `mapstructure:"owners"`
}

type ServerConfig struct {
	Address       string `mapstructure:"address"`
	SessionSecret string `mapstructure:"session_secret"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	UploadDir     string `mapstructure:"upload_dir"`
	OutputDir     string `mapstructure:"output_dir"`
	TemplateDir   string `mapstructure:"template_dir"`
}

// ErrMissingPassword is returned by ServerConfig.Validate when no login
// password is configured.
var ErrMissingPassword = errors.New("config: server.password is required (or ZONEMAP_SERVER_PASSWORD)")

// Validate checks what the web server cannot run without.
func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Password) == "" {
		return ErrMissingPassword
	}
	return nil
}

type GeocoderConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Region     string        `mapstructure:"region"`
	Delay      time.Duration `mapstructure:"delay"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// CacheConfig points at the PostgreSQL geocode cache. An empty DSN disables it.
type CacheConfig struct {
	DSN string `mapstructure:"dsn"`
}

type InputConfig struct {
	IDColumn  string   `mapstructure:"id_column"`
	SkipIDs   []string `mapstructure:"skip_ids"`
	LatColumn string   `mapstructure:"lat_column"`
	LngColumn string   `mapstructure:"lng_column"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type OwnerConfig struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(fileName)
	v.SetConfigType(fileType)

	v.SetEnvPrefix("ZONEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.address", ":9595")
	v.SetDefault("server.username", "user")
	v.SetDefault("server.password", "")
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.output_dir", "output")
	v.SetDefault("server.template_dir", "templates")
	v.SetDefault("geocoder.api_key", "")
	v.SetDefault("geocoder.region", "")
	v.SetDefault("geocoder.delay", 200*time.Millisecond)
	v.SetDefault("geocoder.max_retries", 3)
	v.SetDefault("cache.dsn", "")
	v.SetDefault("input.id_column", "Famille")
	v.SetDefault("input.skip_ids", []string{})
	v.SetDefault("input.lat_column", "")
	v.SetDefault("input.lng_column", "")
	v.SetDefault("log.level", "info")
	return v
}

// LoadConfig reads configuration from zonemap.yaml in path, if present, and
// from ZONEMAP_* environment variables.
func LoadConfig(path string) (Config, error) {
	var config Config

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("config: failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("config: failed to decode config: %w", err)
	}
	return config, nil
}

// SaveAPIKey persists the geocoding key into zonemap.yaml in path, keeping
// the other settings already stored there.
func SaveAPIKey(path, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("config: empty API key")
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("config: failed to create config dir: %w", err)
	}

	v := viper.New()
	file := filepath.Join(path, fileName+"."+fileType)
	v.SetConfigFile(file)
	if _, err := os.Stat(file); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: failed to read config: %w", err)
		}
	}

	v.Set("geocoder.api_key", key)
	if err := v.WriteConfigAs(file); err != nil {
		return fmt.Errorf("config: failed to write config: %w", err)
	}
	return os.Chmod(file, 0o600)
}
