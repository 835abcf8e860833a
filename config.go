package rowpager

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the static configuration of the pagination core.
//
// Example (YAML):
//
//	limits:
//	  default_limit: 20
//	  max_limit: 100
//	  default_sort_order: desc
//	cursor:
//	  id_column: id
//	  timestamp_column: created_at
//	keyset:
//	  key_columns: [created_at, id]
//	stream:
//	  chunk_size: 1000
//	  prefetch_size: 5000
//	navigation:
//	  base_url: https://api.example.com/v1/memories
type Config struct {
	Limits     LimitConfig      `mapstructure:"limits" yaml:"limits" validate:"required"`
	Cursor     CursorConfig     `mapstructure:"cursor" yaml:"cursor" validate:"required"`
	Keyset     KeysetConfig     `mapstructure:"keyset" yaml:"keyset" validate:"required"`
	Stream     StreamConfig     `mapstructure:"stream" yaml:"stream" validate:"required"`
	Navigation NavigationConfig `mapstructure:"navigation" yaml:"navigation"`
}

type LimitConfig struct {
	DefaultLimit     int    `mapstructure:"default_limit" yaml:"default_limit" validate:"gte=1,ltefield=MaxLimit"`
	MaxLimit         int    `mapstructure:"max_limit" yaml:"max_limit" validate:"gte=1"`
	DefaultSortOrder string `mapstructure:"default_sort_order" yaml:"default_sort_order" validate:"omitempty,oneof=asc desc ASC DESC"`
}

type CursorConfig struct {
	IDColumn        string `mapstructure:"id_column" yaml:"id_column" validate:"required"`
	TimestampColumn string `mapstructure:"timestamp_column" yaml:"timestamp_column" validate:"required"`
	// SigningKey enables HMAC signed cursor tokens when set.
	SigningKey string `mapstructure:"signing_key" yaml:"signing_key"`
}

type KeysetConfig struct {
	// KeyColumns is the ordered seek key. The last column must be unique.
	KeyColumns []string `mapstructure:"key_columns" yaml:"key_columns" validate:"required,min=1,dive,required"`
}

type StreamConfig struct {
	ChunkSize    int `mapstructure:"chunk_size" yaml:"chunk_size" validate:"gte=1"`
	PrefetchSize int `mapstructure:"prefetch_size" yaml:"prefetch_size" validate:"gte=1"`
	// Timeout bounds the lifetime of a single stream. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	// MaxRows caps fallback (LIMIT/OFFSET) streaming.
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows" validate:"gte=1"`
	// ServerCursor enables DECLARE/FETCH streaming on dialects supporting it.
	ServerCursor bool `mapstructure:"server_cursor" yaml:"server_cursor"`
}

type NavigationConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,uri"`
}

const (
	DefaultChunkSize     = 1000
	DefaultPrefetchSize  = 5000
	DefaultMaxStreamRows = 1_000_000
)

func DefaultLimitConfig() LimitConfig {
	return LimitConfig{
		DefaultLimit:     DefaultLimit,
		MaxLimit:         MaxLimit,
		DefaultSortOrder: "desc",
	}
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ChunkSize:    DefaultChunkSize,
		PrefetchSize: DefaultPrefetchSize,
		MaxRows:      DefaultMaxStreamRows,
		ServerCursor: true,
	}
}

func DefaultConfig() Config {
	return Config{
		Limits: DefaultLimitConfig(),
		Cursor: CursorConfig{
			IDColumn:        "id",
			TimestampColumn: "created_at",
		},
		Keyset: KeysetConfig{
			KeyColumns: []string{"created_at", "id"},
		},
		Stream: DefaultStreamConfig(),
	}
}

// Validate checks c. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if err := _validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	columns := append([]string{c.Cursor.IDColumn, c.Cursor.TimestampColumn}, c.Keyset.KeyColumns...)
	for _, column := range columns {
		if err := validateColumnName(column); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	return nil
}

// LoadConfig reads configuration from path (any format viper understands)
// on top of DefaultConfig. Environment variables prefixed with ROWPAGER_
// override file values, e.g. ROWPAGER_LIMITS_MAX_LIMIT=50. An empty path
// loads defaults and environment only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setConfigDefaults(v, DefaultConfig())

	v.SetEnvPrefix("rowpager")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setConfigDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("limits.default_limit", cfg.Limits.DefaultLimit)
	v.SetDefault("limits.max_limit", cfg.Limits.MaxLimit)
	v.SetDefault("limits.default_sort_order", cfg.Limits.DefaultSortOrder)
	v.SetDefault("cursor.id_column", cfg.Cursor.IDColumn)
	v.SetDefault("cursor.timestamp_column", cfg.Cursor.TimestampColumn)
	v.SetDefault("cursor.signing_key", cfg.Cursor.SigningKey)
	v.SetDefault("keyset.key_columns", cfg.Keyset.KeyColumns)
	v.SetDefault("stream.chunk_size", cfg.Stream.ChunkSize)
	v.SetDefault("stream.prefetch_size", cfg.Stream.PrefetchSize)
	v.SetDefault("stream.timeout", cfg.Stream.Timeout)
	v.SetDefault("stream.max_rows", cfg.Stream.MaxRows)
	v.SetDefault("stream.server_cursor", cfg.Stream.ServerCursor)
	v.SetDefault("navigation.base_url", cfg.Navigation.BaseURL)
}
