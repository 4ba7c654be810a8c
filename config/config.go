// Package config loads the cache configuration for embedding applications
// from a YAML file with DBCACHE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/dbcache/cache"
	"github.com/charlesng35/dbcache/database"
	"github.com/charlesng35/dbcache/pkg/logger"
)

// Config represents the runtime configuration for a dbcache instance.
type Config struct {
	LogLevel string          `mapstructure:"log_level"`
	Database database.Config `mapstructure:"database"`
	Cache    cache.Options   `mapstructure:"cache"`
}

// LoadConfig reads configuration from a config.yaml found in the supplied
// paths (plus ./config), applies environment overrides and unmarshals into
// a Config. A missing file is not an error; defaults and environment
// variables still apply. The resolved log level is installed on the global
// logger; hosts that log through their own zap pipeline can override it
// afterwards with logger.SetLogger.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("DBCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Cache.Validate(); err != nil {
		return nil, fmt.Errorf("config: cache options: %w", err)
	}

	if err := logger.Init(config.LogLevel); err != nil {
		return nil, fmt.Errorf("config: init logger: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/dbcache.sqlite")

	v.SetDefault("cache.table_name", "cache_records")
	v.SetDefault("cache.command_timeout", "30s")
	v.SetDefault("cache.compression", false)
	v.SetDefault("cache.auto_cleanup", true)
	v.SetDefault("cache.cleanup_interval", "5m")
	v.SetDefault("cache.lock_timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
