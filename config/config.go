// Package config loads smsbridge settings from an optional YAML file,
// SMSBRIDGE_* environment variables and built-in defaults, in that order of
// precedence from lowest to highest: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/spachava753/smsbridge/android/telephony"
	"github.com/spachava753/smsbridge/inbox"
	"github.com/spachava753/smsbridge/smschannel"
)

const (
	envPrefix      = "SMSBRIDGE"
	configPathEnv  = "CONFIG_PATH"
	configFileName = "smsbridge"
)

// Config holds the application configuration
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Channel ChannelConfig `mapstructure:"channel"`
	Inbox   InboxConfig   `mapstructure:"inbox"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

// StoreConfig locates the telephony provider database
type StoreConfig struct {
	Path          string `mapstructure:"path"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
}

// ChannelConfig names the method channel
type ChannelConfig struct {
	Name string `mapstructure:"name"`
}

// InboxConfig bounds inbox reads
type InboxConfig struct {
	MaxLimit int `mapstructure:"max_limit"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", telephony.DefaultDatabasePath)
	v.SetDefault("store.busy_timeout_ms", 5000)
	v.SetDefault("channel.name", smschannel.DefaultChannelName)
	v.SetDefault("inbox.max_limit", inbox.DefaultMaxBound)
	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("log.level", "info")
}

// Load reads the configuration. The file is CONFIG_PATH when set, otherwise
// smsbridge.yaml in the working directory if it exists.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(configPathEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s failed: %w", path, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: reading config file failed: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the bridge cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Channel.Name) == "" {
		errs = append(errs, errors.New("channel.name is required"))
	}
	if c.Inbox.MaxLimit <= 0 {
		errs = append(errs, fmt.Errorf("inbox.max_limit must be positive, got %d", c.Inbox.MaxLimit))
	}
	if c.Store.BusyTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("store.busy_timeout_ms must not be negative, got %d", c.Store.BusyTimeoutMS))
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped; variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: loading %s failed: %w", file, err)
		}
	}
	return nil
}
