// Package config loads Academix configuration from defaults, an optional
// config file, and ACADEMIX_-prefixed environment variables, in rising
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the runtime configuration for the Academix backend.
type Config struct {
	Listen             string
	Provider           string
	Model              string
	TitleModel         string
	StorageDriver      string
	StoragePath        string
	HistoryWindow      int
	TitleMinTranscript int
	LogLevel           string
	LogFile            string
}

// Load reads the configuration. When configFile is empty, an `academix`
// config file is searched for in the working directory and ~/.academix but is
// not required.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen", ":8080")
	v.SetDefault("provider", "openai")
	v.SetDefault("model", "gpt-4.1-nano")
	v.SetDefault("title_model", "")
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", defaultStoragePath())
	v.SetDefault("history.window", 10)
	v.SetDefault("title.min_transcript", 10)
	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")

	v.SetEnvPrefix("ACADEMIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("academix")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".academix"))
		}
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Listen:             v.GetString("listen"),
		Provider:           v.GetString("provider"),
		Model:              v.GetString("model"),
		TitleModel:         v.GetString("title_model"),
		StorageDriver:      v.GetString("storage.driver"),
		StoragePath:        v.GetString("storage.path"),
		HistoryWindow:      v.GetInt("history.window"),
		TitleMinTranscript: v.GetInt("title.min_transcript"),
		LogLevel:           v.GetString("log.level"),
		LogFile:            v.GetString("log.file"),
	}
	if cfg.TitleModel == "" {
		cfg.TitleModel = cfg.Model
	}

	switch cfg.StorageDriver {
	case "file", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported storage driver %q (supported: file, sqlite)", cfg.StorageDriver)
	}

	return cfg, nil
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".academix"
	}
	return filepath.Join(home, ".academix")
}
