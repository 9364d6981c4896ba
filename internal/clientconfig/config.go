// Package clientconfig loads settings for the docprep command line client.
package clientconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"docprep/api/internal/docflow"
)

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Team      TeamConfig      `mapstructure:"team"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Log       LogConfig       `mapstructure:"log"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TeamConfig scopes every request to a team. Zero means personal documents.
type TeamConfig struct {
	ID int64 `mapstructure:"id"`
}

type SyncConfig struct {
	Policy string `mapstructure:"policy"`
}

type DocumentsConfig struct {
	RootPath string `mapstructure:"root_path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from path, or from DOCPREP_CONFIG, or from
// ~/.config/docprep/config.yaml. A missing default file is not an error.
// Env var overrides use prefix DOCPREP_, e.g. DOCPREP_API_URL.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("api.url", "http://localhost:8787")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("team.id", 0)
	v.SetDefault("sync.policy", docflow.Sequenced.String())
	v.SetDefault("documents.root_path", "/documents")
	v.SetDefault("log.level", "info")

	v.SetConfigType("yaml")

	explicit := path != ""
	if !explicit {
		path = os.Getenv("DOCPREP_CONFIG")
		explicit = path != ""
	}
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "docprep"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("DOCPREP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.API.URL = strings.TrimRight(strings.TrimSpace(c.API.URL), "/")
	if c.API.URL == "" {
		return Config{}, errors.New("api.url is required")
	}
	if c.API.Timeout <= 0 {
		return Config{}, errors.New("api.timeout must be positive")
	}
	if _, err := docflow.ParseSyncPolicy(c.Sync.Policy); err != nil {
		return Config{}, err
	}
	return c, nil
}

// TeamIDPtr returns the configured team, or nil for personal documents.
func (c Config) TeamIDPtr() *int64 {
	if c.Team.ID == 0 {
		return nil
	}
	id := c.Team.ID
	return &id
}

func (c Config) SyncPolicy() docflow.SyncPolicy {
	policy, err := docflow.ParseSyncPolicy(c.Sync.Policy)
	if err != nil {
		return docflow.Sequenced
	}
	return policy
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
