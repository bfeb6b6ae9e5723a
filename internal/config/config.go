// Package config resolves where tasks are stored and how sessions behave.
// Settings come from defaults, an optional YAML file, TASKLISTS_*
// environment variables and command-line flags, later sources winning.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/td0m/tasklists/pkg/persist"
	"github.com/td0m/tasklists/pkg/session"
	"github.com/td0m/tasklists/pkg/task"
)

const (
	AppName    = "tasklists"
	ConfigFile = "config.yaml"
	EnvPrefix  = "TASKLISTS"

	MediumFile   = "file"
	MediumSQLite = "sqlite"

	// DefaultKey is the storage key every process shares
	DefaultKey = "todo-playground"
)

var ErrUnknownMedium = errors.New("unknown storage medium")

type Config struct {
	Dir    string `mapstructure:"dir"`
	Medium string `mapstructure:"medium"`
	Key    string `mapstructure:"key"`
	// Grace is how long soft-deleted records stay visible
	Grace time.Duration `mapstructure:"grace"`
	// Poll is the interval the sqlite medium checks for external writes at
	Poll time.Duration `mapstructure:"poll"`
	// Compact is the cron spec of sort key compaction, empty disables it
	Compact string  `mapstructure:"compact"`
	MinGap  float64 `mapstructure:"mingap"`
	Log     string  `mapstructure:"log"`
	Debug   bool    `mapstructure:"debug"`
}

// DefaultDir returns $XDG_CONFIG_HOME/tasklists, or ~/.config/tasklists
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dir", DefaultDir())
	v.SetDefault("medium", MediumFile)
	v.SetDefault("key", DefaultKey)
	v.SetDefault("grace", task.GracePeriod)
	v.SetDefault("poll", 500*time.Millisecond)
	v.SetDefault("compact", "@every 5m")
	v.SetDefault("mingap", 1e-9)
	v.SetDefault("log", "")
	v.SetDefault("debug", false)
}

// Load reads the configuration. An empty file means the default location,
// which may not exist. flags may be nil; only flags set on the command line
// override other sources.
func Load(file string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := file != ""
	if !explicit {
		file = filepath.Join(DefaultDir(), ConfigFile)
	}
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, name := range []string{"dir", "medium", "key", "grace", "log", "debug"} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(name, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Medium {
	case MediumFile, MediumSQLite:
	default:
		return fmt.Errorf("%q: %w", c.Medium, ErrUnknownMedium)
	}
	if c.Key == "" {
		return errors.New("storage key must not be empty")
	}
	if c.Grace < 0 {
		return errors.New("grace period must not be negative")
	}
	return nil
}

// OpenMedium opens the configured storage below Dir
func (c Config) OpenMedium() (persist.Medium, error) {
	switch c.Medium {
	case MediumFile:
		return persist.NewFile(c.Dir)
	case MediumSQLite:
		return persist.NewSQLite(filepath.Join(c.Dir, AppName+".db"), c.Poll)
	}
	return nil, fmt.Errorf("%q: %w", c.Medium, ErrUnknownMedium)
}

func (c Config) SessionOptions(log *slog.Logger) session.Options {
	return session.Options{
		Logger:      log,
		Grace:       c.Grace,
		CompactSpec: c.Compact,
		MinGap:      c.MinGap,
	}
}

// Open opens the medium and starts a session on it. Closing the session
// leaves the medium open, the caller closes both.
func (c Config) Open(log *slog.Logger) (*session.Session, persist.Medium, error) {
	m, err := c.OpenMedium()
	if err != nil {
		return nil, nil, err
	}
	s, err := session.New(persist.Open[task.Store](m, c.Key, task.SchemaVersion), c.SessionOptions(log))
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	return s, m, nil
}

// YAML renders the configuration the way the config file spells it
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(struct {
		Dir     string  `yaml:"dir"`
		Medium  string  `yaml:"medium"`
		Key     string  `yaml:"key"`
		Grace   string  `yaml:"grace"`
		Poll    string  `yaml:"poll"`
		Compact string  `yaml:"compact"`
		MinGap  float64 `yaml:"minGap"`
		Log     string  `yaml:"log,omitempty"`
		Debug   bool    `yaml:"debug"`
	}{c.Dir, c.Medium, c.Key, c.Grace.String(), c.Poll.String(), c.Compact, c.MinGap, c.Log, c.Debug})
}
