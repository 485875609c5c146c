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

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Paths  PathsConfig  `mapstructure:"paths" yaml:"paths"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Tools  ToolsConfig  `mapstructure:"tools" yaml:"tools"`
	Jobs   JobsConfig   `mapstructure:"jobs" yaml:"jobs"`
	Client ClientConfig `mapstructure:"client" yaml:"client"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type PathsConfig struct {
	// AppDataDir holds settings.json
	AppDataDir string `mapstructure:"app_data_dir" yaml:"app_data_dir"`
	// DocumentsDir is the root for the default download and model directories
	DocumentsDir string `mapstructure:"documents_dir" yaml:"documents_dir"`
}

// DefaultDownloadPath is where downloads land when settings do not say otherwise.
func (p PathsConfig) DefaultDownloadPath() string {
	return filepath.Join(p.DocumentsDir, "Resample")
}

// DefaultModelDirectory is where separation models are stored by default.
func (p PathsConfig) DefaultModelDirectory() string {
	return filepath.Join(p.DocumentsDir, "Resample", "Models")
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type ToolsConfig struct {
	YtDlp     string `mapstructure:"yt_dlp" yaml:"yt_dlp"`
	Separator string `mapstructure:"audio_separator" yaml:"audio_separator"`
	FFprobe   string `mapstructure:"ffprobe" yaml:"ffprobe"`
}

type JobsConfig struct {
	// Timeout bounds a single backend job. Zero disables the deadline.
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	EventBuffer int           `mapstructure:"event_buffer" yaml:"event_buffer"`
	HistorySize int           `mapstructure:"history_size" yaml:"history_size"`
}

type ClientConfig struct {
	ServerURL        string        `mapstructure:"server_url" yaml:"server_url"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	ConfirmWindow    time.Duration `mapstructure:"confirm_window" yaml:"confirm_window"`
}

// Load reads the YAML config at path. Unlike a server deployment, a desktop
// install usually has no config file at all, so a missing default file falls
// back to built-in defaults. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	v := viper.New()
	setDefaults(v)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Support Environment Variables
	v.SetEnvPrefix("RESAMPLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	appData, err := os.UserConfigDir()
	if err != nil {
		appData = home
	}
	appData = filepath.Join(appData, "resample")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7341)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s") // SSE streams stay open
	v.SetDefault("paths.app_data_dir", appData)
	v.SetDefault("paths.documents_dir", filepath.Join(home, "Documents"))
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", filepath.Join(appData, "resample.db"))
	v.SetDefault("log.path", filepath.Join(appData, "resample.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("tools.yt_dlp", "yt-dlp")
	v.SetDefault("tools.audio_separator", "audio-separator")
	v.SetDefault("tools.ffprobe", "ffprobe")
	v.SetDefault("jobs.timeout", "2h")
	v.SetDefault("jobs.event_buffer", 64)
	v.SetDefault("jobs.history_size", 50)
	v.SetDefault("client.server_url", "http://127.0.0.1:7341")
	v.SetDefault("client.operation_timeout", "2h")
	v.SetDefault("client.confirm_window", "3s")
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}

	switch c.Store.Driver {
	case "", "sqlite":
		c.Store.Driver = "sqlite"
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Paths.AppDataDir == "" {
		return errors.New("paths.app_data_dir is required")
	}

	if c.Jobs.Timeout < 0 {
		return errors.New("jobs.timeout cannot be negative")
	}

	if c.Jobs.EventBuffer <= 0 {
		// Default to a sane value
		c.Jobs.EventBuffer = 64
	}

	if c.Jobs.HistorySize <= 0 {
		c.Jobs.HistorySize = 50
	}

	if c.Client.ConfirmWindow <= 0 {
		c.Client.ConfirmWindow = 3 * time.Second
	}

	return nil
}
