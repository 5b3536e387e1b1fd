// Package config loads service configuration from a YAML file, environment
// variables and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/logging"
)

// EnvPrefix is prepended to every environment override, e.g. WABACKUP_BACKUP_DIR.
const EnvPrefix = "WABACKUP"

// DefaultMaxFileSize is the largest temp file copied into an archive.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Config is the full service configuration.
type Config struct {
	DataDir  string         `mapstructure:"data_dir" yaml:"data_dir"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Settings SettingsConfig `mapstructure:"settings" yaml:"settings"`
	Backup   BackupConfig   `mapstructure:"backup" yaml:"backup"`
	Log      logging.Config `mapstructure:"log" yaml:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// SettingsConfig locates the settings document.
type SettingsConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// BackupConfig controls where and how archives are written.
type BackupConfig struct {
	Dir          string `mapstructure:"dir" yaml:"dir,omitempty"`
	TempFilesDir string `mapstructure:"temp_files_dir" yaml:"temp_files_dir,omitempty"`
	MaxFileSize  int64  `mapstructure:"max_file_size" yaml:"max_file_size"`
	HistoryLimit int    `mapstructure:"history_limit" yaml:"history_limit"`
	AppName      string `mapstructure:"app_name" yaml:"app_name"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// ScheduleConfig configures recurring backups.
type ScheduleConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	Cron         string        `mapstructure:"cron" yaml:"cron,omitempty"`
	MaxBackups   int           `mapstructure:"max_backups" yaml:"max_backups"`
	Compression  bool          `mapstructure:"compression" yaml:"compression"`
	IncludeFiles bool          `mapstructure:"include_files" yaml:"include_files"`
	Password     string        `mapstructure:"password" yaml:"password,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: "./data",
		Backup: BackupConfig{
			MaxFileSize:  DefaultMaxFileSize,
			HistoryLimit: 10000,
			AppName:      "whatsapp-dashboard",
		},
		Log:    logging.DefaultConfig(),
		Server: ServerConfig{Addr: ":8090"},
		Schedule: ScheduleConfig{
			Interval:    24 * time.Hour,
			MaxBackups:  7,
			Compression: true,
		},
	}
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"data-dir":         "data_dir",
	"db":               "database.path",
	"settings":         "settings.path",
	"backup-dir":       "backup.dir",
	"temp-files-dir":   "backup.temp_files_dir",
	"max-file-size":    "backup.max_file_size",
	"history-limit":    "backup.history_limit",
	"log-level":        "log.level",
	"log-encoding":     "log.encoding",
	"addr":             "server.addr",
	"interval":         "schedule.interval",
	"cron":             "schedule.cron",
	"max-backups":      "schedule.max_backups",
	"schedule-enabled": "schedule.enabled",
}

// NewViper returns a viper instance seeded with defaults and env binding.
func NewViper() *viper.Viper {
	v := viper.New()
	def := Default()

	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("database.path", "")
	v.SetDefault("settings.path", "")
	v.SetDefault("backup.dir", "")
	v.SetDefault("backup.temp_files_dir", "")
	v.SetDefault("backup.max_file_size", def.Backup.MaxFileSize)
	v.SetDefault("backup.history_limit", def.Backup.HistoryLimit)
	v.SetDefault("backup.app_name", def.Backup.AppName)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.encoding", def.Log.Encoding)
	v.SetDefault("log.output_paths", def.Log.OutputPaths)
	v.SetDefault("log.development", false)
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("schedule.enabled", def.Schedule.Enabled)
	v.SetDefault("schedule.interval", def.Schedule.Interval)
	v.SetDefault("schedule.cron", "")
	v.SetDefault("schedule.max_backups", def.Schedule.MaxBackups)
	v.SetDefault("schedule.compression", def.Schedule.Compression)
	v.SetDefault("schedule.include_files", false)
	v.SetDefault("schedule.password", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every known flag in fs to its configuration key.
// Flags without a mapping are ignored.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var result error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "bind flag --%s", f.Name))
		}
	})
	return result
}

// Load reads configuration. An explicit configFile must exist; otherwise
// config.yaml is looked up in the working directory and ignored if absent.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths fills unset locations from DataDir.
func (c *Config) resolvePaths() {
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.DataDir, "whatsapp.db")
	}
	if c.Settings.Path == "" {
		c.Settings.Path = filepath.Join(c.DataDir, "settings.json")
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = filepath.Join(c.DataDir, "backups")
	}
	if c.Backup.TempFilesDir == "" {
		c.Backup.TempFilesDir = filepath.Join(c.DataDir, "temp")
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result error
	if c.DataDir == "" {
		result = multierror.Append(result, errors.New("data_dir must not be empty"))
	}
	if c.Backup.MaxFileSize <= 0 {
		result = multierror.Append(result, errors.Newf("backup.max_file_size must be positive, got %d", c.Backup.MaxFileSize))
	}
	if c.Backup.HistoryLimit < 0 {
		result = multierror.Append(result, errors.Newf("backup.history_limit must not be negative, got %d", c.Backup.HistoryLimit))
	}
	if c.Schedule.MaxBackups < 0 {
		result = multierror.Append(result, errors.Newf("schedule.max_backups must not be negative, got %d", c.Schedule.MaxBackups))
	}
	if c.Schedule.Enabled && c.Schedule.Cron == "" && c.Schedule.Interval <= 0 {
		result = multierror.Append(result, errors.New("schedule requires a positive interval or a cron expression"))
	}
	return result
}

// WriteDefault writes the default configuration as YAML to path.
// An existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.WithHint(errors.Newf("config file %s already exists", path), "use --force to overwrite it")
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create config directory")
		}
	}
	return errors.Wrap(os.WriteFile(path, data, 0600), "failed to write config file")
}
