package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/llehouerou/wavepost/internal/notify"
	"github.com/llehouerou/wavepost/internal/playlist"
)

const appName = "wavepost"

// Environment variables applied after the config files.
const (
	EnvLogLevel = "WAVEPOST_LOG_LEVEL"
	EnvIPCAddr  = "WAVEPOST_IPC_ADDR"
)

type Config struct {
	Audio    AudioConfig    `koanf:"audio" yaml:"audio"`
	Playback PlaybackConfig `koanf:"playback" yaml:"playback"`
	Bus      BusConfig      `koanf:"bus" yaml:"bus"`
	Analyzer AnalyzerConfig `koanf:"analyzer" yaml:"analyzer"`
	IPC      IPCConfig      `koanf:"ipc" yaml:"ipc"`
	MPRIS    MPRISConfig    `koanf:"mpris" yaml:"mpris"`
	Notify   NotifyConfig   `koanf:"notify" yaml:"notify"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	State    StateConfig    `koanf:"state" yaml:"state"`
}

// AudioConfig describes the output device and the decode buffer.
type AudioConfig struct {
	SampleRate     int `koanf:"sample_rate" yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	Channels       int `koanf:"channels" yaml:"channels" default:"2" validate:"oneof=1 2"`
	BufferMs       int `koanf:"buffer_ms" yaml:"buffer_ms" default:"500" validate:"gte=50,lte=10000"`
	DeviceBufferMs int `koanf:"device_buffer_ms" yaml:"device_buffer_ms" default:"100" validate:"gte=10,lte=2000"`
}

// PlaybackConfig holds the controller's startup values. Volume and mode
// are overridden by saved preferences.
type PlaybackConfig struct {
	Mode                  string  `koanf:"mode" yaml:"mode" default:"Normal" validate:"oneof=Normal Shuffle RepeatOne RepeatAll"`
	SeekStepSecs          float64 `koanf:"seek_step_secs" yaml:"seek_step_secs" default:"10" validate:"gt=0"`
	SkipBackThresholdSecs float64 `koanf:"skip_back_threshold_secs" yaml:"skip_back_threshold_secs" default:"7" validate:"gte=0"`
	Volume                float64 `koanf:"volume" yaml:"volume" default:"1" validate:"gte=0,lte=1"`
}

type BusConfig struct {
	QueueSize int `koanf:"queue_size" yaml:"queue_size" default:"64" validate:"gte=1,lte=65536"`
}

type AnalyzerConfig struct {
	RateHz int `koanf:"rate_hz" yaml:"rate_hz" default:"30" validate:"gte=1,lte=240"`
}

// IPCConfig configures the UI bridge. An empty address disables it.
type IPCConfig struct {
	Addr string `koanf:"addr" yaml:"addr" default:"127.0.0.1:7878" validate:"omitempty,hostname_port"`
}

type MPRISConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled" default:"true"`
}

// NotifyConfig enables desktop notifications on track start and errors.
// Timeouts are in milliseconds; -1 leaves expiry to the server and 0
// keeps the notification until dismissed.
type NotifyConfig struct {
	Enabled        bool   `koanf:"enabled" yaml:"enabled" default:"false"`
	AppName        string `koanf:"app_name" yaml:"app_name" default:"Wavepost" validate:"required"`
	DesktopEntry   string `koanf:"desktop_entry" yaml:"desktop_entry" default:"wavepost"`
	Icon           string `koanf:"icon" yaml:"icon" default:"audio-x-generic"`
	TrackTimeoutMs int    `koanf:"track_timeout_ms" yaml:"track_timeout_ms" default:"5000" validate:"gte=-1"`
	ErrorTimeoutMs int    `koanf:"error_timeout_ms" yaml:"error_timeout_ms" default:"-1" validate:"gte=-1"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level" default:"info" validate:"oneof=trace debug info warn warning error fatal panic"`
	Output string `koanf:"output" yaml:"output" default:"stderr" validate:"oneof=stdout stderr file"`
	File   string `koanf:"file" yaml:"file" validate:"required_if=Output file"`
}

// StateConfig locates the preference database. Empty means the XDG data
// directory.
type StateConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

// Load reads the config files in priority order, then the environment.
// A non-empty explicit path must exist and wins over the others.
func Load(explicit string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "load %s", path)
			}
		}
	}
	if explicit != "" {
		path := expandPath(explicit)
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(err, "config file")
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
	}

	// Defaults go in first so that explicit zero values in a file survive.
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "set defaults")
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	cfg.overrideFromEnv()

	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.State.Path = expandPath(cfg.State.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overrideFromEnv() {
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvIPCAddr); ok {
		c.IPC.Addr = v
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	return out, nil
}

// PlaylistMode returns the configured startup mode.
func (c *Config) PlaylistMode() playlist.Mode {
	m, err := playlist.ParseMode(c.Playback.Mode)
	if err != nil {
		return playlist.Normal
	}
	return m
}

func (c *Config) SeekStep() time.Duration {
	return secs(c.Playback.SeekStepSecs)
}

func (c *Config) SkipBackThreshold() time.Duration {
	return secs(c.Playback.SkipBackThresholdSecs)
}

func (c *Config) Buffer() time.Duration {
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}

func (c *Config) DeviceBuffer() time.Duration {
	return time.Duration(c.Audio.DeviceBufferMs) * time.Millisecond
}

// NotifyOptions converts the [notify] section for the notification watcher.
func (c *Config) NotifyOptions() notify.Options {
	return notify.Options{
		AppName:      c.Notify.AppName,
		DesktopEntry: c.Notify.DesktopEntry,
		Icon:         c.Notify.Icon,
		TrackTimeout: millis(c.Notify.TrackTimeoutMs),
		ErrorTimeout: millis(c.Notify.ErrorTimeoutMs),
	}
}

// AnalyzerTick is the interval between waveform updates.
func (c *Config) AnalyzerTick() time.Duration {
	return time.Second / time.Duration(c.Analyzer.RateHz)
}

func millis(ms int) time.Duration {
	if ms < 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/wavepost/config.toml
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		// 2. ./config.toml (pwd)
		"config.toml",
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
