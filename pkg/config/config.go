// Package config provides YAML-based configuration loading for nbrun.
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

// Config is the root application configuration.
type Config struct {
    // AppName optional logical name of the host process
    AppName string `mapstructure:"app_name"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Scheduler tunes the cooperative loop of each script run
    Scheduler SchedulerConfig `mapstructure:"scheduler"`

    // Worker controls offload worker sessions
    Worker WorkerConfig `mapstructure:"worker"`

    // Consumers holds the polling consumer settings
    Consumers ConsumersConfig `mapstructure:"consumers"`

    // Control exposes the run/stop HTTP API
    Control ControlConfig `mapstructure:"control"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
    // ReportHistory bounds how many error reports are kept for display
    ReportHistory int `mapstructure:"report_history"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// SchedulerConfig tunes the cooperative scheduler.
type SchedulerConfig struct {
    // QueueHint preallocates this many slots per priority class
    QueueHint int `mapstructure:"queue_hint"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName: "nbrun",
        Log: LogConfig{
            Level:         "info",
            Format:        "console",
            Outputs:       []string{"stdout"},
            Development:   true,
            ReportHistory: 64,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/nbrun.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Scheduler: SchedulerConfig{QueueHint: 256},
        Worker: WorkerConfig{
            Format:    "cbor",
            Transport: "mem",
            Net: NetConfig{
                DialTimeoutMS:        5000,
                DialAttempts:         5,
                DialBackoffInitialMS: 200,
                DialBackoffMaxMS:     5000,
                DialBackoffJitterMS:  100,
            },
        },
        Consumers: ConsumersConfig{
            Socket:  SocketConfig{Listen: ":7777", PollIntervalMS: 10, BufferLimit: 4096, PeerIdleMS: 5000},
            Gamepad: GamepadConfig{PollIntervalMS: 16},
            Render:  RenderConfig{DebounceMS: 50, MaxFPS: 30},
        },
        Control: ControlConfig{Enable: true, Listen: "127.0.0.1:7780"},
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix NBRUN and `.`/`-` are replaced with `_`.
// Example: NBRUN_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("NBRUN")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.report_history", cfg.Log.ReportHistory)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    v.SetDefault("scheduler.queue_hint", cfg.Scheduler.QueueHint)
    // Worker defaults
    v.SetDefault("worker.format", cfg.Worker.Format)
    v.SetDefault("worker.transport", cfg.Worker.Transport)
    v.SetDefault("worker.address", cfg.Worker.Address)
    v.SetDefault("worker.net.dial_timeout_ms", cfg.Worker.Net.DialTimeoutMS)
    v.SetDefault("worker.net.dial_attempts", cfg.Worker.Net.DialAttempts)
    v.SetDefault("worker.net.dial_backoff_initial_ms", cfg.Worker.Net.DialBackoffInitialMS)
    v.SetDefault("worker.net.dial_backoff_max_ms", cfg.Worker.Net.DialBackoffMaxMS)
    v.SetDefault("worker.net.dial_backoff_jitter_ms", cfg.Worker.Net.DialBackoffJitterMS)
    // Consumer defaults
    v.SetDefault("consumers.socket.listen", cfg.Consumers.Socket.Listen)
    v.SetDefault("consumers.socket.poll_interval_ms", cfg.Consumers.Socket.PollIntervalMS)
    v.SetDefault("consumers.socket.buffer_limit", cfg.Consumers.Socket.BufferLimit)
    v.SetDefault("consumers.socket.peer_idle_ms", cfg.Consumers.Socket.PeerIdleMS)
    v.SetDefault("consumers.gamepad.poll_interval_ms", cfg.Consumers.Gamepad.PollIntervalMS)
    v.SetDefault("consumers.render.debounce_ms", cfg.Consumers.Render.DebounceMS)
    v.SetDefault("consumers.render.max_fps", cfg.Consumers.Render.MaxFPS)
    // Control defaults
    v.SetDefault("control.enable", cfg.Control.Enable)
    v.SetDefault("control.listen", cfg.Control.Listen)

    // Choose config file
    if path == "" {
        // Allow override via env var
        if envPath := os.Getenv("NBRUN_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `nbrun`
        v.SetConfigName("nbrun")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".nbrun"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }
    if c.Log.ReportHistory <= 0 {
        c.Log.ReportHistory = 64
    }

    c.Worker.Format = strings.ToLower(strings.TrimSpace(c.Worker.Format))
    switch c.Worker.Format {
    case "":
        c.Worker.Format = "cbor"
    case "json", "cbor", "proto":
    default:
        return fmt.Errorf("invalid worker.format: %q", c.Worker.Format)
    }
    c.Worker.Transport = strings.ToLower(strings.TrimSpace(c.Worker.Transport))
    if c.Worker.Transport == "" {
        c.Worker.Transport = "mem"
    }
    if c.Worker.Transport != "mem" && strings.TrimSpace(c.Worker.Address) == "" {
        return fmt.Errorf("worker.address is required for transport %q", c.Worker.Transport)
    }

    // polling consumers need a positive tick
    if c.Consumers.Socket.PollIntervalMS <= 0 { c.Consumers.Socket.PollIntervalMS = 10 }
    if c.Consumers.Gamepad.PollIntervalMS <= 0 { c.Consumers.Gamepad.PollIntervalMS = 16 }
    if c.Consumers.Render.DebounceMS < 0 { c.Consumers.Render.DebounceMS = 0 }
    return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}

// Millis converts a millisecond config value into a duration.
func Millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
