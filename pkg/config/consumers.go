package config

// ConsumersConfig holds the polling consumer settings.
type ConsumersConfig struct {
    Socket  SocketConfig  `mapstructure:"socket"`
    Gamepad GamepadConfig `mapstructure:"gamepad"`
    Render  RenderConfig  `mapstructure:"render"`
}

// SocketConfig tunes the buffered UDP consumer.
type SocketConfig struct {
    Listen         string `mapstructure:"listen"`
    PollIntervalMS int    `mapstructure:"poll_interval_ms"`
    BufferLimit    int    `mapstructure:"buffer_limit"`
    PeerIdleMS     int    `mapstructure:"peer_idle_ms"`
}

// GamepadConfig tunes the device polling consumer.
type GamepadConfig struct {
    PollIntervalMS int `mapstructure:"poll_interval_ms"`
}

// RenderConfig tunes the debounced render gate.
type RenderConfig struct {
    DebounceMS int `mapstructure:"debounce_ms"`
    MaxFPS     int `mapstructure:"max_fps"`
}

// ControlConfig enables the HTTP run/stop control surface.
type ControlConfig struct {
    Enable bool   `mapstructure:"enable"`
    Listen string `mapstructure:"listen"`
}
