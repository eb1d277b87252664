package config

// NetConfig tunes how remote worker links are dialed.
type NetConfig struct {
    DialTimeoutMS        int `mapstructure:"dial_timeout_ms"`
    DialAttempts         int `mapstructure:"dial_attempts"`
    DialBackoffInitialMS int `mapstructure:"dial_backoff_initial_ms"`
    DialBackoffMaxMS     int `mapstructure:"dial_backoff_max_ms"`
    DialBackoffJitterMS  int `mapstructure:"dial_backoff_jitter_ms"`
}
