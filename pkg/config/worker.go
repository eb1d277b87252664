package config

// WorkerConfig selects how offload workers are reached.
// Example YAML:
// worker:
//   format: cbor          # json | cbor | proto
//   transport: mem        # mem (in-process) | tcp | quic | udp | winpipe
//   address: ""           # worker host address for non-mem transports
//   net:
//     dial_attempts: 5
type WorkerConfig struct {
    Format    string    `mapstructure:"format"`
    Transport string    `mapstructure:"transport"`
    Address   string    `mapstructure:"address"`
    Net       NetConfig `mapstructure:"net"`
}
