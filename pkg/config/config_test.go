package config

import (
    "os"
    "path/filepath"
    "testing"

    "github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
    t.Chdir(t.TempDir())
    cfg, err := Load("")
    require.NoError(t, err)
    require.Equal(t, "nbrun", cfg.AppName)
    require.Equal(t, "cbor", cfg.Worker.Format)
    require.Equal(t, "mem", cfg.Worker.Transport)
    require.Equal(t, 10, cfg.Consumers.Socket.PollIntervalMS)
    require.Equal(t, []string{"stdout"}, cfg.Log.Outputs)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "nbrun.yaml")
    yaml := `
app_name: lab
log:
  level: debug
worker:
  format: JSON
  transport: tcp
  address: 127.0.0.1:9000
consumers:
  socket:
    buffer_limit: 16
  render:
    debounce_ms: 120
`
    require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
    t.Setenv("NBRUN_CONTROL_LISTEN", "127.0.0.1:9999")

    cfg, err := Load(path)
    require.NoError(t, err)
    require.Equal(t, "lab", cfg.AppName)
    require.Equal(t, "debug", cfg.Log.Level)
    require.Equal(t, "json", cfg.Worker.Format)
    require.Equal(t, "tcp", cfg.Worker.Transport)
    require.Equal(t, 16, cfg.Consumers.Socket.BufferLimit)
    require.Equal(t, 120, cfg.Consumers.Render.DebounceMS)
    require.Equal(t, "127.0.0.1:9999", cfg.Control.Listen)
    // untouched keys keep defaults
    require.Equal(t, 30, cfg.Consumers.Render.MaxFPS)
}

func TestValidateRejectsBadValues(t *testing.T) {
    cfg := Default()
    cfg.Log.Level = "loud"
    require.Error(t, cfg.validate())

    cfg = Default()
    cfg.Worker.Format = "xml"
    require.Error(t, cfg.validate())

    cfg = Default()
    cfg.Worker.Transport = "quic"
    require.Error(t, cfg.validate(), "remote transport without address")
}
