package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
programs:
  dir: /tmp/scripts
  watch: false
vision:
  replay_file: frames.jsonl
  interval: 33ms
  loop: true
log:
  level: debug
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "localhost", cfg.Server.Host)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "/tmp/scripts", cfg.Programs.Dir)
	require.False(t, cfg.Programs.Watch)
	require.Equal(t, "00", cfg.Programs.SourceID)
	require.Equal(t, "camera", cfg.Vision.ReservedID)
	require.Equal(t, "frames.jsonl", cfg.Vision.ReplayFile)
	require.Equal(t, 33*time.Millisecond, cfg.Vision.Interval)
	require.True(t, cfg.Vision.Loop)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		mutate func(*Config)
		error  string
	}{
		{func(c *Config) { c.Server.Port = 70000 }, "server.port out of range: 70000"},
		{func(c *Config) { c.Programs.SourceID = "" }, "programs.source_id is required"},
		{func(c *Config) { c.Vision.ReservedID = "" }, "vision.reserved_id is required"},
		{func(c *Config) { c.Vision.ReservedID = "00" }, `vision.reserved_id and programs.source_id must differ; both are "00"`},
		{func(c *Config) { c.Vision.ReservedID = "0" }, `vision.reserved_id "0" collides with program 0`},
		{func(c *Config) { c.Vision.ReservedID = "42" }, `vision.reserved_id "42" collides with program 42`},
		{func(c *Config) { c.Vision.Interval = 0 }, "vision.interval must be positive; got 0s"},
	}
	for idx, testCase := range cases {
		cfg := Default()
		testCase.mutate(cfg)
		err := cfg.Validate()
		require.Error(t, err, "case %d", idx)
		require.Equal(t, testCase.error, err.Error(), "case %d", idx)
	}
}
