package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
state:
  dir: /tmp/winprep-state
tasks:
  - name: install-drivers
    handler: drivers.cmd
    group: base
  - name: os-update
    handler: update.cmd
    stable_network: true
    success_codes: [0, 3010]
    timeout: 45m
`

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Tasks, 2)
	assert.Equal(t, "install-drivers", cfg.Tasks[0].Name)
	assert.Equal(t, "base", cfg.Tasks[0].Group)

	update := cfg.Tasks[1]
	assert.True(t, update.RequiresStableNetwork)
	assert.Equal(t, []int{0, 3010}, update.SuccessCodes)
	assert.Equal(t, 45*time.Minute, update.Timeout)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "http://www.msftconnecttest.com/connecttest.txt", cfg.Network.ProbeURL)
	assert.Equal(t, 5*time.Second, cfg.Network.ProbeTimeout)
	assert.Equal(t, 3, cfg.Network.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Network.RetryDelay)
	assert.Equal(t, 3, cfg.Network.StabilityProbes)
	assert.Equal(t, 2*time.Second, cfg.Network.StabilityInterval)
	assert.Equal(t, 30*time.Minute, cfg.Behavior.TaskTimeout)
	assert.Equal(t, "winprep", cfg.Monitoring.MetricsPrefix)
	assert.Equal(t, "winprep", cfg.Monitoring.JobName)
	assert.Equal(t, ":8321", cfg.Agent.ListenAddr)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
network:
  probe_url: http://gateway.corp.example/ping
  probe_timeout: 2s
  max_retries: 10
  retry_delay: 5s
state:
  dir: /var/lib/winprep
behavior:
  task_timeout: 1h
monitoring:
  push_url: http://metrics.corp.example/api/v1/write
agent:
  listen_addr: 127.0.0.1:9000
  schedule: "0 3 * * *"
tasks:
  - name: a
    handler: a.cmd
`))
	require.NoError(t, err)

	assert.Equal(t, "http://gateway.corp.example/ping", cfg.Network.ProbeURL)
	assert.Equal(t, 10, cfg.Network.MaxRetries)
	assert.Equal(t, time.Hour, cfg.Behavior.TaskTimeout)
	assert.Equal(t, "http://metrics.corp.example/api/v1/write", cfg.Monitoring.PushURL)
	assert.Equal(t, "127.0.0.1:9000", cfg.Agent.ListenAddr)
	assert.Equal(t, "0 3 * * *", cfg.Agent.Schedule)
}

func TestLoadConfigRejectsNoTasks(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
state:
  dir: /tmp/state
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "tasks: [unterminated"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero probe timeout", func(c *Config) { c.Network.ProbeTimeout = -1 }},
		{"zero retries", func(c *Config) { c.Network.MaxRetries = -1 }},
		{"no probe url", func(c *Config) { c.Network.ProbeURL = "" }},
		{"no state dir", func(c *Config) { c.State.Dir = "" }},
		{"negative task timeout", func(c *Config) { c.Behavior.TaskTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, minimalConfig))
			require.NoError(t, err)

			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
