// Package config loads and validates the winprep configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmcgill52/winprep/logging"
	"github.com/jmcgill52/winprep/registry"
)

const (
	// Default network settings
	defaultProbeURL          = "http://www.msftconnecttest.com/connecttest.txt"
	defaultProbeTimeout      = 5 * time.Second
	defaultMaxRetries        = 3
	defaultRetryDelay        = 10 * time.Second
	defaultStabilityProbes   = 3
	defaultStabilityInterval = 2 * time.Second

	// Default state settings
	defaultStateDir = `C:\ProgramData\winprep\state`

	// Default behavior settings
	defaultTaskTimeout = 30 * time.Minute

	// Default monitoring settings
	defaultMetricsPrefix = "winprep"
	defaultJobName       = "winprep"

	// Default agent settings
	defaultListenAddr = ":8321"
)

// Config represents the complete application configuration.
type Config struct {
	Network    NetworkConfig    `yaml:"network"`
	State      StateConfig      `yaml:"state"`
	Behavior   BehaviorConfig   `yaml:"behavior"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    logging.Config   `yaml:"logging"`
	Agent      AgentConfig      `yaml:"agent"`
	Tasks      []registry.Task  `yaml:"tasks"`
}

// NetworkConfig holds connectivity probe and gating settings.
type NetworkConfig struct {
	// ProbeURL is the endpoint the connectivity probe requests. Any
	// HTTP response counts as reachable.
	ProbeURL string `yaml:"probe_url"`

	// ProbeTimeout bounds a single probe request.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// MaxRetries is the total number of probe attempts per gate wait.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the fixed pause between probe attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// StabilityProbes is how many consecutive successes open a
	// stability-gated task.
	StabilityProbes int `yaml:"stability_probes"`

	// StabilityInterval is the pause between stability probes.
	StabilityInterval time.Duration `yaml:"stability_interval"`
}

// StateConfig holds task record persistence settings.
type StateConfig struct {
	// Dir is the directory holding one JSON record per task.
	Dir string `yaml:"dir"`
}

// BehaviorConfig defines run behavior settings.
type BehaviorConfig struct {
	// TaskTimeout applies to every task that does not declare its own.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// TempDir overrides where handler output sinks are written.
	TempDir string `yaml:"temp_dir"`
}

// MonitoringConfig holds metrics push settings. An empty PushURL
// disables pushing.
type MonitoringConfig struct {
	PushURL       string `yaml:"push_url"`
	MetricsPrefix string `yaml:"metrics_prefix"`
	JobName       string `yaml:"jobname"`
}

// AgentConfig holds agent-mode settings.
type AgentConfig struct {
	// ListenAddr is the HTTP listen address for the agent API.
	ListenAddr string `yaml:"listen_addr"`

	// RunTokenHash is the bcrypt hash of the token required to trigger
	// a run over the API. Empty disables remote triggering.
	RunTokenHash string `yaml:"run_token_hash"`

	// Schedule is a cron expression for periodic re-runs. Empty
	// disables scheduling.
	Schedule string `yaml:"schedule"`
}

// Validate performs basic validation on the configuration.
func (c *Config) Validate() error {
	if len(c.Tasks) == 0 {
		return fmt.Errorf("at least one task is required")
	}
	if c.Network.ProbeURL == "" {
		return fmt.Errorf("network probe URL is required")
	}
	if c.Network.ProbeTimeout <= 0 {
		return fmt.Errorf("network probe timeout must be positive")
	}
	if c.Network.MaxRetries < 1 {
		return fmt.Errorf("network max retries must be at least 1")
	}
	if c.Network.StabilityProbes < 1 {
		return fmt.Errorf("network stability probes must be at least 1")
	}
	if c.State.Dir == "" {
		return fmt.Errorf("state directory is required")
	}
	if c.Behavior.TaskTimeout <= 0 {
		return fmt.Errorf("task timeout must be positive")
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Network.ProbeURL == "" {
		c.Network.ProbeURL = defaultProbeURL
	}
	if c.Network.ProbeTimeout == 0 {
		c.Network.ProbeTimeout = defaultProbeTimeout
	}
	if c.Network.MaxRetries == 0 {
		c.Network.MaxRetries = defaultMaxRetries
	}
	if c.Network.RetryDelay == 0 {
		c.Network.RetryDelay = defaultRetryDelay
	}
	if c.Network.StabilityProbes == 0 {
		c.Network.StabilityProbes = defaultStabilityProbes
	}
	if c.Network.StabilityInterval == 0 {
		c.Network.StabilityInterval = defaultStabilityInterval
	}
	if c.State.Dir == "" {
		c.State.Dir = defaultStateDir
	}
	if c.Behavior.TaskTimeout == 0 {
		c.Behavior.TaskTimeout = defaultTaskTimeout
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Agent.ListenAddr == "" {
		c.Agent.ListenAddr = defaultListenAddr
	}
	// Logging defaults are applied by logging.New.
}

// LoadConfig reads the YAML config file at the given path and returns a
// Config struct with defaults applied and validation performed.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
