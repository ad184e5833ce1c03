// Package config loads and validates the bot configuration from YAML, with
// environment expansion for secrets and hot reload on file changes.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/redhat-performance/BugZooka/pkg/logproc"
)

// Duration unmarshals from YAML strings like "10m" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"10m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BoundaryRule is one ordered phase-boundary pattern. Order in the list is
// significant: the first matching rule wins.
type BoundaryRule struct {
	Label   string `yaml:"label"`
	Pattern string `yaml:"pattern"`
}

// DefaultBoundaryRules returns the stock pipeline phase rules. The workload
// catch-all relies on its lookahead to leave install and orion steps to
// their own rules.
func DefaultBoundaryRules() []BoundaryRule {
	return []BoundaryRule{
		{Label: "INSTALL", Pattern: `(?i)running step (.*\b(install|deploy)[\w-]+)`},
		{Label: "WORKLOAD", Pattern: `(?i)running step ((?!.*\b(install|deploy|orion)\w*)[\w-]+)`},
		{Label: "ORION", Pattern: `(?i)running step (.*\b(orion)[\w-]+)`},
	}
}

// DefaultInitialPhase labels log lines before the first boundary.
const DefaultInitialPhase = "CONFIG"

// SlackConfig configures the channel poll loop.
type SlackConfig struct {
	Token        string   `yaml:"token"`
	ChannelID    string   `yaml:"channel_id"`
	BotUserID    string   `yaml:"bot_user_id"`
	PollInterval Duration `yaml:"poll_interval"`
}

// RetryConfig configures inference retries.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Delay       Duration `yaml:"delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	Backoff     float64  `yaml:"backoff"`
}

// InferenceConfig selects and configures the model provider.
type InferenceConfig struct {
	Enabled  bool        `yaml:"enabled"`
	Provider string      `yaml:"provider"` // openai, generic or anthropic
	Endpoint string      `yaml:"endpoint"` // base URL for openai-compatible endpoints
	Model    string      `yaml:"model"`
	Token    string      `yaml:"token"`
	Retry    RetryConfig `yaml:"retry"`
}

// LogConfig configures segmentation and error extraction.
type LogConfig struct {
	InitialPhase  string         `yaml:"initial_phase"`
	ErrorKeywords []string       `yaml:"error_keywords"`
	ContextLines  int            `yaml:"context_lines"`
	Boundaries    []BoundaryRule `yaml:"boundaries"`
}

// PerfConfig configures scheduled performance summaries.
type PerfConfig struct {
	SummarySchedule string `yaml:"summary_schedule"` // cron expression, empty disables
	MaxPRs          int    `yaml:"max_prs"`
}

// Config is the full bot configuration.
type Config struct {
	Product     string          `yaml:"product"`
	ArtifactDir string          `yaml:"artifact_dir"`
	Slack       SlackConfig     `yaml:"slack"`
	Inference   InferenceConfig `yaml:"inference"`
	Log         LogConfig       `yaml:"log"`
	Perf        PerfConfig      `yaml:"perf"`
	GitHubToken string          `yaml:"github_token"`
	StorePath   string          `yaml:"store_path"`
	MetricsAddr string          `yaml:"metrics_addr"`
}

// envRefPattern matches ${VAR} references. Bare $ stays untouched so regex
// patterns in the same file survive expansion.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(raw []byte) []byte {
	return envRefPattern.ReplaceAllFunc(raw, func(ref []byte) []byte {
		name := string(ref[2 : len(ref)-1])
		return []byte(os.Getenv(name))
	})
}

// Load reads, expands, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(raw)
}

// Parse loads configuration from raw YAML bytes.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(expandEnv(raw), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Slack.PollInterval <= 0 {
		c.Slack.PollInterval = Duration(10 * time.Minute)
	}
	if c.Inference.Retry.MaxAttempts <= 0 {
		c.Inference.Retry.MaxAttempts = 4
	}
	if c.Inference.Retry.Delay <= 0 {
		c.Inference.Retry.Delay = Duration(2 * time.Second)
	}
	if c.Inference.Retry.MaxDelay <= 0 {
		c.Inference.Retry.MaxDelay = Duration(30 * time.Second)
	}
	if c.Inference.Retry.Backoff <= 0 {
		c.Inference.Retry.Backoff = 2.0
	}
	if c.Log.InitialPhase == "" {
		c.Log.InitialPhase = DefaultInitialPhase
	}
	if len(c.Log.ErrorKeywords) == 0 {
		c.Log.ErrorKeywords = append([]string(nil), logproc.DefaultErrorKeywords...)
	}
	if c.Log.ContextLines <= 0 {
		c.Log.ContextLines = 3
	}
	if len(c.Log.Boundaries) == 0 {
		c.Log.Boundaries = DefaultBoundaryRules()
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = os.TempDir()
	}
	if c.StorePath == "" {
		c.StorePath = "bugzooka.db"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
}

// Validate fails fast on configuration a running bot cannot work with.
func (c *Config) Validate() error {
	if c.Slack.Token == "" {
		return fmt.Errorf("config: slack token is required")
	}
	if c.Slack.ChannelID == "" {
		return fmt.Errorf("config: slack channel_id is required")
	}
	if c.Inference.Enabled {
		switch c.Inference.Provider {
		case "openai", "generic", "anthropic":
		default:
			return fmt.Errorf("config: unknown inference provider %q", c.Inference.Provider)
		}
		if c.Inference.Model == "" {
			return fmt.Errorf("config: inference model is required when inference is enabled")
		}
	}
	// Compiling the boundary registry validates every pattern.
	if _, err := c.BuildRegistry(); err != nil {
		return err
	}
	return nil
}

// BuildRegistry compiles the configured boundary rules into a registry,
// preserving order.
func (c *Config) BuildRegistry() (*logproc.Registry, error) {
	registry := logproc.NewRegistry()
	for _, rule := range c.Log.Boundaries {
		if err := registry.Register(rule.Label, rule.Pattern); err != nil {
			return nil, fmt.Errorf("config: boundary rule %s: %w", rule.Label, err)
		}
	}
	return registry, nil
}
