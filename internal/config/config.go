package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	EmbedModel  string  `mapstructure:"embed_model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	// Per-agent overrides. Keys are agent names (e.g. "researcher", "curator").
	// Each override inherits unset fields from the top-level LLM config.
	Agents map[string]LLMAgentOverride `mapstructure:"agents"`
}

// LLMAgentOverride allows per-agent LLM provider configuration.
type LLMAgentOverride struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// ResolveForAgent returns an LLMConfig with agent-specific overrides applied.
func (c LLMConfig) ResolveForAgent(agentName string) LLMConfig {
	override, ok := c.Agents[agentName]
	if !ok {
		return c
	}
	resolved := c
	if override.Provider != "" {
		resolved.Provider = override.Provider
	}
	if override.Model != "" {
		resolved.Model = override.Model
	}
	if override.APIKey != "" {
		resolved.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		resolved.BaseURL = override.BaseURL
	}
	return resolved
}

type VectorConfig struct {
	// Backend selects the repository: "memory", "sqlite", or "qdrant".
	Backend string `mapstructure:"backend"`
	// Path is the database file for the sqlite backend.
	Path string `mapstructure:"path"`
	// Host, Port, and Collection configure the qdrant backend.
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	// TopK is the default number of passages per retrieval.
	TopK int `mapstructure:"top_k"`
	// MinScore drops retrieved passages scoring below it (0 keeps all).
	MinScore float64 `mapstructure:"min_score"`
}

type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	// BatchSize bounds how many chunks are embedded per provider call.
	BatchSize int `mapstructure:"batch_size"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var knownBackends = map[string]bool{"": true, "memory": true, "sqlite": true, "qdrant": true}

// Validate returns warnings for configuration values that are suspicious but
// not fatal.
func (c *Config) Validate() []string {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if c.LLM.Provider != "" && c.LLM.Provider != "none" && c.LLM.APIKey == "" {
		warn("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warn("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens < 0 {
		warn("LLM max_tokens %d is negative", c.LLM.MaxTokens)
	}

	if !knownBackends[c.Vector.Backend] {
		warn("unknown vector backend '%s' (known: memory, sqlite, qdrant)", c.Vector.Backend)
	}
	if c.Vector.Backend == "sqlite" && c.Vector.Path == "" {
		warn("vector backend 'sqlite' is configured but path is empty")
	}
	if c.Vector.TopK < 0 {
		warn("vector top_k %d is negative", c.Vector.TopK)
	}

	if c.Ingest.ChunkOverlap < 0 || (c.Ingest.ChunkSize > 0 && c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize) {
		warn("ingest chunk_overlap %d must be in [0, chunk_size)", c.Ingest.ChunkOverlap)
	}

	return warnings
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
