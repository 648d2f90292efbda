// Package config loads this service's settings from a YAML file plus
// environment overrides, the same viper-based idiom the teacher uses for
// its features.yaml, with the fields replaced end to end for this domain:
// listen address, provider/model selection, turn/run bounds, and the skill
// and prompt-template directories.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig is the websocket listener's address plus admin ports.
// ReconnectGrace is loaded (default 30s) but not read by the websocket
// handler, whose grace window is its own fixed 30s constant.
type ServerConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	ReconnectGrace time.Duration `mapstructure:"reconnect_grace"`
	MetricsPort    int           `mapstructure:"metrics_port"`
	HealthAddr     string        `mapstructure:"health_addr"`
}

// ProviderConfig selects which LLM model backs every session's chat client
// and the API key it authenticates with (llmprovider.DetectProvider picks
// the concrete adapter from Model's name).
type ProviderConfig struct {
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

// InteractionConfig bounds a single interaction loop run: the 15-turn cap
// and 60s run ceiling from spec §4.
type InteractionConfig struct {
	MaxTurns   int           `mapstructure:"max_turns"`
	RunCeiling time.Duration `mapstructure:"run_ceiling"`
}

// SkillsConfig names every directory LoadDirectory/Reloader scans for *.md
// skill files.
type SkillsConfig struct {
	Dirs []string `mapstructure:"dirs"`
}

// PromptConfig points at the base system-prompt template promptassembly
// loads and assembles skill snippets onto.
type PromptConfig struct {
	BaseTemplatePath string `mapstructure:"base_template_path"`
}

// LoggingConfig controls the zap logger's level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the fully resolved settings tree for one process.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	Interaction InteractionConfig `mapstructure:"interaction"`
	Skills      SkillsConfig      `mapstructure:"skills"`
	Prompt      PromptConfig      `mapstructure:"prompt"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.reconnect_grace", 30*time.Second)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.health_addr", ":8081")
	v.SetDefault("provider.model", "claude-sonnet-4-5")
	v.SetDefault("interaction.max_turns", 15)
	v.SetDefault("interaction.run_ceiling", 60*time.Second)
	v.SetDefault("skills.dirs", []string{"config/skills"})
	v.SetDefault("prompt.base_template_path", "config/prompt/base.yaml")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads config.yaml from CONFIG_PATH, or /app/config/config.yaml if
// that exists, falling back to config/config.yaml — the same resolution
// order the teacher uses for features.yaml — then layers environment
// variables (prefixed AGENTRT_, nested keys joined with underscores) on
// top. A missing config file is not an error: defaults plus env vars are
// enough to start a development instance.
func Load() (*Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		if _, err := os.Stat("/app/config/config.yaml"); err == nil {
			cfgPath = "/app/config/config.yaml"
		} else {
			cfgPath = "config/config.yaml"
		}
	}
	if info, err := os.Stat(cfgPath); err == nil && info.IsDir() {
		cfgPath = filepath.Join(cfgPath, "config.yaml")
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("AGENTRT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if c.Provider.APIKey == "" {
		c.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if c.Provider.APIKey == "" {
			c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	return &c, nil
}

// MetricsPort returns Server.MetricsPort, or an env override METRICS_PORT,
// falling back to defaultPort — kept as a standalone helper since
// cmd/server may need the port before the rest of Config is wired up (e.g.
// to decide whether to start the metrics listener at all).
func MetricsPort(c *Config, defaultPort int) int {
	if p := os.Getenv("METRICS_PORT"); p != "" {
		var v int
		if _, err := fmt.Sscanf(p, "%d", &v); err == nil && v > 0 {
			return v
		}
	}
	if c != nil && c.Server.MetricsPort > 0 {
		return c.Server.MetricsPort
	}
	return defaultPort
}
