package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable override, e.g.
// EVENTRECON_ENGINE_WORKER_COUNT for engine.worker_count.
const EnvPrefix = "EVENTRECON"

// ConfigName is the config file looked up in . and ./config
const ConfigName = "eventrecon"

// Config holds all configuration for an analysis run
type Config struct {
	Engine struct {
		// WorkerCount is how many rules are evaluated concurrently
		WorkerCount int `mapstructure:"worker_count"`
		// RuleTimeout abandons a single rule after this long; 0 disables it
		RuleTimeout time.Duration `mapstructure:"rule_timeout"`
		// ContextWindow is how many neighbouring events are attached on each side
		ContextWindow int `mapstructure:"context_window"`
		// RegexTimeout bounds one regex keyword evaluation
		RegexTimeout   time.Duration `mapstructure:"regex_timeout"`
		RegexCacheSize int           `mapstructure:"regex_cache_size"`
	} `mapstructure:"engine"`

	Input struct {
		Format string `mapstructure:"format"` // auto, csv, jsonl
	} `mapstructure:"input"`

	Output struct {
		Format string `mapstructure:"format"` // auto, json, msgpack, sqlite
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"output"`

	Rules struct {
		// Dir overrides the embedded rule documents; set paths resolve below it
		Dir string `mapstructure:"dir"`
		// Set names the rule set; empty selects the default set
		Set string `mapstructure:"set"`
	} `mapstructure:"rules"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // console, json
	} `mapstructure:"logging"`

	Metrics struct {
		// Textfile receives a Prometheus text dump at the end of a run
		Textfile string `mapstructure:"textfile"`
	} `mapstructure:"metrics"`
}

// setDefaults registers the default of every key on v
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.worker_count", 4)
	v.SetDefault("engine.rule_timeout", 5*time.Minute)
	v.SetDefault("engine.context_window", 5)
	v.SetDefault("engine.regex_timeout", 500*time.Millisecond)
	v.SetDefault("engine.regex_cache_size", 1000)

	v.SetDefault("input.format", "auto")

	v.SetDefault("output.format", "auto")
	v.SetDefault("output.pretty", true)

	v.SetDefault("rules.dir", "")
	v.SetDefault("rules.set", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.textfile", "")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadConfig loads configuration from file and environment variables using
// a fresh viper instance.
func LoadConfig(configFile string) (*Config, error) {
	return Load(viper.New(), configFile)
}

// Load reads configuration into v and decodes it. Flags bound to v before the
// call take precedence over the file and environment. An explicit configFile
// must exist; otherwise eventrecon.yaml is looked up in . and ./config and
// may be absent.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)
	loadFromEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.Engine.WorkerCount < 1 || config.Engine.WorkerCount > 256 {
		return fmt.Errorf("invalid engine.worker_count: %d (must be 1-256)", config.Engine.WorkerCount)
	}
	if config.Engine.RuleTimeout < 0 {
		return fmt.Errorf("engine.rule_timeout cannot be negative")
	}
	if config.Engine.ContextWindow < 0 || config.Engine.ContextWindow > 1000 {
		return fmt.Errorf("invalid engine.context_window: %d (must be 0-1000)", config.Engine.ContextWindow)
	}
	if config.Engine.RegexTimeout <= 0 || config.Engine.RegexTimeout > time.Minute {
		return fmt.Errorf("invalid engine.regex_timeout: %s (must be between 0 and 1m)", config.Engine.RegexTimeout)
	}
	if config.Engine.RegexCacheSize < 1 {
		return fmt.Errorf("engine.regex_cache_size must be positive")
	}

	if !oneOf(config.Input.Format, "auto", "csv", "jsonl") {
		return fmt.Errorf("invalid input.format: %q (must be auto, csv or jsonl)", config.Input.Format)
	}
	if !oneOf(config.Output.Format, "auto", "json", "msgpack", "sqlite") {
		return fmt.Errorf("invalid output.format: %q (must be auto, json, msgpack or sqlite)", config.Output.Format)
	}

	if _, err := zapcore.ParseLevel(config.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	if !oneOf(config.Logging.Format, "console", "json") {
		return fmt.Errorf("invalid logging.format: %q (must be console or json)", config.Logging.Format)
	}

	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
