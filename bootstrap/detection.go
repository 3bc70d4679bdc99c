package bootstrap

import (
	"fmt"

	"eventrecon/config"
	"eventrecon/core"
	"eventrecon/detect"
	"eventrecon/extract"
	"eventrecon/rules"
	"eventrecon/sigma"

	"go.uber.org/zap"
)

// DetectionComponents holds the pieces of the reconstruction pipeline.
type DetectionComponents struct {
	Regex         *detect.RegexCache
	Matcher       *detect.Matcher
	Reconstructor *detect.Reconstructor
	Engine        *detect.Engine
}

// InitEngine builds the matcher, reconstructor and engine from configuration.
// A nil registry selects the built-in extractors.
func InitEngine(cfg *config.Config, registry *extract.Registry, sugar *zap.SugaredLogger) (*DetectionComponents, error) {
	regex, err := detect.NewRegexCache(cfg.Engine.RegexCacheSize, cfg.Engine.RegexTimeout, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to create regex cache: %w", err)
	}
	if registry == nil {
		registry = extract.Builtin()
	}

	matcher := detect.NewMatcher(regex, sugar)
	reconstructor := detect.NewReconstructor(registry, sugar)
	engine := detect.NewEngine(matcher, reconstructor, detect.EngineConfig{
		WorkerCount: cfg.Engine.WorkerCount,
		RuleTimeout: cfg.Engine.RuleTimeout,
	}, sugar)

	sugar.Debugw("Engine initialized",
		"workers", cfg.Engine.WorkerCount,
		"rule_timeout", cfg.Engine.RuleTimeout,
		"regex_timeout", cfg.Engine.RegexTimeout,
		"extractors", registry.Len())

	return &DetectionComponents{
		Regex:         regex,
		Matcher:       matcher,
		Reconstructor: reconstructor,
		Engine:        engine,
	}, nil
}

// LoadRules loads the configured rule set. set overrides rules.set when not
// empty. Documents that fail to load are logged and returned alongside the
// rules; only an empty result is an error.
func LoadRules(cfg *config.Config, set string, sugar *zap.SugaredLogger) ([]*core.Rule, []*sigma.FileError, error) {
	if set == "" {
		set = cfg.Rules.Set
	}
	loader := rules.NewLoader(cfg.Rules.Dir, sugar)

	loaded, failures, err := loader.Load(set)
	if err != nil {
		return nil, failures, fmt.Errorf("failed to load rules: %w", err)
	}

	reconstruction := 0
	for _, r := range loaded {
		if !r.IsPlainDetectionRule() {
			reconstruction++
		}
	}
	sugar.Infow("Rule set ready",
		"set", set,
		"rules", len(loaded),
		"reconstruction_rules", reconstruction,
		"failed_documents", len(failures))

	return loaded, failures, nil
}
