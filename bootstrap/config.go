package bootstrap

import (
	"fmt"
	"os"

	"eventrecon/config"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes the zap logger. The console format uses colored
// levels; json emits one object per line. Logs go to stderr so the command
// output on stdout stays clean.
func InitLogger(level, format string) (*zap.Logger, *zap.SugaredLogger, error) {
	return newLogger(level, format, zapcore.Lock(os.Stderr))
}

func newLogger(level, format string, out zapcore.WriteSyncer) (*zap.Logger, *zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	var encoder zapcore.Encoder
	switch format {
	case "", "console":
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // Colored levels
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder        // Readable timestamps
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder      // Short file paths
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", format)
	}

	core := zapcore.NewCore(encoder, out, lvl)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the configuration into v. Flags already bound to v win
// over the file and the environment.
func InitConfig(v *viper.Viper, configFile string, sugar *zap.SugaredLogger) (*config.Config, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v.ConfigFileUsed() == "" {
		sugar.Debug("No config file found, using defaults and env vars")
	} else {
		sugar.Debugw("Config file loaded", "path", v.ConfigFileUsed())
	}

	sugar.Debugw("Config loaded",
		"workers", cfg.Engine.WorkerCount,
		"rule_timeout", cfg.Engine.RuleTimeout,
		"context_window", cfg.Engine.ContextWindow,
		"rules_dir", cfg.Rules.Dir,
		"rule_set", cfg.Rules.Set)

	return cfg, nil
}
