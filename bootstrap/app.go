package bootstrap

import (
	"context"
	"fmt"
	"time"

	"eventrecon/config"
	"eventrecon/core"
	"eventrecon/detect"
	"eventrecon/extract"
	"eventrecon/ingest"
	"eventrecon/metrics"
	"eventrecon/sigma"
	"eventrecon/storage"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Stage names a phase of an analysis run
type Stage string

const (
	StageLoadRules   Stage = "loading rules"
	StageReadInput   Stage = "reading timeline"
	StageReconstruct Stage = "reconstructing events"
	StageWriteOutput Stage = "writing timeline"
)

// App holds the configured components of an analysis run.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Fs is used for the timeline input and the file based outputs
	Fs        afero.Fs
	Detection *DetectionComponents
}

// Option customizes an App
type Option func(*appOptions)

type appOptions struct {
	fs       afero.Fs
	registry *extract.Registry
}

// WithFs replaces the OS filesystem used for input and output
func WithFs(fsys afero.Fs) Option {
	return func(o *appOptions) { o.fs = fsys }
}

// WithRegistry replaces the built-in extractor registry
func WithRegistry(registry *extract.Registry) Option {
	return func(o *appOptions) { o.registry = registry }
}

// NewApp creates an application from a loaded configuration.
func NewApp(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := appOptions{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}

	sugar := logger.Sugar()
	detection, err := InitEngine(cfg, o.registry, sugar)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Sugar:     sugar,
		Fs:        o.fs,
		Detection: detection,
	}, nil
}

// AnalyzeRequest describes one analysis run. Empty fields fall back to the
// configuration.
type AnalyzeRequest struct {
	Input        string
	Output       string
	InputFormat  string
	OutputFormat string
	RuleSet      string
	// Progress is called as each stage starts
	Progress func(Stage)
}

// Summary reports the outcome of an analysis run.
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Output       string
	OutputFormat string

	RulesLoaded     int
	FailedDocuments []*sigma.FileError
	InputEvents     int
	// Reconstructed counts events before duplicates were merged
	Reconstructed int
	Events        int
	Rules         []detect.RuleResult
	Issues        []core.Issue
}

// Analyze runs the full pipeline: load rules, read the timeline, reconstruct
// and merge high-level events, write them out.
func (a *App) Analyze(ctx context.Context, req AnalyzeRequest) (*Summary, error) {
	progress := req.Progress
	if progress == nil {
		progress = func(Stage) {}
	}

	summary := &Summary{RunID: uuid.NewString(), StartedAt: time.Now().UTC(), Output: req.Output}
	sugar := a.Sugar.With("run_id", summary.RunID)

	if err := PreflightCheck(a.Fs, req.Input, req.Output, sugar); err != nil {
		return nil, err
	}

	progress(StageLoadRules)
	loaded, failures, err := LoadRules(a.Config, req.RuleSet, sugar)
	summary.FailedDocuments = failures
	if err != nil {
		return summary, err
	}
	summary.RulesLoaded = len(loaded)

	progress(StageReadInput)
	timeline, err := a.ReadTimeline(ctx, req.Input, req.InputFormat)
	if err != nil {
		return summary, err
	}
	summary.InputEvents = timeline.Len()

	progress(StageReconstruct)
	result, err := a.Detection.Engine.Run(ctx, timeline, loaded)
	if err != nil {
		return summary, err
	}
	summary.Reconstructed = result.Reconstructed
	summary.Events = len(result.Events)
	summary.Rules = result.Rules
	summary.Issues = result.Report.Issues()

	progress(StageWriteOutput)
	writer, err := InitWriter(a.Config, req.Output, req.OutputFormat, a.Fs, sugar)
	if err != nil {
		return summary, err
	}
	summary.OutputFormat = writer.Format()
	run := storage.RunInfo{ID: summary.RunID, StartedAt: summary.StartedAt}
	if err := writer.Write(ctx, run, result.Events); err != nil {
		return summary, fmt.Errorf("failed to write timeline: %w", err)
	}

	summary.Duration = time.Since(summary.StartedAt)
	metrics.RunDuration.Observe(summary.Duration.Seconds())

	if path := a.Config.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			sugar.Warnw("Metrics textfile not written", "path", path, "error", err)
		}
	}

	sugar.Infow("Analysis complete",
		"input", req.Input,
		"output", req.Output,
		"rules", summary.RulesLoaded,
		"input_events", summary.InputEvents,
		"events", summary.Events,
		"issues", len(summary.Issues),
		"duration", summary.Duration)

	return summary, nil
}

// ReadTimeline reads the input timeline with the configured context window.
func (a *App) ReadTimeline(ctx context.Context, path, format string) (*core.LowLevelTimeline, error) {
	if format == "" {
		format = a.Config.Input.Format
	}
	return ingest.ReadTimeline(ctx, a.Fs, path, format, a.Sugar,
		core.WithContextWindow(a.Config.Engine.ContextWindow))
}

// Shutdown flushes buffered logs
func (a *App) Shutdown() {
	// stderr sync fails on some terminals
	_ = a.Logger.Sync()
}
