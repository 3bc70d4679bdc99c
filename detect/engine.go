package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventrecon/core"
	"eventrecon/metrics"
	"eventrecon/util/goroutine"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkerCount is the number of rules evaluated concurrently
const DefaultWorkerCount = 4

// EngineConfig tunes rule evaluation
type EngineConfig struct {
	// WorkerCount bounds concurrent rule workers
	WorkerCount int
	// RuleTimeout abandons a single rule after this long; zero disables it
	RuleTimeout time.Duration
}

// RuleResult is the outcome of running one rule over the timeline.
type RuleResult struct {
	RuleID   string
	Title    string
	Matches  int
	Events   []*core.HighLevelEvent
	Duration time.Duration
	// Err is set when the rule was skipped or abandoned; Events is then empty
	Err error
}

// Result is the outcome of a complete run.
type Result struct {
	// Events is the merged chronological timeline
	Events []*core.HighLevelEvent
	// Rules holds per-rule outcomes in input order
	Rules []RuleResult
	// Report aggregates every recovered error of the run
	Report *core.Report
	// Reconstructed is the number of events before deduplication
	Reconstructed int
}

// Engine runs rules over a low-level timeline and merges what they reconstruct.
type Engine struct {
	matcher       *Matcher
	reconstructor *Reconstructor
	cfg           EngineConfig
	logger        *zap.SugaredLogger
}

// NewEngine creates an engine
func NewEngine(matcher *Matcher, reconstructor *Reconstructor, cfg EngineConfig, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if matcher == nil {
		matcher = NewMatcher(nil, logger)
	}
	if reconstructor == nil {
		reconstructor = NewReconstructor(nil, logger)
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	return &Engine{matcher: matcher, reconstructor: reconstructor, cfg: cfg, logger: logger}
}

// Run evaluates every rule against the whole timeline. Rules are independent
// workers sharing the read-only timeline; each owns its output and report.
// Merging starts only after all workers have finished.
//
// A failing rule never fails the run. Run returns an error only when ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context, timeline *core.LowLevelTimeline, rules []*core.Rule) (*Result, error) {
	results := make([]RuleResult, len(rules))
	reports := make([]*core.Report, len(rules))

	var g errgroup.Group
	g.SetLimit(e.cfg.WorkerCount)
	for i, rule := range rules {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			report := core.NewReport()
			results[i] = e.runRule(ctx, timeline, rule, report)
			reports[i] = report
			return nil
		})
	}
	// workers report failures through their RuleResult
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	report := core.NewReport()
	collections := make([][]*core.HighLevelEvent, 0, len(rules))
	reconstructed := 0
	for i := range results {
		report.Merge(reports[i])
		collections = append(collections, results[i].Events)
		reconstructed += len(results[i].Events)
	}

	merged := core.MergeTimelines(collections, report)
	metrics.HighLevelEventsMerged.Add(float64(reconstructed - len(merged)))
	metrics.RecordIssues(report.Counts())

	e.logger.Infow("Timeline reconstruction complete",
		"rules", len(rules),
		"reconstructed", reconstructed,
		"merged", len(merged),
		"issues", report.Total())

	return &Result{
		Events:        merged,
		Rules:         results,
		Report:        report,
		Reconstructed: reconstructed,
	}, nil
}

// RunRule evaluates one rule over the whole timeline.
func (e *Engine) RunRule(ctx context.Context, timeline *core.LowLevelTimeline, rule *core.Rule, report *core.Report) RuleResult {
	if report == nil {
		report = core.NewReport()
	}
	return e.runRule(ctx, timeline, rule, report)
}

func (e *Engine) runRule(ctx context.Context, timeline *core.LowLevelTimeline, rule *core.Rule, report *core.Report) (res RuleResult) {
	res = RuleResult{RuleID: rule.ID, Title: rule.Title}
	start := time.Now()

	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Events = nil
			metrics.RecordRuleEvaluationError(rule.ID)
			return
		}
		metrics.RecordRuleEvaluation(rule.ID, res.Matches, res.Duration.Seconds())
		metrics.HighLevelEventsReconstructed.WithLabelValues(rule.ID).Add(float64(len(res.Events)))
	}()

	// panics are scoped to this rule
	var panicErr error
	defer func() {
		if panicErr != nil {
			res.Err = panicErr
			report.Add(core.IssueRuleFailure, rule.ID, "", noEvent, panicErr)
		}
	}()
	defer goroutine.RecoverInto("rule:"+rule.ID, e.logger, &panicErr)

	if e.cfg.RuleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RuleTimeout)
		defer cancel()
	}

	matches, err := e.matcher.FindMatchesInRange(ctx, timeline, 0, int64(timeline.Len()), rule, report)
	if err != nil {
		res.Err = err
		e.recordRuleError(rule, err, report)
		return res
	}
	res.Matches = len(matches)

	events := make([]*core.HighLevelEvent, 0, len(matches))
	for i, ev := range matches {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				res.Err = fmt.Errorf("rule abandoned after %d of %d matches: %w", i, len(matches), err)
				e.recordRuleError(rule, res.Err, report)
				return res
			}
		}
		events = append(events, e.reconstructor.Reconstruct(rule, ev, timeline, report))
	}
	res.Events = events

	e.logger.Debugw("Rule evaluated",
		"rule_id", rule.ID,
		"matches", len(matches),
		"duration", time.Since(start))
	return res
}

// ctxCheckInterval is how many reconstructions run between context checks
const ctxCheckInterval = 256

func (e *Engine) recordRuleError(rule *core.Rule, err error, report *core.Report) {
	var cfgErr *core.RuleConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		e.logger.Warnw("Skipping rule with invalid configuration",
			"rule_id", rule.ID,
			"title", rule.Title,
			"error", err)
	case errors.Is(err, context.DeadlineExceeded):
		e.logger.Warnw("Rule exceeded its timeout and was abandoned",
			"rule_id", rule.ID,
			"timeout", e.cfg.RuleTimeout)
	case errors.Is(err, context.Canceled):
		// the run itself is being cancelled; Run reports it
		return
	default:
		e.logger.Errorw("Rule evaluation failed",
			"rule_id", rule.ID,
			"error", err)
	}
	report.AddError(rule.ID, "", noEvent, err)
}
