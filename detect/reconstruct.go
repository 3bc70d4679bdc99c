package detect

import (
	"errors"
	"maps"
	"slices"

	"eventrecon/core"
	"eventrecon/extract"
	"eventrecon/metrics"

	"go.uber.org/zap"
)

// noEvent is the FirstEventID of issues not tied to a low-level event
const noEvent int64 = -1

// ContextProvider supplies the supporting neighbourhood of a low-level event.
type ContextProvider interface {
	SupportingWindow(id int64) map[string][]core.EventSnapshot
}

// Reconstructor builds high-level events from matched low-level events.
type Reconstructor struct {
	registry *extract.Registry
	logger   *zap.SugaredLogger
}

// NewReconstructor creates a reconstructor resolving keys through registry,
// or through the built-in extractors when registry is nil.
func NewReconstructor(registry *extract.Registry, logger *zap.SugaredLogger) *Reconstructor {
	if registry == nil {
		registry = extract.Builtin()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reconstructor{registry: registry, logger: logger}
}

// Registry returns the extractor registry in use
func (r *Reconstructor) Registry() *extract.Registry {
	return r.registry
}

// Reconstruct turns one matched low-level event into a high-level event.
// Failures of individual keys or templates degrade that field only and are
// recorded in report; the event is always returned.
func (r *Reconstructor) Reconstruct(rule *core.Rule, ev *core.LowLevelEvent, ctxp ContextProvider, report *core.Report) *core.HighLevelEvent {
	if report == nil {
		report = core.NewReport()
	}
	hl := core.NewHighLevelEvent(ev.ID, ev.Timestamp)
	hl.EvidenceSource = ev.Evidence
	hl.Category = rule.Category
	hl.Plugin = ev.Plugin
	if ev.Path != "" {
		hl.Files = []string{ev.Path}
	}

	if rule.IsPlainDetectionRule() {
		hl.Description = rule.Description
	} else {
		spec := rule.HighLevelEvent
		hl.Type = spec.Type
		r.extractKeys(rule, ev, hl, report)
		hl.Description = r.render(rule, spec.Description, hl.Fields(), ev.ID, report)

		if rule.Reasoning != nil {
			hl.Reasoning = &core.ReasoningArtefact{
				ID:          ev.ID,
				Description: r.render(rule, rule.Reasoning.Description, ev.Fields(), ev.ID, report),
				TriggeringEvent: map[string]string{
					"type":     ev.Type,
					"evidence": ev.Evidence,
				},
				Provenance: maps.Clone(ev.Provenance),
				Keys:       maps.Clone(hl.Keys),
				References: slices.Clone(rule.References),
			}
		}
	}

	if ctxp != nil {
		hl.Supporting = ctxp.SupportingWindow(ev.ID)
	}
	return hl
}

func (r *Reconstructor) extractKeys(rule *core.Rule, ev *core.LowLevelEvent, hl *core.HighLevelEvent, report *core.Report) {
	for _, key := range rule.HighLevelEvent.Keys {
		fn, err := r.registry.Resolve(key.Source)
		if err != nil {
			report.AddError(rule.ID, key.Name, ev.ID, scopeToKey(err, rule.ID, key.Name))
			continue
		}
		value, ok, err := r.registry.Invoke(key.Source, fn, ev)
		metrics.RecordExtraction(key.Source, ok, err)
		if err != nil {
			r.logger.Debugw("Extractor failed",
				"rule_id", rule.ID,
				"key", key.Name,
				"extractor", key.Source,
				"event_id", ev.ID,
				"error", err)
			report.AddError(rule.ID, key.Name, ev.ID, err)
			continue
		}
		if ok {
			hl.SetKey(key.Name, value)
		}
	}
}

func (r *Reconstructor) render(rule *core.Rule, tmpl string, fields map[string]any, eventID int64, report *core.Report) string {
	out, err := RenderTemplate(tmpl, fields)
	if err != nil {
		report.AddError(rule.ID, "", eventID, err)
	}
	return out
}

// scopeToKey attributes a registry configuration error to a rule key.
func scopeToKey(err error, ruleID, key string) error {
	var cfgErr *core.RuleConfigurationError
	if !errors.As(err, &cfgErr) {
		return err
	}
	scoped := *cfgErr
	scoped.RuleID = ruleID
	scoped.Key = key
	return &scoped
}
