// Package extract provides the named key extractors rules reference from
// their high_level_event.keys definitions.
package extract

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"eventrecon/core"
)

// Extractor derives one key value from a low-level event. A false result
// means the value is absent and the key stays unset.
type Extractor func(ev *core.LowLevelEvent) (string, bool)

// Registry maps extractor names to functions. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	extractors map[string]Extractor
}

// New creates a registry holding a copy of extractors.
func New(extractors map[string]Extractor) *Registry {
	r := &Registry{extractors: make(map[string]Extractor, len(extractors))}
	for name, fn := range extractors {
		if fn != nil {
			r.extractors[name] = fn
		}
	}
	return r
}

var (
	builtinOnce     sync.Once
	builtinRegistry *Registry
)

// Builtin returns the registry of all built-in extractors.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		builtinRegistry = New(builtinExtractors())
	})
	return builtinRegistry
}

// With returns a new registry containing r's extractors plus extra. Entries
// in extra replace same-named ones.
func (r *Registry) With(extra map[string]Extractor) *Registry {
	merged := maps.Clone(r.extractors)
	maps.Copy(merged, extra)
	return New(merged)
}

// Resolve looks up an extractor by name.
func (r *Registry) Resolve(name string) (Extractor, error) {
	fn, ok := r.extractors[name]
	if !ok {
		return nil, &core.RuleConfigurationError{
			Reason: fmt.Sprintf("extractor %q is not registered", name),
			Err:    core.ErrUnknownExtractor,
		}
	}
	return fn, nil
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.extractors[name]
	return ok
}

// Invoke runs fn against ev. A panic inside the extractor is returned as a
// *core.ExtractorFailure instead of unwinding the caller.
func (r *Registry) Invoke(name string, fn Extractor, ev *core.LowLevelEvent) (value string, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			value, ok = "", false
			err = &core.ExtractorFailure{Extractor: name, Cause: fmt.Errorf("panic: %v", p)}
		}
	}()
	value, ok = fn(ev)
	return value, ok, nil
}

// Extract resolves name and invokes it against ev.
func (r *Registry) Extract(name string, ev *core.LowLevelEvent) (string, bool, error) {
	fn, err := r.Resolve(name)
	if err != nil {
		return "", false, err
	}
	return r.Invoke(name, fn, ev)
}

// Names returns the registered extractor names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.extractors))
}

// Len returns the number of registered extractors
func (r *Registry) Len() int {
	return len(r.extractors)
}
