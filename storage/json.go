package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"eventrecon/core"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// JSONWriter writes the timeline as a JSON array of events.
type JSONWriter struct {
	fs     afero.Fs
	path   string
	pretty bool
	logger *zap.SugaredLogger
}

// Format returns FormatJSON
func (w *JSONWriter) Format() string {
	return FormatJSON
}

// Write encodes events to the output path. An empty timeline is written as [].
func (w *JSONWriter) Write(ctx context.Context, run RunInfo, events []*core.HighLevelEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if events == nil {
		events = []*core.HighLevelEvent{}
	}
	err := writeFileAtomic(w.fs, w.path, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		if w.pretty {
			enc.SetIndent("", "    ")
		}
		if err := enc.Encode(events); err != nil {
			return fmt.Errorf("failed to encode timeline: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	recordWrite(w.logger, FormatJSON, w.path, run, len(events))
	return nil
}
