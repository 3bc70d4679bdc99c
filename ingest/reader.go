// Package ingest reads plaso timeline exports into low-level events.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"eventrecon/core"
	"eventrecon/metrics"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Input formats
const (
	FormatAuto  = "auto"
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// ErrUnknownFormat is returned for an unsupported input format
var ErrUnknownFormat = errors.New("unknown input format")

// recordCheckInterval is how many records are decoded between context checks
const recordCheckInterval = 4096

// Reader decodes a timeline export into low-level events in file order.
type Reader interface {
	Read(ctx context.Context, r io.Reader) ([]*core.LowLevelEvent, error)
	Format() string
}

// DetectFormat infers the input format from the file extension.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".jsonl", ".json", ".jsonlines", ".ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: cannot infer format of %q, set input.format", ErrUnknownFormat, path)
	}
}

// NewReader returns the reader for format.
func NewReader(format string, logger *zap.SugaredLogger) (Reader, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	switch format {
	case FormatCSV:
		return NewCSVReader(logger), nil
	case FormatJSONL:
		return NewJSONLReader(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ReadTimeline reads path from fsys and builds the low-level timeline. Ids are
// assigned 0..n-1 in file order.
func ReadTimeline(ctx context.Context, fsys afero.Fs, path, format string, logger *zap.SugaredLogger, opts ...core.TimelineOption) (*core.LowLevelTimeline, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if format == "" || format == FormatAuto {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}
	reader, err := NewReader(format, logger)
	if err != nil {
		return nil, err
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline: %w", err)
	}
	defer f.Close()

	events, err := reader.Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s timeline %s: %w", format, path, err)
	}
	metrics.RecordIngested(format, len(events))
	logger.Infow("Timeline loaded", "path", path, "format", format, "events", len(events))

	return core.NewLowLevelTimeline(events, opts...), nil
}

// firstOf returns the first non-empty value among the named columns.
func firstOf(row map[string]string, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(row[n]); v != "" && v != "-" {
			return v
		}
	}
	return ""
}
