package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"eventrecon/core"
	"eventrecon/metrics"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// maxLineSize bounds a single json_line record
const maxLineSize = 16 * 1024 * 1024

// JSONLReader reads plaso json_line output, one JSON object per line.
// Attributes are mapped like CSV columns; a numeric "timestamp" in
// microseconds is used when no "datetime" attribute is present.
type JSONLReader struct {
	logger *zap.SugaredLogger
}

// NewJSONLReader creates a json_line timeline reader
func NewJSONLReader(logger *zap.SugaredLogger) *JSONLReader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &JSONLReader{logger: logger}
}

// Format returns FormatJSONL
func (j *JSONLReader) Format() string {
	return FormatJSONL
}

// Read decodes all lines. Blank lines are ignored; lines that are not JSON
// objects are logged and skipped.
func (j *JSONLReader) Read(ctx context.Context, r io.Reader) ([]*core.LowLevelEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var events []*core.LowLevelEvent
	skipped := 0
	for line := 1; scanner.Scan(); line++ {
		if line%recordCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return events, err
			}
		}
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		if !gjson.ValidBytes(raw) {
			skipped++
			j.logger.Warnw("Skipping invalid JSON line", "line", line)
			continue
		}
		record := gjson.ParseBytes(raw)
		if !record.IsObject() {
			skipped++
			j.logger.Warnw("Skipping JSON line that is not an object", "line", line)
			continue
		}
		events = append(events, eventFromJSON(record))
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("failed to scan input: %w", err)
	}

	if skipped > 0 {
		metrics.RecordSkipped(FormatJSONL, skipped)
	}
	return events, nil
}

func eventFromJSON(record gjson.Result) *core.LowLevelEvent {
	row := make(map[string]string)
	record.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.Type == gjson.Null:
		case value.IsObject(), value.IsArray():
			row[key.String()] = value.Raw
		default:
			row[key.String()] = value.String()
		}
		return true
	})

	timestamp := strings.TrimSpace(row["datetime"])
	if timestamp == "" {
		if ts := record.Get("timestamp"); ts.Type == gjson.Number {
			timestamp = time.UnixMicro(ts.Int()).UTC().Format("2006-01-02T15:04:05.000000Z07:00")
		}
	}
	return eventFromColumns(row, timestamp)
}
