package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // l2tcsv zones must resolve without a system zoneinfo

	"eventrecon/core"
	"eventrecon/metrics"

	"go.uber.org/zap"
)

// Column preference per event field. The first non-empty column wins; the
// remaining columns are kept as provenance.
var (
	typeColumns     = []string{"source_long", "sourcetype", "data_type", "source"}
	evidenceColumns = []string{"message", "desc"}
	pathColumns     = []string{"display_name", "filename"}
	pluginColumns   = []string{"parser", "format"}
)

// CSVReader reads plaso psort CSV output. Both the dynamic layout
// (datetime, source_long, message, parser, display_name, ...) and the
// l2tcsv layout (date, time, timezone, sourcetype, desc, filename, format,
// ...) are recognised from the header row.
type CSVReader struct {
	logger *zap.SugaredLogger
}

// NewCSVReader creates a CSV timeline reader
func NewCSVReader(logger *zap.SugaredLogger) *CSVReader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CSVReader{logger: logger}
}

// Format returns FormatCSV
func (c *CSVReader) Format() string {
	return FormatCSV
}

// Read decodes all rows. Rows with a column count different from the header
// are padded or truncated.
func (c *CSVReader) Read(ctx context.Context, r io.Reader) ([]*core.LowLevelEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	if !slices.ContainsFunc(evidenceColumns, func(c string) bool { return slices.Contains(columns, c) }) {
		return nil, fmt.Errorf("header has no message or desc column: %v", columns)
	}

	var events []*core.LowLevelEvent
	skipped := 0
	for n := 1; ; n++ {
		if n%recordCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return events, err
			}
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				c.logger.Warnw("Skipping malformed CSV row", "line", perr.Line, "error", perr.Err)
				continue
			}
			return events, fmt.Errorf("record %d: %w", n, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		events = append(events, eventFromColumns(row, csvTimestamp(row)))
	}

	if skipped > 0 {
		metrics.RecordSkipped(FormatCSV, skipped)
	}
	return events, nil
}

// csvTimestamp returns the ISO-8601 time of a row. The l2tcsv date and time
// columns are combined in the row's timezone; values that cannot be read,
// including unknown zones, are passed through unchanged for the correlator
// to normalise.
func csvTimestamp(row map[string]string) string {
	if v := strings.TrimSpace(row["datetime"]); v != "" {
		return v
	}
	date := strings.TrimSpace(row["date"])
	clock := strings.TrimSpace(row["time"])
	if date == "" {
		return ""
	}
	loc := time.UTC
	if tz := strings.TrimSpace(row["timezone"]); tz != "" && !strings.EqualFold(tz, "UTC") {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return strings.Join([]string{date, clock, tz}, " ")
		}
	}
	t, err := time.ParseInLocation("01/02/2006 15:04:05", date+" "+clock, loc)
	if err != nil {
		return strings.TrimSpace(date + " " + clock)
	}
	return t.Format(time.RFC3339)
}

// eventFromColumns maps named columns onto a low-level event.
func eventFromColumns(row map[string]string, timestamp string) *core.LowLevelEvent {
	used := map[string]bool{"datetime": true, "date": true, "time": true}

	pick := func(names []string) string {
		for _, n := range names {
			if v := firstOf(row, n); v != "" {
				used[n] = true
				return v
			}
		}
		return ""
	}

	ev := &core.LowLevelEvent{
		Timestamp: timestamp,
		Type:      pick(typeColumns),
		Evidence:  pick(evidenceColumns),
		Path:      pick(pathColumns),
		Plugin:    pick(pluginColumns),
	}

	prov := make(map[string]string)
	for k, v := range row {
		if used[k] {
			continue
		}
		if v = strings.TrimSpace(v); v != "" && v != "-" {
			prov[k] = v
		}
	}
	if len(prov) > 0 {
		ev.Provenance = prov
	}
	return ev
}
