// Package storage writes reconstructed timelines to their output formats.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"eventrecon/core"
	"eventrecon/metrics"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Output formats
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
	FormatSQLite  = "sqlite"
)

// ErrUnknownFormat is returned for an unsupported output format
var ErrUnknownFormat = errors.New("unknown output format")

// RunInfo identifies the analysis run that produced a timeline.
type RunInfo struct {
	ID        string
	StartedAt time.Time
}

// Writer persists a merged high-level timeline. Writers keep the event order
// and never alter event contents.
type Writer interface {
	Write(ctx context.Context, run RunInfo, events []*core.HighLevelEvent) error
	Format() string
}

// Options configure output writers
type Options struct {
	// Pretty indents JSON output
	Pretty bool
	// Fs is used by the file based writers; nil means the OS filesystem
	Fs afero.Fs
}

// DetectFormat infers the output format from the file extension, defaulting to JSON.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return FormatMsgpack
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatJSON
	}
}

// NewWriter returns the writer for format targeting path.
func NewWriter(format, path string, opts Options, logger *zap.SugaredLogger) (Writer, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	switch format {
	case FormatJSON:
		return &JSONWriter{fs: fsys, path: path, pretty: opts.Pretty, logger: logger}, nil
	case FormatMsgpack:
		return &MsgpackWriter{fs: fsys, path: path, logger: logger}, nil
	case FormatSQLite:
		return NewSQLiteWriter(path, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// writeFileAtomic writes to a temporary sibling of path and renames it into
// place, so a failed run never leaves a truncated output behind.
func writeFileAtomic(fsys afero.Fs, path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := afero.TempFile(fsys, filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary output: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = fsys.Remove(tmp)
		}
	}()

	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temporary output: %w", err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func recordWrite(logger *zap.SugaredLogger, format, path string, run RunInfo, n int) {
	metrics.RecordWritten(format, n)
	logger.Infow("Timeline written", "format", format, "path", path, "run_id", run.ID, "events", n)
}
