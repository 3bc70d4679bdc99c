package bootstrap

import (
	"fmt"

	"eventrecon/config"
	"eventrecon/storage"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// InitWriter creates the writer for the output path. format overrides
// output.format when not empty; auto picks the format from the extension.
func InitWriter(cfg *config.Config, path, format string, fsys afero.Fs, sugar *zap.SugaredLogger) (storage.Writer, error) {
	if format == "" {
		format = cfg.Output.Format
	}
	if format == "" || format == "auto" {
		format = storage.DetectFormat(path)
	}

	writer, err := storage.NewWriter(format, path, storage.Options{Pretty: cfg.Output.Pretty, Fs: fsys}, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s writer: %w", format, err)
	}
	sugar.Debugw("Output writer ready", "format", writer.Format(), "path", path)
	return writer, nil
}
