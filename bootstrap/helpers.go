package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrSameFile is returned when the output would overwrite the input timeline
var ErrSameFile = errors.New("output path is the input timeline")

// PreflightCheck verifies the input timeline is a readable file and the output
// directory can be written before any work starts.
func PreflightCheck(fsys afero.Fs, input, output string, sugar *zap.SugaredLogger) error {
	info, err := fsys.Stat(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("input timeline %s does not exist: %w", input, err)
		}
		return fmt.Errorf("cannot access input timeline %s: %w", input, err)
	}
	if info.IsDir() {
		return fmt.Errorf("input timeline %s is a directory", input)
	}

	if output == "" {
		return errors.New("no output path given")
	}
	if filepath.Clean(input) == filepath.Clean(output) {
		return fmt.Errorf("%w: %s", ErrSameFile, output)
	}

	dir := filepath.Dir(output)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w\n"+
			"  Remediation: Ensure the parent directory exists and is writable", dir, err)
	}

	// Verify write permissions
	probe, err := afero.TempFile(fsys, dir, ".eventrecon_write_test")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w\n"+
			"  Remediation: Check file system permissions or choose another output path", dir, err)
	}
	name := probe.Name()
	probe.Close()
	_ = fsys.Remove(name)

	sugar.Debugw("Preflight checks passed", "input", input, "output", output, "input_bytes", info.Size())
	return nil
}
