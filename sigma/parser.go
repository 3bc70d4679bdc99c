package sigma

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"eventrecon/metrics"

	"github.com/spf13/afero"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed rule_schema.json
var ruleSchema []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(ruleSchema))
})

// FileError records a rule document that could not be loaded
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Parser reads rule documents from a filesystem
type Parser struct {
	fs     afero.Fs
	source string
	logger *zap.SugaredLogger
}

// ParserOption configures a Parser
type ParserOption func(*Parser)

// WithSource labels loaded rules in metrics, e.g. "embedded" or "directory".
func WithSource(source string) ParserOption {
	return func(p *Parser) {
		p.source = source
	}
}

// WithLogger sets the parser logger
func WithLogger(logger *zap.SugaredLogger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a parser over fsys. A nil fsys reads the OS filesystem.
func NewParser(fsys afero.Fs, opts ...ParserOption) *Parser {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	p := &Parser{
		fs:     fsys,
		source: "filesystem",
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseDirectory parses all YAML rule documents under directory. Documents
// that fail to load are logged, returned as FileErrors and skipped.
func (p *Parser) ParseDirectory(directory string) ([]*SigmaRule, []*FileError, error) {
	var paths []string
	err := afero.Walk(p.fs, directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	rules, failures := p.ParseFiles(paths)
	return rules, failures, nil
}

// ParseFiles parses the given documents in order, skipping the ones that fail.
func (p *Parser) ParseFiles(paths []string) ([]*SigmaRule, []*FileError) {
	var rules []*SigmaRule
	var failures []*FileError
	for _, path := range paths {
		rule, err := p.ParseFile(path)
		if err != nil {
			reason := "invalid"
			if errors.Is(err, fs.ErrNotExist) {
				reason = "not_found"
			}
			metrics.RecordRuleLoadError(reason)
			p.logger.Warnw("Skipping rule document", "path", path, "error", err)
			failures = append(failures, &FileError{Path: path, Err: err})
			continue
		}
		metrics.RecordRuleLoaded(p.source)
		p.logger.Debugw("Loaded rule", "path", path, "rule_id", rule.ID, "title", rule.Title)
		rules = append(rules, rule)
	}
	return rules, failures
}

// ParseFile parses a single rule document
func (p *Parser) ParseFile(filePath string) (*SigmaRule, error) {
	data, err := afero.ReadFile(p.fs, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	rule, err := p.ParseYAML(data)
	if err != nil {
		return nil, err
	}
	rule.FilePath = filePath
	return rule, nil
}

// ParseYAML parses a rule document from YAML bytes. The document is checked
// against the rule schema before it is decoded.
func (p *Parser) ParseYAML(data []byte) (*SigmaRule, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var rule SigmaRule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	rule.RawYAML = string(data)

	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule document: %w", err)
	}

	return &rule, nil
}

func validateSchema(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to load rule schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate rule against schema: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("rule validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
