// Package rules ships the built-in rule documents and the named rule sets
// that select among them.
package rules

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"

	"eventrecon/core"
	"eventrecon/sigma"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

//go:embed web linux
var files embed.FS

// ErrNoRules is returned when none of the selected rule documents could be loaded
var ErrNoRules = errors.New("no valid rules could be loaded")

const (
	googleSearch      = "web/google_search.yml"
	bingSearch        = "web/bing_search.yml"
	webVisit          = "web/web_visit.yml"
	youtubeWatch      = "web/youtube_watch.yml"
	userAdd           = "linux/custom_susp/lnx_user_add.yml"
	userMod           = "linux/custom_susp/lnx_user_mod.yml"
	authFailure       = "linux/custom_susp/lnx_auth_failure.yml"
	sessionOpened     = "linux/custom_susp/lnx_session_opened.yml"
	webShell          = "linux/custom_susp/lnx_web_shell_detection.yml"
	securityTools     = "linux/builtin/syslog/lnx_syslog_security_tools_disabling_syslog.yml"
	suspiciousNamed   = "linux/builtin/syslog/lnx_syslog_susp_named.yml"
	crontabModified   = "linux/builtin/cron/lnx_cron_crontab_file_modification.yml"
	vsftpdErrors      = "linux/builtin/vsftpd/lnx_vsftpd_susp_error_messages.yml"
	suspiciousLogging = "linux/builtin/lnx_shell_susp_log_entries.yml"
)

var webActivity = []string{googleSearch, bingSearch, webVisit, youtubeWatch}

var linuxSecurity = []string{
	userAdd, userMod, authFailure, sessionOpened, webShell,
	securityTools, suspiciousNamed, crontabModified, vsftpdErrors, suspiciousLogging,
}

var sets = map[string][]string{
	"google-search":               {googleSearch},
	"bing-search":                 {bingSearch},
	"web-visits":                  {webVisit},
	"youtube-watch":               {youtubeWatch},
	"all-web-activity":            webActivity,
	"user-add":                    {userAdd},
	"user-mod":                    {userMod},
	"account-management-activity": {userAdd, userMod},
	"auth-failure":                {authFailure},
	"session-opened":              {sessionOpened},
	"authentication-activity":     {authFailure, sessionOpened},
	"web-shell":                   {webShell},
	"security-tools":              {securityTools},
	"suspicious-dns":              {suspiciousNamed},
	"crontab-modification":        {crontabModified},
	"ftp-errors":                  {vsftpdErrors},
	"suspicious-logs":             {suspiciousLogging},
	"all-linux-security":          linuxSecurity,
	"all":                         slices.Concat(webActivity, linuxSecurity),
}

// defaultSet runs every rule; the web shell rule comes last.
var defaultSet = []string{
	googleSearch, bingSearch, webVisit, youtubeWatch,
	userAdd, userMod, authFailure, sessionOpened,
	securityTools, suspiciousNamed, crontabModified, vsftpdErrors, suspiciousLogging,
	webShell,
}

// FS returns the embedded rule documents.
func FS() fs.FS {
	return files
}

// Set returns the rule document paths of the named set. An empty or unknown
// name selects the default set and reports false.
func Set(name string) ([]string, bool) {
	if paths, ok := sets[name]; ok {
		return slices.Clone(paths), true
	}
	return slices.Clone(defaultSet), false
}

// SetNames lists the named rule sets
func SetNames() []string {
	return slices.Sorted(maps.Keys(sets))
}

// Loader reads the documents of a rule set and converts them to engine rules.
type Loader struct {
	parser    *sigma.Parser
	converter *sigma.Converter
	logger    *zap.SugaredLogger
}

// NewLoader creates a loader. An empty dir loads the embedded documents;
// otherwise set paths are resolved below dir.
func NewLoader(dir string, logger *zap.SugaredLogger) *Loader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	var fsys afero.Fs
	source := "embedded"
	if dir == "" {
		fsys = afero.FromIOFS{FS: files}
	} else {
		fsys = afero.NewBasePathFs(afero.NewOsFs(), dir)
		source = "directory"
	}
	return NewLoaderFs(fsys, source, logger)
}

// NewLoaderFs creates a loader over an arbitrary filesystem.
func NewLoaderFs(fsys afero.Fs, source string, logger *zap.SugaredLogger) *Loader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Loader{
		parser:    sigma.NewParser(fsys, sigma.WithSource(source), sigma.WithLogger(logger)),
		converter: sigma.NewConverter(),
		logger:    logger,
	}
}

// Load parses and converts the documents of the named set. Documents that fail
// are returned as failures and skipped; ErrNoRules is returned when nothing loads.
func (l *Loader) Load(set string) ([]*core.Rule, []*sigma.FileError, error) {
	paths, known := Set(set)
	if set != "" && !known {
		l.logger.Warnw("Unknown rule set, using default", "set", set)
	}
	return l.LoadPaths(paths)
}

// LoadPaths parses and converts the given documents in order.
func (l *Loader) LoadPaths(paths []string) ([]*core.Rule, []*sigma.FileError, error) {
	docs, failures := l.parser.ParseFiles(paths)

	rules := make([]*core.Rule, 0, len(docs))
	for _, doc := range docs {
		rule, err := l.converter.Convert(doc)
		if err != nil {
			l.logger.Warnw("Skipping rule document", "path", doc.FilePath, "error", err)
			failures = append(failures, &sigma.FileError{Path: doc.FilePath, Err: err})
			continue
		}
		rules = append(rules, rule)
	}

	if len(rules) == 0 {
		return nil, failures, fmt.Errorf("%w (%d documents failed)", ErrNoRules, len(failures))
	}
	l.logger.Infow("Rules loaded", "count", len(rules), "failed", len(failures))
	return rules, failures, nil
}
