package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventrecon/metrics"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultRegexTimeout bounds a single keyword regex evaluation
const DefaultRegexTimeout = 500 * time.Millisecond

// DefaultRegexCacheSize is the number of compiled patterns kept
const DefaultRegexCacheSize = 1000

// ErrRegexTimeout is returned when a keyword regex exceeds its match timeout
var ErrRegexTimeout = errors.New("regex evaluation timeout")

// RegexCache compiles keyword regexes with regexp2 and a MatchTimeout, and
// keeps the compiled patterns in an LRU cache keyed by pattern and timeout.
// It is safe for concurrent use.
type RegexCache struct {
	cache   *lru.Cache[string, *regexp2.Regexp]
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewRegexCache creates a cache of at most size patterns. Non-positive
// arguments select the defaults.
func NewRegexCache(size int, timeout time.Duration, logger *zap.SugaredLogger) (*RegexCache, error) {
	if size <= 0 {
		size = DefaultRegexCacheSize
	}
	if timeout <= 0 {
		timeout = DefaultRegexTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cache, err := lru.NewWithEvict[string, *regexp2.Regexp](size, func(string, *regexp2.Regexp) {
		metrics.RecordRegexCacheEviction()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create regex cache: %w", err)
	}
	return &RegexCache{cache: cache, timeout: timeout, logger: logger}, nil
}

// Timeout returns the per-evaluation match timeout
func (c *RegexCache) Timeout() time.Duration {
	return c.timeout
}

// Compile returns the compiled form of pattern, compiling it on a miss.
func (c *RegexCache) Compile(pattern string) (*regexp2.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("regex pattern cannot be empty")
	}
	// different timeouts need different cache entries
	cacheKey := fmt.Sprintf("%s:%d", pattern, c.timeout.Milliseconds())
	if re, ok := c.cache.Get(cacheKey); ok {
		metrics.RecordRegexCacheHit()
		return re, nil
	}
	metrics.RecordRegexCacheMiss()

	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("failed to compile regex pattern: %w", err)
	}
	re.MatchTimeout = c.timeout
	c.cache.Add(cacheKey, re)
	return re, nil
}

// Match searches input for pattern. A timeout returns ErrRegexTimeout; the
// caller decides how to treat it.
func (c *RegexCache) Match(pattern, input string) (bool, error) {
	re, err := c.Compile(pattern)
	if err != nil {
		return false, err
	}

	start := time.Now()
	match, err := re.MatchString(input)
	metrics.RegexExecutionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		// regexp2 reports timeouts as a plain error
		if strings.Contains(strings.ToLower(err.Error()), "timeout") {
			metrics.RegexTimeouts.WithLabelValues(hashPattern(pattern)).Inc()
			c.logger.Warnf("Regex timeout: pattern may be vulnerable to ReDoS (pattern: %s, timeout: %v, input length: %d)",
				pattern, c.timeout, len(input))
			return false, ErrRegexTimeout
		}
		return false, fmt.Errorf("regex matching error: %w", err)
	}
	return match, nil
}

// Len returns the number of cached patterns
func (c *RegexCache) Len() int {
	return c.cache.Len()
}

// Purge empties the cache
func (c *RegexCache) Purge() {
	c.cache.Purge()
}

// hashPattern creates a short hash of a pattern for metrics labeling
func hashPattern(pattern string) string {
	hash := sha256.Sum256([]byte(pattern))
	return hex.EncodeToString(hash[:])[:8]
}
