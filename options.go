package shadwell

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/pfmoore/shadwell/tags"
)

// DefaultPythonVersion is the interpreter version assumed when none is given.
const DefaultPythonVersion = "3.12"

// Option configures a Finder.
type Option func(*finderConfig) error

// finderConfig holds all Finder configuration. It is read-only once
// newFinderConfig returns.
type finderConfig struct {
	tags            []tags.Tag
	allowPrerelease bool
	pythonVersion   string
	python          pep440.Version
	policy          PolicyFunc
	allowYanked     bool
	sources         []Source
	jobs            int
	failOpen        bool
	metrics         *Metrics

	// logger is the structured logger for debug/info output.
	// If nil, logging is disabled (silent mode).
	logger *slog.Logger
}

// WithTags sets the supported tag list, most preferred first. An explicit
// empty list makes every wheel incompatible.
func WithTags(ts ...tags.Tag) Option {
	return func(c *finderConfig) error {
		c.tags = append([]tags.Tag{}, ts...)
		return nil
	}
}

// WithAllowPrerelease admits pre-release and development versions.
func WithAllowPrerelease(allow bool) Option {
	return func(c *finderConfig) error {
		c.allowPrerelease = allow
		return nil
	}
}

// WithPythonVersion sets the target interpreter version, checked against each
// candidate's Requires-Python. It also selects the default tag list.
func WithPythonVersion(v string) Option {
	return func(c *finderConfig) error {
		c.pythonVersion = v
		return nil
	}
}

// WithBinaryPolicy sets the per-project binary policy.
func WithBinaryPolicy(p PolicyFunc) Option {
	return func(c *finderConfig) error {
		c.policy = p
		return nil
	}
}

// WithAllowYanked keeps yanked candidates when nothing else survives.
func WithAllowYanked(allow bool) Option {
	return func(c *finderConfig) error {
		c.allowYanked = allow
		return nil
	}
}

// WithSources appends sources. Registration order is the tie-break order
// between equally ranked candidates.
func WithSources(srcs ...Source) Option {
	return func(c *finderConfig) error {
		for i, s := range srcs {
			if s == nil {
				return fmt.Errorf("%w: source %d is nil", ErrInvalidOption, i)
			}
		}
		c.sources = append(c.sources, srcs...)
		return nil
	}
}

// WithConcurrentSources queries up to n sources at once. Values below 2
// query them one at a time.
func WithConcurrentSources(n int) Option {
	return func(c *finderConfig) error {
		c.jobs = n
		return nil
	}
}

// WithFailOpenSources makes a failing source count as empty instead of
// failing the whole Find. Failures are logged at warn level.
func WithFailOpenSources(failOpen bool) Option {
	return func(c *finderConfig) error {
		c.failOpen = failOpen
		return nil
	}
}

// WithMetrics records selection counters on m.
func WithMetrics(m *Metrics) Option {
	return func(c *finderConfig) error {
		c.metrics = m
		return nil
	}
}

// WithLogger sets a structured logger for selection diagnostics.
// If not set, logging is disabled (silent mode).
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "finder")
//	f, err := NewFinder(WithLogger(logger))
func WithLogger(l *slog.Logger) Option {
	return func(c *finderConfig) error {
		c.logger = l
		return nil
	}
}

// validate checks the configuration and fills environment-derived defaults.
func (c *finderConfig) validate() error {
	if c.jobs < 0 {
		return fmt.Errorf("%w: concurrent sources must not be negative", ErrInvalidOption)
	}

	if c.pythonVersion == "" {
		c.pythonVersion = DefaultPythonVersion
	}
	v, err := pep440.Parse(c.pythonVersion)
	if err != nil {
		return fmt.Errorf("%w: python version %q: %w", ErrInvalidOption, c.pythonVersion, err)
	}
	c.python = v

	if c.tags == nil {
		supported, err := tags.Supported(c.pythonVersion, tags.Platforms(runtime.GOOS, runtime.GOARCH))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOption, err)
		}
		c.tags = supported
	}

	if c.policy == nil {
		c.policy = AllowAll
	}

	return nil
}

// log returns the configured logger, or a no-op logger if none was set.
func (c *finderConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(discardHandler{})
}

// discardHandler is a slog.Handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// newFinderConfig applies opts and validates the result.
func newFinderConfig(opts ...Option) (*finderConfig, error) {
	c := &finderConfig{}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}
