package shadwell

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/pfmoore/shadwell/candidate"
	"github.com/pfmoore/shadwell/registry"
)

// Source lists the candidates it knows for a normalized project name.
// Sources may return candidates of other projects; the Finder drops them.
type Source interface {
	Candidates(ctx context.Context, name string) ([]candidate.Candidate, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, name string) ([]candidate.Candidate, error)

// Candidates calls fn.
func (fn SourceFunc) Candidates(ctx context.Context, name string) ([]candidate.Candidate, error) {
	return fn(ctx, name)
}

// StaticSource is a fixed candidate list, returned whole for every name.
type StaticSource []candidate.Candidate

// Candidates returns a copy of the list.
func (s StaticSource) Candidates(context.Context, string) ([]candidate.Candidate, error) {
	return slices.Clone(s), nil
}

func (s StaticSource) String() string {
	return fmt.Sprintf("static(%d)", len(s))
}

// StaticFiles parses filenames into a StaticSource.
func StaticFiles(filenames ...string) (StaticSource, error) {
	out := make(StaticSource, 0, len(filenames))
	for _, fn := range filenames {
		c, err := candidate.ParseFilename(fn)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func describeSource(src Source, idx int) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("source[%d]", idx)
}

// sourceConfig holds settings shared by the sources NewSource builds.
type sourceConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	cache      registry.Cache
	validate   bool
	logger     *slog.Logger
}

// SourceOption configures sources built by NewSource.
type SourceOption func(*sourceConfig)

// WithHTTPClient sets the HTTP client used by index sources.
func WithHTTPClient(c *http.Client) SourceOption {
	return func(cfg *sourceConfig) {
		cfg.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of index sources.
func WithTimeout(d time.Duration) SourceOption {
	return func(cfg *sourceConfig) {
		cfg.timeout = d
	}
}

// WithUserAgent sets the User-Agent index sources send.
func WithUserAgent(ua string) SourceOption {
	return func(cfg *sourceConfig) {
		cfg.userAgent = ua
	}
}

// WithResponseCache shares a response cache between index sources.
func WithResponseCache(c registry.Cache) SourceOption {
	return func(cfg *sourceConfig) {
		cfg.cache = c
	}
}

// WithResponseValidation toggles structural checks on index responses.
func WithResponseValidation(enabled bool) SourceOption {
	return func(cfg *sourceConfig) {
		cfg.validate = enabled
	}
}

// WithSourceLogger sets the logger for skipped files and other source
// diagnostics.
func WithSourceLogger(l *slog.Logger) SourceOption {
	return func(cfg *sourceConfig) {
		cfg.logger = l
	}
}

func newSourceConfig(opts []SourceOption) *sourceConfig {
	cfg := &sourceConfig{validate: true}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(discardHandler{})
	}
	return cfg
}

// NewSource builds a source from a location:
//
//	https://pypi.org/pypi          PyPI JSON API
//	https://pypi.org/simple        PEP 691 simple JSON API (last path segment "simple")
//	file:///srv/wheels             local find-links directory
//	./wheels                       local find-links directory
func NewSource(location string, opts ...SourceOption) (Source, error) {
	cfg := newSourceConfig(opts)

	switch {
	case strings.HasPrefix(location, "file://"):
		path, err := parseFileURL(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOption, err)
		}
		return newLocalSource(path, cfg), nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return newIndexSource(location, cfg), nil
	case strings.Contains(location, "://"):
		return nil, fmt.Errorf("%w: unsupported source location %q", ErrInvalidOption, location)
	case location == "":
		return nil, fmt.Errorf("%w: empty source location", ErrInvalidOption)
	default:
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOption, err)
		}
		return newLocalSource(abs, cfg), nil
	}
}

// NewSources builds one source per location, in order.
func NewSources(locations []string, opts ...SourceOption) ([]Source, error) {
	out := make([]Source, 0, len(locations))
	for _, loc := range locations {
		src, err := NewSource(loc, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// toCandidates turns raw listing entries into candidates of project name.
// Entries that are not wheels or sdists of name are skipped.
func toCandidates(name string, dists []registry.Distribution, log *slog.Logger) []candidate.Candidate {
	out := make([]candidate.Candidate, 0, len(dists))
	for _, d := range dists {
		if !d.IsInstallable() {
			log.Debug("skipping non-installable file", "filename", d.Filename, "packagetype", d.PackageType)
			continue
		}
		c, err := candidate.ParseSdistFor(name, d.Filename)
		if err != nil {
			log.Debug("skipping unparsable file", "filename", d.Filename, "error", err)
			continue
		}
		if d.Release != "" && !sameVersion(d.Release, c.Version) {
			log.Warn("skipping file filed under another release", "filename", d.Filename,
				"release", d.Release, "version", c.Version.String())
			continue
		}
		spec, err := candidate.ParseSpecifier(d.RequiresPython)
		if err != nil {
			log.Warn("ignoring invalid requires-python", "filename", d.Filename, "requires_python", d.RequiresPython, "error", err)
		}
		c.RequiresPython = spec
		c.Yanked = d.Yanked
		c.YankReason = d.YankReason
		c.Origin = d.URL
		out = append(out, c)
	}
	return out
}

// sameVersion reports whether a release key names version v. Keys are
// compared as PEP 440 versions, so "1.0" and "1.0.0" match.
func sameVersion(release string, v pep440.Version) bool {
	r, err := pep440.Parse(release)
	if err != nil {
		return false
	}
	return r.Equal(v)
}
