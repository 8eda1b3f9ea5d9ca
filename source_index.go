package shadwell

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/pfmoore/shadwell/candidate"
	"github.com/pfmoore/shadwell/registry"
)

// IndexAPI selects the listing dialect of a remote index.
type IndexAPI int

const (
	// APIJSON is the PyPI JSON API, {base}/{name}/json.
	APIJSON IndexAPI = iota
	// APISimple is the PEP 691 simple repository API, {base}/{name}/.
	APISimple
)

func (a IndexAPI) String() string {
	if a == APISimple {
		return "simple"
	}
	return "json"
}

// indexSource lists candidates from a remote package index.
type indexSource struct {
	client *registry.Client
	api    IndexAPI
	logger *slog.Logger
}

func newIndexSource(baseURL string, cfg *sourceConfig) *indexSource {
	var opts []registry.ClientOption
	if cfg.httpClient != nil {
		opts = append(opts, registry.WithHTTPClient(cfg.httpClient))
	}
	if cfg.timeout != 0 {
		opts = append(opts, registry.WithTimeout(cfg.timeout))
	}
	if cfg.cache != nil {
		opts = append(opts, registry.WithCache(cfg.cache))
	}
	opts = append(opts,
		registry.WithUserAgent(cfg.userAgent),
		registry.WithValidation(cfg.validate),
	)

	return &indexSource{
		client: registry.NewClient(baseURL, opts...),
		api:    detectAPI(baseURL),
		logger: cfg.logger,
	}
}

// detectAPI picks the simple API when the last path segment is "simple".
func detectAPI(baseURL string) IndexAPI {
	u, err := url.Parse(baseURL)
	if err != nil {
		return APIJSON
	}
	if path.Base(strings.TrimSuffix(u.Path, "/")) == "simple" {
		return APISimple
	}
	return APIJSON
}

func (s *indexSource) String() string {
	return s.client.BaseURL()
}

// Candidates fetches the project listing. An unknown project yields no
// candidates and no error.
func (s *indexSource) Candidates(ctx context.Context, name string) ([]candidate.Candidate, error) {
	var (
		dists []registry.Distribution
		page  string
	)

	switch s.api {
	case APISimple:
		project, err := s.client.GetSimpleProject(ctx, name)
		if errors.Is(err, registry.ErrProjectNotFound) {
			s.logger.Debug("project not on index", "index", s.String(), "name", name)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		dists = project.Distributions()
		page = s.client.BaseURL() + "/" + name + "/"
	default:
		project, err := s.client.GetProject(ctx, name)
		if errors.Is(err, registry.ErrProjectNotFound) {
			s.logger.Debug("project not on index", "index", s.String(), "name", name)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		dists = project.Distributions()
	}

	if page != "" {
		resolveURLs(page, dists)
	}
	return toCandidates(name, dists, s.logger), nil
}

// resolveURLs makes relative file URLs of a simple page absolute.
func resolveURLs(page string, dists []registry.Distribution) {
	base, err := url.Parse(page)
	if err != nil {
		return
	}
	for i := range dists {
		ref, err := url.Parse(dists[i].URL)
		if err != nil || ref.IsAbs() {
			continue
		}
		dists[i].URL = base.ResolveReference(ref).String()
	}
}
