package shadwell

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/pfmoore/shadwell/candidate"
	"github.com/pfmoore/shadwell/registry"
)

// localSource lists artifacts found in a flat local directory, the layout pip
// calls "find-links":
//
//	{root}/proj-0.1.tar.gz
//	{root}/proj-0.2-py3-none-any.whl
//
// Subdirectories are ignored. Create it with NewSource and a path or a
// file:// URL:
//
//	src, err := NewSource("file:///srv/wheels")      // Unix
//	src, err := NewSource("file:///C:/srv/wheels")   // Windows
type localSource struct {
	rootPath string
	logger   *slog.Logger
	cache    sync.Map // map[string][]candidate.Candidate keyed by project name
}

func newLocalSource(rootPath string, cfg *sourceConfig) *localSource {
	return &localSource{
		rootPath: filepath.Clean(rootPath),
		logger:   cfg.logger,
	}
}

// String returns the file:// URL of the directory.
func (s *localSource) String() string {
	return pathToFileURL(s.rootPath)
}

// Candidates parses every file in the directory that belongs to name.
// Results are cached per project name.
func (s *localSource) Candidates(ctx context.Context, name string) ([]candidate.Candidate, error) {
	if cached, ok := s.cache.Load(name); ok {
		return slices.Clone(cached.([]candidate.Candidate)), nil
	}

	// Check for context cancellation
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("find-links directory does not exist: %s", s.rootPath)
		}
		return nil, fmt.Errorf("read find-links directory %s: %w", s.rootPath, err)
	}

	dists := make([]registry.Distribution, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		dists = append(dists, registry.Distribution{
			Filename: e.Name(),
			URL:      pathToFileURL(filepath.Join(s.rootPath, e.Name())),
		})
	}

	out := toCandidates(name, dists, s.logger)
	s.cache.Store(name, out)
	return slices.Clone(out), nil
}

// parseFileURL extracts the path from a file:// URL.
// Handles both Unix (file:///path) and Windows (file:///C:/path) formats.
//
// Examples:
//
//	Unix:    file:///srv/wheels      -> /srv/wheels
//	Windows: file:///C:/Users/wheels -> C:/Users/wheels
func parseFileURL(url string) (string, error) {
	if !strings.HasPrefix(url, "file://") {
		return "", fmt.Errorf("not a file:// URL: %s", url)
	}

	path := strings.TrimPrefix(url, "file://")
	if path == "" {
		return "", fmt.Errorf("file:// URL has no path: %s", url)
	}

	// file:///C:/path -> C:/path
	if len(path) >= 3 && path[0] == '/' && isWindowsDriveLetter(path[1]) && path[2] == ':' {
		path = path[1:]
	}

	return filepath.Clean(path), nil
}

// isWindowsDriveLetter returns true if c is a valid Windows drive letter (A-Z, a-z).
func isWindowsDriveLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// pathToFileURL converts a native file path to a file:// URL.
// Uses forward slashes and handles Windows drive letters correctly.
func pathToFileURL(path string) string {
	urlPath := filepath.ToSlash(path)

	// C:/path -> /C:/path for file:///C:/path
	if runtime.GOOS == "windows" && len(urlPath) >= 2 && isWindowsDriveLetter(urlPath[0]) && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}

	return "file://" + urlPath
}
