// Package registry is a client for Python package indexes.
//
// It speaks the two JSON dialects an index may offer for listing a project's
// distribution files:
//
//   - the PyPI JSON API, {base}/{project}/json, which groups files by release
//   - the PEP 691 simple repository API, {base}/{project}/ requested with
//     "Accept: application/vnd.pypi.simple.v1+json"
//
// Both are flattened to [Distribution] values, the raw material a finder turns
// into candidates.
//
// # Index Layout
//
//	https://pypi.org/
//	├── pypi/{project}/json     # JSON API
//	└── simple/{project}/       # PEP 691 (and PEP 503 HTML, not supported here)
//
// # Usage
//
//	client := registry.NewClient("https://pypi.org/pypi")
//	project, err := client.GetProject(ctx, "requests")
//	if errors.Is(err, registry.ErrProjectNotFound) {
//	    // The index does not know the project.
//	}
//	for _, d := range project.Distributions() {
//	    fmt.Println(d.Filename, d.Yanked)
//	}
//
// Responses are cached per client; an optional [Cache] persists raw bodies
// across clients.
package registry
