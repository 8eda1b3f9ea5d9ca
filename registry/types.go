package registry

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Project is the PyPI JSON API document for one project.
// This matches https://docs.pypi.org/api/json/.
type Project struct {
	// Info describes the latest release.
	Info Info `json:"info"`

	// Releases maps each version string to the files uploaded for it.
	Releases map[string][]File `json:"releases"`

	// URLs lists the files of the latest release only.
	URLs []File `json:"urls,omitempty"`
}

// Info is the "info" block of the JSON API.
type Info struct {
	Name           string  `json:"name"`
	Version        string  `json:"version"`
	Summary        string  `json:"summary,omitempty"`
	RequiresPython string  `json:"requires_python,omitempty"`
	Yanked         bool    `json:"yanked,omitempty"`
	YankedReason   *string `json:"yanked_reason,omitempty"`
}

// File is one uploaded distribution file in the JSON API.
type File struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`

	// PackageType is "bdist_wheel", "sdist", or a legacy format such as
	// "bdist_egg" or "bdist_wininst".
	PackageType string `json:"packagetype"`

	// RequiresPython is null when the uploader did not declare it.
	RequiresPython *string `json:"requires_python"`

	Yanked       bool    `json:"yanked"`
	YankedReason *string `json:"yanked_reason"`

	Digests map[string]string `json:"digests,omitempty"`
	Size    int64             `json:"size,omitempty"`
}

// SimpleProject is the PEP 691 JSON project page.
type SimpleProject struct {
	Meta     SimpleMeta   `json:"meta"`
	Name     string       `json:"name"`
	Files    []SimpleFile `json:"files"`
	Versions []string     `json:"versions,omitempty"`
}

// SimpleMeta carries the repository API version (PEP 629).
type SimpleMeta struct {
	APIVersion string `json:"api-version"`
}

// SimpleFile is one file entry of a PEP 691 project page.
type SimpleFile struct {
	Filename       string            `json:"filename"`
	URL            string            `json:"url"`
	Hashes         map[string]string `json:"hashes"`
	RequiresPython string            `json:"requires-python,omitempty"`
	Yanked         Yank              `json:"yanked"`
}

// Yank is the PEP 592 yank marker. On the wire it is false, true, or a
// non-empty reason string (which implies true).
type Yank struct {
	Yanked bool
	Reason string
}

// UnmarshalJSON accepts a boolean or a reason string.
func (y *Yank) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*y = Yank{Yanked: b}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("yanked must be a boolean or string, got %s", string(data))
	}
	*y = Yank{Yanked: true, Reason: s}
	return nil
}

// MarshalJSON writes the reason when present, otherwise the boolean.
func (y Yank) MarshalJSON() ([]byte, error) {
	if y.Yanked && y.Reason != "" {
		return json.Marshal(y.Reason)
	}
	return json.Marshal(y.Yanked)
}

// Distribution is a file listing entry independent of the API dialect.
type Distribution struct {
	Filename       string
	URL            string
	RequiresPython string
	Yanked         bool
	YankReason     string

	// Release is the version key the JSON API filed this entry under. Empty
	// for PEP 691 listings.
	Release string
	// PackageType is empty for PEP 691 listings.
	PackageType string
}

// IsInstallable reports whether the entry may be a wheel or an sdist. Entries
// with an explicit legacy package type (eggs, wininst) are not.
func (d Distribution) IsInstallable() bool {
	switch d.PackageType {
	case "", "bdist_wheel", "sdist":
		return true
	default:
		return false
	}
}

// Distributions flattens all releases. Releases are visited in sorted key
// order and files keep their listed order, so the result is deterministic.
func (p *Project) Distributions() []Distribution {
	keys := make([]string, 0, len(p.Releases))
	for k := range p.Releases {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out []Distribution
	for _, release := range keys {
		for _, f := range p.Releases[release] {
			d := Distribution{
				Filename:    f.Filename,
				URL:         f.URL,
				Yanked:      f.Yanked,
				Release:     release,
				PackageType: f.PackageType,
			}
			if f.RequiresPython != nil {
				d.RequiresPython = *f.RequiresPython
			}
			if f.YankedReason != nil {
				d.YankReason = *f.YankedReason
			}
			out = append(out, d)
		}
	}
	return out
}

// Distributions converts the file list.
func (p *SimpleProject) Distributions() []Distribution {
	out := make([]Distribution, 0, len(p.Files))
	for _, f := range p.Files {
		out = append(out, Distribution{
			Filename:       f.Filename,
			URL:            f.URL,
			RequiresPython: f.RequiresPython,
			Yanked:         f.Yanked.Yanked,
			YankReason:     f.Yanked.Reason,
		})
	}
	return out
}

// APIMajor returns the major component of the PEP 629 api-version, or "" when
// the field is missing.
func (m SimpleMeta) APIMajor() string {
	major, _, _ := strings.Cut(m.APIVersion, ".")
	return major
}
