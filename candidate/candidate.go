// Package candidate models one installable Python artifact and parses the two
// recognised artifact filename grammars into it.
//
// # Grammars
//
// Binary (wheel):
//
//	{name}-{version}(-{build})?-{python}-{abi}-{platform}.whl
//
// Source (sdist):
//
//	{name}-{version}.tar.gz
//
// Names are normalized on parse (see [NormalizeName]); versions follow PEP 440
// and are parsed with github.com/aquasecurity/go-pep440-version. Any filename
// that does not match one of the grammars is reported as a [*FilenameError];
// a Candidate is never partially populated.
//
// References:
//   - https://packaging.python.org/en/latest/specifications/binary-distribution-format/
//   - https://packaging.python.org/en/latest/specifications/source-distribution-format/
package candidate

import (
	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/pfmoore/shadwell/tags"
)

// Kind distinguishes binary from source artifacts.
type Kind int

const (
	// KindSource is a source distribution that needs a build step.
	KindSource Kind = iota + 1
	// KindBinary is a pre-built wheel.
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Artifact is the kind-specific part of a Candidate. It is either a Wheel or
// an Sdist; no other implementations exist.
type Artifact interface {
	Kind() Kind
	isArtifact()
}

// Wheel holds the attributes only binary artifacts carry.
type Wheel struct {
	// Tags is the expanded compatibility tag set. Never empty for a parsed wheel.
	Tags tags.Set
	// BuildTag is the optional build number. It disambiguates wheels sharing
	// name, version and tags and does not take part in ranking.
	BuildTag string
}

// Kind returns KindBinary.
func (Wheel) Kind() Kind { return KindBinary }
func (Wheel) isArtifact() {}

// Sdist holds the attributes of a source archive.
type Sdist struct {
	// Extension is the archive suffix, ".tar.gz" or ".zip".
	Extension string
}

// Kind returns KindSource.
func (Sdist) Kind() Kind { return KindSource }
func (Sdist) isArtifact() {}

// Candidate is one concrete installable artifact.
type Candidate struct {
	// Name is the normalized project name.
	Name string
	// Version is the parsed PEP 440 version.
	Version pep440.Version
	// Artifact is a Wheel or an Sdist.
	Artifact Artifact
	// RequiresPython restricts the interpreter versions that may use the
	// artifact. The zero value places no restriction.
	RequiresPython Specifier
	// Yanked is set when the publisher retracted the artifact.
	Yanked bool
	// YankReason is the publisher's explanation, if any.
	YankReason string
	// Filename is the filename as listed by the source.
	Filename string
	// Origin locates the artifact (usually a URL). It is never interpreted.
	Origin string
}

// Kind returns the artifact kind.
func (c Candidate) Kind() Kind {
	if c.Artifact == nil {
		return 0
	}
	return c.Artifact.Kind()
}

// IsBinary reports whether the candidate is a wheel.
func (c Candidate) IsBinary() bool {
	return c.Kind() == KindBinary
}

// Wheel returns the wheel attributes, or false for source artifacts.
func (c Candidate) Wheel() (Wheel, bool) {
	w, ok := c.Artifact.(Wheel)
	return w, ok
}

// String returns the filename, or name==version when no filename is known.
func (c Candidate) String() string {
	if c.Filename != "" {
		return c.Filename
	}
	return c.Name + "==" + c.Version.String()
}
