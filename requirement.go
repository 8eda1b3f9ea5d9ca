package shadwell

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pfmoore/shadwell/candidate"
)

// Requirement names one project and the versions acceptable for it.
type Requirement struct {
	// Name is the normalized project name.
	Name string
	// Specifier restricts versions. The zero value accepts all.
	Specifier candidate.Specifier
}

// PEP 508 names: ASCII letters, digits, and inner runs of "-_.".
var requirementName = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)\s*(.*)$`)

// ParseRequirement parses "name" or "name<specifier>", e.g. "proj>=0.2,<1".
// Extras, markers and URLs are not supported.
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	m := requirementName.FindStringSubmatch(s)
	if m == nil {
		return Requirement{}, fmt.Errorf("%w: %q: missing project name", ErrInvalidRequirement, s)
	}
	rest := strings.TrimSpace(m[2])
	if strings.ContainsAny(rest, "[;@") {
		return Requirement{}, fmt.Errorf("%w: %q: extras, markers and URLs are not supported", ErrInvalidRequirement, s)
	}
	spec, err := candidate.ParseSpecifier(rest)
	if err != nil {
		return Requirement{}, fmt.Errorf("%w: %w", ErrInvalidRequirement, err)
	}
	return Requirement{Name: candidate.NormalizeName(m[1]), Specifier: spec}, nil
}

// MustParseRequirement is like ParseRequirement but panics on error.
func MustParseRequirement(s string) Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Requirement) String() string {
	return r.Name + r.Specifier.String()
}
