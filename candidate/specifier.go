package candidate

import (
	"fmt"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// Specifier is a PEP 440 version specifier set. The zero value matches every
// version.
//
// Membership is purely range based: pre-releases inside the range match.
// Whether pre-releases are admitted at all is a separate policy decision.
type Specifier struct {
	raw string
	set *pep440.Specifiers
}

// ParseSpecifier parses a comma separated specifier set such as ">=1.0,<2".
// Blank input yields the unrestricted specifier.
func ParseSpecifier(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Specifier{}, nil
	}
	set, err := pep440.NewSpecifiers(s, pep440.WithPreRelease(true))
	if err != nil {
		return Specifier{}, fmt.Errorf("invalid specifier %q: %w", s, err)
	}
	return Specifier{raw: s, set: &set}, nil
}

// MustParseSpecifier is like ParseSpecifier but panics on error. Use only for constants/tests.
func MustParseSpecifier(s string) Specifier {
	spec, err := ParseSpecifier(s)
	if err != nil {
		panic(err)
	}
	return spec
}

// Contains reports whether v is inside the specifier set.
func (s Specifier) Contains(v pep440.Version) bool {
	if s.set == nil {
		return true
	}
	return s.set.Check(v)
}

// IsAny reports whether the specifier places no restriction.
func (s Specifier) IsAny() bool {
	return s.set == nil
}

// String returns the specifier as written, or "" when unrestricted.
func (s Specifier) String() string {
	return s.raw
}
