package shadwell

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pfmoore/shadwell/candidate"
)

// BinaryPolicy controls how binary and source artifacts of a project are
// treated.
type BinaryPolicy int

const (
	// PolicyAllow accepts both kinds with equal precedence.
	PolicyAllow BinaryPolicy = iota
	// PolicyRequire rejects source artifacts.
	PolicyRequire
	// PolicyProhibit rejects binary artifacts.
	PolicyProhibit
	// PolicyPrefer accepts both kinds and ranks every binary above every
	// source artifact, regardless of version.
	PolicyPrefer
)

var policyNames = [...]string{
	PolicyAllow:    "allow",
	PolicyRequire:  "require",
	PolicyProhibit: "prohibit",
	PolicyPrefer:   "prefer",
}

func (p BinaryPolicy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("BinaryPolicy(%d)", int(p))
	}
	return policyNames[p]
}

// ParseBinaryPolicy parses a policy name, case-insensitively.
func ParseBinaryPolicy(s string) (BinaryPolicy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for p, n := range policyNames {
		if n == name {
			return BinaryPolicy(p), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p BinaryPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *BinaryPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseBinaryPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PolicyFunc maps a normalized project name to its policy. It must be pure.
type PolicyFunc func(name string) BinaryPolicy

// AllowAll is the default policy.
func AllowAll(string) BinaryPolicy { return PolicyAllow }

// UniformPolicy applies p to every project.
func UniformPolicy(p BinaryPolicy) PolicyFunc {
	return func(string) BinaryPolicy { return p }
}

// PolicyMap applies per-project overrides and falls back to def. Override
// keys are normalized, so "Foo_Bar" and "foo-bar" name the same project.
// When several keys normalize alike, the last in sorted order wins.
func PolicyMap(def BinaryPolicy, overrides map[string]BinaryPolicy) PolicyFunc {
	normalized := make(map[string]BinaryPolicy, len(overrides))
	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		normalized[candidate.NormalizeName(name)] = overrides[name]
	}
	return func(name string) BinaryPolicy {
		if p, ok := normalized[candidate.NormalizeName(name)]; ok {
			return p
		}
		return def
	}
}

// admit applies policy p to artifact kind k. It reports the binary precedence
// and whether the kind is admitted at all.
func admit(p BinaryPolicy, k candidate.Kind) (precedence int, ok bool) {
	switch k {
	case candidate.KindBinary:
		switch p {
		case PolicyProhibit:
			return 0, false
		case PolicyPrefer:
			return 1, true
		}
		return 0, true
	case candidate.KindSource:
		return 0, p != PolicyRequire
	}
	return 0, false
}
