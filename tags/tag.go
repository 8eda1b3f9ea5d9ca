// Package tags implements wheel compatibility tags: parsing of compressed tag
// expressions, the ranking of a wheel's tag set against an installer's ordered
// preference list, and enumeration of the tags a CPython interpreter accepts.
//
// A tag is the triple interpreter-abi-platform, for example "cp312-abi3-manylinux_2_17_x86_64".
// Wheel filenames carry a compressed form in which each field may list several
// values separated by ".", such as "py2.py3-none-any". The compressed form
// expands to the cartesian product of its fields.
//
// Reference: https://packaging.python.org/en/latest/specifications/platform-compatibility-tags/
package tags

import (
	"fmt"
	"slices"
	"strings"
)

// Incompatible is the rank of a tag set that shares no tag with the system
// list. Every real rank is at least 1.
const Incompatible = -1

// Tag is a single, fully expanded compatibility tag.
type Tag struct {
	Interpreter string
	ABI         string
	Platform    string
}

// New returns a lowercased Tag.
func New(interpreter, abi, platform string) Tag {
	return Tag{
		Interpreter: strings.ToLower(interpreter),
		ABI:         strings.ToLower(abi),
		Platform:    strings.ToLower(platform),
	}
}

// String returns the tag as "interpreter-abi-platform".
func (t Tag) String() string {
	return t.Interpreter + "-" + t.ABI + "-" + t.Platform
}

// Set is the expanded tag set of one wheel.
type Set map[Tag]struct{}

// Contains reports whether t is in the set.
func (s Set) Contains(t Tag) bool {
	_, ok := s[t]
	return ok
}

// Sorted returns the set members ordered by their string form.
func (s Set) Sorted() []Tag {
	out := make([]Tag, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Tag) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

// ParseError reports a malformed tag expression.
type ParseError struct {
	Expr    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bad tag expression %q: %s", e.Expr, e.Message)
}

// Parse expands a compressed tag expression such as "py2.py3-none-any" into
// the set of every interpreter/abi/platform combination it denotes.
func Parse(expr string) (Set, error) {
	lower := strings.ToLower(expr)
	fields := strings.Split(lower, "-")
	if len(fields) != 3 {
		return nil, &ParseError{Expr: expr, Message: fmt.Sprintf("expected 3 dash-separated fields, got %d", len(fields))}
	}

	parts := make([][]string, 3)
	for i, f := range fields {
		values := strings.Split(f, ".")
		for _, v := range values {
			if v == "" {
				return nil, &ParseError{Expr: expr, Message: "empty tag component"}
			}
		}
		parts[i] = values
	}

	set := make(Set, len(parts[0])*len(parts[1])*len(parts[2]))
	for _, interp := range parts[0] {
		for _, abi := range parts[1] {
			for _, plat := range parts[2] {
				set[Tag{Interpreter: interp, ABI: abi, Platform: plat}] = struct{}{}
			}
		}
	}
	return set, nil
}

// MustParse is like Parse but panics on error. Use only for constants/tests.
func MustParse(expr string) Set {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseList parses a list of single tags, preserving order. Compressed
// expressions are expanded in place in a stable order.
func ParseList(exprs []string) ([]Tag, error) {
	out := make([]Tag, 0, len(exprs))
	seen := make(map[Tag]bool, len(exprs))
	for _, e := range exprs {
		set, err := Parse(e)
		if err != nil {
			return nil, err
		}
		for _, t := range set.Sorted() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// Rank scores a wheel's tag set against the installer's tags, ordered most
// preferred first. The first system tag found in the set yields
// len(system)-index, so earlier matches rank higher. If no system tag is in the
// set, Rank returns Incompatible.
func Rank(candidate Set, system []Tag) int {
	for i, t := range system {
		if candidate.Contains(t) {
			return len(system) - i
		}
	}
	return Incompatible
}
