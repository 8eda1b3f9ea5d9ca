package candidate

import (
	"regexp"
	"strings"
)

var separatorRun = regexp.MustCompile(`[-_.]+`)

// NormalizeName returns the PEP 503 normalized form of a project name:
// lowercase, with every run of "-", "_" and "." replaced by a single "-".
func NormalizeName(name string) string {
	return strings.ToLower(separatorRun.ReplaceAllString(name, "-"))
}

// SameProject reports whether two project names normalize identically.
func SameProject(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

// trimNamePrefix strips a prefix of s that spells name with any mix of
// separators and case, and the dash that must follow it. It returns the
// remainder and whether the prefix matched.
func trimNamePrefix(name, s string) (string, bool) {
	parts := strings.Split(NormalizeName(name), "-")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	pattern, err := regexp.Compile(`(?i)^` + strings.Join(parts, `[-_.]+`) + `-`)
	if err != nil {
		return "", false
	}
	loc := pattern.FindStringIndex(s)
	if loc == nil {
		return "", false
	}
	return s[loc[1]:], true
}
