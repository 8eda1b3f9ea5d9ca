package candidate

import (
	"errors"
	"fmt"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/pfmoore/shadwell/tags"
)

// Recognised artifact suffixes.
const (
	WheelExt  = ".whl"
	TarGzExt  = ".tar.gz"
	ZipExt    = ".zip"
	wheelMin  = 5
	wheelMax  = 6
	buildSlot = 2
)

// ErrMalformedFilename is matched by every *FilenameError via errors.Is.
var ErrMalformedFilename = errors.New("malformed artifact filename")

// FilenameError reports a filename that does not match a recognised grammar.
type FilenameError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *FilenameError) Error() string {
	msg := fmt.Sprintf("malformed artifact filename %q: %s", e.Filename, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrMalformedFilename) true.
func (e *FilenameError) Is(target error) bool {
	return target == ErrMalformedFilename
}

func (e *FilenameError) Unwrap() error {
	return e.Err
}

// ParseFilename parses a wheel or sdist filename. The filename is matched
// case-insensitively; Candidate.Filename keeps the original spelling.
//
// Sdist names are split on the last dash, which is reliable because PEP 440
// versions never contain one. Use ParseSdistFor when the project name is known.
func ParseFilename(filename string) (Candidate, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, WheelExt):
		return parseWheel(filename, strings.TrimSuffix(lower, WheelExt))
	case strings.HasSuffix(lower, TarGzExt):
		return parseSdist(filename, strings.TrimSuffix(lower, TarGzExt), TarGzExt, "")
	case strings.HasSuffix(lower, ZipExt):
		return parseSdist(filename, strings.TrimSuffix(lower, ZipExt), ZipExt, "")
	default:
		return Candidate{}, &FilenameError{Filename: filename, Reason: "unrecognised extension"}
	}
}

// ParseSdistFor parses a filename expected to belong to project name. For
// sdists the name is matched as a prefix (separators and case are
// interchangeable) and everything after it is the version. Wheels are parsed
// as in ParseFilename and must carry the same normalized name.
func ParseSdistFor(name, filename string) (Candidate, error) {
	lower := strings.ToLower(filename)
	var c Candidate
	var err error
	switch {
	case strings.HasSuffix(lower, TarGzExt):
		c, err = parseSdist(filename, strings.TrimSuffix(lower, TarGzExt), TarGzExt, name)
	case strings.HasSuffix(lower, ZipExt):
		c, err = parseSdist(filename, strings.TrimSuffix(lower, ZipExt), ZipExt, name)
	default:
		c, err = ParseFilename(filename)
	}
	if err != nil {
		return Candidate{}, err
	}
	if c.Name != NormalizeName(name) {
		return Candidate{}, &FilenameError{Filename: filename, Reason: fmt.Sprintf("not an artifact of %s", NormalizeName(name))}
	}
	return c, nil
}

func parseWheel(filename, stem string) (Candidate, error) {
	fields := strings.Split(stem, "-")
	if len(fields) < wheelMin || len(fields) > wheelMax {
		return Candidate{}, &FilenameError{
			Filename: filename,
			Reason:   fmt.Sprintf("wheel needs %d or %d dash-separated fields, got %d", wheelMin, wheelMax, len(fields)),
		}
	}

	if fields[0] == "" {
		return Candidate{}, &FilenameError{Filename: filename, Reason: "empty project name"}
	}

	version, err := pep440.Parse(fields[1])
	if err != nil {
		return Candidate{}, &FilenameError{Filename: filename, Reason: "invalid version " + fields[1], Err: err}
	}

	var build string
	if len(fields) == wheelMax {
		build = fields[buildSlot]
		if build == "" || build[0] < '0' || build[0] > '9' {
			return Candidate{}, &FilenameError{Filename: filename, Reason: fmt.Sprintf("build tag %q must start with a digit", build)}
		}
	}

	tagSet, err := tags.Parse(strings.Join(fields[len(fields)-3:], "-"))
	if err != nil {
		return Candidate{}, &FilenameError{Filename: filename, Reason: "invalid compatibility tag", Err: err}
	}

	return Candidate{
		Name:     NormalizeName(fields[0]),
		Version:  version,
		Artifact: Wheel{Tags: tagSet, BuildTag: build},
		Filename: filename,
	}, nil
}

func parseSdist(filename, stem, ext, expected string) (Candidate, error) {
	var name, rest string
	if expected != "" {
		var ok bool
		rest, ok = trimNamePrefix(expected, stem)
		if !ok {
			return Candidate{}, &FilenameError{Filename: filename, Reason: fmt.Sprintf("not an sdist for %s", NormalizeName(expected))}
		}
		name = expected
	} else {
		i := strings.LastIndex(stem, "-")
		if i < 0 {
			return Candidate{}, &FilenameError{Filename: filename, Reason: "missing name-version separator"}
		}
		name, rest = stem[:i], stem[i+1:]
	}

	if name == "" {
		return Candidate{}, &FilenameError{Filename: filename, Reason: "empty project name"}
	}

	version, err := pep440.Parse(rest)
	if err != nil {
		return Candidate{}, &FilenameError{Filename: filename, Reason: "invalid version " + rest, Err: err}
	}

	return Candidate{
		Name:     NormalizeName(name),
		Version:  version,
		Artifact: Sdist{Extension: ext},
		Filename: filename,
	}, nil
}
