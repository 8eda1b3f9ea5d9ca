package registry

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldError represents a validation failure for a specific field.
type FieldError struct {
	Field   string // Field path (e.g., "files[0].filename")
	Message string // Human-readable error message
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []*FieldError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&b, "\n  - %s", err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying errors for errors.Is/As compatibility.
func (e *ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Add appends a validation error.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &FieldError{Field: field, Message: message})
}

// AddError appends an existing FieldError.
func (e *ValidationErrors) AddError(err *FieldError) {
	e.Errors = append(e.Errors, err)
}

// HasErrors returns true if any errors were collected.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// ToError returns nil if no errors, otherwise returns self.
func (e *ValidationErrors) ToError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// Precompiled regex patterns for validation.
var (
	// PEP 629 api-version: major.minor
	apiVersionPattern = regexp.MustCompile(`^\d+\.\d+$`)

	// Hex digest of any length
	hexDigestPattern = regexp.MustCompile(`^[a-fA-F0-9]+$`)
)

// SupportedSimpleMajor is the only PEP 691 major version this client reads.
const SupportedSimpleMajor = "1"

// ValidateProject checks the structural requirements of a JSON API document.
// Returns nil if valid, or ValidationErrors containing all issues found.
func ValidateProject(p *Project) error {
	var errs ValidationErrors

	if p.Info.Name == "" {
		errs.Add("info.name", "required field is missing")
	}

	for release, files := range p.Releases {
		for i := range files {
			validateFile(&errs, fmt.Sprintf("releases[%q][%d]", release, i), files[i].Filename, files[i].Digests)
		}
	}

	return errs.ToError()
}

// ValidateSimpleProject checks a PEP 691 project page. Pages declaring a
// major api-version other than 1 are rejected outright.
func ValidateSimpleProject(p *SimpleProject) error {
	var errs ValidationErrors

	switch {
	case p.Meta.APIVersion == "":
		errs.Add("meta.api-version", "required field is missing")
	case !apiVersionPattern.MatchString(p.Meta.APIVersion):
		errs.Add("meta.api-version", fmt.Sprintf("invalid version %q", p.Meta.APIVersion))
	case p.Meta.APIMajor() != SupportedSimpleMajor:
		errs.Add("meta.api-version", fmt.Sprintf("unsupported major version %s", p.Meta.APIMajor()))
	}

	if p.Name == "" {
		errs.Add("name", "required field is missing")
	}

	for i := range p.Files {
		f := &p.Files[i]
		prefix := fmt.Sprintf("files[%d]", i)
		validateFile(&errs, prefix, f.Filename, f.Hashes)
		if f.URL == "" {
			errs.Add(prefix+".url", "required field is missing")
		}
	}

	return errs.ToError()
}

func validateFile(errs *ValidationErrors, prefix, filename string, digests map[string]string) {
	if filename == "" {
		errs.Add(prefix+".filename", "required field is missing")
	} else if strings.ContainsAny(filename, "/\\") {
		errs.Add(prefix+".filename", "must not contain path separators")
	}
	for algo, digest := range digests {
		if !hexDigestPattern.MatchString(digest) {
			errs.Add(fmt.Sprintf("%s.hashes[%q]", prefix, algo), "must be a hex digest")
		}
	}
}
