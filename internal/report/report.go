// Package report renders ranked candidate lists as text, JSON or YAML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pfmoore/shadwell"
	"github.com/pfmoore/shadwell/candidate"
)

const separatorWidth = 60 // Width of separator lines in text output

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "text", "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Entry is one candidate in a report.
type Entry struct {
	Position       int      `json:"position" yaml:"position"`
	Filename       string   `json:"filename" yaml:"filename"`
	Name           string   `json:"name" yaml:"name"`
	Version        string   `json:"version" yaml:"version"`
	Kind           string   `json:"kind" yaml:"kind"`
	Tags           []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	BuildTag       string   `json:"build_tag,omitempty" yaml:"build_tag,omitempty"`
	Rank           int      `json:"rank,omitempty" yaml:"rank,omitempty"`
	RequiresPython string   `json:"requires_python,omitempty" yaml:"requires_python,omitempty"`
	Yanked         bool     `json:"yanked,omitempty" yaml:"yanked,omitempty"`
	YankReason     string   `json:"yank_reason,omitempty" yaml:"yank_reason,omitempty"`
	Origin         string   `json:"origin,omitempty" yaml:"origin,omitempty"`
	Rejected       string   `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// Report is a ranked result plus, optionally, what was rejected.
type Report struct {
	Requirement   string  `json:"requirement,omitempty" yaml:"requirement,omitempty"`
	PythonVersion string  `json:"python_version,omitempty" yaml:"python_version,omitempty"`
	Candidates    []Entry `json:"candidates" yaml:"candidates"`
	Rejected      []Entry `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// NewEntry describes c. Position is 1-based; 0 means unranked.
func NewEntry(c candidate.Candidate, position int) Entry {
	e := Entry{
		Position:       position,
		Filename:       c.String(),
		Name:           c.Name,
		Version:        c.Version.String(),
		Kind:           c.Kind().String(),
		RequiresPython: c.RequiresPython.String(),
		Yanked:         c.Yanked,
		YankReason:     c.YankReason,
		Origin:         c.Origin,
	}
	if w, ok := c.Wheel(); ok {
		for _, t := range w.Tags.Sorted() {
			e.Tags = append(e.Tags, t.String())
		}
		e.BuildTag = w.BuildTag
	}
	return e
}

// FromCandidates builds a report of an already ranked list.
func FromCandidates(requirement, python string, cs []candidate.Candidate) *Report {
	r := &Report{Requirement: requirement, PythonVersion: python, Candidates: make([]Entry, 0, len(cs))}
	for i, c := range cs {
		r.Candidates = append(r.Candidates, NewEntry(c, i+1))
	}
	return r
}

// FromEvaluations builds a report that also lists rejected candidates, in
// collection order.
func FromEvaluations(requirement, python string, evals []shadwell.Evaluation) *Report {
	r := &Report{Requirement: requirement, PythonVersion: python}
	accepted := make([]Entry, 0, len(evals))
	for _, ev := range evals {
		if !ev.Accepted() {
			e := NewEntry(ev.Candidate, 0)
			e.Rejected = string(ev.Reason)
			r.Rejected = append(r.Rejected, e)
			continue
		}
		e := NewEntry(ev.Candidate, ev.Position+1)
		e.Rank = ev.Rank
		accepted = append(accepted, e)
	}
	r.Candidates = make([]Entry, len(accepted))
	for _, e := range accepted {
		r.Candidates[e.Position-1] = e
	}
	return r
}

// Write renders the report to w.
func (r *Report) Write(w io.Writer, f Format) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = r.ToJSON()
	case FormatYAML:
		data, err = r.ToYAML()
	case FormatText, "":
		data = []byte(r.ToText())
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ToJSON renders indented JSON with a trailing newline.
func (r *Report) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ToYAML renders YAML.
func (r *Report) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToText renders a human readable listing.
func (r *Report) ToText() string {
	var buf bytes.Buffer

	if r.Requirement != "" {
		fmt.Fprintf(&buf, "Candidates for %s", r.Requirement)
		if r.PythonVersion != "" {
			fmt.Fprintf(&buf, " (python %s)", r.PythonVersion)
		}
		buf.WriteString("\n")
		buf.WriteString(strings.Repeat("=", separatorWidth) + "\n")
	}

	if len(r.Candidates) == 0 {
		buf.WriteString("No eligible candidates.\n")
	}
	for _, e := range r.Candidates {
		fmt.Fprintf(&buf, "%3d. %s", e.Position, e.Filename)
		var notes []string
		notes = append(notes, e.Kind)
		if e.Rank > 0 {
			notes = append(notes, fmt.Sprintf("rank %d", e.Rank))
		}
		if e.Yanked {
			notes = append(notes, "yanked")
		}
		fmt.Fprintf(&buf, " [%s]\n", strings.Join(notes, ", "))
	}

	if len(r.Rejected) > 0 {
		buf.WriteString("\nRejected:\n")
		for _, e := range r.Rejected {
			fmt.Fprintf(&buf, "  %s: %s\n", e.Filename, e.Rejected)
		}
	}

	return buf.String()
}

// WriteList renders a plain list of strings, one per line for text output.
func WriteList(w io.Writer, f Format, items []string) error {
	if items == nil {
		items = []string{}
	}
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(items)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatText, "":
		for _, item := range items {
			if _, err := fmt.Fprintln(w, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}
