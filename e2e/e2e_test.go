// Package e2e runs the finder against the live PyPI indexes. The tests are
// skipped in short mode.
package e2e

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pfmoore/shadwell"
	"github.com/pfmoore/shadwell/candidate"
	"github.com/pfmoore/shadwell/registry"
	"github.com/pfmoore/shadwell/tags"
)

const (
	jsonIndex   = "https://pypi.org/pypi"
	simpleIndex = "https://pypi.org/simple"
)

// findWith ranks req using a single index.
func findWith(t *testing.T, index string, req string, opts ...shadwell.Option) []candidate.Candidate {
	t.Helper()
	src, err := shadwell.NewSource(index, shadwell.WithTimeout(30*time.Second))
	if err != nil {
		t.Fatalf("NewSource(%s): %v", index, err)
	}
	f, err := shadwell.NewFinder(append(opts, shadwell.WithSources(src))...)
	if err != nil {
		t.Fatalf("NewFinder: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	result, err := f.Find(ctx, shadwell.MustParseRequirement(req))
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			t.Skipf("index unreachable: %v", err)
		}
		t.Fatalf("Find(%s) via %s: %v", req, index, err)
	}
	return result
}

func filenames(cs []candidate.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Filename
	}
	return out
}

func linuxTags(t *testing.T) shadwell.Option {
	t.Helper()
	ts, err := tags.Supported("3.12", []string{"manylinux_2_17_x86_64", "manylinux2014_x86_64", "linux_x86_64"})
	if err != nil {
		t.Fatal(err)
	}
	return shadwell.WithTags(ts...)
}

func TestE2E_JSONAndSimpleAgree(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	// Released files of old versions do not change.
	for _, req := range []string{"six<=1.16.0", "attrs>=21,<22", "pyyaml==6.0"} {
		t.Run(req, func(t *testing.T) {
			viaJSON := findWith(t, jsonIndex, req, linuxTags(t))
			viaSimple := findWith(t, simpleIndex, req, linuxTags(t))

			if len(viaJSON) == 0 {
				t.Fatalf("no candidates for %s", req)
			}
			if diff := cmp.Diff(filenames(viaJSON), filenames(viaSimple)); diff != "" {
				t.Errorf("JSON and simple API rankings differ (-json +simple):\n%s", diff)
			}
		})
	}
}

func TestE2E_BinaryPolicies(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	onlyBinary := findWith(t, jsonIndex, "pyyaml==6.0", linuxTags(t),
		shadwell.WithBinaryPolicy(shadwell.UniformPolicy(shadwell.PolicyRequire)))
	if len(onlyBinary) == 0 {
		t.Fatal("expected manylinux wheels for pyyaml 6.0")
	}
	for _, c := range onlyBinary {
		if !c.IsBinary() {
			t.Errorf("source artifact %s admitted under require", c.Filename)
		}
		if strings.Contains(c.Filename, "win") || strings.Contains(c.Filename, "macosx") {
			t.Errorf("incompatible wheel %s selected", c.Filename)
		}
	}

	noBinary := findWith(t, jsonIndex, "pyyaml==6.0", linuxTags(t),
		shadwell.WithBinaryPolicy(shadwell.UniformPolicy(shadwell.PolicyProhibit)))
	if diff := cmp.Diff([]string{"PyYAML-6.0.tar.gz"}, filenames(noBinary)); diff != "" {
		t.Errorf("prohibit result (-want +got):\n%s", diff)
	}
}

func TestE2E_UnknownProject(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	for _, index := range []string{jsonIndex, simpleIndex} {
		got := findWith(t, index, "this-project-does-not-exist-shadwell-e2e")
		if len(got) != 0 {
			t.Errorf("%s: expected no candidates, got %v", index, filenames(got))
		}
	}
}

func TestE2E_RegistryClient(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	client := registry.NewClient(simpleIndex, registry.WithTimeout(30*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	page, err := client.GetSimpleProject(ctx, "six")
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			t.Skipf("index unreachable: %v", err)
		}
		t.Fatalf("GetSimpleProject: %v", err)
	}
	if page.Meta.APIMajor() != registry.SupportedSimpleMajor {
		t.Errorf("api-version = %s", page.Meta.APIVersion)
	}
	if len(page.Distributions()) == 0 {
		t.Error("expected files for six")
	}
}
