package shadwell

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pfmoore/shadwell/candidate"
	"github.com/pfmoore/shadwell/tags"
)

var projFiles = []string{
	"proj-0.1.tar.gz",
	"proj-0.2.tar.gz",
	"proj-0.3.tar.gz",
	"proj-0.2-py3-none-any.whl",
	"proj-0.1-py2.py3-none-any.whl",
}

func mustStatic(t *testing.T, filenames ...string) StaticSource {
	t.Helper()
	src, err := StaticFiles(filenames...)
	if err != nil {
		t.Fatalf("StaticFiles: %v", err)
	}
	return src
}

func mustFinder(t *testing.T, opts ...Option) *Finder {
	t.Helper()
	f, err := NewFinder(opts...)
	if err != nil {
		t.Fatalf("NewFinder: %v", err)
	}
	return f
}

func filenames(cs []candidate.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Filename
	}
	return out
}

func py3Tags(t *testing.T) Option {
	t.Helper()
	ts, err := tags.ParseList([]string{"py3-none-any"})
	if err != nil {
		t.Fatal(err)
	}
	return WithTags(ts...)
}

func TestFind_ProjScenario(t *testing.T) {
	tests := []struct {
		name   string
		policy PolicyFunc
		req    string
		want   []string
	}{
		{
			name:   "allow",
			policy: AllowAll,
			req:    "proj",
			want: []string{
				"proj-0.3.tar.gz",
				"proj-0.2-py3-none-any.whl",
				"proj-0.2.tar.gz",
				"proj-0.1-py2.py3-none-any.whl",
				"proj-0.1.tar.gz",
			},
		},
		{
			name:   "prefer binary",
			policy: UniformPolicy(PolicyPrefer),
			req:    "proj",
			want: []string{
				"proj-0.2-py3-none-any.whl",
				"proj-0.1-py2.py3-none-any.whl",
				"proj-0.3.tar.gz",
				"proj-0.2.tar.gz",
				"proj-0.1.tar.gz",
			},
		},
		{
			name:   "require binary",
			policy: UniformPolicy(PolicyRequire),
			req:    "proj",
			want: []string{
				"proj-0.2-py3-none-any.whl",
				"proj-0.1-py2.py3-none-any.whl",
			},
		},
		{
			name:   "prohibit binary",
			policy: UniformPolicy(PolicyProhibit),
			req:    "proj",
			want: []string{
				"proj-0.3.tar.gz",
				"proj-0.2.tar.gz",
				"proj-0.1.tar.gz",
			},
		},
		{
			name:   "lower bound",
			policy: AllowAll,
			req:    "proj>=0.2",
			want: []string{
				"proj-0.3.tar.gz",
				"proj-0.2-py3-none-any.whl",
				"proj-0.2.tar.gz",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustFinder(t,
				py3Tags(t),
				WithBinaryPolicy(tt.policy),
				WithSources(mustStatic(t, projFiles...)),
			)
			got, err := f.Find(context.Background(), MustParseRequirement(tt.req))
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if diff := cmp.Diff(tt.want, filenames(got)); diff != "" {
				t.Errorf("Find order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFind_RegistrationOrderDeterminism(t *testing.T) {
	// Distinct sort keys, so every permutation must produce one order.
	files := []string{
		"proj-1.0.tar.gz",
		"proj-1.0-cp312-cp312-manylinux_2_17_x86_64.whl",
		"proj-1.0-py3-none-any.whl",
		"proj-0.9-py3-none-any.whl",
		"proj-1.1.zip",
	}
	ts, err := tags.Supported("3.12", []string{"manylinux_2_17_x86_64"})
	if err != nil {
		t.Fatal(err)
	}

	var want []string
	permute(files, func(order []string) {
		// One source per file, registered in this order.
		var srcs []Source
		for _, fn := range order {
			srcs = append(srcs, mustStatic(t, fn))
		}
		f := mustFinder(t, WithTags(ts...), WithSources(srcs...))
		got, err := f.Find(context.Background(), MustParseRequirement("proj"))
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		names := filenames(got)
		if want == nil {
			want = names
			return
		}
		if diff := cmp.Diff(want, names); diff != "" {
			t.Errorf("registration order %v changed the result (-first +got):\n%s", order, diff)
		}
	})

	wantOrder := []string{
		"proj-1.1.zip",
		"proj-1.0-cp312-cp312-manylinux_2_17_x86_64.whl",
		"proj-1.0-py3-none-any.whl",
		"proj-1.0.tar.gz",
		"proj-0.9-py3-none-any.whl",
	}
	if diff := cmp.Diff(wantOrder, want); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func permute(items []string, visit func([]string)) {
	var rec func(int)
	a := append([]string(nil), items...)
	rec = func(k int) {
		if k == len(a) {
			visit(append([]string(nil), a...))
			return
		}
		for i := k; i < len(a); i++ {
			a[k], a[i] = a[i], a[k]
			rec(k + 1)
			a[k], a[i] = a[i], a[k]
		}
	}
	rec(0)
}

func TestFind_StableTieBreak(t *testing.T) {
	// Same version, kind and rank: registration order decides.
	a := mustStatic(t, "proj-1.0-1-py3-none-any.whl")
	b := mustStatic(t, "proj-1.0-2-py3-none-any.whl")

	for _, order := range [][]Source{{a, b}, {b, a}} {
		f := mustFinder(t, py3Tags(t), WithSources(order...))
		got, err := f.Find(context.Background(), MustParseRequirement("proj"))
		if err != nil {
			t.Fatal(err)
		}
		first, _ := order[0].Candidates(context.Background(), "proj")
		if got[0].Filename != first[0].Filename {
			t.Errorf("tie broken out of registration order: got %v", filenames(got))
		}
	}
}

func TestFind_IncompatibleBinaryNeverSelected(t *testing.T) {
	for _, p := range []BinaryPolicy{PolicyAllow, PolicyPrefer, PolicyRequire} {
		t.Run(p.String(), func(t *testing.T) {
			f := mustFinder(t,
				py3Tags(t),
				WithBinaryPolicy(UniformPolicy(p)),
				WithSources(mustStatic(t, "proj-2.0-cp39-cp39-win_amd64.whl", "proj-1.0-py3-none-any.whl")),
			)
			got, err := f.Find(context.Background(), MustParseRequirement("proj"))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{"proj-1.0-py3-none-any.whl"}, filenames(got)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestFind_EmptyTagListRejectsAllWheels(t *testing.T) {
	f := mustFinder(t, WithTags(), WithSources(mustStatic(t, projFiles...)))
	got, err := f.Find(context.Background(), MustParseRequirement("proj"))
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range got {
		if c.IsBinary() {
			t.Errorf("wheel %s selected with an empty tag list", c.Filename)
		}
	}
}

func TestFind_PerProjectPolicy(t *testing.T) {
	policy := PolicyMap(PolicyAllow, map[string]BinaryPolicy{"Proj": PolicyRequire})
	if policy("proj") != PolicyRequire || policy("other") != PolicyAllow {
		t.Fatal("PolicyMap lookup not normalized")
	}

	f := mustFinder(t, py3Tags(t), WithBinaryPolicy(policy), WithSources(mustStatic(t, projFiles...)))
	got, err := f.Find(context.Background(), MustParseRequirement("proj"))
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range got {
		if !c.IsBinary() {
			t.Errorf("source %s selected under require", c.Filename)
		}
	}
}

func yanked(t *testing.T, filename string) candidate.Candidate {
	t.Helper()
	c, err := candidate.ParseFilename(filename)
	if err != nil {
		t.Fatal(err)
	}
	c.Yanked = true
	c.YankReason = "broken"
	return c
}

func TestFind_YankPass(t *testing.T) {
	plain := func(fn string) candidate.Candidate {
		c, err := candidate.ParseFilename(fn)
		if err != nil {
			t.Fatal(err)
		}
		return c
	}

	tests := []struct {
		name        string
		pool        StaticSource
		allowYanked bool
		want        []string
	}{
		{
			name:        "non-yanked survivor hides yanked even when allowed",
			pool:        StaticSource{yanked(t, "proj-2.0.tar.gz"), plain("proj-1.0.tar.gz")},
			allowYanked: true,
			want:        []string{"proj-1.0.tar.gz"},
		},
		{
			name: "non-yanked survivor hides yanked",
			pool: StaticSource{yanked(t, "proj-2.0.tar.gz"), plain("proj-1.0.tar.gz")},
			want: []string{"proj-1.0.tar.gz"},
		},
		{
			name:        "all yanked and allowed keeps order",
			pool:        StaticSource{yanked(t, "proj-1.0.tar.gz"), yanked(t, "proj-2.0.tar.gz")},
			allowYanked: true,
			want:        []string{"proj-2.0.tar.gz", "proj-1.0.tar.gz"},
		},
		{
			name: "all yanked and not allowed is empty",
			pool: StaticSource{yanked(t, "proj-1.0.tar.gz"), yanked(t, "proj-2.0.tar.gz")},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustFinder(t, py3Tags(t), WithAllowYanked(tt.allowYanked), WithSources(tt.pool))
			got, err := f.Find(context.Background(), MustParseRequirement("proj"))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, filenames(got)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestFind_PrereleaseInvariant(t *testing.T) {
	src := mustStatic(t, "proj-1.0.tar.gz", "proj-2.0b1.tar.gz", "proj-2.0rc1-py3-none-any.whl")

	f := mustFinder(t, py3Tags(t), WithSources(src))
	// The only versions >=2.0b1 are pre-releases: still nothing is returned.
	got, err := f.Find(context.Background(), MustParseRequirement("proj>=2.0b1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("pre-releases selected without WithAllowPrerelease: %v", filenames(got))
	}

	f = mustFinder(t, py3Tags(t), WithAllowPrerelease(true), WithSources(src))
	got, err = f.Find(context.Background(), MustParseRequirement("proj"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"proj-2.0rc1-py3-none-any.whl", "proj-2.0b1.tar.gz", "proj-1.0.tar.gz"}
	if diff := cmp.Diff(want, filenames(got)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestFind_RequiresPython(t *testing.T) {
	old, err := candidate.ParseFilename("proj-2.0.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	old.RequiresPython = candidate.MustParseSpecifier(">=3.13")
	ok := mustStatic(t, "proj-1.0.tar.gz")[0]

	f := mustFinder(t, WithPythonVersion("3.12"), WithSources(StaticSource{old, ok}))
	got, err := f.Find(context.Background(), MustParseRequirement("proj"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"proj-1.0.tar.gz"}, filenames(got)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestFind_NameMismatchExcluded(t *testing.T) {
	f := mustFinder(t, py3Tags(t), WithSources(mustStatic(t, "proj-1.0.tar.gz", "other-2.0.tar.gz", "Proj_-1.5-py3-none-any.whl")))
	got, err := f.Find(context.Background(), MustParseRequirement("PROJ"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"proj-1.0.tar.gz"}, filenames(got)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestFind_NoSources(t *testing.T) {
	f := mustFinder(t)
	got, err := f.Find(context.Background(), MustParseRequirement("proj"))
	if err != nil || len(got) != 0 {
		t.Errorf("Find with no sources = %v, %v; want empty, nil", got, err)
	}
	if _, ok, err := f.Best(context.Background(), MustParseRequirement("proj")); ok || err != nil {
		t.Errorf("Best with no sources = %v, %v; want false, nil", ok, err)
	}
}

func TestBest(t *testing.T) {
	f := mustFinder(t, py3Tags(t), WithSources(mustStatic(t, projFiles...)))
	best, ok, err := f.Best(context.Background(), MustParseRequirement("proj<0.3"))
	if err != nil || !ok {
		t.Fatalf("Best = %v, %v", ok, err)
	}
	if best.Filename != "proj-0.2-py3-none-any.whl" {
		t.Errorf("Best = %s", best.Filename)
	}
}

func TestFind_SourceError(t *testing.T) {
	boom := errors.New("boom")
	failing := SourceFunc(func(context.Context, string) ([]candidate.Candidate, error) {
		return nil, boom
	})

	f := mustFinder(t, WithSources(mustStatic(t, "proj-1.0.tar.gz"), failing))
	_, err := f.Find(context.Background(), MustParseRequirement("proj"))
	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected *SourceError, got %v", err)
	}
	if srcErr.Source != "source[1]" || !errors.Is(err, boom) {
		t.Errorf("SourceError = %+v", srcErr)
	}
}

func TestFind_FailOpen(t *testing.T) {
	failing := SourceFunc(func(context.Context, string) ([]candidate.Candidate, error) {
		return nil, errors.New("unreachable")
	})

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	f := mustFinder(t,
		WithSources(failing, mustStatic(t, "proj-1.0.tar.gz")),
		WithFailOpenSources(true),
		WithLogger(logger),
	)
	got, err := f.Find(context.Background(), MustParseRequirement("proj"))
	if err != nil {
		t.Fatalf("fail-open Find: %v", err)
	}
	if diff := cmp.Diff([]string{"proj-1.0.tar.gz"}, filenames(got)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), "source failed") {
		t.Errorf("expected a warning, got logs:\n%s", logs.String())
	}
}

func TestFind_ConcurrentSourcesKeepOrder(t *testing.T) {
	var inFlight, peak int32
	slow := func(fn string, delay time.Duration) Source {
		c := mustStatic(t, fn)
		return SourceFunc(func(ctx context.Context, name string) ([]candidate.Candidate, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			defer atomic.AddInt32(&inFlight, -1)
			time.Sleep(delay)
			return c, nil
		})
	}

	// Same sort key for every candidate, so output order is registration order.
	f := mustFinder(t, py3Tags(t), WithConcurrentSources(3), WithSources(
		slow("proj-1.0-1-py3-none-any.whl", 60*time.Millisecond),
		slow("proj-1.0-2-py3-none-any.whl", 30*time.Millisecond),
		slow("proj-1.0-3-py3-none-any.whl", 0),
	))
	got, err := f.Find(context.Background(), MustParseRequirement("proj"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"proj-1.0-1-py3-none-any.whl", "proj-1.0-2-py3-none-any.whl", "proj-1.0-3-py3-none-any.whl"}
	if diff := cmp.Diff(want, filenames(got)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if atomic.LoadInt32(&peak) < 2 {
		t.Errorf("sources did not overlap, peak concurrency %d", peak)
	}
}

func TestFind_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := mustFinder(t, WithSources(mustStatic(t, "proj-1.0.tar.gz")))
	if _, err := f.Find(ctx, MustParseRequirement("proj")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEvaluate_Reasons(t *testing.T) {
	pool := StaticSource{
		mustStatic(t, "proj-0.3.tar.gz")[0],
		mustStatic(t, "other-1.0.tar.gz")[0],
		mustStatic(t, "proj-0.1.tar.gz")[0],
		mustStatic(t, "proj-0.4b1.tar.gz")[0],
		mustStatic(t, "proj-0.2-cp27-cp27m-win32.whl")[0],
		yanked(t, "proj-0.2.tar.gz"),
	}

	f := mustFinder(t, py3Tags(t))
	evals := f.Evaluate(MustParseRequirement("proj>=0.2"), pool)

	got := make([]string, len(evals))
	for i, e := range evals {
		got[i] = string(e.Reason)
		if e.Accepted() != (e.Position >= 0) {
			t.Errorf("%s: Accepted() and Position disagree", e.Candidate.Filename)
		}
	}
	want := []string{"", "name-mismatch", "specifier", "prerelease", "incompatible-tags", "yanked"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reasons (-want +got):\n%s", diff)
	}

	f = mustFinder(t, py3Tags(t), WithBinaryPolicy(UniformPolicy(PolicyRequire)))
	if r := f.Evaluate(MustParseRequirement("proj"), pool[:1])[0].Reason; r != RejectBinaryRequired {
		t.Errorf("sdist under require: reason %q", r)
	}
	f = mustFinder(t, py3Tags(t), WithBinaryPolicy(UniformPolicy(PolicyProhibit)))
	wheel := mustStatic(t, "proj-1.0-py3-none-any.whl")
	if r := f.Evaluate(MustParseRequirement("proj"), wheel)[0].Reason; r != RejectBinaryProhibited {
		t.Errorf("wheel under prohibit: reason %q", r)
	}
	if r := f.Evaluate(MustParseRequirement("proj"), []candidate.Candidate{{Name: "proj"}})[0].Reason; r != RejectMalformed {
		t.Errorf("artifact-less candidate: reason %q", r)
	}
}

func TestFind_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	f := mustFinder(t,
		py3Tags(t),
		WithMetrics(m),
		WithBinaryPolicy(UniformPolicy(PolicyRequire)),
		WithSources(mustStatic(t, projFiles...)),
	)
	if _, err := f.Find(context.Background(), MustParseRequirement("proj")); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.Considered); got != 5 {
		t.Errorf("considered = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.Selected); got != 2 {
		t.Errorf("selected = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Rejected.WithLabelValues(string(RejectBinaryRequired))); got != 3 {
		t.Errorf("rejected{binary-required} = %v, want 3", got)
	}
}

func TestNewFinder_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"negative jobs", []Option{WithConcurrentSources(-1)}},
		{"bad python version", []Option{WithPythonVersion("three")}},
		{"nil source", []Option{WithSources(nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFinder(tt.opts...); !errors.Is(err, ErrInvalidOption) {
				t.Errorf("expected ErrInvalidOption, got %v", err)
			}
		})
	}
}

func TestNewFinder_Defaults(t *testing.T) {
	f := mustFinder(t)
	if f.PythonVersion() != DefaultPythonVersion {
		t.Errorf("PythonVersion() = %q", f.PythonVersion())
	}
	ts := f.Tags()
	if len(ts) == 0 {
		t.Fatal("default tag list is empty")
	}
	if last := ts[len(ts)-1]; last.String() != "py30-none-any" {
		t.Errorf("last default tag = %s, want py30-none-any", last)
	}
	ts[0] = tags.Tag{}
	if f.Tags()[0] == (tags.Tag{}) {
		t.Error("Tags() exposes internal state")
	}
}
