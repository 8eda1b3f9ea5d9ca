package shadwell

import (
	"cmp"
	"context"
	"slices"

	pep440 "github.com/aquasecurity/go-pep440-version"
	"golang.org/x/sync/errgroup"

	"github.com/pfmoore/shadwell/candidate"
	"github.com/pfmoore/shadwell/tags"
)

// Finder selects and ranks the candidates of one project at a time.
// It is immutable once built and safe for concurrent use.
type Finder struct {
	cfg *finderConfig
}

// NewFinder builds a Finder. Defaults that depend on the environment (the
// supported tag list, the target Python version) are resolved here, once.
func NewFinder(opts ...Option) (*Finder, error) {
	cfg, err := newFinderConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Finder{cfg: cfg}, nil
}

// Tags returns a copy of the supported tag list, most preferred first.
func (f *Finder) Tags() []tags.Tag {
	return slices.Clone(f.cfg.tags)
}

// PythonVersion returns the target interpreter version.
func (f *Finder) PythonVersion() string {
	return f.cfg.pythonVersion
}

// Find collects candidates for req from every source and ranks them, best
// first. An empty result is not an error.
func (f *Finder) Find(ctx context.Context, req Requirement) ([]candidate.Candidate, error) {
	pool, err := f.collect(ctx, candidate.NormalizeName(req.Name))
	if err != nil {
		return nil, err
	}
	result := f.Rank(req, pool)
	f.cfg.log().Info("find complete",
		"requirement", req.String(),
		"considered", len(pool),
		"selected", len(result))
	return result, nil
}

// Best returns the top candidate for req. ok is false when nothing is
// eligible.
func (f *Finder) Best(ctx context.Context, req Requirement) (best candidate.Candidate, ok bool, err error) {
	result, err := f.Find(ctx, req)
	if err != nil || len(result) == 0 {
		return candidate.Candidate{}, false, err
	}
	return result[0], true, nil
}

// Explain collects candidates like Find and returns a verdict for each of
// them, in collection order.
func (f *Finder) Explain(ctx context.Context, req Requirement) ([]Evaluation, error) {
	pool, err := f.collect(ctx, candidate.NormalizeName(req.Name))
	if err != nil {
		return nil, err
	}
	return f.Evaluate(req, pool), nil
}

// Rank filters and orders an already collected pool. It performs no I/O.
func (f *Finder) Rank(req Requirement, pool []candidate.Candidate) []candidate.Candidate {
	ranked, _ := f.evaluate(req, pool)
	out := make([]candidate.Candidate, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, pool[s.idx])
	}
	return out
}

// Evaluate is Rank with the reasoning kept: one Evaluation per pool entry,
// in pool order.
func (f *Finder) Evaluate(req Requirement, pool []candidate.Candidate) []Evaluation {
	ranked, reasons := f.evaluate(req, pool)
	evals := make([]Evaluation, len(pool))
	for i, c := range pool {
		evals[i] = Evaluation{Candidate: c, Reason: reasons[i], Position: -1}
	}
	for pos, s := range ranked {
		evals[s.idx].Position = pos
		evals[s.idx].Rank = s.key.rank
	}
	return evals
}

// sortKey orders eligible candidates. Larger is better.
type sortKey struct {
	precedence int
	version    pep440.Version
	rank       int
}

func (k sortKey) compare(o sortKey) int {
	if c := cmp.Compare(k.precedence, o.precedence); c != 0 {
		return c
	}
	if c := k.version.Compare(o.version); c != 0 {
		return c
	}
	return cmp.Compare(k.rank, o.rank)
}

type scored struct {
	idx int
	key sortKey
}

// evaluate runs the pipeline over pool. It returns the survivors in final
// order and a per-entry rejection reason ("" for survivors).
func (f *Finder) evaluate(req Requirement, pool []candidate.Candidate) ([]scored, []RejectReason) {
	log := f.cfg.log()
	name := candidate.NormalizeName(req.Name)
	policy := f.cfg.policy(name)
	reasons := make([]RejectReason, len(pool))

	f.cfg.metrics.considered(len(pool))

	var ranked []scored
	for i, c := range pool {
		key, reason := f.check(name, req.Specifier, policy, c)
		if reason != "" {
			reasons[i] = reason
			f.cfg.metrics.rejected(reason)
			log.Debug("rejected candidate", "name", name, "filename", c.String(), "reason", string(reason))
			continue
		}
		ranked = append(ranked, scored{idx: i, key: key})
	}

	slices.SortStableFunc(ranked, func(a, b scored) int {
		return b.key.compare(a.key)
	})

	ranked = f.dropYanked(ranked, pool, reasons)
	f.cfg.metrics.selected(len(ranked))
	return ranked, reasons
}

// check applies the eligibility steps in order; the first failure wins.
func (f *Finder) check(name string, spec candidate.Specifier, policy BinaryPolicy, c candidate.Candidate) (sortKey, RejectReason) {
	if candidate.NormalizeName(c.Name) != name {
		return sortKey{}, RejectNameMismatch
	}
	if c.Artifact == nil {
		return sortKey{}, RejectMalformed
	}
	if !spec.Contains(c.Version) {
		return sortKey{}, RejectSpecifier
	}
	if c.Version.IsPreRelease() && !f.cfg.allowPrerelease {
		return sortKey{}, RejectPrerelease
	}
	if !c.RequiresPython.Contains(f.cfg.python) {
		return sortKey{}, RejectRequiresPython
	}

	precedence, ok := admit(policy, c.Kind())
	if !ok {
		if c.IsBinary() {
			return sortKey{}, RejectBinaryProhibited
		}
		return sortKey{}, RejectBinaryRequired
	}

	rank := 0
	if w, isWheel := c.Wheel(); isWheel {
		rank = tags.Rank(w.Tags, f.cfg.tags)
		if rank == tags.Incompatible {
			return sortKey{}, RejectIncompatibleTags
		}
	}

	return sortKey{precedence: precedence, version: c.Version, rank: rank}, ""
}

// dropYanked removes yanked survivors, unless yanked candidates are allowed
// and nothing else survived.
func (f *Finder) dropYanked(ranked []scored, pool []candidate.Candidate, reasons []RejectReason) []scored {
	allYanked := true
	for _, s := range ranked {
		if !pool[s.idx].Yanked {
			allYanked = false
			break
		}
	}
	if allYanked && f.cfg.allowYanked {
		return ranked
	}

	kept := ranked[:0]
	for _, s := range ranked {
		c := pool[s.idx]
		if c.Yanked {
			reasons[s.idx] = RejectYanked
			f.cfg.metrics.rejected(RejectYanked)
			f.cfg.log().Debug("dropped yanked candidate", "filename", c.String(), "reason", c.YankReason)
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// collect queries every source for name and concatenates their results in
// registration order, whatever order they complete in.
func (f *Finder) collect(ctx context.Context, name string) ([]candidate.Candidate, error) {
	srcs := f.cfg.sources
	results := make([][]candidate.Candidate, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(f.cfg.jobs, 1))

	for i, src := range srcs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cs, err := src.Candidates(gctx, name)
			if err != nil {
				desc := describeSource(src, i)
				f.cfg.metrics.sourceError(desc)
				if f.cfg.failOpen {
					f.cfg.log().Warn("source failed, treating as empty", "source", desc, "error", err)
					return nil
				}
				return &SourceError{Source: desc, Err: err}
			}
			results[i] = cs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pool []candidate.Candidate
	for _, cs := range results {
		pool = append(pool, cs...)
	}
	return pool, nil
}
