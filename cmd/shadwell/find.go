package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/pfmoore/shadwell"
	"github.com/pfmoore/shadwell/candidate"
	"github.com/pfmoore/shadwell/internal/report"
	"github.com/pfmoore/shadwell/registry"
)

// DefaultIndex is used when neither flags nor config name a source.
const DefaultIndex = "https://pypi.org/pypi"

func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "index", Aliases: []string{"i"}, Usage: "package index `URL` (JSON API, or PEP 691 when it ends in /simple)"},
		&cli.StringSliceFlag{Name: "find-links", Aliases: []string{"f"}, Usage: "local `DIR` or file:// URL holding artifacts"},
		&cli.BoolFlag{Name: "no-index", Usage: "do not fall back to " + DefaultIndex},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config `FILE` (FINDER.star, pyproject.toml or *.toml)"},
		&cli.StringFlag{Name: "python-version", Usage: "target interpreter `X.Y`", Value: shadwell.DefaultPythonVersion},
		&cli.StringSliceFlag{Name: "tag", Usage: "supported compatibility `TAG`, most preferred first (replaces the default list)"},
		&cli.BoolFlag{Name: "pre", Usage: "admit pre-release versions"},
		&cli.BoolFlag{Name: "allow-yanked", Usage: "keep yanked artifacts when nothing else is eligible"},
		&cli.StringSliceFlag{Name: "only-binary", Usage: "require wheels for `PROJECT` (:all: for every project)"},
		&cli.StringSliceFlag{Name: "no-binary", Usage: "prohibit wheels for `PROJECT` (:all: for every project)"},
		&cli.StringSliceFlag{Name: "prefer-binary", Usage: "rank wheels above sdists for `PROJECT` (:all: for every project)"},
		&cli.StringFlag{Name: "format", Usage: "output `FORMAT`: text, json or yaml", Value: "text"},
		&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "query up to `N` sources at once", Value: 4},
		&cli.BoolFlag{Name: "fail-open", Usage: "treat failing sources as empty"},
		&cli.DurationFlag{Name: "timeout", Usage: "per-request `DURATION` for index sources", Value: registry.DefaultRequestTimeout},
		&cli.BoolFlag{Name: "stats", Usage: "print selection counters to stderr"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log rejections and source activity to stderr"},
	}
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "list every eligible artifact, best first",
		ArgsUsage: "REQUIREMENT",
		Flags: append(selectionFlags(),
			&cli.BoolFlag{Name: "explain", Usage: "also list rejected artifacts and why"},
		),
		Action: runFind,
	}
}

func bestCommand() *cli.Command {
	return &cli.Command{
		Name:      "best",
		Usage:     "print the single best artifact",
		ArgsUsage: "REQUIREMENT",
		Flags:     selectionFlags(),
		Action:    runBest,
	}
}

func runFind(c *cli.Context) error {
	req, format, err := requirementArgs(c)
	if err != nil {
		return err
	}
	sess, err := newSession(c)
	if err != nil {
		return err
	}
	defer sess.printStats(c.App.ErrWriter)

	// Evaluations carry the compatibility rank of each ranked entry.
	evals, err := sess.finder.Explain(c.Context, req)
	if err != nil {
		return err
	}
	rep := report.FromEvaluations(req.String(), sess.finder.PythonVersion(), evals)
	if !c.Bool("explain") {
		rep.Rejected = nil
	}
	return rep.Write(c.App.Writer, format)
}

func runBest(c *cli.Context) error {
	req, format, err := requirementArgs(c)
	if err != nil {
		return err
	}
	sess, err := newSession(c)
	if err != nil {
		return err
	}
	defer sess.printStats(c.App.ErrWriter)

	best, ok, err := sess.finder.Best(c.Context, req)
	if err != nil {
		return err
	}
	if !ok {
		return cli.Exit(fmt.Sprintf("no eligible artifact for %s", req), 1)
	}
	if format == report.FormatText {
		_, err := fmt.Fprintln(c.App.Writer, best.String())
		return err
	}
	return report.FromCandidates(req.String(), sess.finder.PythonVersion(), []candidate.Candidate{best}).Write(c.App.Writer, format)
}

func requirementArgs(c *cli.Context) (shadwell.Requirement, report.Format, error) {
	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return shadwell.Requirement{}, "", err
	}
	if c.NArg() != 1 {
		return shadwell.Requirement{}, "", fmt.Errorf("%s needs exactly one REQUIREMENT", c.Command.Name)
	}
	req, err := shadwell.ParseRequirement(c.Args().First())
	if err != nil {
		return shadwell.Requirement{}, "", err
	}
	return req, format, nil
}

// session is the Finder plus the pieces the CLI reports on afterwards.
type session struct {
	finder   *shadwell.Finder
	registry *prometheus.Registry
	stats    bool
}

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config and lays the command line flags over it.
func loadConfig(c *cli.Context) (*shadwell.Config, error) {
	cfg := &shadwell.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := shadwell.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("python-version") || cfg.PythonVersion == "" {
		cfg.PythonVersion = c.String("python-version")
	}
	if c.IsSet("tag") {
		cfg.Tags = c.StringSlice("tag")
	}
	if c.IsSet("pre") {
		cfg.AllowPrerelease = c.Bool("pre")
	}
	if c.IsSet("allow-yanked") {
		cfg.AllowYanked = c.Bool("allow-yanked")
	}
	if c.IsSet("jobs") || cfg.Jobs == 0 {
		cfg.Jobs = c.Int("jobs")
	}
	if c.IsSet("fail-open") {
		cfg.FailOpen = c.Bool("fail-open")
	}
	cfg.Indexes = append(cfg.Indexes, c.StringSlice("index")...)
	cfg.FindLinks = append(cfg.FindLinks, c.StringSlice("find-links")...)
	cfg.Binary.OnlyBinary = append(cfg.Binary.OnlyBinary, splitProjects(c.StringSlice("only-binary"))...)
	cfg.Binary.NoBinary = append(cfg.Binary.NoBinary, splitProjects(c.StringSlice("no-binary"))...)
	cfg.Binary.PreferBinary = append(cfg.Binary.PreferBinary, splitProjects(c.StringSlice("prefer-binary"))...)

	if len(cfg.Indexes) == 0 && len(cfg.FindLinks) == 0 && !c.Bool("no-index") {
		cfg.Indexes = []string{DefaultIndex}
	}
	return cfg, nil
}

func newSession(c *cli.Context) (*session, error) {
	logger := newLogger(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	sources, err := shadwell.NewSources(cfg.SourceLocations(),
		shadwell.WithTimeout(c.Duration("timeout")),
		shadwell.WithUserAgent("shadwell/"+c.App.Version),
		shadwell.WithResponseCache(registry.NewMemoryCache()),
		shadwell.WithSourceLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	opts = append(opts,
		shadwell.WithSources(sources...),
		shadwell.WithLogger(logger),
		shadwell.WithMetrics(shadwell.NewMetrics(reg)),
	)

	finder, err := shadwell.NewFinder(opts...)
	if err != nil {
		return nil, err
	}
	return &session{finder: finder, registry: reg, stats: c.Bool("stats")}, nil
}

// printStats writes every non-zero counter as "name{labels} value".
func (s *session) printStats(w io.Writer) {
	if !s.stats {
		return
	}
	families, err := s.registry.Gather()
	if err != nil {
		fmt.Fprintln(w, "stats unavailable:", err)
		return
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, v))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// splitProjects accepts both repeated flags and pip's comma separated form.
func splitProjects(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
