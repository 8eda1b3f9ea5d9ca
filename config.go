package shadwell

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bazelbuild/buildtools/build"

	"github.com/pfmoore/shadwell/candidate"
	"github.com/pfmoore/shadwell/internal/buildutil"
	"github.com/pfmoore/shadwell/tags"
)

// AllProjects in a binary policy list applies the policy to every project,
// as pip's ":all:" does.
const AllProjects = ":all:"

// Config is the file form of Finder settings.
type Config struct {
	PythonVersion   string   `toml:"python-version"`
	Tags            []string `toml:"tags"`
	AllowPrerelease bool     `toml:"allow-prerelease"`
	AllowYanked     bool     `toml:"allow-yanked"`
	Jobs            int      `toml:"jobs"`
	FailOpen        bool     `toml:"fail-open"`
	Indexes         []string `toml:"index"`
	FindLinks       []string `toml:"find-links"`

	Binary BinaryConfig `toml:"binary"`
}

// BinaryConfig describes the binary policy. Lists name projects; later lists
// win when a project appears in several, in the order only-binary, no-binary,
// prefer-binary, then overrides.
type BinaryConfig struct {
	Default      BinaryPolicy            `toml:"default"`
	OnlyBinary   []string                `toml:"only-binary"`
	NoBinary     []string                `toml:"no-binary"`
	PreferBinary []string                `toml:"prefer-binary"`
	Overrides    map[string]BinaryPolicy `toml:"overrides"`
}

// Policy builds the PolicyFunc the config describes. Names are normalized
// before they are applied, so spellings of one project collide and the later
// list wins. Override keys that collide are applied in sorted order.
func (b BinaryConfig) Policy() PolicyFunc {
	def := b.Default
	overrides := make(map[string]BinaryPolicy)
	apply := func(names []string, p BinaryPolicy) {
		for _, n := range names {
			if n == AllProjects {
				def = p
				continue
			}
			overrides[candidate.NormalizeName(n)] = p
		}
	}
	apply(b.OnlyBinary, PolicyRequire)
	apply(b.NoBinary, PolicyProhibit)
	apply(b.PreferBinary, PolicyPrefer)
	for _, n := range slices.Sorted(maps.Keys(b.Overrides)) {
		overrides[candidate.NormalizeName(n)] = b.Overrides[n]
	}

	if len(overrides) == 0 {
		if def == PolicyAllow {
			return AllowAll
		}
		return UniformPolicy(def)
	}
	return PolicyMap(def, overrides)
}

// Options converts the config to Finder options. Sources are not included;
// see SourceLocations.
func (c *Config) Options() ([]Option, error) {
	var opts []Option
	if c.PythonVersion != "" {
		opts = append(opts, WithPythonVersion(c.PythonVersion))
	}
	if len(c.Tags) > 0 {
		ts, err := tags.ParseList(c.Tags)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		opts = append(opts, WithTags(ts...))
	}
	if c.Jobs < 0 {
		return nil, fmt.Errorf("%w: jobs must not be negative", ErrInvalidConfig)
	}
	opts = append(opts,
		WithAllowPrerelease(c.AllowPrerelease),
		WithAllowYanked(c.AllowYanked),
		WithConcurrentSources(c.Jobs),
		WithFailOpenSources(c.FailOpen),
		WithBinaryPolicy(c.Binary.Policy()),
	)
	return opts, nil
}

// SourceLocations returns index URLs followed by find-links locations.
func (c *Config) SourceLocations() []string {
	return slices.Concat(c.Indexes, c.FindLinks)
}

// LoadConfig reads a config file. The format follows the file name:
//
//	pyproject.toml   the [tool.shadwell] table
//	*.toml           top-level keys
//	*.star, *.bzl    Starlark calls (see ParseStarlarkConfig)
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	base := filepath.Base(path)
	switch {
	case base == "pyproject.toml":
		return ParsePyprojectConfig(data)
	case strings.HasSuffix(base, ".toml"):
		return ParseTOMLConfig(data)
	case strings.HasSuffix(base, ".star"), strings.HasSuffix(base, ".bzl"):
		return ParseStarlarkConfig(base, data)
	default:
		return nil, fmt.Errorf("%w: unrecognised config file %s", ErrInvalidConfig, base)
	}
}

// ParseTOMLConfig decodes a standalone TOML config. Unknown keys are errors.
func ParseTOMLConfig(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalidConfig, undecoded)
	}
	return &cfg, nil
}

// ParsePyprojectConfig decodes the [tool.shadwell] table of a pyproject.toml.
// A file without the table yields the zero Config. Other tables are ignored.
func ParsePyprojectConfig(data []byte) (*Config, error) {
	var doc struct {
		Tool struct {
			Shadwell Config `toml:"shadwell"`
		} `toml:"tool"`
	}
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, key := range md.Undecoded() {
		if len(key) >= 2 && key[0] == "tool" && key[1] == "shadwell" {
			return nil, fmt.Errorf("%w: unknown key %s", ErrInvalidConfig, key)
		}
	}
	return &doc.Tool.Shadwell, nil
}

// ParseStarlarkConfig reads a FINDER.star file. It is declarative: only
// top-level calls to the functions below are understood, and nothing is
// evaluated.
//
//	finder(
//	    python_version = "3.11",
//	    tags = ["cp311-cp311-manylinux_2_17_x86_64"],
//	    allow_prerelease = False,
//	    allow_yanked = False,
//	    jobs = 4,
//	    fail_open = True,
//	)
//	index("https://pypi.org/simple")
//	find_links(path = "./wheels")
//	binary_policy(
//	    default = "allow",
//	    only_binary = ["numpy"],
//	    no_binary = [],
//	    prefer_binary = [],
//	    overrides = {"proj": "prohibit"},
//	)
func ParseStarlarkConfig(filename string, data []byte) (*Config, error) {
	f, err := build.ParseBzl(filename, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := &Config{}
	for _, stmt := range f.Stmt {
		call, ok := stmt.(*build.CallExpr)
		if !ok {
			continue
		}
		switch fn := buildutil.FuncName(call); fn {
		case "finder":
			if !buildutil.IsNone(call, "python_version") {
				cfg.PythonVersion = buildutil.String(call, "python_version")
			}
			cfg.Tags = buildutil.StringList(call, "tags")
			cfg.AllowPrerelease = buildutil.Bool(call, "allow_prerelease")
			cfg.AllowYanked = buildutil.Bool(call, "allow_yanked")
			cfg.Jobs = buildutil.Int(call, "jobs")
			cfg.FailOpen = buildutil.Bool(call, "fail_open")
		case "index", "find_links":
			loc := buildutil.String(call, "")
			if loc == "" {
				loc = buildutil.String(call, "url")
			}
			if loc == "" {
				loc = buildutil.String(call, "path")
			}
			if loc == "" {
				start, _ := call.Span()
				return nil, fmt.Errorf("%w: %s:%d: %s() needs a location", ErrInvalidConfig, filename, start.Line, fn)
			}
			if fn == "index" {
				cfg.Indexes = append(cfg.Indexes, loc)
			} else {
				cfg.FindLinks = append(cfg.FindLinks, loc)
			}
		case "binary_policy":
			if err := parseStarlarkPolicy(call, &cfg.Binary); err != nil {
				start, _ := call.Span()
				return nil, fmt.Errorf("%w: %s:%d: %w", ErrInvalidConfig, filename, start.Line, err)
			}
		default:
			start, _ := call.Span()
			return nil, fmt.Errorf("%w: %s:%d: unknown function %q", ErrInvalidConfig, filename, start.Line, fn)
		}
	}
	return cfg, nil
}

func parseStarlarkPolicy(call *build.CallExpr, b *BinaryConfig) error {
	if buildutil.Has(call, "default") {
		p, err := ParseBinaryPolicy(buildutil.String(call, "default"))
		if err != nil {
			return err
		}
		b.Default = p
	}
	b.OnlyBinary = buildutil.StringList(call, "only_binary")
	b.NoBinary = buildutil.StringList(call, "no_binary")
	b.PreferBinary = buildutil.StringList(call, "prefer_binary")

	if raw := buildutil.StringDict(call, "overrides"); raw != nil {
		b.Overrides = make(map[string]BinaryPolicy, len(raw))
		for name, value := range raw {
			p, err := ParseBinaryPolicy(value)
			if err != nil {
				return fmt.Errorf("override for %s: %w", name, err)
			}
			b.Overrides[name] = p
		}
	}
	return nil
}
