package manifest

import (
	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

// DependencyKind classifies a DepSpec by which fetcher should handle it.
type DependencyKind int

// Recognised dependency kinds, in classification priority order: a
// DepSpec with Path set is always a Path dependency even if Git or
// Version are also (erroneously) set.
const (
	KindPath DependencyKind = iota
	KindGit
	KindRegistry
)

// String renders the kind name, used in error messages and lock sources.
func (k DependencyKind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindGit:
		return "git"
	case KindRegistry:
		return "registry"
	default:
		return "unknown"
	}
}

// GitRefKind distinguishes which of tag/branch/commit a GitRef carries.
type GitRefKind int

// Recognised git reference kinds.
const (
	GitRefBranch GitRefKind = iota
	GitRefTag
	GitRefCommit
)

// GitRef is a tagged Tag|Branch|Commit reference, defaulting to branch
// "main" when a DepSpec names no ref at all.
type GitRef struct {
	Kind  GitRefKind
	Value string
}

// DefaultGitRef is used when a Git DepSpec sets none of tag/branch/commit.
func DefaultGitRef() GitRef { return GitRef{Kind: GitRefBranch, Value: "main"} }

// DepSpec is a tagged record: exactly one of Path, Git, Version
// determines its DependencyKind. Optional DepSpecs are skipped entirely
// by the resolver regardless of which kind they would otherwise be.
type DepSpec struct {
	Path     string `toml:"path"`
	Git      string `toml:"git"`
	Tag      string `toml:"tag"`
	Branch   string `toml:"branch"`
	Commit   string `toml:"commit"`
	Version  string `toml:"version"`
	Registry string `toml:"registry"`
	Optional bool   `toml:"optional"`
}

// UnmarshalTOML allows a DepSpec to be written either as an inline table
// (foo = { version = "1.2.0" }) or as a bare version string shorthand
// (foo = "1.2.0").
func (d *DepSpec) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		d.Version = v
		return nil
	case map[string]interface{}:
		if s, ok := v["path"].(string); ok {
			d.Path = s
		}
		if s, ok := v["git"].(string); ok {
			d.Git = s
		}
		if s, ok := v["tag"].(string); ok {
			d.Tag = s
		}
		if s, ok := v["branch"].(string); ok {
			d.Branch = s
		}
		if s, ok := v["commit"].(string); ok {
			d.Commit = s
		}
		if s, ok := v["version"].(string); ok {
			d.Version = s
		}
		if s, ok := v["registry"].(string); ok {
			d.Registry = s
		}
		if b, ok := v["optional"].(bool); ok {
			d.Optional = b
		}
		return nil
	default:
		return kcerrors.New(kcerrors.ErrCodeInvalidDepSpec, "unsupported dependency table shape")
	}
}

// Kind classifies the DepSpec, in order path -> Path, git -> Git,
// version -> Registry: the first of the three that is set decides. A
// DepSpec with none of the three set is an error.
func (d DepSpec) Kind() (DependencyKind, error) {
	switch {
	case d.Path != "":
		return KindPath, nil
	case d.Git != "":
		return KindGit, nil
	case d.Version != "":
		return KindRegistry, nil
	default:
		return 0, kcerrors.New(kcerrors.ErrCodeInvalidDepSpec, "dependency spec must set one of path, git, version")
	}
}

// GitReference resolves the tag/branch/commit triple into a single
// GitRef, defaulting to branch "main" when none are set. Only valid to
// call when Kind() == KindGit; at most one of Tag/Branch/Commit should be
// set by a well-formed manifest, but if more than one is present this
// picks tag, then branch, then commit, in that priority order.
func (d DepSpec) GitReference() GitRef {
	switch {
	case d.Tag != "":
		return GitRef{Kind: GitRefTag, Value: d.Tag}
	case d.Branch != "":
		return GitRef{Kind: GitRefBranch, Value: d.Branch}
	case d.Commit != "":
		return GitRef{Kind: GitRefCommit, Value: d.Commit}
	default:
		return DefaultGitRef()
	}
}
