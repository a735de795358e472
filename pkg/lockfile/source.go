// Package lockfile parses, validates and generates kcjpm.lock, the
// resolver's record of exactly which version of every dependency (direct
// and transitive) was selected, and where it came from.
package lockfile

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

// SourceKind identifies which fetcher produced a locked package.
type SourceKind string

// Recognised source kinds, matching the dependency kinds a manifest can
// declare (manifest.DependencyKind), plus their on-disk string forms.
const (
	SourceRegistry SourceKind = "registry"
	SourcePath     SourceKind = "path"
	SourceGit      SourceKind = "git"
)

// GitRefKind mirrors manifest.GitRefKind without importing pkg/manifest,
// keeping pkg/lockfile free of a dependency on pkg/manifest.
type GitRefKind string

// Recognised git reference kinds encoded in a Source string.
const (
	GitRefTag    GitRefKind = "tag"
	GitRefBranch GitRefKind = "branch"
	GitRefCommit GitRefKind = "commit"
)

// Source is the parsed form of a LockedPackage's source string, one of:
//
//	registry+<url>
//	path+<relative-path>
//	git+<url>[?tag=<t>|branch=<b>|commit=<h>]#<resolved-commit>
type Source struct {
	Kind SourceKind

	// Registry
	RegistryURL string

	// Path
	RelPath string

	// Git
	GitURL        string
	GitRefKind    GitRefKind
	GitRef        string
	ResolvedCommit string
}

// String formats the Source back into its canonical on-disk grammar.
func (s Source) String() string {
	switch s.Kind {
	case SourceRegistry:
		return "registry+" + s.RegistryURL
	case SourcePath:
		return "path+" + s.RelPath
	case SourceGit:
		var b strings.Builder
		b.WriteString("git+")
		b.WriteString(s.GitURL)
		if s.GitRefKind != "" && s.GitRef != "" {
			b.WriteString("?")
			b.WriteString(string(s.GitRefKind))
			b.WriteString("=")
			b.WriteString(s.GitRef)
		}
		if s.ResolvedCommit != "" {
			b.WriteString("#")
			b.WriteString(s.ResolvedCommit)
		}
		return b.String()
	default:
		return ""
	}
}

// ParseSource parses a LockedPackage.Source string per the grammar above.
func ParseSource(raw string) (Source, error) {
	switch {
	case strings.HasPrefix(raw, "registry+"):
		return Source{Kind: SourceRegistry, RegistryURL: strings.TrimPrefix(raw, "registry+")}, nil
	case strings.HasPrefix(raw, "path+"):
		return Source{Kind: SourcePath, RelPath: strings.TrimPrefix(raw, "path+")}, nil
	case strings.HasPrefix(raw, "git+"):
		return parseGitSource(strings.TrimPrefix(raw, "git+"))
	default:
		return Source{}, kcerrors.New(kcerrors.ErrCodeLockSchema, "unrecognised source scheme: %q", raw)
	}
}

func parseGitSource(rest string) (Source, error) {
	s := Source{Kind: SourceGit}

	if hashIdx := strings.LastIndex(rest, "#"); hashIdx >= 0 {
		s.ResolvedCommit = rest[hashIdx+1:]
		rest = rest[:hashIdx]
	} else {
		return Source{}, kcerrors.New(kcerrors.ErrCodeLockSchema, "git source missing resolved commit: %q", rest)
	}

	if qIdx := strings.Index(rest, "?"); qIdx >= 0 {
		s.GitURL = rest[:qIdx]
		query, err := url.ParseQuery(rest[qIdx+1:])
		if err != nil {
			return Source{}, kcerrors.Wrap(kcerrors.ErrCodeLockSchema, err, "parsing git source query %q", rest)
		}
		switch {
		case query.Has("tag"):
			s.GitRefKind, s.GitRef = GitRefTag, query.Get("tag")
		case query.Has("branch"):
			s.GitRefKind, s.GitRef = GitRefBranch, query.Get("branch")
		case query.Has("commit"):
			s.GitRefKind, s.GitRef = GitRefCommit, query.Get("commit")
		}
	} else {
		s.GitURL = rest
	}

	if s.GitURL == "" {
		return Source{}, kcerrors.New(kcerrors.ErrCodeLockSchema, "git source missing URL")
	}
	return s, nil
}

// NewRegistrySource builds a Source for a package fetched from a registry.
func NewRegistrySource(registryURL string) Source {
	return Source{Kind: SourceRegistry, RegistryURL: registryURL}
}

// NewPathSource builds a Source for a path dependency.
func NewPathSource(relPath string) Source {
	return Source{Kind: SourcePath, RelPath: relPath}
}

// NewGitSource builds a Source for a git dependency resolved to a commit.
func NewGitSource(gitURL string, refKind GitRefKind, ref, resolvedCommit string) Source {
	return Source{
		Kind:           SourceGit,
		GitURL:         gitURL,
		GitRefKind:     refKind,
		GitRef:         ref,
		ResolvedCommit: resolvedCommit,
	}
}

// shortCommit renders a short form of a resolved commit for diagnostics.
func shortCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

// fmtLockedKey is a convenience for error messages naming a package@version.
func fmtLockedKey(name, version string) string {
	return fmt.Sprintf("%s@%s", name, version)
}
