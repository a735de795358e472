package deps

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
	"github.com/lin-qingying/kcjpm-sub000/pkg/lockfile"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// GitFetcher resolves git dependencies by shelling out to the git binary:
// a shallow clone of the requested ref followed by a rev-parse to pin the
// exact resolved commit, the same "let git do the work, just capture its
// output" approach as a plain clone/checkout pipeline.
type GitFetcher struct {
	// GitBinary overrides the git executable name/path; defaults to "git".
	GitBinary string
}

// Kind implements Fetcher.
func (GitFetcher) Kind() manifest.DependencyKind { return manifest.KindGit }

func (f GitFetcher) bin() string {
	if f.GitBinary == "" {
		return "git"
	}
	return f.GitBinary
}

// Fetch clones spec.Git at its resolved ref into destDir/<name>, then
// reads the resulting checkout's manifest for its declared dependencies.
func (f GitFetcher) Fetch(ctx context.Context, name string, spec manifest.DepSpec, destDir string) (FetchedPackage, error) {
	ref := spec.GitReference()
	dir := filepath.Join(destDir, name)

	if err := os.RemoveAll(dir); err != nil {
		return FetchedPackage{}, kcerrors.Wrap(kcerrors.ErrCodeIO, err, "clearing checkout dir for %q", name)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return FetchedPackage{}, kcerrors.Wrap(kcerrors.ErrCodeIO, err, "creating checkout parent for %q", name)
	}

	cloneArgs := []string{"clone", "--depth", "1"}
	switch ref.Kind {
	case manifest.GitRefTag, manifest.GitRefBranch:
		cloneArgs = append(cloneArgs, "--branch", ref.Value)
	}
	cloneArgs = append(cloneArgs, spec.Git, dir)

	if out, err := f.run(ctx, "", cloneArgs...); err != nil {
		return FetchedPackage{}, kcerrors.Wrap(kcerrors.ErrCodeGitFailure, err, "cloning %q: %s", name, out)
	}

	if ref.Kind == manifest.GitRefCommit {
		if out, err := f.run(ctx, dir, "fetch", "--depth", "1", "origin", ref.Value); err != nil {
			return FetchedPackage{}, kcerrors.Wrap(kcerrors.ErrCodeGitFailure, err, "fetching commit %q: %s", ref.Value, out)
		}
		if out, err := f.run(ctx, dir, "checkout", ref.Value); err != nil {
			return FetchedPackage{}, kcerrors.Wrap(kcerrors.ErrCodeGitFailure, err, "checking out %q: %s", ref.Value, out)
		}
	}

	commit, err := f.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return FetchedPackage{}, kcerrors.Wrap(kcerrors.ErrCodeGitFailure, err, "resolving HEAD for %q", name)
	}
	resolvedCommit := strings.TrimSpace(commit)

	manifestPath := filepath.Join(dir, "cjpm.toml")
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return FetchedPackage{}, kcerrors.Wrap(kcerrors.ErrCodeInvalidDepSpec, err, "git dependency %q manifest", name)
	}

	var gitRefKind lockfile.GitRefKind
	switch ref.Kind {
	case manifest.GitRefTag:
		gitRefKind = lockfile.GitRefTag
	case manifest.GitRefCommit:
		gitRefKind = lockfile.GitRefCommit
	default:
		gitRefKind = lockfile.GitRefBranch
	}

	version := ""
	if m.Package != nil {
		version = m.Package.Version
	}

	return FetchedPackage{
		Name:     name,
		Version:  version,
		Source:   lockfile.NewGitSource(spec.Git, gitRefKind, ref.Value, resolvedCommit),
		Dir:      dir,
		Checksum: "sha1:" + resolvedCommit,
		DepSpecs: m.Deps,
	}, nil
}

// run invokes git with args in dir (the process's own working directory
// when dir is empty), capturing combined stdout+stderr for error messages.
func (f GitFetcher) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, f.bin(), args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), err
	}
	return out.String(), nil
}
