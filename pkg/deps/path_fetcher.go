package deps

import (
	"context"
	"os"
	"path/filepath"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
	"github.com/lin-qingying/kcjpm-sub000/pkg/lockfile"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// PathFetcher resolves path dependencies: a relative directory on disk,
// already present, never downloaded or copied. Its "fetch" is just
// reading the sibling manifest to discover the package's own name,
// version and dependencies.
type PathFetcher struct {
	// BaseDir is the directory a relative DepSpec.Path is resolved
	// against when Fetch is given no destDir, and the directory the
	// lock source path is made relative to (normally the root
	// manifest's directory).
	BaseDir string
}

// Kind implements Fetcher.
func (PathFetcher) Kind() manifest.DependencyKind { return manifest.KindPath }

// Fetch loads the manifest at spec.Path and returns its package
// identity. A relative spec.Path is resolved against destDir (the
// directory of the manifest declaring the dependency), or against
// f.BaseDir when destDir is empty. Nothing is copied: a path dependency
// lives where it already is.
func (f PathFetcher) Fetch(_ context.Context, name string, spec manifest.DepSpec, destDir string) (FetchedPackage, error) {
	base := f.BaseDir
	if destDir != "" {
		base = destDir
	}
	dir := spec.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}

	manifestPath := filepath.Join(dir, "cjpm.toml")
	if _, err := os.Stat(manifestPath); err != nil {
		return FetchedPackage{}, kcerrors.Wrap(kcerrors.ErrCodeDependencyNotFound, err, "path dependency %q at %s", name, dir)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return FetchedPackage{}, kcerrors.Wrap(kcerrors.ErrCodeInvalidDepSpec, err, "path dependency %q manifest", name)
	}
	if m.Package == nil {
		return FetchedPackage{}, kcerrors.New(kcerrors.ErrCodeInvalidDepSpec, "path dependency %q has no [package]", name)
	}

	rel, err := filepath.Rel(f.BaseDir, dir)
	if err != nil {
		rel = dir
	}

	return FetchedPackage{
		Name:     name,
		Version:  m.Package.Version,
		Source:   lockfile.NewPathSource(rel),
		Dir:      dir,
		DepSpecs: m.Deps,
	}, nil
}
