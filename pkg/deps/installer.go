package deps

import (
	"context"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
	"github.com/lin-qingying/kcjpm-sub000/pkg/lockfile"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// LockPolicy controls how Installer.Install reconciles a fresh
// resolution against an existing lock file.
type LockPolicy int

const (
	// UseExisting trusts the existing lock file's versions when present:
	// direct version-declared dependencies are pinned to their locked
	// versions, and every dependency is still resolved and fetched.
	UseExisting LockPolicy = iota
	// Refresh re-resolves everything and overwrites the lock file,
	// reporting any packages the refresh dropped as warnings.
	Refresh
	// Ignore resolves fresh without reading or writing any lock file at
	// all (used by commands that only need an in-memory dependency set).
	Ignore
)

// InstallOptions configures one Installer.Install call.
type InstallOptions struct {
	LockPolicy LockPolicy
	LockPath   string
	Resolve    Options
}

// InstallResult is what Installer.Install reports back.
type InstallResult struct {
	LockFile *lockfile.LockFile
	Issues   []lockfile.ValidationIssue
}

// Installer drives one dependency installation: resolve, reconcile with
// the lock file per opts.LockPolicy, then persist.
type Installer struct {
	Resolver *Resolver
}

// Install resolves m's dependencies and reconciles the result with the
// lock file at opts.LockPath according to opts.LockPolicy.
func (i *Installer) Install(ctx context.Context, m *manifest.Manifest, opts InstallOptions) (InstallResult, error) {
	if opts.LockPolicy == UseExisting {
		if existing, err := lockfile.Load(opts.LockPath); err == nil {
			if issues, verr := (lockfile.Validator{}).Validate(existing); verr == nil {
				fresh, err := i.resolveWithLockOverrides(ctx, m, existing, opts.Resolve)
				if err != nil {
					return InstallResult{}, err
				}
				lf, pruneIssues := lockfile.Update(existing, fresh)
				if err := lf.Save(opts.LockPath); err != nil {
					return InstallResult{}, err
				}
				return InstallResult{LockFile: lf, Issues: append(issues, pruneIssues...)}, nil
			}
		}
	}

	fresh, err := i.Resolver.Resolve(ctx, m.Deps, m.Dir(), opts.Resolve)
	if err != nil {
		return InstallResult{}, err
	}

	var existing *lockfile.LockFile
	if opts.LockPolicy != Ignore {
		if lf, err := lockfile.Load(opts.LockPath); err == nil {
			existing = lf
		}
	}

	lf, issues := lockfile.Update(existing, fresh)
	if opts.LockPolicy != Ignore {
		if err := lf.Save(opts.LockPath); err != nil {
			return InstallResult{}, err
		}
	}
	return InstallResult{LockFile: lf, Issues: issues}, nil
}

// resolveWithLockOverrides pins each of m's direct version-declared
// dependencies that the existing lock file records to its locked
// version, then resolves the whole set. Path and git dependencies, and
// transitive dependencies, are resolved as declared; every dependency
// is fetched, locked or not.
func (i *Installer) resolveWithLockOverrides(ctx context.Context, m *manifest.Manifest, existing *lockfile.LockFile, resolveOpts Options) ([]lockfile.ResolvedEntry, error) {
	pinned := make(map[string]manifest.DepSpec, len(m.Deps))
	for name, spec := range m.Deps {
		if locked, ok := existing.Find(name); ok && spec.Version != "" {
			spec.Version = locked.Version
		}
		pinned[name] = spec
	}

	entries, err := i.Resolver.Resolve(ctx, pinned, m.Dir(), resolveOpts)
	if err != nil {
		return nil, kcerrors.Wrap(kcerrors.ErrCodeVersionConflict, err, "resolving against locked versions")
	}
	return entries, nil
}
