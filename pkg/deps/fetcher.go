// Package deps resolves a manifest's dependency declarations into a
// fully fetched, version-pinned dependency graph: it classifies each
// DepSpec by kind, dispatches to the matching Fetcher, walks the
// transitive graph, detects version conflicts and cycles, and drives the
// lock file policy an install runs under.
package deps

import (
	"context"

	"github.com/lin-qingying/kcjpm-sub000/pkg/lockfile"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// Source is the lock file's source descriptor; deps reuses it directly so
// a FetchedPackage can be turned into a lockfile.ResolvedEntry without
// any reshaping.
type Source = lockfile.Source

// FetchedPackage is what a Fetcher produces for one resolved dependency:
// its pinned version, the lock Source describing where it came from, the
// on-disk directory it was placed in, a content checksum (empty for path
// dependencies), and its own declared dependencies so the resolver can
// continue the transitive walk.
type FetchedPackage struct {
	Name      string
	Version   string
	Source    Source
	Dir       string
	Checksum  string
	DepSpecs  map[string]manifest.DepSpec
}

// Fetcher retrieves one dependency given its declared DepSpec, placing
// its source under destDir and reporting what it found.
type Fetcher interface {
	// Fetch resolves spec for the dependency named name, materializing it
	// under destDir and returning what was fetched.
	Fetch(ctx context.Context, name string, spec manifest.DepSpec, destDir string) (FetchedPackage, error)

	// Kind reports which manifest.DependencyKind this Fetcher handles.
	Kind() manifest.DependencyKind
}

// FetcherRegistry dispatches a DepSpec to the Fetcher registered for its
// Kind().
type FetcherRegistry struct {
	fetchers map[manifest.DependencyKind]Fetcher
}

// NewFetcherRegistry builds a registry from a set of fetchers, one per
// manifest.DependencyKind. Passing more than one Fetcher for the same
// Kind() keeps the last one registered.
func NewFetcherRegistry(fetchers ...Fetcher) *FetcherRegistry {
	reg := &FetcherRegistry{fetchers: make(map[manifest.DependencyKind]Fetcher, len(fetchers))}
	for _, f := range fetchers {
		reg.fetchers[f.Kind()] = f
	}
	return reg
}

// For returns the Fetcher registered for kind, and whether one exists.
func (r *FetcherRegistry) For(kind manifest.DependencyKind) (Fetcher, bool) {
	f, ok := r.fetchers[kind]
	return f, ok
}
