package deps

import (
	"context"
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
	"github.com/lin-qingying/kcjpm-sub000/pkg/lockfile"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// Options configures a Resolver run.
type Options struct {
	// Concurrency bounds how many fetches run at once. Zero means
	// DefaultConcurrency.
	Concurrency int
	// DestDir is where fetched sources are materialized (git clones,
	// unpacked registry zip archives; ignored for path dependencies).
	DestDir string
}

// DefaultConcurrency is used when Options.Concurrency is unset.
const DefaultConcurrency = 8

// WithDefaults returns a copy of o with zero-valued fields replaced by
// their defaults. Idempotent: calling it twice is the same as once.
func (o Options) WithDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Resolver walks a manifest's dependency declarations transitively,
// dispatching each DepSpec to the matching Fetcher, detecting version
// conflicts and dependency cycles along the way.
type Resolver struct {
	Fetchers *FetcherRegistry
}

// node is one entry in the resolved graph, built up concurrently.
type node struct {
	pkg      FetchedPackage
	children []string
}

// Resolve walks m's dependencies (and theirs, transitively) and returns a
// flat set of resolved entries ready for lockfile.Generator. depSpecs is
// the root manifest's non-optional dependency declarations; baseDir
// anchors relative path dependencies declared at the root.
func (r *Resolver) Resolve(ctx context.Context, depSpecs map[string]manifest.DepSpec, baseDir string, opts Options) ([]lockfile.ResolvedEntry, error) {
	opts = opts.WithDefaults()

	w := &walker{
		ctx:      ctx,
		fetchers: r.Fetchers,
		opts:     opts,
		baseDir:  baseDir,
		nodes:    make(map[string]*node),
		versions: make(map[string]string),
		state:    make(map[string]walkState),
	}

	if err := w.walkAll(baseDir, depSpecs); err != nil {
		return nil, err
	}

	entries := make([]lockfile.ResolvedEntry, 0, len(w.nodes))
	for name, n := range w.nodes {
		entries = append(entries, lockfile.ResolvedEntry{
			Name:         name,
			Version:      n.pkg.Version,
			Source:       n.pkg.Source,
			Checksum:     n.pkg.Checksum,
			Dependencies: n.children,
		})
	}
	return entries, nil
}

type walkState int

const (
	stateUnvisited walkState = iota
	stateInProgress
	stateDone
)

// walker holds the mutable state of one Resolve call. Fetches for
// sibling dependencies run concurrently via errgroup; the mutex guards
// the shared maps every goroutine reads and writes.
type walker struct {
	ctx      context.Context
	fetchers *FetcherRegistry
	opts     Options
	baseDir  string

	mu       sync.Mutex
	nodes    map[string]*node
	versions map[string]string
	state    map[string]walkState
}

func (w *walker) walkAll(fromDir string, specs map[string]manifest.DepSpec) error {
	g, ctx := errgroup.WithContext(w.ctx)
	g.SetLimit(w.opts.Concurrency)

	for name, spec := range specs {
		name, spec := name, spec
		if spec.Optional {
			continue
		}
		g.Go(func() error { return w.walkOne(ctx, fromDir, name, spec) })
	}
	return g.Wait()
}

func (w *walker) walkOne(ctx context.Context, fromDir, name string, spec manifest.DepSpec) error {
	w.mu.Lock()
	switch w.state[name] {
	case stateInProgress:
		w.mu.Unlock()
		return kcerrors.New(kcerrors.ErrCodeCycleDetected, "dependency cycle detected at %q", name)
	case stateDone:
		w.mu.Unlock()
		return w.checkConflict(name, spec)
	}
	w.state[name] = stateInProgress
	w.mu.Unlock()

	kind, err := spec.Kind()
	if err != nil {
		return kcerrors.Wrap(kcerrors.ErrCodeInvalidDepSpec, err, "dependency %q", name)
	}

	fetcher, ok := w.fetchers.For(kind)
	if !ok {
		return kcerrors.New(kcerrors.ErrCodeInvalidDepSpec, "no fetcher registered for %s dependency %q", kind, name)
	}

	destDir := w.opts.DestDir
	if kind == manifest.KindPath {
		destDir = fromDir
	}

	fetched, err := fetcher.Fetch(ctx, name, spec, destDir)
	if err != nil {
		return err
	}

	if err := w.recordVersion(name, fetched.Version); err != nil {
		return err
	}

	children := make([]string, 0, len(fetched.DepSpecs))
	for childName := range fetched.DepSpecs {
		if !fetched.DepSpecs[childName].Optional {
			children = append(children, childName)
		}
	}

	w.mu.Lock()
	w.nodes[name] = &node{pkg: fetched, children: children}
	w.state[name] = stateDone
	w.mu.Unlock()

	if len(fetched.DepSpecs) == 0 {
		return nil
	}
	return w.walkAll(fetched.Dir, fetched.DepSpecs)
}

// recordVersion records name's resolved version, or reports a
// VersionConflict if a different version was already recorded for it by
// another branch of the walk.
func (w *walker) recordVersion(name, version string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.versions[name]; ok && existing != version {
		return kcerrors.New(kcerrors.ErrCodeVersionConflict, "%q resolved to both %s and %s", name, existing, version)
	}
	w.versions[name] = version
	return nil
}

// checkConflict re-checks a dependency spec against an already-resolved
// version when the same package is reached a second time via a different
// branch of the walk, without re-fetching it.
func (w *walker) checkConflict(name string, spec manifest.DepSpec) error {
	if spec.Version == "" {
		return nil
	}
	w.mu.Lock()
	existing, ok := w.versions[name]
	w.mu.Unlock()
	if !ok {
		return nil
	}

	constraint, err := semver.NewConstraint(spec.Version)
	if err != nil {
		// A version string that doesn't parse as a semver constraint
		// can't be checked; treat it as satisfied.
		return nil
	}
	v, err := semver.NewVersion(existing)
	if err != nil {
		return nil
	}
	if !constraint.Check(v) {
		return kcerrors.New(kcerrors.ErrCodeVersionConflict, "%q locked at %s does not satisfy %s", name, existing, spec.Version)
	}
	return nil
}
