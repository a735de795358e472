package workspace

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

// BuildFunc builds one workspace member. It's supplied by the caller
// (normally wrapping pkg/compiler's Pipeline) so this package stays
// agnostic of the compilation pipeline's own dependencies.
type BuildFunc func(ctx context.Context, m Member) error

// Scheduler runs a set of workspace members in dependency order,
// building any members whose dependencies are already satisfied
// concurrently, bounded by MaxParallel.
type Scheduler struct {
	Graph       *Graph
	MaxParallel int
}

// DefaultMaxParallel is used when Scheduler.MaxParallel is unset.
const DefaultMaxParallel = 8

// BuildAll builds every member of the workspace.
func (s *Scheduler) BuildAll(ctx context.Context, ws *Workspace, build BuildFunc) error {
	names := make([]string, len(ws.Members))
	for i, m := range ws.Members {
		names[i] = m.Name
	}
	return s.build(ctx, ws, names, build)
}

// BuildDefaultMembers builds only the workspace's configured default
// members (or every member, if none are configured), plus whatever
// workspace-internal dependencies they need.
func (s *Scheduler) BuildDefaultMembers(ctx context.Context, ws *Workspace, build BuildFunc) error {
	return s.BuildMembers(ctx, ws, ws.DefaultMemberNames(), build)
}

// BuildMembers builds exactly the named members, plus their transitive
// workspace-internal dependencies.
func (s *Scheduler) BuildMembers(ctx context.Context, ws *Workspace, names []string, build BuildFunc) error {
	closure := s.closureOf(names)
	return s.build(ctx, ws, closure, build)
}

// BuildMember builds a single named member and its transitive
// workspace-internal dependencies.
func (s *Scheduler) BuildMember(ctx context.Context, ws *Workspace, name string, build BuildFunc) error {
	return s.BuildMembers(ctx, ws, []string{name}, build)
}

// closureOf returns names plus every workspace-internal dependency they
// transitively need, in no particular order.
func (s *Scheduler) closureOf(names []string) []string {
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, dep := range s.Graph.Dependencies(name) {
			visit(dep)
		}
	}
	for _, n := range names {
		visit(n)
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}

// build runs the ready-queue scheduling algorithm: members whose
// dependencies have all completed become ready and are submitted to a
// bounded worker pool; the in-degree of each dependent is decremented as
// its dependencies finish, feeding newly-ready members back in.
func (s *Scheduler) build(ctx context.Context, ws *Workspace, scope []string, build BuildFunc) error {
	inScope := make(map[string]bool, len(scope))
	for _, n := range scope {
		inScope[n] = true
	}

	indegree := make(map[string]int, len(scope))
	dependents := make(map[string][]string, len(scope))
	for _, name := range scope {
		for _, dep := range s.Graph.Dependencies(name) {
			if !inScope[dep] {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	maxParallel := s.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(maxParallel).WithCancelOnError()

	var mu sync.Mutex
	var submit func(name string)
	submit = func(name string) {
		p.Go(func(ctx context.Context) error {
			m, ok := ws.Member(name)
			if !ok {
				return kcerrors.New(kcerrors.ErrCodeWorkspace, "unknown workspace member %q", name)
			}
			if err := build(ctx, m); err != nil {
				return kcerrors.Wrap(kcerrors.ErrCodeWorkspace, err, "building member %q", name)
			}

			mu.Lock()
			ready := make([]string, 0)
			for _, dependent := range dependents[name] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					ready = append(ready, dependent)
				}
			}
			mu.Unlock()

			for _, next := range ready {
				submit(next)
			}
			return nil
		})
	}

	var initiallyReady []string
	for _, name := range scope {
		if indegree[name] == 0 {
			initiallyReady = append(initiallyReady, name)
		}
	}
	for _, name := range initiallyReady {
		submit(name)
	}

	return p.Wait()
}
