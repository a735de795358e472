package workspace

import (
	"path/filepath"
	"strings"

	toposort "github.com/philopon/go-toposort"
	"github.com/xlab/treeprint"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

// Graph is the workspace's member dependency graph: an edge from A to B
// means A depends on B (B must build first).
type Graph struct {
	members map[string]Member
	edges   map[string][]string
}

// BuildGraph constructs the dependency graph from each member's path
// dependencies that resolve to another member of the same workspace.
// Non-path dependencies, and path dependencies pointing outside the
// workspace, are not part of this graph.
func BuildGraph(ws *Workspace) (*Graph, error) {
	g := &Graph{
		members: make(map[string]Member, len(ws.Members)),
		edges:   make(map[string][]string, len(ws.Members)),
	}
	byDir := make(map[string]string, len(ws.Members))
	for _, m := range ws.Members {
		g.members[m.Name] = m
		byDir[filepath.Clean(m.Dir)] = m.Name
	}

	for _, m := range ws.Members {
		for _, dep := range m.Manifest.Deps {
			if dep.Optional || dep.Path == "" {
				continue
			}
			target := dep.Path
			if !filepath.IsAbs(target) {
				target = filepath.Join(m.Dir, target)
			}
			if depName, ok := byDir[filepath.Clean(target)]; ok {
				g.edges[m.Name] = append(g.edges[m.Name], depName)
			}
		}
	}
	return g, nil
}

// TopoOrder returns workspace members in build order (dependencies
// before dependents), using Kahn's algorithm. A cycle among members
// is reported as a WorkspaceError naming every member on the cycle.
func (g *Graph) TopoOrder() ([]string, error) {
	graph := toposort.NewGraph(len(g.members))
	for name := range g.members {
		graph.AddNode(name)
	}
	for from, deps := range g.edges {
		for _, to := range deps {
			// Build order requires dependencies first, so the toposort
			// edge points from dependency to dependent.
			graph.AddEdge(to, from)
		}
	}

	order, ok := graph.Toposort()
	if !ok {
		cycle := g.findCycle()
		return nil, kcerrors.New(kcerrors.ErrCodeWorkspace, "dependency cycle among workspace members: %s", strings.Join(cycle, " -> "))
	}
	return order, nil
}

// findCycle locates one cycle among members via DFS with white/gray/black
// coloring, for a readable error message when TopoOrder fails.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.members))
	var path []string
	var cycle []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		color[name] = gray
		path = append(path, name)
		for _, dep := range g.edges[name] {
			switch color[dep] {
			case white:
				if dfs(dep) {
					return true
				}
			case gray:
				idx := indexOf(path, dep)
				cycle = append(append([]string{}, path[idx:]...), dep)
				return true
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	names := make([]string, 0, len(g.members))
	for name := range g.members {
		names = append(names, name)
	}
	for _, name := range names {
		if color[name] == white {
			if dfs(name) {
				return cycle
			}
		}
	}
	return nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// Dependencies returns the direct workspace-internal dependencies of
// member name.
func (g *Graph) Dependencies(name string) []string {
	return g.edges[name]
}

// String renders the graph as an indented tree for debug output, rooted
// at every member with no dependents (a workspace-internal source).
func (g *Graph) String() string {
	dependents := make(map[string]bool)
	for _, deps := range g.edges {
		for _, d := range deps {
			dependents[d] = true
		}
	}

	tree := treeprint.New()
	for name := range g.members {
		if dependents[name] {
			continue
		}
		g.addBranch(tree, name)
	}
	return tree.String()
}

func (g *Graph) addBranch(tree treeprint.Tree, name string) {
	deps := g.edges[name]
	if len(deps) == 0 {
		tree.AddNode(name)
		return
	}
	branch := tree.AddBranch(name)
	for _, dep := range deps {
		g.addBranch(branch, dep)
	}
}
