// Package workspace loads a multi-package workspace, builds its member
// dependency graph, and schedules member builds in dependency order,
// running independent members in parallel.
package workspace

import (
	"path/filepath"
	"sort"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// Member is one loaded workspace package.
type Member struct {
	Name     string
	Dir      string
	Manifest *manifest.Manifest
}

// Workspace is a loaded, expanded set of members plus which of them are
// the default build target.
type Workspace struct {
	RootDir        string
	Members        []Member
	DefaultMembers []string
}

// Load reads the manifest at manifestPath, expands its [workspace]
// member patterns, and loads each member's own manifest.
func Load(manifestPath string) (*Workspace, error) {
	root, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	if root.Workspace == nil {
		return nil, kcerrors.New(kcerrors.ErrCodeWorkspace, "%s has no [workspace] section", manifestPath)
	}

	rootDir := root.Dir()
	dirs, err := expandMemberPatterns(rootDir, root.Workspace.Members)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{RootDir: rootDir, DefaultMembers: root.Workspace.DefaultMembers}
	seen := make(map[string]bool, len(dirs))

	for _, dir := range dirs {
		m, err := manifest.Load(filepath.Join(dir, "cjpm.toml"))
		if err != nil {
			return nil, kcerrors.Wrap(kcerrors.ErrCodeWorkspace, err, "loading workspace member at %s", dir)
		}
		if m.Package == nil {
			return nil, kcerrors.New(kcerrors.ErrCodeWorkspace, "workspace member at %s has no [package]", dir)
		}

		name := m.Package.Name
		if seen[name] {
			return nil, kcerrors.New(kcerrors.ErrCodeWorkspace, "duplicate workspace member name %q", name)
		}
		seen[name] = true

		ws.Members = append(ws.Members, Member{Name: name, Dir: dir, Manifest: m})
	}

	sort.Slice(ws.Members, func(i, j int) bool { return ws.Members[i].Name < ws.Members[j].Name })
	return ws, nil
}

// expandMemberPatterns expands each pattern into one or more member
// directories: "." is rootDir itself; a plain relative path is one
// member; a "dir/*" pattern expands to every immediate subdirectory of
// dir containing a cjpm.toml.
func expandMemberPatterns(rootDir string, patterns []string) ([]string, error) {
	var dirs []string
	for _, pattern := range patterns {
		switch {
		case pattern == ".":
			dirs = append(dirs, rootDir)
		case filepath.Base(pattern) == "*":
			parent := filepath.Join(rootDir, filepath.Dir(pattern))
			matches, err := filepath.Glob(filepath.Join(parent, "*", "cjpm.toml"))
			if err != nil {
				return nil, kcerrors.Wrap(kcerrors.ErrCodeWorkspace, err, "expanding member pattern %q", pattern)
			}
			for _, match := range matches {
				dirs = append(dirs, filepath.Dir(match))
			}
		default:
			dirs = append(dirs, filepath.Join(rootDir, pattern))
		}
	}
	return dirs, nil
}

// Member looks up a loaded member by name.
func (w *Workspace) Member(name string) (Member, bool) {
	for _, m := range w.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// DefaultMemberNames returns the workspace's configured default members,
// or every member's name if none were configured.
func (w *Workspace) DefaultMemberNames() []string {
	if len(w.DefaultMembers) > 0 {
		return w.DefaultMembers
	}
	names := make([]string, len(w.Members))
	for i, m := range w.Members {
		names[i] = m.Name
	}
	return names
}
