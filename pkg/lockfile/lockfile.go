package lockfile

import (
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lin-qingying/kcjpm-sub000/pkg/buildinfo"
	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

// SchemaVersion is the current kcjpm.lock schema version. A lock file
// whose Version does not match is rejected by Validate rather than
// silently reinterpreted.
const SchemaVersion = 1

// LockFile is the parsed, sorted form of kcjpm.lock.
type LockFile struct {
	Version  int             `toml:"version"`
	Metadata Metadata        `toml:"metadata"`
	Packages []LockedPackage `toml:"package"`
}

// Metadata records when and by which kcjpm build a lock file was
// generated, so a stale lock can be told apart from a freshly
// regenerated one with identical package entries.
type Metadata struct {
	GeneratedAt  time.Time `toml:"generated-at"`
	KcjpmVersion string    `toml:"kcjpm-version"`
}

// LockedPackage is one resolved dependency: its exact version, where it
// came from, a content checksum (empty for path dependencies, which have
// no stable checksum to pin), and the names of its own direct
// dependencies so the lock file alone captures the whole resolved graph.
type LockedPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Checksum     string   `toml:"checksum,omitempty"`
	Dependencies []string `toml:"dependencies,omitempty"`
}

// ParsedSource parses this package's Source string.
func (p LockedPackage) ParsedSource() (Source, error) {
	return ParseSource(p.Source)
}

// Load reads and parses a kcjpm.lock file.
func Load(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kcerrors.Wrap(kcerrors.ErrCodeLockCorrupt, err, "lock file not found: %s", path)
		}
		return nil, kcerrors.Wrap(kcerrors.ErrCodeIO, err, "reading lock file %s", path)
	}

	var lf LockFile
	if _, err := toml.Decode(string(data), &lf); err != nil {
		return nil, kcerrors.Wrap(kcerrors.ErrCodeLockCorrupt, err, "parsing lock file %s", path)
	}
	return &lf, nil
}

// Save writes the lock file to path, sorted by package name for a stable,
// diff-friendly serialization.
func (lf *LockFile) Save(path string) error {
	lf.sort()

	f, err := os.Create(path)
	if err != nil {
		return kcerrors.Wrap(kcerrors.ErrCodeIO, err, "creating lock file %s", path)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(lf); err != nil {
		return kcerrors.Wrap(kcerrors.ErrCodeLockCorrupt, err, "encoding lock file %s", path)
	}
	return nil
}

func (lf *LockFile) sort() {
	sort.Slice(lf.Packages, func(i, j int) bool {
		return lf.Packages[i].Name < lf.Packages[j].Name
	})
}

// Find returns the locked package with the given name, if present.
func (lf *LockFile) Find(name string) (LockedPackage, bool) {
	for _, p := range lf.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return LockedPackage{}, false
}

// ResolvedEntry is the minimal shape a Generator needs from a resolved
// dependency graph, independent of the resolver's own richer type so
// pkg/lockfile never imports pkg/deps.
type ResolvedEntry struct {
	Name         string
	Version      string
	Source       Source
	Checksum     string
	Dependencies []string
}

// Generator builds a LockFile from a fully resolved dependency graph.
type Generator struct{}

// Generate produces a sorted LockFile from the given resolved entries,
// stamping it with the current time and this kcjpm build's version.
func (Generator) Generate(entries []ResolvedEntry) *LockFile {
	lf := &LockFile{
		Version: SchemaVersion,
		Metadata: Metadata{
			GeneratedAt:  time.Now().UTC(),
			KcjpmVersion: buildinfo.Version,
		},
	}
	for _, e := range entries {
		lf.Packages = append(lf.Packages, LockedPackage{
			Name:         e.Name,
			Version:      e.Version,
			Source:       e.Source.String(),
			Checksum:     e.Checksum,
			Dependencies: e.Dependencies,
		})
	}
	lf.sort()
	return lf
}

// ValidationIssue is one problem Validate found. Errors must block an
// install; Warnings are surfaced but non-fatal (e.g. a locked package no
// longer referenced by any manifest dependency, left behind after an
// edit).
type ValidationIssue struct {
	Package string
	Message string
	Warning bool
}

// Validator checks a LockFile for internal consistency.
type Validator struct{}

// Validate checks schema version, duplicate names, dangling dependency
// references, and source string well-formedness. It returns errors (via
// the returned error) for anything that would make the lock file unsafe
// to use, and issues (always, even on success) for anything milder.
func (Validator) Validate(lf *LockFile) ([]ValidationIssue, error) {
	var issues []ValidationIssue

	if lf.Version != SchemaVersion {
		return nil, kcerrors.New(kcerrors.ErrCodeLockSchema, "lock file schema version %d, expected %d", lf.Version, SchemaVersion)
	}

	seen := make(map[string]bool, len(lf.Packages))
	for _, p := range lf.Packages {
		if seen[p.Name] {
			return nil, kcerrors.New(kcerrors.ErrCodeLockValidation, "duplicate locked package %q", p.Name)
		}
		seen[p.Name] = true

		if _, err := p.ParsedSource(); err != nil {
			return nil, kcerrors.Wrap(kcerrors.ErrCodeLockValidation, err, "package %q", p.Name)
		}
	}

	for _, p := range lf.Packages {
		for _, dep := range p.Dependencies {
			if !seen[dep] {
				issues = append(issues, ValidationIssue{
					Package: p.Name,
					Message: "depends on " + dep + ", which has no locked entry",
					Warning: true,
				})
			}
		}
	}

	return issues, nil
}

// Update builds the new lock file from freshly resolved entries alone:
// every package entry, including one already present in existing, takes
// fresh's version, source and checksum, and no existing entry is carried
// over. Locked packages no longer present in fresh are dropped and
// reported as a warning so callers can log what was pruned.
func Update(existing *LockFile, fresh []ResolvedEntry) (*LockFile, []ValidationIssue) {
	var issues []ValidationIssue
	freshNames := make(map[string]bool, len(fresh))
	for _, e := range fresh {
		freshNames[e.Name] = true
	}

	if existing != nil {
		for _, p := range existing.Packages {
			if !freshNames[p.Name] {
				issues = append(issues, ValidationIssue{
					Package: p.Name,
					Message: "no longer required, removed from lock file",
					Warning: true,
				})
			}
		}
	}

	lf := Generator{}.Generate(fresh)
	return lf, issues
}
