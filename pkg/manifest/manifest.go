// Package manifest parses and validates cjpm.toml, the per-project
// manifest that describes one package and/or one workspace.
//
// A manifest is read with Load, mutated in memory, and written back with
// Save. Validate enforces the invariants of the data model: optional
// dependencies are tolerated anywhere, but a manifest with neither
// [package] nor [workspace] is rejected, and dependency specs must set
// at least one of path/git/version.
package manifest

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

// OutputType is the kind of artifact a package compiles to.
type OutputType string

// Recognised output types.
const (
	OutputExecutable      OutputType = "executable"
	OutputLibrary         OutputType = "library"
	OutputStaticLibrary   OutputType = "static-library"
	OutputDynamicLibrary  OutputType = "dynamic-library"
)

// Default build options.
const (
	DefaultSourceDir = "src"
	DefaultOutputDir = "target"
)

// Manifest is the parsed form of cjpm.toml.
//
// Package is nil for a virtual workspace (a manifest with only
// [workspace]). Workspace is nil for an ordinary, non-workspace package.
// A manifest with both is a mixed workspace.
type Manifest struct {
	Package   *Package             `toml:"package"`
	Registry  RegistryConfig       `toml:"registry"`
	Deps      map[string]DepSpec   `toml:"dependencies"`
	Build     BuildOptions         `toml:"build"`
	Workspace *Workspace           `toml:"workspace"`
	Profiles  map[string]Profile   `toml:"profile"`

	// dir is the directory the manifest was loaded from; DepSpec path
	// resolution and workspace member expansion are relative to it.
	dir string `toml:"-"`
}

// Package describes the package identity fields of [package].
type Package struct {
	Name           string     `toml:"name"`
	Version        string     `toml:"version"`
	CompilerVer    string     `toml:"cjc-version"`
	OutputType     OutputType `toml:"output-type"`
	Authors        []string   `toml:"authors"`
	Description    string     `toml:"description"`
	License        string     `toml:"license"`
	Repository     string     `toml:"repository"`
}

// RegistryConfig holds default/mirror/private registry settings.
type RegistryConfig struct {
	Default         string   `toml:"default"`
	Mirrors         []string `toml:"mirrors"`
	PrivateURL      string   `toml:"private-url"`
	PrivateUsername string   `toml:"private-username"`
	PrivateToken    string   `toml:"private-token"`
}

// TargetFlags holds platform-specific compiler/linker flags.
type TargetFlags struct {
	CompilerFlags []string `toml:"compiler-flags"`
	LinkerFlags   []string `toml:"linker-flags"`
}

// FFIOptions holds [build.ffi] settings.
type FFIOptions struct {
	LibraryPaths []string `toml:"library-paths"`
	Libraries    []string `toml:"libraries"`
}

// BuildOptions holds [build] settings.
type BuildOptions struct {
	SourceDir   string                 `toml:"source-dir"`
	OutputDir   string                 `toml:"output-dir"`
	TestDir     string                 `toml:"test-dir"`
	Parallel    bool                   `toml:"parallel"`
	Jobs        int                    `toml:"jobs"`
	Incremental bool                   `toml:"incremental"`
	Verbose     bool                   `toml:"verbose"`
	PreBuild    string                 `toml:"pre-build"`
	PostBuild   string                 `toml:"post-build"`
	Target      map[string]TargetFlags `toml:"target"`
	FFI         FFIOptions             `toml:"ffi"`
}

// EffectiveSourceDir returns SourceDir or DefaultSourceDir if unset.
func (b BuildOptions) EffectiveSourceDir() string {
	if b.SourceDir == "" {
		return DefaultSourceDir
	}
	return b.SourceDir
}

// EffectiveOutputDir returns OutputDir or DefaultOutputDir if unset.
func (b BuildOptions) EffectiveOutputDir() string {
	if b.OutputDir == "" {
		return DefaultOutputDir
	}
	return b.OutputDir
}

// Profile is a named compile-option bundle ([profile.<name>]).
type Profile struct {
	OptimizationLevel int  `toml:"optimization-level"`
	DebugInfo         bool `toml:"debug-info"`
	LTO               bool `toml:"lto"`
}

// Well-known profile names.
const (
	ProfileDebug      = "debug"
	ProfileRelease    = "release"
	ProfileReleaseLTO = "release-lto"
)

// DefaultProfiles returns the built-in debug/release/release-lto bundles,
// used when a manifest does not override them.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		ProfileDebug:      {OptimizationLevel: 0, DebugInfo: true, LTO: false},
		ProfileRelease:    {OptimizationLevel: 2, DebugInfo: false, LTO: false},
		ProfileReleaseLTO: {OptimizationLevel: 3, DebugInfo: false, LTO: true},
	}
}

// Workspace describes the [workspace] section.
type Workspace struct {
	Members         []string `toml:"members"`
	DefaultMembers  []string `toml:"default-members"`
}

// Dir returns the directory the manifest was loaded from.
func (m *Manifest) Dir() string { return m.dir }

// IsVirtualWorkspace reports whether this manifest is a workspace root
// with no package of its own.
func (m *Manifest) IsVirtualWorkspace() bool {
	return m.Workspace != nil && m.Package == nil
}

// IsMixedWorkspace reports whether this manifest is both a workspace root
// and a package.
func (m *Manifest) IsMixedWorkspace() bool {
	return m.Workspace != nil && m.Package != nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kcerrors.Wrap(kcerrors.ErrCodeManifest, err, "manifest not found: %s", path)
		}
		return nil, kcerrors.Wrap(kcerrors.ErrCodeIO, err, "reading manifest %s", path)
	}

	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, kcerrors.Wrap(kcerrors.ErrCodeManifest, err, "parsing manifest %s", path)
	}
	m.dir = filepath.Dir(path)
	if m.Profiles == nil {
		m.Profiles = map[string]Profile{}
	}
	for name, p := range DefaultProfiles() {
		if _, ok := m.Profiles[name]; !ok {
			m.Profiles[name] = p
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the manifest back to path in TOML form.
func (m *Manifest) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return kcerrors.Wrap(kcerrors.ErrCodeIO, err, "creating manifest %s", path)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(m); err != nil {
		return kcerrors.Wrap(kcerrors.ErrCodeManifest, err, "encoding manifest %s", path)
	}
	return nil
}

// Validate enforces the invariants of the manifest data model: it must
// declare a package, a workspace, or both; every non-optional DepSpec
// must set at least one of path/git/version (see DepSpec.Kind for which
// one decides when several are set); build parallelism, if a job
// count is set, must be positive.
func (m *Manifest) Validate() error {
	if m.Package == nil && m.Workspace == nil {
		return kcerrors.New(kcerrors.ErrCodeManifest, "manifest must declare [package], [workspace], or both")
	}
	for name, dep := range m.Deps {
		if dep.Optional {
			continue
		}
		if _, err := dep.Kind(); err != nil {
			return kcerrors.Wrap(kcerrors.ErrCodeInvalidDepSpec, err, "dependency %q", name)
		}
	}
	if m.Build.Jobs < 0 {
		return kcerrors.New(kcerrors.ErrCodeManifest, "build.jobs must not be negative")
	}
	return nil
}
