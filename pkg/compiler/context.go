// Package compiler drives the cjc compilation pipeline: it discovers
// packages under a project's source tree, decides what needs
// recompiling via its incremental cache, invokes cjc per package with
// the right flags, parses its diagnostics, and reports progress through
// an events.Bus.
package compiler

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/lin-qingying/kcjpm-sub000/pkg/events"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// Artifact is the file extension/suffix convention for one output type.
type Artifact struct {
	Suffix     string
	IsBinary   bool
	NeedsEntry bool // requires a main package to link
}

// artifactByOutputType maps manifest.OutputType to its artifact shape.
var artifactByOutputType = map[manifest.OutputType]Artifact{
	manifest.OutputExecutable:     {Suffix: "", IsBinary: true, NeedsEntry: true},
	manifest.OutputLibrary:        {Suffix: ".cjo", IsBinary: false},
	manifest.OutputStaticLibrary:  {Suffix: ".a", IsBinary: true},
	manifest.OutputDynamicLibrary: {Suffix: ".so", IsBinary: true},
}

// ArtifactFor returns the Artifact shape for an output type, defaulting
// to the library shape for an unrecognised/empty type.
func ArtifactFor(t manifest.OutputType) Artifact {
	if a, ok := artifactByOutputType[t]; ok {
		return a
	}
	return artifactByOutputType[manifest.OutputLibrary]
}

// BuildConfig is the subset of manifest settings that affect what cjc is
// invoked with, and therefore what the incremental cache keys on.
type BuildConfig struct {
	Profile       string
	CompilerFlags []string
	LinkerFlags   []string
	FFILibPaths   []string
	FFILibs       []string
	Incremental   bool
}

// CompilationContext bundles everything one pipeline run needs: the
// project manifest, its resolved build configuration, where cjc lives,
// where to write output, and where to publish progress events.
type CompilationContext struct {
	Manifest    *manifest.Manifest
	Config      BuildConfig
	CjcPath     string
	SourceDir   string
	OutputDir   string
	CacheDir    string
	Bus         *events.Bus
	Logger      *log.Logger
	Jobs        int

	validated bool
}

// DefaultJobs is used when CompilationContext.Jobs is unset.
const DefaultJobs = 4

// ValidateAndSetDefaults fills in zero-valued fields and checks required
// ones. Idempotent: safe to call more than once.
func (c *CompilationContext) ValidateAndSetDefaults() error {
	if c.validated {
		return nil
	}
	if c.Manifest == nil {
		return errMissingManifest
	}
	if c.CjcPath == "" {
		return errMissingCjcPath
	}
	if c.SourceDir == "" {
		c.SourceDir = c.Manifest.Build.EffectiveSourceDir()
	}
	if c.OutputDir == "" {
		c.OutputDir = c.Manifest.Build.EffectiveOutputDir()
	}
	if c.CacheDir == "" {
		c.CacheDir = c.OutputDir + "/.kcjpm-cache"
	}
	if c.Jobs <= 0 {
		c.Jobs = DefaultJobs
	}
	if c.Bus == nil {
		c.Bus = events.NewBus()
	}
	if c.Logger == nil {
		c.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	c.validated = true
	return nil
}
