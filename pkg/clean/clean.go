// Package clean removes build output left behind by a previous compile:
// the target directory (or just its debug profile), coverage artefacts,
// the build-script cache and stale incremental-cache entries.
//
// A Report is computed the same way for both dry-run and real cleans;
// dry-run simply skips the os.RemoveAll call, mirroring how the
// compiler's incremental cache separates "what changed" from "what to
// do about it" (pkg/compiler's DetectChanges/Record split).
package clean

import (
	"os"
	"path/filepath"
)

// Options controls what Clean removes.
type Options struct {
	// ProjectDir is the manifest directory; OutputDir is the package's
	// configured build output directory (manifest.BuildOptions.EffectiveOutputDir).
	ProjectDir string
	OutputDir  string

	// DebugOnly removes only target/debug instead of the whole output
	// directory.
	DebugOnly bool

	// DryRun computes the Report without deleting anything.
	DryRun bool
}

// Report is the result of a clean, dry-run or real.
type Report struct {
	FreedBytes int64
	Removed    []string
	Errors     []error
}

// coverageGlobs are coverage artefacts removed from the project root
// regardless of DebugOnly, since they're produced alongside target/ but
// aren't part of it.
var coverageGlobs = []string{"cov_output", "*.gcno", "*.gcda"}

// Clean removes build output per opts and returns what it did (or would
// do, for a dry run).
func Clean(opts Options) Report {
	var report Report

	targets := collectTargets(opts)
	for _, t := range targets {
		size, err := dirSize(t)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			report.Errors = append(report.Errors, err)
			continue
		}
		if size == 0 {
			if _, statErr := os.Stat(t); os.IsNotExist(statErr) {
				continue
			}
		}

		if !opts.DryRun {
			if err := os.RemoveAll(t); err != nil {
				report.Errors = append(report.Errors, err)
				continue
			}
		}
		report.FreedBytes += size
		report.Removed = append(report.Removed, t)
	}

	return report
}

// collectTargets lists every path Clean would consider removing.
func collectTargets(opts Options) []string {
	var targets []string

	outputDir := opts.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(opts.ProjectDir, outputDir)
	}

	if opts.DebugOnly {
		targets = append(targets, filepath.Join(outputDir, "debug"))
	} else {
		targets = append(targets, outputDir)
	}

	targets = append(targets, filepath.Join(outputDir, "build-script-cache"))

	for _, pattern := range coverageGlobs {
		matches, _ := filepath.Glob(filepath.Join(opts.ProjectDir, pattern))
		targets = append(targets, matches...)
	}

	incremental, _ := filepath.Glob(filepath.Join(outputDir, "*.incremental.json"))
	targets = append(targets, incremental...)

	return targets
}

// dirSize totals the size of every regular file under path (path itself,
// if it's a file).
func dirSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
