// Package buildscript compiles and runs a project's optional build.cj,
// parsing its stdout for kcjpm: directives that feed back into the main
// compile (extra link libraries, include directories, a rerun-if-changed
// watch list) the same way Cargo's build.rs/cargo:: directives do.
package buildscript

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

const (
	// ScriptFileName is the build script's required name at the project root.
	ScriptFileName = "build.cj"

	// cacheDirName is where the compiled build-script binary lives,
	// relative to the project root.
	cacheDirName = ".kcjpm/build-script"

	directivePrefix = "kcjpm:"
)

// Env describes the environment a build script runs under: the
// KCJPM_* variable contract.
type Env struct {
	OutDir      string
	Target      string
	Profile     string
	ManifestDir string
	PkgName     string
	PkgVersion  string
}

func (e Env) toOSEnv() []string {
	return append(os.Environ(),
		"KCJPM_OUT_DIR="+e.OutDir,
		"KCJPM_TARGET="+e.Target,
		"KCJPM_PROFILE="+e.Profile,
		"KCJPM_MANIFEST_DIR="+e.ManifestDir,
		"KCJPM_PKG_NAME="+e.PkgName,
		"KCJPM_PKG_VERSION="+e.PkgVersion,
	)
}

// Directives is everything a build script's output contributed back to
// the main compile.
type Directives struct {
	LinkLibs       []string
	IncludeDirs    []string
	RerunIfChanged []string
	Warnings       []string
	Custom         map[string]string
}

// Present reports whether a build script exists at projectDir.
func Present(projectDir string) bool {
	_, err := os.Stat(filepath.Join(projectDir, ScriptFileName))
	return err == nil
}

// Run compiles build.cj with cjcPath and executes it under env, parsing
// its stdout for directives. It returns kcerrors.ErrCodeBuildScript on
// any compile failure, run failure, non-zero exit, or explicit
// kcjpm:error= directive.
func Run(ctx context.Context, projectDir, cjcPath string, env Env) (Directives, error) {
	scriptPath := filepath.Join(projectDir, ScriptFileName)
	cacheDir := filepath.Join(projectDir, cacheDirName)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Directives{}, kcerrors.Wrap(kcerrors.ErrCodeBuildScript, err, "creating build-script cache dir")
	}

	binaryPath := filepath.Join(cacheDir, "build-script")
	if err := compile(ctx, cjcPath, scriptPath, binaryPath); err != nil {
		return Directives{}, err
	}

	return run(ctx, binaryPath, env)
}

func compile(ctx context.Context, cjcPath, scriptPath, binaryPath string) error {
	cmd := exec.CommandContext(ctx, cjcPath, "compile", scriptPath, "-o", binaryPath, "--output-type", "executable")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return kcerrors.Wrap(kcerrors.ErrCodeBuildScript, err, "compiling build.cj: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

func run(ctx context.Context, binaryPath string, env Env) (Directives, error) {
	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Env = env.toOSEnv()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Directives{}, kcerrors.Wrap(kcerrors.ErrCodeBuildScript, err, "opening build.cj stdout")
	}
	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return Directives{}, kcerrors.Wrap(kcerrors.ErrCodeBuildScript, err, "starting build.cj")
	}

	directives := Directives{Custom: map[string]string{}}
	var parseErrs []string

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, directivePrefix) {
			continue
		}
		key, value, ok := splitDirective(line)
		if !ok {
			continue
		}
		switch key {
		case "link-lib":
			directives.LinkLibs = append(directives.LinkLibs, value)
		case "include-dir":
			directives.IncludeDirs = append(directives.IncludeDirs, value)
		case "rerun-if-changed":
			directives.RerunIfChanged = append(directives.RerunIfChanged, value)
		case "warning":
			directives.Warnings = append(directives.Warnings, value)
		case "error":
			parseErrs = append(parseErrs, value)
		default:
			directives.Custom[key] = value
		}
	}

	waitErr := cmd.Wait()

	if len(parseErrs) > 0 {
		return directives, kcerrors.New(kcerrors.ErrCodeBuildScript, "build.cj reported error(s): %s", strings.Join(parseErrs, "; "))
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return directives, kcerrors.New(kcerrors.ErrCodeBuildScript, "build.cj exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderrBuf.String()))
		}
		return directives, kcerrors.Wrap(kcerrors.ErrCodeBuildScript, waitErr, "running build.cj")
	}

	return directives, nil
}

// splitDirective parses a "kcjpm:key=value" line.
func splitDirective(line string) (key, value string, ok bool) {
	rest := strings.TrimPrefix(line, directivePrefix)
	idx := strings.IndexByte(rest, '=')
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// ApplyIncludeDirs resolves each of d.IncludeDirs against projectRoot.
func (d Directives) ApplyIncludeDirs(projectRoot string) []string {
	out := make([]string, len(d.IncludeDirs))
	for i, rel := range d.IncludeDirs {
		out[i] = filepath.Join(projectRoot, rel)
	}
	return out
}

// String renders directives for debug logging.
func (d Directives) String() string {
	return fmt.Sprintf("link-libs=%v include-dirs=%v rerun-if-changed=%v warnings=%d custom=%d",
		d.LinkLibs, d.IncludeDirs, d.RerunIfChanged, len(d.Warnings), len(d.Custom))
}
