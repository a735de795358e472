package compiler

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/lin-qingying/kcjpm-sub000/pkg/events"
	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// InvocationResult is what one cjc invocation produced.
type InvocationResult struct {
	ExitCode    int
	Diagnostics []events.Diagnostic
	OutputPath  string
}

// buildArgs composes the cjc flag list for compiling pkg under cfg,
// producing outputPath.
func buildArgs(pkg PackageInfo, cfg BuildConfig, outputPath string) []string {
	args := []string{"compile"}
	args = append(args, pkg.Files...)
	args = append(args, "-o", outputPath)

	if cfg.Profile != "" {
		args = append(args, "--profile", cfg.Profile)
	}
	for _, p := range cfg.FFILibPaths {
		args = append(args, "-L", p)
	}
	for _, l := range cfg.FFILibs {
		args = append(args, "-l", l)
	}
	args = append(args, cfg.CompilerFlags...)
	if pkg.IsEntry {
		args = append(args, cfg.LinkerFlags...)
	}
	return args
}

// Invoke runs cjc to compile pkg, streaming its raw stdout/stderr lines
// to bus (tagged with IsStderr) and returning the parsed diagnostics
// once the process exits.
func Invoke(ctx context.Context, cjcPath string, pkg PackageInfo, cfg BuildConfig, entryOutputType manifest.OutputType, outputDir string, bus *events.Bus, correlationID string) (InvocationResult, error) {
	outType := manifest.OutputLibrary
	if pkg.IsEntry {
		outType = entryOutputType
	}
	artifact := ArtifactFor(outType)
	outputPath := filepath.Join(outputDir, pkg.Name+artifact.Suffix)

	args := buildArgs(pkg, cfg, outputPath)
	cmd := exec.CommandContext(ctx, cjcPath, args...)
	cmd.Dir = pkg.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return InvocationResult{}, kcerrors.Wrap(kcerrors.ErrCodeCompile, err, "opening stdout pipe for %s", pkg.Name)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return InvocationResult{}, kcerrors.Wrap(kcerrors.ErrCodeCompile, err, "opening stderr pipe for %s", pkg.Name)
	}

	if err := cmd.Start(); err != nil {
		return InvocationResult{}, kcerrors.Wrap(kcerrors.ErrCodeCompile, err, "starting cjc for %s", pkg.Name)
	}

	var parser DiagnosticParser
	var mu sync.Mutex
	var wg sync.WaitGroup

	readPipe := func(r io.Reader, isStderr bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			parser.Feed(line)
			mu.Unlock()
			if bus != nil {
				bus.Publish(events.CompilationEvent{
					Kind:          events.KindCompilerOutput,
					CorrelationID: correlationID,
					PackageName:   pkg.Name,
					Line:          line,
					IsStderr:      isStderr,
				})
			}
		}
	}

	wg.Add(2)
	go readPipe(stdout, false)
	go readPipe(stderr, true)
	wg.Wait()

	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return InvocationResult{}, kcerrors.Wrap(kcerrors.ErrCodeCompile, waitErr, "running cjc for %s", pkg.Name)
		}
	}

	diags := parser.Diagnostics()
	result := InvocationResult{ExitCode: exitCode, Diagnostics: diags, OutputPath: outputPath}

	if exitCode != 0 {
		return result, kcerrors.New(kcerrors.ErrCodeCompile, "cjc exited %d compiling %s", exitCode, pkg.Name)
	}
	return result, nil
}

