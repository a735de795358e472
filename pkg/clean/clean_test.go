package clean

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestCleanRemovesWholeTargetDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "target", "debug", "app"), 10)
	writeFile(t, filepath.Join(root, "target", "release", "app"), 20)

	report := Clean(Options{ProjectDir: root, OutputDir: "target"})
	require.Empty(t, report.Errors)
	require.Equal(t, int64(30), report.FreedBytes)

	_, err := os.Stat(filepath.Join(root, "target"))
	require.True(t, os.IsNotExist(err))
}

func TestCleanDebugOnlyLeavesRelease(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "target", "debug", "app"), 10)
	writeFile(t, filepath.Join(root, "target", "release", "app"), 20)

	report := Clean(Options{ProjectDir: root, OutputDir: "target", DebugOnly: true})
	require.Empty(t, report.Errors)
	require.Equal(t, int64(10), report.FreedBytes)

	_, err := os.Stat(filepath.Join(root, "target", "debug"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "target", "release", "app"))
	require.NoError(t, err)
}

func TestCleanDryRunDoesNotDelete(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "target", "debug", "app"), 10)

	report := Clean(Options{ProjectDir: root, OutputDir: "target", DryRun: true})
	require.Empty(t, report.Errors)
	require.Equal(t, int64(10), report.FreedBytes)

	_, err := os.Stat(filepath.Join(root, "target", "debug", "app"))
	require.NoError(t, err)
}

func TestCleanRemovesCoverageArtefactsAndIncrementalCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cov_output", "report.html"), 5)
	writeFile(t, filepath.Join(root, "main.gcno"), 3)
	writeFile(t, filepath.Join(root, "target", "pkg.incremental.json"), 4)
	writeFile(t, filepath.Join(root, "target", "build-script-cache", "build"), 6)

	report := Clean(Options{ProjectDir: root, OutputDir: "target"})
	require.Empty(t, report.Errors)

	_, err := os.Stat(filepath.Join(root, "cov_output"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "main.gcno"))
	require.True(t, os.IsNotExist(err))
}

func TestCleanOnMissingOutputDirIsNoop(t *testing.T) {
	root := t.TempDir()
	report := Clean(Options{ProjectDir: root, OutputDir: "target"})
	require.Empty(t, report.Errors)
	require.Empty(t, report.Removed)
	require.Zero(t, report.FreedBytes)
}
