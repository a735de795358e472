package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "cjpm.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadPackageManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[package]
name = "hello"
version = "0.1.0"
output-type = "executable"

[dependencies]
shorthand = "1.2.0"

[dependencies.full]
version = "2.0.0"
optional = true
`)

	m, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, m.Package)
	require.Equal(t, "hello", m.Package.Name)
	require.Equal(t, OutputExecutable, m.Package.OutputType)
	require.Equal(t, dir, m.Dir())

	require.Equal(t, "1.2.0", m.Deps["shorthand"].Version)
	kind, err := m.Deps["shorthand"].Kind()
	require.NoError(t, err)
	require.Equal(t, KindRegistry, kind)

	require.True(t, m.Deps["full"].Optional)

	require.Contains(t, m.Profiles, ProfileDebug)
	require.Contains(t, m.Profiles, ProfileRelease)
	require.Equal(t, 2, m.Profiles[ProfileRelease].OptimizationLevel)
}

func TestLoadVirtualWorkspace(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[workspace]
members = ["pkgs/*"]
default-members = ["pkgs/core"]
`)

	m, err := Load(path)
	require.NoError(t, err)
	require.True(t, m.IsVirtualWorkspace())
	require.False(t, m.IsMixedWorkspace())
	require.Equal(t, []string{"pkgs/*"}, m.Workspace.Members)
}

func TestLoadMissingPackageAndWorkspaceIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[build]
jobs = 4
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidDepSpec(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[package]
name = "hello"
version = "0.1.0"

[dependencies.broken]
optional = false
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNegativeJobs(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[package]
name = "hello"
version = "0.1.0"

[build]
jobs = -1
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[package]
name = "hello"
version = "0.1.0"
`)

	m, err := Load(path)
	require.NoError(t, err)

	out := filepath.Join(dir, "roundtrip.toml")
	require.NoError(t, m.Save(out))

	m2, err := Load(out)
	require.NoError(t, err)
	require.Equal(t, m.Package.Name, m2.Package.Name)
}

func TestDepSpecGitReferenceDefaultsToMainBranch(t *testing.T) {
	d := DepSpec{Git: "https://example.com/foo.git"}
	ref := d.GitReference()
	require.Equal(t, GitRefBranch, ref.Kind)
	require.Equal(t, "main", ref.Value)
}

func TestDepSpecKindPrecedence(t *testing.T) {
	d := DepSpec{Path: "../foo", Git: "https://example.com/foo.git", Version: "1.0.0"}
	kind, err := d.Kind()
	require.NoError(t, err)
	require.Equal(t, KindPath, kind)
}

func TestBuildOptionsDefaults(t *testing.T) {
	var b BuildOptions
	require.Equal(t, DefaultSourceDir, b.EffectiveSourceDir())
	require.Equal(t, DefaultOutputDir, b.EffectiveOutputDir())
}
