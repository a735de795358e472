package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

func writeManifestFile(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cjpm.toml"), []byte(contents), 0o644))
}

func TestPathFetcherReadsSiblingManifest(t *testing.T) {
	root := t.TempDir()
	sibling := filepath.Join(root, "sibling")
	require.NoError(t, os.MkdirAll(sibling, 0o755))
	writeManifestFile(t, sibling, `
[package]
name = "sibling"
version = "0.2.0"
`)

	f := PathFetcher{BaseDir: root}
	got, err := f.Fetch(context.Background(), "sibling", manifest.DepSpec{Path: "sibling"}, "")
	require.NoError(t, err)
	require.Equal(t, "0.2.0", got.Version)
	require.Equal(t, sibling, got.Dir)

	parsed, err := got.Source.ParsedSource()
	require.NoError(t, err)
	require.Equal(t, "sibling", parsed.RelPath)
}

func TestPathFetcherMissingManifest(t *testing.T) {
	root := t.TempDir()
	f := PathFetcher{BaseDir: root}
	_, err := f.Fetch(context.Background(), "nope", manifest.DepSpec{Path: "nope"}, "")
	require.Error(t, err)
}

func TestFetcherRegistryDispatch(t *testing.T) {
	reg := NewFetcherRegistry(PathFetcher{}, GitFetcher{}, RegistryFetcher{})

	f, ok := reg.For(manifest.KindPath)
	require.True(t, ok)
	require.Equal(t, manifest.KindPath, f.Kind())

	f, ok = reg.For(manifest.KindGit)
	require.True(t, ok)
	require.Equal(t, manifest.KindGit, f.Kind())

	f, ok = reg.For(manifest.KindRegistry)
	require.True(t, ok)
	require.Equal(t, manifest.KindRegistry, f.Kind())
}

func TestResolverResolvesSharedDependencyOnce(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	shared := filepath.Join(root, "shared")
	for _, d := range []string{a, b, shared} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	writeManifestFile(t, shared, `
[package]
name = "shared"
version = "1.0.0"
`)
	writeManifestFile(t, a, `
[package]
name = "a"
version = "0.1.0"

[dependencies.shared]
path = "../shared"
`)
	writeManifestFile(t, b, `
[package]
name = "b"
version = "0.1.0"

[dependencies.shared]
path = "../shared"
`)

	r := &Resolver{Fetchers: NewFetcherRegistry(PathFetcher{BaseDir: root})}
	specs := map[string]manifest.DepSpec{
		"a": {Path: "a"},
		"b": {Path: "b"},
	}
	entries, err := r.Resolve(context.Background(), specs, root, Options{})
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	require.True(t, names["a"])
	require.True(t, names["b"])
	require.True(t, names["shared"])
}

func TestResolverDetectsCycle(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	for _, d := range []string{a, b} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	writeManifestFile(t, a, `
[package]
name = "a"
version = "0.1.0"

[dependencies.b]
path = "../b"
`)
	writeManifestFile(t, b, `
[package]
name = "b"
version = "0.1.0"

[dependencies.a]
path = "../a"
`)

	r := &Resolver{Fetchers: NewFetcherRegistry(PathFetcher{BaseDir: root})}
	specs := map[string]manifest.DepSpec{"a": {Path: "a"}}
	_, err := r.Resolve(context.Background(), specs, root, Options{})
	require.Error(t, err)
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.WithDefaults()
	require.Equal(t, DefaultConcurrency, o.Concurrency)
}

func TestRetryWithBackoffStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, 0, func() error {
		calls++
		return os.ErrNotExist
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryWithBackoffRetriesRetryable(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, 0, func() error {
		calls++
		if calls < 3 {
			return Retryable(os.ErrDeadlineExceeded)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}
