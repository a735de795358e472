package lockfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lin-qingying/kcjpm-sub000/pkg/buildinfo"
)

func TestParseSourceRegistry(t *testing.T) {
	s, err := ParseSource("registry+https://pkg.example.com")
	require.NoError(t, err)
	require.Equal(t, SourceRegistry, s.Kind)
	require.Equal(t, "https://pkg.example.com", s.RegistryURL)
	require.Equal(t, "registry+https://pkg.example.com", s.String())
}

func TestParseSourcePath(t *testing.T) {
	s, err := ParseSource("path+../sibling")
	require.NoError(t, err)
	require.Equal(t, SourcePath, s.Kind)
	require.Equal(t, "../sibling", s.RelPath)
	require.Equal(t, "path+../sibling", s.String())
}

func TestParseSourceGitWithTag(t *testing.T) {
	s, err := ParseSource("git+https://example.com/foo.git?tag=v1.0.0#abcdef1234567890")
	require.NoError(t, err)
	require.Equal(t, SourceGit, s.Kind)
	require.Equal(t, "https://example.com/foo.git", s.GitURL)
	require.Equal(t, GitRefTag, s.GitRefKind)
	require.Equal(t, "v1.0.0", s.GitRef)
	require.Equal(t, "abcdef1234567890", s.ResolvedCommit)
	require.Equal(t, "git+https://example.com/foo.git?tag=v1.0.0#abcdef1234567890", s.String())
}

func TestParseSourceGitMissingCommitIsError(t *testing.T) {
	_, err := ParseSource("git+https://example.com/foo.git?branch=main")
	require.Error(t, err)
}

func TestParseSourceUnknownScheme(t *testing.T) {
	_, err := ParseSource("ftp+whatever")
	require.Error(t, err)
}

func TestGeneratorProducesSortedLockFile(t *testing.T) {
	entries := []ResolvedEntry{
		{Name: "zeta", Version: "1.0.0", Source: NewRegistrySource("https://pkg.example.com")},
		{Name: "alpha", Version: "2.0.0", Source: NewPathSource("../alpha")},
	}
	lf := Generator{}.Generate(entries)
	require.Len(t, lf.Packages, 2)
	require.Equal(t, "alpha", lf.Packages[0].Name)
	require.Equal(t, "zeta", lf.Packages[1].Name)
	require.Equal(t, SchemaVersion, lf.Version)
	require.Equal(t, buildinfo.Version, lf.Metadata.KcjpmVersion)
	require.False(t, lf.Metadata.GeneratedAt.IsZero())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kcjpm.lock")

	lf := Generator{}.Generate([]ResolvedEntry{
		{Name: "foo", Version: "1.0.0", Source: NewRegistrySource("https://pkg.example.com"), Checksum: "sha256:deadbeef"},
	})
	require.NoError(t, lf.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, lf.Version, loaded.Version)
	require.Len(t, loaded.Packages, 1)
	require.Equal(t, "foo", loaded.Packages[0].Name)
	require.Equal(t, "sha256:deadbeef", loaded.Packages[0].Checksum)
	require.Equal(t, buildinfo.Version, loaded.Metadata.KcjpmVersion)
	require.WithinDuration(t, lf.Metadata.GeneratedAt, loaded.Metadata.GeneratedAt, 0)
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	lf := &LockFile{Version: SchemaVersion, Packages: []LockedPackage{
		{Name: "foo", Version: "1.0.0", Source: "registry+https://pkg.example.com"},
		{Name: "foo", Version: "2.0.0", Source: "registry+https://pkg.example.com"},
	}}
	_, err := Validator{}.Validate(lf)
	require.Error(t, err)
}

func TestValidateRejectsSchemaMismatch(t *testing.T) {
	lf := &LockFile{Version: SchemaVersion + 1}
	_, err := Validator{}.Validate(lf)
	require.Error(t, err)
}

func TestValidateWarnsOnDanglingDependency(t *testing.T) {
	lf := &LockFile{Version: SchemaVersion, Packages: []LockedPackage{
		{Name: "foo", Version: "1.0.0", Source: "registry+https://pkg.example.com", Dependencies: []string{"missing"}},
	}}
	issues, err := Validator{}.Validate(lf)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, "foo", issues[0].Package)
}

func TestUpdateReportsPrunedPackages(t *testing.T) {
	existing := Generator{}.Generate([]ResolvedEntry{
		{Name: "old", Version: "1.0.0", Source: NewRegistrySource("https://pkg.example.com")},
	})
	fresh := []ResolvedEntry{
		{Name: "new", Version: "1.0.0", Source: NewRegistrySource("https://pkg.example.com")},
	}
	lf, issues := Update(existing, fresh)
	require.Len(t, lf.Packages, 1)
	require.Equal(t, "new", lf.Packages[0].Name)
	require.Len(t, issues, 1)
	require.True(t, issues[0].Warning)
	require.Equal(t, "old", issues[0].Package)
}
