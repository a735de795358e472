package deps

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// roundTripFunc adapts a plain function into an HTTPClient for tests.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, contents := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func bodyResponse(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

func TestResolveRegistryUrlDefaultsToHardcodedURL(t *testing.T) {
	url, err := resolveRegistryUrl("", manifest.RegistryConfig{})
	require.NoError(t, err)
	require.Equal(t, defaultRegistryURL, url)

	url, err = resolveRegistryUrl("default", manifest.RegistryConfig{})
	require.NoError(t, err)
	require.Equal(t, defaultRegistryURL, url)
}

func TestResolveRegistryUrlPrefersConfiguredDefault(t *testing.T) {
	url, err := resolveRegistryUrl("", manifest.RegistryConfig{Default: "https://mirror.example.com"})
	require.NoError(t, err)
	require.Equal(t, "https://mirror.example.com", url)
}

func TestResolveRegistryUrlPrivateRequiresConfig(t *testing.T) {
	_, err := resolveRegistryUrl("private", manifest.RegistryConfig{})
	require.True(t, kcerrors.Is(err, kcerrors.ErrCodeConfig))

	url, err := resolveRegistryUrl("private", manifest.RegistryConfig{PrivateURL: "https://corp.example.com"})
	require.NoError(t, err)
	require.Equal(t, "https://corp.example.com", url)
}

func TestResolveRegistryUrlLiteralPassthrough(t *testing.T) {
	url, err := resolveRegistryUrl("https://other.example.com", manifest.RegistryConfig{})
	require.NoError(t, err)
	require.Equal(t, "https://other.example.com", url)
}

func TestRegistryFetcherDownloadsAndUnpacksZip(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"cjpm.toml": "[package]\nname = \"utils\"\nversion = \"1.2.0\"\n",
		"src/a.cj":  "package utils\n",
	})

	var gotURL string
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return bodyResponse(http.StatusOK, archive), nil
	})

	f := RegistryFetcher{Client: client}
	dest := t.TempDir()

	pkg, err := f.Fetch(context.Background(), "utils", manifest.DepSpec{Version: "1.2.0"}, dest)
	require.NoError(t, err)

	require.Equal(t, "https://repo.cangjie-lang.cn/packages/utils/1.2.0/download", gotURL)
	require.Equal(t, "registry+https://repo.cangjie-lang.cn", pkg.Source.String())
	require.Equal(t, "1.2.0", pkg.Version)
	require.NotEmpty(t, pkg.Checksum)

	contents, err := os.ReadFile(filepath.Join(dest, "registry", "utils", "1.2.0", "src", "a.cj"))
	require.NoError(t, err)
	require.Equal(t, "package utils\n", string(contents))
}

func TestRegistryFetcherNotFound(t *testing.T) {
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return bodyResponse(http.StatusNotFound, nil), nil
	})

	f := RegistryFetcher{Client: client}
	_, err := f.Fetch(context.Background(), "missing", manifest.DepSpec{Version: "9.9.9"}, t.TempDir())
	require.True(t, kcerrors.Is(err, kcerrors.ErrCodeDependencyNotFound))
}
