package deps

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
	"github.com/lin-qingying/kcjpm-sub000/pkg/lockfile"
	"github.com/lin-qingying/kcjpm-sub000/pkg/manifest"
)

// HTTPClient is the subset of *http.Client a RegistryFetcher needs,
// injectable so tests can swap in a fake transport without a live
// registry.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewDefaultHTTPClient returns the production HTTPClient: 30s to
// establish a connection, 60s total per request.
func NewDefaultHTTPClient() HTTPClient {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
		},
	}
}

// defaultRegistryURL is the registry a dependency resolves to when
// neither its own spec nor the manifest's [registry] table names one.
const defaultRegistryURL = "https://repo.cangjie-lang.cn"

// resolveRegistryUrl turns a DepSpec's Registry field into the concrete
// registry URL to fetch from:
//
//	""/"default" -> cfg.Default, falling back to defaultRegistryURL
//	"private"     -> cfg.PrivateURL, or a ConfigError if unset
//	anything else -> taken literally as the registry URL
func resolveRegistryUrl(registry string, cfg manifest.RegistryConfig) (string, error) {
	switch registry {
	case "", "default":
		if cfg.Default != "" {
			return cfg.Default, nil
		}
		return defaultRegistryURL, nil
	case "private":
		if cfg.PrivateURL == "" {
			return "", kcerrors.New(kcerrors.ErrCodeConfig, "dependency requests registry \"private\" but no registry.private-url is configured")
		}
		return cfg.PrivateURL, nil
	default:
		return registry, nil
	}
}

// RegistryFetcher resolves registry dependencies: it resolves the
// dependency's named registry to a URL, downloads that package
// version's zip archive, and unpacks it.
type RegistryFetcher struct {
	Client   HTTPClient
	Registry manifest.RegistryConfig
	CacheDir string
}

// Kind implements Fetcher.
func (RegistryFetcher) Kind() manifest.DependencyKind { return manifest.KindRegistry }

func (f RegistryFetcher) client() HTTPClient {
	if f.Client != nil {
		return f.Client
	}
	return NewDefaultHTTPClient()
}

// Fetch downloads spec.Version of name from the resolved registry,
// unpacks it into destDir/registry/<name>/<version>, then reads the
// unpacked package's own manifest for its version and transitive
// dependencies, the same way GitFetcher reads a checkout's manifest.
func (f RegistryFetcher) Fetch(ctx context.Context, name string, spec manifest.DepSpec, destDir string) (FetchedPackage, error) {
	registryURL, err := resolveRegistryUrl(spec.Registry, f.Registry)
	if err != nil {
		return FetchedPackage{}, err
	}

	pkgDir := filepath.Join(destDir, "registry", name, spec.Version)
	checksum, err := f.downloadAndUnpack(ctx, registryURL, name, spec.Version, pkgDir)
	if err != nil {
		return FetchedPackage{}, err
	}

	manifestPath := filepath.Join(pkgDir, "cjpm.toml")
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return FetchedPackage{}, kcerrors.Wrap(kcerrors.ErrCodeInvalidDepSpec, err, "registry dependency %q manifest", name)
	}

	version := spec.Version
	if m.Package != nil && m.Package.Version != "" {
		version = m.Package.Version
	}

	return FetchedPackage{
		Name:     name,
		Version:  version,
		Source:   lockfile.NewRegistrySource(registryURL),
		Dir:      pkgDir,
		Checksum: checksum,
		DepSpecs: m.Deps,
	}, nil
}

// downloadAndUnpack fetches GET {registry}/packages/{name}/{version}/download
// into a temp file, unpacks it as a zip archive into destDir, and
// returns the sha256 checksum of the downloaded archive.
func (f RegistryFetcher) downloadAndUnpack(ctx context.Context, registryURL, name, version, destDir string) (string, error) {
	url := strings.TrimSuffix(registryURL, "/") + "/packages/" + name + "/" + version + "/download"

	tmpFile := filepath.Join(os.TempDir(), "kcjpm-"+uuid.NewString()+".zip")
	defer os.Remove(tmpFile)

	if err := f.download(ctx, url, name, version, registryURL, tmpFile); err != nil {
		return "", err
	}

	checksum, err := checksumFile(tmpFile)
	if err != nil {
		return "", err
	}

	if err := os.RemoveAll(destDir); err != nil {
		return "", kcerrors.Wrap(kcerrors.ErrCodeIO, err, "clearing %s", destDir)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", kcerrors.Wrap(kcerrors.ErrCodeIO, err, "creating %s", destDir)
	}

	if err := unpackZip(tmpFile, destDir); err != nil {
		return "", err
	}
	return checksum, nil
}

func (f RegistryFetcher) download(ctx context.Context, url, name, version, registryURL, dest string) error {
	return RetryWithBackoff(ctx, 3, time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := f.client().Do(req)
		if err != nil {
			return Retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return Retryable(fmt.Errorf("registry returned %d for %s", resp.StatusCode, url))
		}
		if resp.StatusCode == http.StatusNotFound {
			return kcerrors.New(kcerrors.ErrCodeDependencyNotFound, "%s@%s not found on %s", name, version, registryURL)
		}
		if resp.StatusCode != http.StatusOK {
			return kcerrors.New(kcerrors.ErrCodeDownloadFailure, "registry returned %d for %s", resp.StatusCode, url)
		}

		out, err := os.Create(dest)
		if err != nil {
			return kcerrors.Wrap(kcerrors.ErrCodeIO, err, "creating temp download file")
		}
		defer out.Close()

		_, err = io.Copy(out, resp.Body)
		return err
	})
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", kcerrors.Wrap(kcerrors.ErrCodeIO, err, "opening %s for checksum", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", kcerrors.Wrap(kcerrors.ErrCodeIO, err, "hashing %s", path)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func unpackZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return kcerrors.Wrap(kcerrors.ErrCodeUnpackFailure, err, "opening zip archive %s", archivePath)
	}
	defer r.Close()

	destPrefix := filepath.Clean(destDir) + string(os.PathSeparator)
	for _, zf := range r.File {
		target := filepath.Join(destDir, zf.Name)
		if !strings.HasPrefix(target, destPrefix) {
			return kcerrors.New(kcerrors.ErrCodeUnpackFailure, "archive entry %q escapes destination", zf.Name)
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return kcerrors.Wrap(kcerrors.ErrCodeUnpackFailure, err, "creating dir %s", target)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return kcerrors.Wrap(kcerrors.ErrCodeUnpackFailure, err, "creating parent for %s", target)
		}

		src, err := zf.Open()
		if err != nil {
			return kcerrors.Wrap(kcerrors.ErrCodeUnpackFailure, err, "opening archive entry %s", zf.Name)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, zf.Mode())
		if err != nil {
			src.Close()
			return kcerrors.Wrap(kcerrors.ErrCodeUnpackFailure, err, "creating file %s", target)
		}
		if _, err := io.Copy(out, src); err != nil {
			out.Close()
			src.Close()
			return kcerrors.Wrap(kcerrors.ErrCodeUnpackFailure, err, "writing file %s", target)
		}
		out.Close()
		src.Close()
	}
	return nil
}
