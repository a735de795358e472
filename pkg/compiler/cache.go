package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

// ChangeReason names why IncrementalCache.DetectChanges decided a
// package needs recompiling.
type ChangeReason string

// Recognised reasons, checked in this priority order.
const (
	ReasonNoCacheFound      ChangeReason = "no_cache_found"
	ReasonBuildConfigChanged ChangeReason = "build_config_changed"
	ReasonFilesChanged      ChangeReason = "files_changed"
	ReasonOutputMissing     ChangeReason = "output_missing"
	ReasonNoChanges         ChangeReason = ""
)

// PackageCacheEntry is what IncrementalCache persists per package: a
// content hash for each of its source files, a hash of the build
// configuration that produced its last output, and where that output
// landed.
type PackageCacheEntry struct {
	FileHashes    map[string]string `json:"file_hashes"`
	ConfigHash    string            `json:"config_hash"`
	OutputPath    string            `json:"output_path"`
}

// IncrementalCache is a file-based, sha256-keyed cache of per-package
// compilation state, one JSON file per package under its cache
// directory.
type IncrementalCache struct {
	dir string
	mu  sync.Mutex
}

// NewIncrementalCache opens (creating if necessary) an IncrementalCache
// rooted at dir.
func NewIncrementalCache(dir string) (*IncrementalCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kcerrors.Wrap(kcerrors.ErrCodeIO, err, "creating incremental cache dir %s", dir)
	}
	return &IncrementalCache{dir: dir}, nil
}

func (c *IncrementalCache) entryPath(pkgName string) string {
	h := sha256.Sum256([]byte(pkgName))
	return filepath.Join(c.dir, hex.EncodeToString(h[:])+".json")
}

// Load reads the cached entry for pkgName, returning (entry, true, nil)
// on a hit and (zero, false, nil) on a miss.
func (c *IncrementalCache) Load(pkgName string) (PackageCacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.entryPath(pkgName))
	if os.IsNotExist(err) {
		return PackageCacheEntry{}, false, nil
	}
	if err != nil {
		return PackageCacheEntry{}, false, kcerrors.Wrap(kcerrors.ErrCodeIO, err, "reading cache entry for %s", pkgName)
	}

	var entry PackageCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt cache entry is treated as a miss rather than a fatal
		// error: the package just gets rebuilt.
		return PackageCacheEntry{}, false, nil
	}
	return entry, true, nil
}

// Save persists entry for pkgName, overwriting any previous entry.
func (c *IncrementalCache) Save(pkgName string, entry PackageCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return kcerrors.Wrap(kcerrors.ErrCodeInternal, err, "marshaling cache entry for %s", pkgName)
	}
	return os.WriteFile(c.entryPath(pkgName), data, 0o644)
}

// HashFiles computes a stable sha256 hash of every file's contents,
// keyed by path, for use in a PackageCacheEntry.
func HashFiles(paths []string) (map[string]string, error) {
	hashes := make(map[string]string, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, kcerrors.Wrap(kcerrors.ErrCodeIO, err, "hashing %s", p)
		}
		sum := sha256.Sum256(data)
		hashes[p] = hex.EncodeToString(sum[:])
	}
	return hashes, nil
}

// HashConfig computes a stable hash of a BuildConfig, used to detect
// build-option changes (a new profile, new flags) that invalidate a
// package's cache entry even if its source files didn't change.
func HashConfig(cfg BuildConfig) string {
	data, _ := json.Marshal(cfg)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DetectChanges decides whether pkg needs recompiling, and why, by
// comparing its current source file hashes and build config hash against
// the cached entry, in this priority order: no cache entry at all; the
// build configuration changed; any file's content hash changed or a file
// was added/removed; the previous output no longer exists on disk; else
// no changes.
func (c *IncrementalCache) DetectChanges(pkg PackageInfo, cfg BuildConfig) (ChangeReason, error) {
	entry, ok, err := c.Load(pkg.Name)
	if err != nil {
		return "", err
	}
	if !ok {
		return ReasonNoCacheFound, nil
	}

	if entry.ConfigHash != HashConfig(cfg) {
		return ReasonBuildConfigChanged, nil
	}

	currentHashes, err := HashFiles(pkg.Files)
	if err != nil {
		return "", err
	}
	if len(currentHashes) != len(entry.FileHashes) {
		return ReasonFilesChanged, nil
	}
	for path, hash := range currentHashes {
		if entry.FileHashes[path] != hash {
			return ReasonFilesChanged, nil
		}
	}

	if entry.OutputPath != "" {
		if _, err := os.Stat(entry.OutputPath); os.IsNotExist(err) {
			return ReasonOutputMissing, nil
		}
	}

	return ReasonNoChanges, nil
}

// Record stores the post-compile cache entry for pkg.
func (c *IncrementalCache) Record(pkg PackageInfo, cfg BuildConfig, outputPath string) error {
	hashes, err := HashFiles(pkg.Files)
	if err != nil {
		return err
	}
	return c.Save(pkg.Name, PackageCacheEntry{
		FileHashes: hashes,
		ConfigHash: HashConfig(cfg),
		OutputPath: outputPath,
	})
}
