package compiler

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

// PackageInfo is one discovered source package: a directory whose .cj
// files all declare the same package name.
type PackageInfo struct {
	Name    string
	Dir     string
	Files   []string
	IsEntry bool // directory == SourceDir itself, eligible to link an executable
}

// sourceFileExt is the reference compiler's source file extension.
const sourceFileExt = ".cj"

// DiscoverPackages walks sourceDir and groups .cj files into packages by
// directory, reading each file's leading "package <name>" line. A
// directory with no .cj files is skipped; a directory whose files
// disagree on package name is an error.
func DiscoverPackages(sourceDir string) ([]PackageInfo, error) {
	dirFiles := make(map[string][]string)

	err := filepath.WalkDir(sourceDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, sourceFileExt) {
			return nil
		}
		dir := filepath.Dir(path)
		dirFiles[dir] = append(dirFiles[dir], path)
		return nil
	})
	if err != nil {
		return nil, kcerrors.Wrap(kcerrors.ErrCodeIO, err, "walking source directory %s", sourceDir)
	}

	dirs := make([]string, 0, len(dirFiles))
	for dir := range dirFiles {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	packages := make([]PackageInfo, 0, len(dirs))
	for _, dir := range dirs {
		files := dirFiles[dir]
		sort.Strings(files)

		name, err := packageNameOf(files)
		if err != nil {
			return nil, err
		}

		packages = append(packages, PackageInfo{
			Name:    name,
			Dir:     dir,
			Files:   files,
			IsEntry: dir == filepath.Clean(sourceDir),
		})
	}
	return packages, nil
}

// packageNameOf reads the "package <name>" declaration line from each
// file and requires them all to agree. A directory with no declaration
// anywhere defaults to "main", the same as an undeclared entry package.
func packageNameOf(files []string) (string, error) {
	var name string
	for _, file := range files {
		declared, err := readPackageLine(file)
		if err != nil {
			return "", err
		}
		if declared == "" {
			continue
		}
		if name == "" {
			name = declared
		} else if name != declared {
			return "", kcerrors.New(kcerrors.ErrCodeCompile, "%s declares package %q, but %s already declared %q", file, declared, filepath.Dir(file), name)
		}
	}
	if name == "" {
		return "main", nil
	}
	return name, nil
}

// readPackageLine scans a source file for its first non-blank,
// non-comment "package <name>" line.
func readPackageLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", kcerrors.Wrap(kcerrors.ErrCodeIO, err, "opening %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "package ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "package")), nil
		}
		// First non-blank, non-comment line wasn't a package
		// declaration: this file doesn't declare one of its own.
		return "", nil
	}
	return "", scanner.Err()
}
