// Package sdk locates the reference compiler (cjc) on the host: the
// CANGJIE_HOME environment variable, then an explicit configured path,
// then a PATH lookup, in that order. It also runs `cjc --version` to
// report what was found.
package sdk

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

// binaryName is "cjc" on everything but Windows, where exec.LookPath
// needs the .exe suffix.
func binaryName() string {
	if runtime.GOOS == "windows" {
		return "cjc.exe"
	}
	return "cjc"
}

// envHome is the environment variable naming the SDK install directory.
const envHome = "CANGJIE_HOME"

// SDK is a located, validated compiler installation.
type SDK struct {
	Home    string // install root, empty if found via bare PATH lookup
	CjcPath string
}

// Locate finds cjc via CANGJIE_HOME, then configPath (if non-empty),
// then PATH, in that order. The first candidate whose binary actually
// exists wins.
func Locate(configPath string) (*SDK, error) {
	var candidates []string
	if home := os.Getenv(envHome); home != "" {
		candidates = append(candidates, home)
	}
	if configPath != "" {
		candidates = append(candidates, configPath)
	}

	for _, home := range candidates {
		sdk, err := fromHome(home)
		if err == nil {
			return sdk, nil
		}
	}

	if path, err := exec.LookPath(binaryName()); err == nil {
		return &SDK{CjcPath: path}, nil
	}

	return nil, kcerrors.New(kcerrors.ErrCodeConfig, "cjc not found: checked %s, configured sdk path, and PATH", envHome)
}

// fromHome validates that home is a directory containing bin/cjc[.exe]
// (or cjc[.exe] directly at its root).
func fromHome(home string) (*SDK, error) {
	info, err := os.Stat(home)
	if err != nil {
		return nil, kcerrors.Wrap(kcerrors.ErrCodeConfig, err, "sdk path %s", home)
	}
	if !info.IsDir() {
		return nil, kcerrors.New(kcerrors.ErrCodeConfig, "sdk path %s is not a directory", home)
	}

	for _, rel := range []string{filepath.Join("bin", binaryName()), binaryName()} {
		candidate := filepath.Join(home, rel)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return &SDK{Home: home, CjcPath: candidate}, nil
		}
	}
	return nil, kcerrors.New(kcerrors.ErrCodeConfig, "no %s found under %s", binaryName(), home)
}

// Version invokes `cjc --version` and returns its first output line.
func (s *SDK) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, s.CjcPath, "--version").CombinedOutput()
	if err != nil {
		return "", kcerrors.Wrap(kcerrors.ErrCodeConfig, err, "running %s --version", s.CjcPath)
	}

	lines := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)
	if len(lines) == 0 || lines[0] == "" {
		return "", kcerrors.New(kcerrors.ErrCodeConfig, "%s --version produced no output", s.CjcPath)
	}
	return strings.TrimSpace(lines[0]), nil
}
