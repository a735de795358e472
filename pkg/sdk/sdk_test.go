package sdk

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho cjc 1.0.0\n"), 0o755))
}

func TestLocateFindsBinUnderHome(t *testing.T) {
	home := t.TempDir()
	writeExecutable(t, filepath.Join(home, "bin", binaryName()))

	s, err := Locate(home)
	require.NoError(t, err)
	require.Equal(t, home, s.Home)
	require.Equal(t, filepath.Join(home, "bin", binaryName()), s.CjcPath)
}

func TestLocatePrefersCangjieHomeOverConfigPath(t *testing.T) {
	envHomeDir := t.TempDir()
	writeExecutable(t, filepath.Join(envHomeDir, "bin", binaryName()))

	configDir := t.TempDir()
	writeExecutable(t, filepath.Join(configDir, "bin", binaryName()))

	t.Setenv("CANGJIE_HOME", envHomeDir)

	s, err := Locate(configDir)
	require.NoError(t, err)
	require.Equal(t, envHomeDir, s.Home)
}

func TestLocateFallsBackToConfigPathWhenEnvUnset(t *testing.T) {
	t.Setenv("CANGJIE_HOME", "")

	configDir := t.TempDir()
	writeExecutable(t, filepath.Join(configDir, "bin", binaryName()))

	s, err := Locate(configDir)
	require.NoError(t, err)
	require.Equal(t, configDir, s.Home)
}

func TestLocateRejectsNonDirectoryHome(t *testing.T) {
	t.Setenv("CANGJIE_HOME", "")

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := Locate(file)
	require.Error(t, err)
}

func TestLocateErrorsWhenNothingFound(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("PATH lookup semantics differ on windows")
	}
	t.Setenv("CANGJIE_HOME", "")
	t.Setenv("PATH", "")

	_, err := Locate("")
	require.Error(t, err)
}

func TestVersionParsesFirstLine(t *testing.T) {
	home := t.TempDir()
	binPath := filepath.Join(home, "bin", binaryName())
	writeExecutable(t, binPath)

	s := &SDK{Home: home, CjcPath: binPath}
	version, err := s.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cjc 1.0.0", version)
}
