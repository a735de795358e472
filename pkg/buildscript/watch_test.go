package buildscript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherDebouncesChangesIntoOneCallback(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "watched.cj")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0o644))

	calls := make(chan []string, 4)
	w, err := NewWatcher([]string{dir}, func(changed []string) {
		calls <- changed
	})
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(file, []byte("package main\n\nfunc main() {}\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case changed := <-calls:
		require.NotEmpty(t, changed)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced change callback")
	}
}

func TestWatcherCloseStopsDelivery(t *testing.T) {
	dir := t.TempDir()
	calls := make(chan []string, 1)
	w, err := NewWatcher([]string{dir}, func(changed []string) {
		calls <- changed
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	select {
	case <-calls:
		t.Fatal("unexpected callback after Close")
	case <-time.After(400 * time.Millisecond):
	}
}
