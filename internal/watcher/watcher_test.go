package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lira/internal/watcher"
)

func TestWatcher_ReportsSettledFile(t *testing.T) {
	dir := t.TempDir()

	w, err := watcher.New(watcher.Config{Dir: dir, DebounceDur: 50 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	staged, err := w.Start()
	require.NoError(t, err)

	path := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	select {
	case got := <-staged:
		require.Equal(t, path, got)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected staged file but got timeout")
	}
}

func TestWatcher_DebouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()

	w, err := watcher.New(watcher.Config{Dir: dir, DebounceDur: 50 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	staged, err := w.Start()
	require.NoError(t, err)

	path := filepath.Join(dir, "paper.pdf")
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("chunk%d", i)), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case got := <-staged:
		require.Equal(t, path, got)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected staged file but got timeout")
	}

	select {
	case <-staged:
		t.Fatal("unexpected second notification for the same copy")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_IgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := watcher.New(watcher.Config{Dir: dir, DebounceDur: 30 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	staged, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0644))

	select {
	case path := <-staged:
		t.Fatalf("unexpected notification for hidden file: %s", path)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_ReportsDistinctFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := watcher.New(watcher.Config{Dir: dir, DebounceDur: 30 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	staged, err := w.Start()
	require.NoError(t, err)

	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0644))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case path := <-staged:
			got[path] = true
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("expected 2 staged files, got %d", len(got))
		}
	}
	require.True(t, got[a])
	require.True(t, got[b])
}

func TestWatcher_StopIsClean(t *testing.T) {
	dir := t.TempDir()

	w, err := watcher.New(watcher.Config{Dir: dir, DebounceDur: 30 * time.Millisecond})
	require.NoError(t, err)

	_, err = w.Start()
	require.NoError(t, err)

	require.NoError(t, w.Stop())
}
