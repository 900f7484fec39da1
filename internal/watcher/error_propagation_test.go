package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise the failure paths for HybridWatcher and
// PollingWatcher: errors must reach a caller through a return value or the
// Errors channel, never vanish silently.

func TestHybridWatcher_StartOnMissingPathSurfacesError(t *testing.T) {
	opts := DefaultOptions()
	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx, "/nonexistent/path/that/does/not/exist") }()

	// fsnotify may accept the watcher but fail adding the root directory, so
	// the error can come back via Start's return or the Errors channel.
	select {
	case err := <-errCh:
		if err != nil {
			assert.Error(t, err)
		}
	case err := <-w.Errors():
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Log("no immediate error observed")
	}
}

func TestHybridWatcher_ErrorsChannelIsUsable(t *testing.T) {
	opts := DefaultOptions()
	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	assert.NotNil(t, w.Errors())
}

func TestHybridWatcher_StopClosesEventAndErrorChannels(t *testing.T) {
	tmpDir := t.TempDir()
	opts := Options{DebounceWindow: 10 * time.Millisecond, EventBufferSize: 10}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		_ = w.Start(ctx, tmpDir)
	}()
	<-started
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, w.Stop())
	time.Sleep(100 * time.Millisecond)

	assert.NoError(t, w.Stop(), "a second Stop must be a no-op, not an error")
}

func TestHybridWatcher_ContextCancelStopsCleanly(t *testing.T) {
	tmpDir := t.TempDir()
	opts := Options{DebounceWindow: 10 * time.Millisecond, EventBufferSize: 10}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, tmpDir) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-startErr:
		if err != nil && err != context.Canceled {
			t.Logf("Start returned with: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop within timeout after context cancel")
	}
}

func TestHybridWatcher_WatchedDirectoryRemovedDoesNotPanic(t *testing.T) {
	tmpDir := t.TempDir()
	watchDir := filepath.Join(tmpDir, "watched")
	require.NoError(t, os.MkdirAll(watchDir, 0o755))

	opts := Options{DebounceWindow: 10 * time.Millisecond, EventBufferSize: 10}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		_ = w.Start(ctx, watchDir)
	}()
	<-started
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.RemoveAll(watchDir))

	timeout := time.After(1 * time.Second)
	for {
		select {
		case events := <-w.Events():
			t.Logf("got events after directory removal: %v", events)
		case err := <-w.Errors():
			t.Logf("got error after directory removal: %v", err)
		case <-timeout:
			return
		}
	}
}

func TestHybridWatcher_PermissionDeniedReportsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("requires a non-root user to produce a permission error")
	}

	tmpDir := t.TempDir()
	restrictedDir := filepath.Join(tmpDir, "restricted")
	require.NoError(t, os.MkdirAll(restrictedDir, 0o000))
	defer func() { _ = os.Chmod(restrictedDir, 0o755) }()

	opts := DefaultOptions()
	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx, restrictedDir) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Logf("got expected start error: %v", err)
		}
	case err := <-w.Errors():
		t.Logf("got expected error from Errors channel: %v", err)
	case <-ctx.Done():
		t.Log("context expired without an observed error")
	}
}

func TestPollingWatcher_StartOnMissingPathReturnsError(t *testing.T) {
	w := NewPollingWatcher(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := w.Start(ctx, "/nonexistent/path")

	assert.Error(t, err)
}

func TestDebouncer_StopClosesOutputChannel(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)

	d.Stop()

	select {
	case _, ok := <-d.Output():
		assert.False(t, ok, "output channel should be closed")
	case <-time.After(100 * time.Millisecond):
		// already closed and drained is also fine
	}
}

func TestHybridWatcher_ConcurrentStopIsSafe(t *testing.T) {
	tmpDir := t.TempDir()
	opts := DefaultOptions()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx, tmpDir) }()
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			_ = w.Stop()
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("concurrent stops didn't complete in time")
		}
	}
}
