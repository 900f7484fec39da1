package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects file changes by periodically re-scanning a
// directory tree and diffing against the previous scan. It stands in for
// fsnotify on platforms or environments where inotify/kqueue isn't
// available.
type PollingWatcher struct {
	interval time.Duration
	rootPath string

	mu      sync.RWMutex
	state   map[string]fileSnapshot
	stopped bool

	events chan FileEvent
	errors chan error
	stopCh chan struct{}
}

// fileSnapshot is the subset of file metadata that, when changed, indicates
// the file was modified.
type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a watcher that re-scans every interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		state:    make(map[string]fileSnapshot),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start scans path to establish a baseline, then polls it every interval
// until ctx is cancelled or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.rootPath = absPath

	if err := p.snapshot(); err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.poll(); err != nil {
				select {
				case p.errors <- err:
				default:
				}
			}
		}
	}
}

// Stop halts polling and closes the Events/Errors channels. Safe to call
// more than once.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of detected file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of non-fatal scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// walkSnapshot walks rootPath and reports a snapshot for every entry,
// skipping anything below the root that can't be stat'd. An unreadable
// root is returned as an error.
func (p *PollingWatcher) walkSnapshot(visit func(relPath string, snap fileSnapshot)) error {
	return filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.rootPath {
				return err
			}
			return nil
		}
		relPath, err := filepath.Rel(p.rootPath, path)
		if err != nil || relPath == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		visit(relPath, fileSnapshot{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()})
		return nil
	})
}

// snapshot records the current file state as the baseline with no event
// emission. Used for the initial scan.
func (p *PollingWatcher) snapshot() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.walkSnapshot(func(relPath string, snap fileSnapshot) {
		p.state[relPath] = snap
	})
}

// poll re-scans the tree, emits CREATE/MODIFY events for anything new or
// changed since the last poll, DELETE events for anything gone, and
// replaces the stored state with the fresh scan.
func (p *PollingWatcher) poll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]fileSnapshot)
	err := p.walkSnapshot(func(relPath string, snap fileSnapshot) {
		current[relPath] = snap

		prev, existed := p.state[relPath]
		switch {
		case !existed:
			p.emitEvent(FileEvent{Path: relPath, Operation: OpCreate, IsDir: snap.isDir, Timestamp: time.Now()})
		case prev.modTime != snap.modTime || prev.size != snap.size:
			p.emitEvent(FileEvent{Path: relPath, Operation: OpModify, IsDir: snap.isDir, Timestamp: time.Now()})
		}
	})
	if err != nil {
		return fmt.Errorf("walk directory for changes: %w", err)
	}

	for relPath, snap := range p.state {
		if _, exists := current[relPath]; !exists {
			p.emitEvent(FileEvent{Path: relPath, Operation: OpDelete, IsDir: snap.isDir, Timestamp: time.Now()})
		}
	}

	p.state = current
	return nil
}

// emitEvent sends event to the events channel without blocking, dropping it
// and logging if the channel is full. Callers must hold p.mu.
func (p *PollingWatcher) emitEvent(event FileEvent) {
	if p.stopped {
		return
	}

	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()),
		)
	}
}
