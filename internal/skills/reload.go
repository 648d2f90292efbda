package skills

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reloader watches a set of skill directories and rebuilds the registry
// from scratch whenever a *.md file under them changes, swapping it in
// atomically so a reader never observes a partially-loaded registry.
// Adapted from internal/config/manager.go's watcher/debounce idiom, which
// reloads one file at a time in place; skills instead reload the whole
// directory set per change, since a dangling globals reference or a
// duplicate-key error is cheaper to catch by rebuilding than by patching an
// existing registry.
type Reloader struct {
	dirs    []string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current *SkillRegistry

	stop chan struct{}
	done chan struct{}
}

// NewReloader builds a Reloader over dirs. Call Load once to populate the
// initial registry before Start, and Start to begin watching.
func NewReloader(dirs []string, logger *zap.Logger) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Reloader{
		dirs:    dirs,
		logger:  logger,
		watcher: watcher,
		current: NewRegistry(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Registry returns the currently active, fully-loaded registry.
func (rl *Reloader) Registry() *SkillRegistry {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.current
}

// Load builds a fresh registry from every configured directory and, if
// every directory loaded and finalized without error, swaps it in as the
// active one. A failed load leaves the previously active registry (if any)
// untouched.
func (rl *Reloader) Load() error {
	next := NewRegistry()

	var g errgroup.Group
	for _, dir := range rl.dirs {
		dir := dir
		g.Go(func() error { return next.LoadDirectory(dir) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := next.Finalize(); err != nil {
		return err
	}

	rl.mu.Lock()
	rl.current = next
	rl.mu.Unlock()
	return nil
}

// Start adds every configured directory to the watcher and begins the
// background reload loop. A directory that doesn't exist at Start time is
// skipped rather than watched (fsnotify.Watcher.Add requires the path to
// already exist); LoadDirectory's own tolerance for a missing directory
// still applies to every subsequent Load.
func (rl *Reloader) Start() error {
	for _, dir := range rl.dirs {
		if err := rl.watcher.Add(dir); err != nil {
			if rl.logger != nil {
				rl.logger.Warn("skills: not watching directory", zap.String("dir", dir), zap.Error(err))
			}
			continue
		}
	}
	go rl.watchLoop()
	return nil
}

// Stop ends the watch loop and releases the underlying fsnotify watcher.
func (rl *Reloader) Stop() {
	close(rl.stop)
	<-rl.done
	rl.watcher.Close()
}

func (rl *Reloader) watchLoop() {
	defer close(rl.done)
	for {
		select {
		case <-rl.stop:
			return
		case event, ok := <-rl.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".md" {
				continue
			}
			// Coalesce a burst of writes (editors often save in several
			// syscalls) into one reload.
			time.Sleep(50 * time.Millisecond)
			rl.reload(event.Name)
		case err, ok := <-rl.watcher.Errors:
			if !ok {
				return
			}
			if rl.logger != nil {
				rl.logger.Error("skills: watcher error", zap.Error(err))
			}
		}
	}
}

func (rl *Reloader) reload(triggeredBy string) {
	if err := rl.Load(); err != nil {
		if rl.logger != nil {
			rl.logger.Error("skills: reload failed, keeping previous registry",
				zap.String("file", triggeredBy), zap.Error(err))
		}
		return
	}
	if rl.logger != nil {
		rl.logger.Info("skills: reloaded", zap.String("file", triggeredBy), zap.Int("count", rl.Registry().Count()))
	}
}
