// Package watch notices when branch tips move so `cxfinder watch` can
// re-run its checks.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for ref updates to settle.
// A single `git commit` or `git fetch` touches several files.
const DefaultDebounce = 250 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *logging.Logger
}

// Watcher reports changes to local branch refs: loose refs under
// refs/heads (recursively), packed-refs and HEAD.
type Watcher struct {
	watcher  *fsnotify.Watcher
	gitDir   string
	debounce time.Duration
	logger   *logging.Logger

	mu       sync.Mutex
	watched  map[string]bool
	stopOnce sync.Once
}

// New starts watching the refs of the repository whose .git directory is
// gitDir.
func New(gitDir string, opts Options) (*Watcher, error) {
	if gitDir == "" {
		return nil, errors.NewValidationError("repository has no .git directory to watch")
	}
	if _, err := os.Stat(gitDir); err != nil {
		return nil, errors.Wrapf(err, "git directory does not exist: %s", gitDir)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	w := &Watcher{
		watcher:  fw,
		gitDir:   gitDir,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		watched:  make(map[string]bool),
	}

	// The .git directory itself covers packed-refs and HEAD.
	if err := w.add(gitDir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	// refs/ is watched so a missing refs/heads is noticed when it appears.
	refs := filepath.Join(gitDir, "refs")
	if _, err := os.Stat(refs); err == nil {
		if err := w.add(refs); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	heads := filepath.Join(refs, "heads")
	if _, err := os.Stat(heads); err == nil {
		if err := w.addRecursive(heads); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watched[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}
	w.watched[dir] = true
	return nil
}

// addRecursive watches root and every directory below it. fsnotify only
// reports events for direct children of a watched directory.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Directories can vanish while git packs refs
		}
		if d.IsDir() {
			return w.add(path)
		}
		return nil
	})
}

// forget drops a removed directory; fsnotify has already released its watch.
func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watched, path)
}

// WatchedDirs returns the directories currently being watched, sorted.
func (w *Watcher) WatchedDirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs := make([]string, 0, len(w.watched))
	for d := range w.watched {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Run blocks until ctx is done, calling onChange with the sorted names of
// the refs that changed ("refs/heads/x", "packed-refs", "HEAD") once
// updates have been quiet for the debounce interval. onChange runs on the
// watcher goroutine; events arriving meanwhile are batched into the next
// call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	defer w.Close()

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			debounceTimer.Stop()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			name, relevant := w.classify(event)
			if !relevant {
				continue
			}

			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.forget(event.Name)
			}

			// New namespace directories (refs/heads/feature/) need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("failed to watch new ref directory", "path", event.Name, "error", err)
					}
					continue
				}
			}

			pending[name] = true
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)

			w.logger.Debug("refs changed", "refs", changed)
			onChange(ctx, changed)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// classify maps an event to the ref it touches. Lock files, chmod-only
// events and anything outside refs/heads, packed-refs and HEAD are not
// relevant.
func (w *Watcher) classify(event fsnotify.Event) (string, bool) {
	if event.Op == fsnotify.Chmod {
		return "", false
	}
	if strings.HasSuffix(event.Name, ".lock") {
		return "", false
	}

	rel, err := filepath.Rel(w.gitDir, event.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	switch {
	case rel == "packed-refs", rel == "HEAD":
		return rel, true
	case rel == "refs/heads", strings.HasPrefix(rel, "refs/heads/"):
		return rel, true
	default:
		return "", false
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.watcher.Close()
	})
	return err
}
