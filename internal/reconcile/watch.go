package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jordangarrison/grove/internal/logging"
)

var watchLog = logging.ForComponent(logging.CompReconcile)

// debounceWindow coalesces a burst of marker-file events (e.g. `git
// worktree add` touching several files at once) into one refresh signal,
// the same pattern the teacher's internal/session/event_watcher.go and
// hook_watcher.go use for their own fsnotify debounce timers.
const debounceWindow = 150 * time.Millisecond

// MarkerWatcher watches the direct entries of a project root and signals
// when any of them changes, so a caller can trigger Reconcile without
// polling. Subdirectories are not watched: marker-file edits inside a
// worktree, and worktree directories created outside the project root,
// raise no signal. On platforms/filesystems where fsnotify is
// unreliable (see internal/platform.CheckFsnotifySupport), callers should
// skip constructing one and fall back to a manual-refresh prompt instead.
type MarkerWatcher struct {
	watcher  *fsnotify.Watcher
	changeCh chan struct{}
}

// NewMarkerWatcher watches projectRoot non-recursively: only entries
// created, removed, renamed or written directly in projectRoot raise
// events.
func NewMarkerWatcher(projectRoot string) (*MarkerWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(projectRoot); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", projectRoot, err)
	}
	return &MarkerWatcher{watcher: w, changeCh: make(chan struct{}, 1)}, nil
}

// Changes returns the channel a caller should select on; it receives at
// most one pending signal at a time (further events coalesce until the
// receiver drains it).
func (m *MarkerWatcher) Changes() <-chan struct{} { return m.changeCh }

// Run pumps fsnotify events into Changes(), debounced, until ctx is
// cancelled.
func (m *MarkerWatcher) Run(ctx context.Context) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			watchLog.Warn("marker watch error", "err", err)
		case _, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if debounce == nil {
				debounce = time.AfterFunc(debounceWindow, m.signal)
			} else {
				debounce.Reset(debounceWindow)
			}
		}
	}
}

func (m *MarkerWatcher) signal() {
	select {
	case m.changeCh <- struct{}{}:
	default:
	}
}

// Close stops the underlying fsnotify watcher.
func (m *MarkerWatcher) Close() error {
	return m.watcher.Close()
}
