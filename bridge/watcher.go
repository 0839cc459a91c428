package bridge

import (
	"path/filepath"

	"github.com/aurora-ops/dmbridge/internal/fsstore"
	"github.com/fsnotify/fsnotify"
)

// Watcher wakes handoff waiters as soon as the reply-queue file changes,
// instead of leaving them on the poll interval alone. Queue writes land
// via atomic rename, so the watch is on the parent directory and events
// are filtered by file name.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

func NewWatcher(queuePath string) (*Watcher, error) {
	dir := filepath.Dir(queuePath)
	if err := fsstore.EnsureDir(dir, 0); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.run(filepath.Base(queuePath))
	return w, nil
}

// Changes signals at least once after each queue-file change. Signals
// coalesce; a receiver always re-checks the queue itself.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run(queueName string) {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != queueName {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}
