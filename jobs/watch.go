package jobs

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/logger"
)

// watchDebounce coalesces the events of a single commit into one notification
const watchDebounce = 100 * time.Millisecond

// Watch calls fn after each committed write to the store file, from this or
// any other process, until ctx ends. It returns once the watch is established.
//
// Commits replace the file by rename, so the directory is watched rather than
// the file itself.
func (s *Store) Watch(ctx context.Context, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create store watcher")
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to watch %s", filepath.Dir(s.path))
	}

	go s.watchLoop(ctx, w, fn)

	s.logger.Debugw("watching store", logger.FieldFile, s.path)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, fn func()) {
	defer w.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				if ctx.Err() == nil {
					fn()
				}
			})

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warnw("store watcher error", logger.FieldError, err.Error())
		}
	}
}
