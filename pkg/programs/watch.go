package programs

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	clog "github.com/vilterp/roomdb/pkg/log"
)

// Watch reloads scripts as they change on disk. It blocks until ctx is done.
// If ready is non-nil it is closed once the watch is in place.
func (m *Manager) Watch(ctx context.Context, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(m.cfg.Dir); err != nil {
		return errors.Wrapf(err, "watching %s", m.cfg.Dir)
	}
	clog.Printf(m, "watching %s", m.cfg.Dir)
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			m.handleEvent(ctx, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			clog.Errorf(m, "watcher: %v", err)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, event fsnotify.Event) {
	if _, ok := ProgramID(event.Name); !ok {
		return
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		m.Unload(event.Name)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if err := m.Reload(ctx, event.Name); err != nil {
			clog.Errorf(m, "reloading %s: %v", event.Name, err)
		}
	}
}
