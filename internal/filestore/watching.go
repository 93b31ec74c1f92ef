package filestore

import (
	"github.com/fsnotify/fsnotify"

	"github.com/devorc/orchestrator/internal/eventbus"
)

// FileChanged is published once fsnotify observes a write or create under
// the watched root. No component in this module subscribes to it, and
// AgentCoordinator does not wait for it before emitting task_completed.
const FileChanged eventbus.Name = "file_changed"

// WatchingStore decorates a Store with an fsnotify watcher over root,
// publishing FileChanged events as writes are observed on disk.
type WatchingStore struct {
	Store
	watcher *fsnotify.Watcher
	bus     eventbus.Bus
	done    chan struct{}
}

// NewWatchingStore wraps store, watching root for filesystem events and
// republishing them on bus. Call Close to stop watching.
func NewWatchingStore(store Store, root string, bus eventbus.Bus) (*WatchingStore, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	ws := &WatchingStore{Store: store, watcher: watcher, bus: bus, done: make(chan struct{})}
	go ws.loop()
	return ws, nil
}

func (ws *WatchingStore) loop() {
	for {
		select {
		case ev, ok := <-ws.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				ws.bus.Publish(eventbus.Event{
					Name:    FileChanged,
					Payload: map[string]any{"path": ev.Name, "op": ev.Op.String()},
				})
			}
		case _, ok := <-ws.watcher.Errors:
			if !ok {
				return
			}
		case <-ws.done:
			return
		}
	}
}

// Close stops the underlying watcher.
func (ws *WatchingStore) Close() error {
	close(ws.done)
	return ws.watcher.Close()
}
