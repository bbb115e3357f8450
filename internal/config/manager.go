package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Manager owns the live camera configuration and republishes it to
// subscribers when the file on disk changes.
type Manager struct {
	path string

	mu  sync.RWMutex
	doc *CameraDocument

	// subsMu guards the subscriber list so a publish never races with
	// Unsubscribe closing a channel.
	subsMu sync.Mutex
	subs   []chan *CameraDocument
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load parses the file and commits the result as the live configuration.
func (m *Manager) Load() (*CameraDocument, error) {
	doc, err := LoadCameraDocument(m.path)
	if err != nil {
		return nil, err
	}
	m.commit(doc)
	return doc, nil
}

func (m *Manager) commit(doc *CameraDocument) {
	m.mu.Lock()
	m.doc = doc
	m.mu.Unlock()
}

// Get returns the current configuration. Callers must treat it as
// read-only.
func (m *Manager) Get() *CameraDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc
}

// Subscribe returns a channel receiving each committed configuration.
func (m *Manager) Subscribe(buffer int) chan *CameraDocument {
	ch := make(chan *CameraDocument, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) publish(doc *CameraDocument) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- doc:
		default:
			// Slow subscriber keeps its stale config until the next change.
		}
	}
}

// Watch blocks until ctx is done, reloading and republishing the
// configuration whenever the file is rewritten. Invalid documents are
// logged and skipped; the previous configuration stays live.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			slog.Warn("failed to close config watcher", slog.String("error", err.Error()))
		}
	}()

	// Watch the directory: editors replace files via rename, which drops
	// a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		return err
	}

	var debounce *time.Timer
	reload := func() {
		doc, err := LoadCameraDocument(m.path)
		if err != nil {
			slog.Warn("ignoring invalid camera config update",
				slog.String("path", m.path),
				slog.String("error", err.Error()),
			)
			return
		}
		m.commit(doc)
		m.publish(doc)
		slog.Info("camera config reloaded",
			slog.String("path", m.path),
			slog.Int("cameras", len(doc.Cameras)),
		)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Editors emit bursts of events per save; coalesce them.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}
