package intent

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind describes the type of file change detected.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota // Intent .md file or manifest edited
	ChangeRemoved                    // Intent .md file deleted
)

// BundleChange represents a detected change in the intent directory.
type BundleChange struct {
	Kind     ChangeKind
	IntentID string // Derived from parsing the file (empty for manifest or removal)
	File     string // Absolute path
}

// Watcher monitors an intent directory for file changes using fsnotify.
// Changes are debounced so an editor's save burst produces one event.
type Watcher struct {
	Dir     string
	Changes <-chan BundleChange // Read-only external channel

	changes chan BundleChange // Internal write channel
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a new watcher for the given intent directory.
func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan BundleChange, 16)
	w := &Watcher{
		Dir:     dir,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}
	return w, nil
}

// Start begins watching the intent directory for changes.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: track last event time per file.
	const debounce = 100 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				// Drain pending on close.
				for file := range pending {
					w.emitChange(file)
				}
				return
			}

			if !w.isBundleFile(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				pending[event.Name] = time.Now()
			}

		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					w.emitChange(file)
					delete(pending, file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

func (w *Watcher) isBundleFile(name string) bool {
	base := filepath.Base(name)
	if base == ManifestFileName {
		return true
	}
	return strings.HasSuffix(base, ".md")
}

func (w *Watcher) emitChange(file string) {
	if filepath.Base(file) == ManifestFileName {
		w.changes <- BundleChange{
			Kind: ChangeModified,
			File: file,
		}
		return
	}

	// Try to parse the file to get the intent ID.
	it, err := parseIntentFile(file, Defaults{})
	if err != nil {
		// File may have been removed.
		w.changes <- BundleChange{
			Kind: ChangeRemoved,
			File: file,
		}
		return
	}

	w.changes <- BundleChange{
		Kind:     ChangeModified,
		IntentID: it.ID,
		File:     file,
	}
}
