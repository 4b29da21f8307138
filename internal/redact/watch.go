package redact

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch hot-reloads the extra rule file whenever it changes on disk. It
// blocks until stop is closed, so run it in its own goroutine.
func (f *Filter) Watch(rulesPath string, stop <-chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  [REDACT] Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(rulesPath)
	if err != nil {
		log.Printf("⚠️  [REDACT] Failed to resolve %s: %v", rulesPath, err)
		return
	}

	// Watch the directory containing the file; editors replace files rather
	// than writing them in place, which a direct file watch misses.
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  [REDACT] Failed to watch %s: %v", dir, err)
		return
	}

	log.Printf("👁️  [REDACT] Watching %s for rule changes", rulesPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := f.Reload(rulesPath); err != nil {
				// Keep the previous rules on a bad edit.
				log.Printf("⚠️  [REDACT] Reload failed, keeping previous rules: %v",
					strings.TrimSpace(err.Error()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  [REDACT] Watcher error: %v", err)
		case <-stop:
			return
		}
	}
}
