package chapters

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long a template file must stay quiet before it is reloaded.
// Editors often write a file in several steps.
const DefaultSettleDelay = 200 * time.Millisecond

// TemplateWatcher reloads a TemplateGenerator when its YAML file changes.
// A file that fails to parse is logged and the previous chapters stay in use.
type TemplateWatcher struct {
	path     string
	template *TemplateGenerator
	logger   *slog.Logger
	settle   time.Duration

	watcher *fsnotify.Watcher
	reloads chan struct{} // signalled after each reload attempt; used by tests

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// WatchTemplate starts watching path and applies changes to template.
// The parent directory is watched so that files replaced by rename are seen.
func WatchTemplate(path string, template *TemplateGenerator, settle time.Duration, logger *slog.Logger) (*TemplateWatcher, error) {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &TemplateWatcher{
		path:     path,
		template: template,
		logger:   logger,
		settle:   settle,
		watcher:  watcher,
		reloads:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	logger.Info("watching chapter template", "path", path)
	return w, nil
}

func (w *TemplateWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("chapter template watch error", "error", err)
		}
	}
}

// scheduleReload restarts the settle timer.
func (w *TemplateWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, w.reload)
}

func (w *TemplateWatcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	loaded, err := LoadTemplate(w.path)
	if err != nil {
		w.logger.Warn("chapter template not reloaded", "path", w.path, "error", err)
	} else {
		w.template.replace(loaded)
		w.logger.Info("chapter template reloaded", "path", w.path, "chapters", len(loaded.Drafts()))
	}

	select {
	case w.reloads <- struct{}{}:
	default:
	}
}

// Close stops watching. Safe to call more than once.
func (w *TemplateWatcher) Close() error {
	w.mu.Lock()
	select {
	case <-w.done:
		w.mu.Unlock()
		return nil
	default:
	}
	close(w.done)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
