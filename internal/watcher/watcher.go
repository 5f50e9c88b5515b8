// Package watcher monitors an inbox directory and hands newly dropped
// audio or text files to a handler, with bounded concurrency.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Handler processes one dropped file. It is invoked from a background
// goroutine, at most maxConcurrent at a time.
type Handler func(ctx context.Context, path string) error

var audioExts = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg", ".aac"}
var textExts = []string{".txt", ".md"}

type Watcher struct {
	inbox   string
	handler Handler
	log     *logrus.Entry
	fsw     *fsnotify.Watcher
	sem     chan struct{}
	wg      sync.WaitGroup

	// settle is how long to wait after a create event before reading
	// the file, so a slow writer can finish.
	settle time.Duration
}

func New(inbox string, handler Handler, log *logrus.Entry, maxConcurrent int) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(inbox); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", inbox, err)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Watcher{
		inbox:   inbox,
		handler: handler,
		log:     log.WithField("component", "watcher"),
		fsw:     fsw,
		sem:     make(chan struct{}, maxConcurrent),
		settle:  500 * time.Millisecond,
	}, nil
}

// Start blocks until ctx is done or the watcher breaks. On shutdown it
// waits for in-flight handlers before returning.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.WithFields(logrus.Fields{
		"inbox":          w.inbox,
		"max_concurrent": cap(w.sem),
	}).Info("inbox watcher started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("waiting for in-flight files")
			w.wg.Wait()
			w.log.Info("inbox watcher stopped")
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !supported(event.Name) {
				w.log.WithField("path", event.Name).Debug("ignoring unsupported file")
				continue
			}
			w.log.WithField("path", event.Name).Info("new file detected")
			time.Sleep(w.settle)

			select {
			case w.sem <- struct{}{}:
				w.wg.Add(1)
				go func(path string) {
					defer w.wg.Done()
					defer func() { <-w.sem }()
					if err := w.handler(ctx, path); err != nil {
						w.log.WithFields(logrus.Fields{
							"path":  path,
							"error": err.Error(),
						}).Error("failed to process file")
					}
				}(event.Name)
			case <-ctx.Done():
				w.wg.Wait()
				return ctx.Err()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.WithField("error", err.Error()).Error("watcher error")
		}
	}
}

func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

// IsAudio reports whether path carries a supported audio extension.
func IsAudio(path string) bool {
	return hasExt(path, audioExts)
}

func supported(path string) bool {
	return hasExt(path, audioExts) || hasExt(path, textExts)
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
