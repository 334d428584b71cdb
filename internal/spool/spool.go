// Package spool feeds the engine from a spool directory: task files
// dropped there are parsed and enqueued, then removed. Files ending in
// .json carry {payload, priority, context}; anything else is treated as a
// plain-text payload at medium priority.
package spool

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marcus/dispatch/internal/logging"
)

// Enqueuer is the part of the engine the spool feeds.
type Enqueuer interface {
	EnqueueText(payload, priority string, ctx map[string]any) (string, bool)
}

// taskFile is the JSON shape of a spooled task.
type taskFile struct {
	Payload  string         `json:"payload"`
	Priority string         `json:"priority"`
	Context  map[string]any `json:"context"`
}

// Watcher ingests task files from a directory.
type Watcher struct {
	dir    string
	target Enqueuer
	logger *logging.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New creates a watcher over dir, creating the directory if needed.
func New(dir string, target Enqueuer) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Watcher{
		dir:    dir,
		target: target,
		logger: logging.Component("spool"),
	}, nil
}

// Start ingests any files already present, then watches for new ones
// until Stop is called.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw
	w.done = make(chan struct{})

	w.scan()

	go func() {
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				// Writers may still be mid-flush on the create event.
				time.Sleep(50 * time.Millisecond)
				w.ingest(ev.Name)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.WarnCtx("spool watch error", map[string]any{"error": err.Error()})
			case <-w.done:
				return
			}
		}
	}()
	return nil
}

// Stop ends the watch.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	close(w.done)
	_ = w.watcher.Close()
	w.watcher = nil
}

// scan ingests every regular file currently in the spool directory.
func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.WarnCtx("spool scan failed", map[string]any{"error": err.Error()})
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.ingest(filepath.Join(w.dir, entry.Name()))
	}
}

// ingest parses one task file, enqueues it, and removes the file. Parse
// failures leave the file in place with a warning so the producer can
// inspect it.
func (w *Watcher) ingest(path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.WarnCtx("spool read failed", map[string]any{
				"file": name, "error": err.Error(),
			})
		}
		return
	}

	var tf taskFile
	if strings.HasSuffix(name, ".json") {
		if err := json.Unmarshal(data, &tf); err != nil {
			w.logger.WarnCtx("spool file is not valid task JSON", map[string]any{
				"file": name, "error": err.Error(),
			})
			return
		}
	} else {
		tf.Payload = strings.TrimSpace(string(data))
	}

	if tf.Payload == "" {
		w.logger.WarnCtx("spool file has empty payload, skipping", map[string]any{
			"file": name,
		})
		_ = os.Remove(path)
		return
	}

	id, ok := w.target.EnqueueText(tf.Payload, tf.Priority, tf.Context)
	if !ok {
		w.logger.InfoCtx("spooled task rejected at admission", map[string]any{
			"file": name, "task": id,
		})
	} else {
		w.logger.InfoCtx("spooled task enqueued", map[string]any{
			"file": name, "task": id,
		})
	}
	_ = os.Remove(path)
}
