package calibration

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the store whenever the calibration file changes on disk,
// so an operator can re-calibrate without restarting the engine. Returns
// a stop function. Watching the parent directory survives the atomic
// rename Save performs.
func (s *Store) Watch() (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(s.filePath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.filePath) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if _, err := s.Load(); err == nil {
					s.logger.InfoCtx("calibration reloaded", map[string]any{
						"path": s.filePath,
					})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.WarnCtx("calibration watch error", map[string]any{
					"error": err.Error(),
				})
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
