package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/dialogiot/foshgw/pkg/logger"
)

// Watcher reloads a config file on write and applies the parts of it that
// are safe to change live: today, only the log level. Other fields (ports,
// cadences, queue capacity) require a restart since they are baked into
// already-running components at Supervisor start.
type Watcher struct {
	path string
	log  *logger.Logger
	fsw  *fsnotify.Watcher
}

// NewWatcher opens an fsnotify watch on path's directory (fsnotify watches
// directories reliably across editors that replace-on-save, unlike watching
// the file directly).
func NewWatcher(path string, log *logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := parentDir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{path: path, log: log.Component("config-watcher"), fsw: fsw}, nil
}

// Run watches until ctx is cancelled, reloading path and calling onReload
// with the new Config whenever the file is written or replaced.
func (w *Watcher) Run(ctx context.Context, onReload func(*Config)) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := loadFile(w.path)
			if err != nil {
				w.log.Warn("config reload failed, keeping previous config", "error", err)
				continue
			}
			w.log.Info("config reloaded", "level", cfg.Logging.Level)
			onReload(cfg)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", "error", err)
		}
	}
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
