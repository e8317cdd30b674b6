package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "sheetcast/pkg/logx"
)

const (
	watchDebounce       = 250 * time.Millisecond
	watchRestartBackoff = time.Second
)

// Watcher reloads a config file when it changes on disk and hands every
// successfully parsed, changed version to OnChange. Parse errors are logged
// and the previous config stays in effect.
type Watcher struct {
	Path     string
	Log      logx.Logger
	OnChange func(old, cur File)

	mu      sync.Mutex
	current File
	raw     []byte
}

func NewWatcher(path string, current File, log logx.Logger, onChange func(old, cur File)) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	raw, _ := os.ReadFile(path)
	return &Watcher{Path: path, Log: log, OnChange: onChange, current: current, raw: raw}
}

// Reload re-reads the file and publishes it if the content changed.
// It reports whether OnChange was called.
func (w *Watcher) Reload() bool {
	b, err := os.ReadFile(w.Path)
	if err != nil {
		w.Log.Warn("config read failed", logx.String("path", w.Path), logx.Err(err))
		return false
	}

	w.mu.Lock()
	if bytes.Equal(b, w.raw) {
		w.mu.Unlock()
		w.Log.Debug("config unchanged; skipping reload", logx.String("path", w.Path))
		return false
	}
	w.mu.Unlock()

	cfg, err := ParseFile(w.Path, b)
	if err != nil {
		w.Log.Warn("config rejected", logx.String("path", w.Path), logx.Err(err))
		return false
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.raw = b
	w.mu.Unlock()

	w.Log.Info("config reloaded", logx.String("path", w.Path), logx.String("changed", strings.Join(Changes(old, cfg), ",")))
	if w.OnChange != nil {
		w.OnChange(old, cfg)
	}
	return true
}

// Watch blocks until ctx is done. The parent directory is watched rather
// than the file so editors that replace the file via rename are handled.
func (w *Watcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.Path)
	file := filepath.Base(w.Path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			if ctx.Err() == nil {
				w.Reload()
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		fw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = fw.Add(dir); err != nil {
				_ = fw.Close()
			}
		}
		if err != nil {
			w.Log.Warn("config watch init failed", logx.String("dir", dir), logx.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(watchRestartBackoff):
				continue
			}
		}
		w.Log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				w.Log.Warn("config watch error", logx.String("dir", dir), logx.Err(err))
			}
		}
		_ = fw.Close()
		w.Log.Warn("config watcher stopped; restarting", logx.String("dir", dir))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watchRestartBackoff):
		}
	}
}
