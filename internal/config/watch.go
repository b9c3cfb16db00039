package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch calls onChange with the reloaded config whenever path is written.
// It watches the parent directory so editors that replace the file are
// seen. It returns when ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			c, err := Load(abs)
			if err != nil {
				log.Warn().Err(err).Str("path", abs).Msg("config reload failed")
				continue
			}
			if err := c.Validate(); err != nil {
				log.Warn().Err(err).Str("path", abs).Msg("config reload rejected")
				continue
			}
			log.Info().Str("path", abs).Msg("config reloaded")
			onChange(c)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher")
		}
	}
}
