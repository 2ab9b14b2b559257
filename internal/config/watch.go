package config

import (
	"errors"

	"github.com/fsnotify/fsnotify"

	"chatkit/pkg/logger"
)

// Watch reloads the config file whenever it changes on disk and hands the
// freshly validated Config to onChange. Parse failures are logged and the
// previous config stays in effect.
func (l *Loader) Watch(onChange func(*Config)) error {
	if l.path == "" {
		return errors.New("config: no file to watch")
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.Load()
		if err != nil {
			logger.Warn().Err(err).Str("path", e.Name).Msg("Config reload failed")
			return
		}
		logger.Info().Str("path", e.Name).Msg("Config reloaded")
		onChange(cfg)
	})
	l.v.WatchConfig()
	return nil
}
