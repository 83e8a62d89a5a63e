package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/rondohq/rondo/pkg/logger"
)

// File returns the path of the first config.yaml in the loader's
// search directories.
func File(path string) (string, bool) {
	dirs := []string{path}
	if path == "" {
		dirs = append(dirs, ".", "configs", "../../configs", "../../../configs")
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, home+"/.rondo")
		}
	}
	for _, dir := range dirs {
		file := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(file); err == nil {
			return file, true
		}
	}
	return "", false
}

// Watcher tracks the backing config file and reports its changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *logger.Logger
}

// NewWatcher watches the directory of the given config file and calls
// reload with the file path every time it is written or recreated.
// The directory is watched instead of the file itself so that editors
// replacing the file on save don't break the watch.
func NewWatcher(file string, log *logger.Logger, reload func(file string)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	name := filepath.Base(file)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					log.Debug().Msgf("config file changed: %v", event.Name)
					reload(file)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("config watcher error")
			}
		}
	}()
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	log.Info().Msgf("watching config file %v", file)
	return &Watcher{watcher: watcher, log: log}, nil
}

func (w *Watcher) Close() error { return w.watcher.Close() }
