package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

type FilePathProvider struct {
	snapshot
	path string
}

func NewFilePathProvider(path string, onChange func()) *FilePathProvider {
	fp := &FilePathProvider{path: path}
	fp.onChange = onChange
	return fp
}

func (fp *FilePathProvider) URI() string {
	return fp.path
}

func (fp *FilePathProvider) Initialize() error {
	return fp.load()
}

// Watch reloads the file on every write until ctx is done. A file that fails to parse
// leaves the previous snapshot in place.
func (fp *FilePathProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(fp.path); err != nil {
		return fmt.Errorf("unable to watch %s: %w", fp.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := fp.load(); err != nil {
				log.WithField("uri", fp.path).Error(err)
				continue
			}
			log.WithField("uri", fp.path).Info("flag values updated")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithField("uri", fp.path).Errorf("watcher error: %v", err)
		}
	}
}

func (fp *FilePathProvider) load() error {
	if fp.path == "" {
		return errors.New("no filepath string set")
	}
	raw, err := os.ReadFile(fp.path)
	if err != nil {
		return err
	}
	fm, err := parse(raw, isYAML(fp.path))
	if err != nil {
		return fmt.Errorf("%s: %w", fp.path, err)
	}
	fp.store(fm)
	return nil
}
