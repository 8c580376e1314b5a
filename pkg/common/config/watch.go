package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
)

// WatchCatalog reloads the dependency catalog at path whenever the file
// changes and hands the new catalog to onChange. A catalog that fails to
// parse is logged and skipped; the caller keeps the previous one.
//
// The parent directory is watched rather than the file. A save that renames
// a temp file over path, or a symlink swap such as a mounted ConfigMap
// update, replaces the inode a file watch would be attached to.
func WatchCatalog(ctx context.Context, path string, onChange func(Catalog)) error {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	realPath, _ := filepath.EvalSymlinks(path)
	logger.WithField("path", path).Info("Watching dependency catalog")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			current, _ := filepath.EvalSymlinks(path)
			touched := filepath.Clean(event.Name) == path &&
				event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename)
			swapped := current != "" && current != realPath
			if !touched && !swapped {
				continue
			}
			realPath = current

			cat, err := LoadCatalog(path)
			if err != nil {
				logger.Get().WithError(err).WithField("path", path).Error("Catalog reload failed, keeping previous catalog")
				continue
			}

			logger.WithFields(map[string]interface{}{
				"path":         path,
				"dependencies": len(cat.Dependencies),
			}).Info("Dependency catalog reloaded")
			onChange(cat)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Get().WithError(err).Error("Catalog watcher error")
		}
	}
}
