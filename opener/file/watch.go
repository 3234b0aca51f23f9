package file

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/gobeaver/reskit"
)

// Watch returns a change token that signals when the file is written,
// replaced, renamed, or removed. The parent directory is watched so that
// atomic replace-by-rename is seen as a change too. The watch stops when
// ctx is cancelled or after the first signal (tokens are single-use).
func (o *Opener) Watch(ctx context.Context) (reskit.ChangeToken, error) {
	abs, err := filepath.Abs(o.path)
	if err != nil {
		return nil, wrapOSError("watch", o.path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, reskit.NewResourceError("watch", o.path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, wrapOSError("watch", o.path, err)
	}

	token := reskit.NewCallbackChangeToken()

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					token.SignalChange()
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				o.logger.WithFields(logrus.Fields{"resource": o.path, "error": err}).
					Debug("file watch error")
			}
		}
	}()

	return token, nil
}
