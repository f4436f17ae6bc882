package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/partimages/backend/internal/config"
	"github.com/partimages/backend/internal/logging"
	"go.uber.org/zap"
)

const (
	watcherResolution  = "1920x1080"
	watcherCaptureMode = "Auto"
	watcherNotes       = "Uploaded via folder watcher"
)

var errFileGone = errors.New("file disappeared")

// WatcherService ingests files dropped into a directory. Each file is
// uploaded once and then removed from the directory.
type WatcherService struct {
	dir       string
	stability time.Duration
	poll      time.Duration
	images    *ImageService
	uploads   *UploadService

	mu       sync.Mutex
	handled  map[string]bool
	inFlight map[string]bool
	wg       sync.WaitGroup
}

func NewWatcherService(cfg *config.Config, images *ImageService, uploads *UploadService) *WatcherService {
	poll := cfg.WatchPollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &WatcherService{
		dir:       cfg.WatchFolder,
		stability: cfg.WatchStability,
		poll:      poll,
		images:    images,
		uploads:   uploads,
		handled:   map[string]bool{},
		inFlight:  map[string]bool{},
	}
}

// Run watches the directory until ctx is done. Files already present are
// processed first.
func (w *WatcherService) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watch folder: %w", err)
	}

	w.mu.Lock()
	w.handled = map[string]bool{}
	w.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("failed to close watcher", logging.SourceWatcher, zap.Error(err))
		}
	}()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logging.Info("watching folder", logging.SourceWatcher, zap.String("dir", w.dir))

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			w.dispatch(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			logging.Info("folder watcher stopped", logging.SourceWatcher)
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				w.wg.Wait()
				return errors.New("watcher closed")
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.dispatch(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				w.wg.Wait()
				return errors.New("watcher error channel closed")
			}
			logging.Error("watcher error", logging.SourceWatcher, zap.Error(err))
		}
	}
}

func (w *WatcherService) dispatch(ctx context.Context, path string) {
	if isHidden(path) {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.Process(ctx, path); err != nil && !errors.Is(err, errFileGone) && ctx.Err() == nil {
			logging.Error("failed to process file", logging.SourceWatcher,
				zap.String("path", path), zap.Error(err))
		}
	}()
}

// Process ingests one file. Calls for a file name that is already being
// processed return immediately.
func (w *WatcherService) Process(ctx context.Context, path string) error {
	name := filepath.Base(path)
	if isHidden(path) {
		return nil
	}

	w.mu.Lock()
	if w.inFlight[name] {
		w.mu.Unlock()
		return nil
	}
	w.inFlight[name] = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.inFlight, name)
		w.mu.Unlock()
	}()

	if err := w.awaitStable(ctx, path); err != nil {
		return err
	}

	if w.isHandled(name) {
		logging.Info("file name seen before, checking store", logging.SourceWatcher, zap.String("file_name", name))
	}

	// the local copy is removed only once a row for the name exists
	existing, err := w.images.FindByFileName(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		logging.Info("file already recorded, removing local copy", logging.SourceWatcher, zap.String("file_name", name))
		w.markHandled(name)
		return removeLocal(path)
	}

	res, err := w.uploads.UploadFile(ctx, UploadRequest{
		LocalPath:   path,
		ObjectName:  name,
		Resolution:  watcherResolution,
		CaptureMode: watcherCaptureMode,
		Notes:       watcherNotes,
		CapturedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	w.markHandled(name)
	if res.Duplicate {
		logging.Info("file recorded concurrently, removing local copy", logging.SourceWatcher, zap.String("file_name", name))
	} else {
		logging.Info("file uploaded", logging.SourceWatcher, zap.String("file_name", name), zap.String("url", res.URL))
	}
	return removeLocal(path)
}

// awaitStable returns once the file size has not changed for the stability
// window.
func (w *WatcherService) awaitStable(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errFileGone
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return errFileGone
	}

	size := info.Size()
	changed := time.Now()
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return errFileGone
			}
			return err
		}
		if info.Size() != size {
			size = info.Size()
			changed = time.Now()
			continue
		}
		if time.Since(changed) >= w.stability {
			return nil
		}
	}
}

func (w *WatcherService) isHandled(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handled[name]
}

func (w *WatcherService) markHandled(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handled[name] = true
}

func removeLocal(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
