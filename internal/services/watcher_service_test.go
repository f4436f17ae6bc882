package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/partimages/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) (*WatcherService, *fakeObjectStore, string) {
	t.Helper()
	dir := t.TempDir()
	store := newFakeObjectStore()
	cfg := &config.Config{
		MinioBucket:         "images",
		UploadMaxConcurrent: 1,
		WatchFolder:         dir,
		WatchStability:      30 * time.Millisecond,
		WatchPollInterval:   10 * time.Millisecond,
	}
	images := NewImageService(newTestDB(t))
	return NewWatcherService(cfg, images, NewUploadService(cfg, images, store)), store, dir
}

func startWatcher(t *testing.T, w *WatcherService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func fileGone(path string) func() bool {
	return func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}
}

func TestWatcherUploadsDroppedFile(t *testing.T) {
	w, store, dir := newTestWatcher(t)
	startWatcher(t, w)

	// give the watcher time to register
	time.Sleep(50 * time.Millisecond)
	path := writeTempFile(t, dir, "drop.jpg", "image-data")

	assert.Eventually(t, fileGone(path), 3*time.Second, 20*time.Millisecond)
	assert.True(t, store.has("images", "drop.jpg"))

	detail := w.images.ListImages(context.Background(), "")
	require.Len(t, detail, 1)
	assert.Equal(t, "drop.jpg", detail[0].FileName)
	require.NotNil(t, detail[0].Notes)
	assert.Equal(t, watcherNotes, *detail[0].Notes)
	assert.Equal(t, watcherResolution, *detail[0].Resolution)
	assert.Nil(t, detail[0].PartNumber)
}

func TestWatcherInitialScan(t *testing.T) {
	w, store, dir := newTestWatcher(t)
	existing := writeTempFile(t, dir, "before.png", "png")
	hidden := writeTempFile(t, dir, ".hidden.png", "png")

	startWatcher(t, w)

	assert.Eventually(t, fileGone(existing), 3*time.Second, 20*time.Millisecond)
	assert.True(t, store.has("images", "before.png"))

	_, err := os.Stat(hidden)
	assert.NoError(t, err)
	assert.False(t, store.has("images", ".hidden.png"))
}

func TestWatcherSecondDropIsRemoved(t *testing.T) {
	w, store, dir := newTestWatcher(t)
	startWatcher(t, w)
	time.Sleep(50 * time.Millisecond)

	first := writeTempFile(t, dir, "twice.jpg", "one")
	assert.Eventually(t, fileGone(first), 3*time.Second, 20*time.Millisecond)

	second := writeTempFile(t, dir, "twice.jpg", "two")
	assert.Eventually(t, fileGone(second), 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, 1, store.count())
	assert.Len(t, w.images.ListImages(context.Background(), ""), 1)
}

func TestProcessRecordedFileRemovesLocalCopy(t *testing.T) {
	w, store, dir := newTestWatcher(t)
	ctx := context.Background()

	_, err := w.images.SaveImage(ctx, sampleRecord("known.jpg"), "")
	require.NoError(t, err)

	path := writeTempFile(t, dir, "known.jpg", "data")
	require.NoError(t, w.Process(ctx, path))

	assert.True(t, fileGone(path)())
	assert.Zero(t, store.count())
	assert.True(t, w.isHandled("known.jpg"))
}

func TestProcessReingestsAfterRowDeleted(t *testing.T) {
	w, store, dir := newTestWatcher(t)
	ctx := context.Background()

	path := writeTempFile(t, dir, "h.jpg", "first")
	require.NoError(t, w.Process(ctx, path))
	require.True(t, w.isHandled("h.jpg"))

	image, err := w.images.FindByFileName(ctx, "h.jpg")
	require.NoError(t, err)
	require.NotNil(t, image)
	deleted, err := w.images.DeleteImage(ctx, image.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	require.NoError(t, store.Delete(ctx, "images", "h.jpg"))

	path = writeTempFile(t, dir, "h.jpg", "second")
	require.NoError(t, w.Process(ctx, path))

	assert.True(t, fileGone(path)())
	assert.True(t, store.has("images", "h.jpg"))
	assert.Len(t, w.images.ListImages(ctx, ""), 1)
}

func TestProcessFailureKeepsFile(t *testing.T) {
	w, store, dir := newTestWatcher(t)
	ctx := context.Background()
	store.uploadErr = errors.New("store down")

	path := writeTempFile(t, dir, "retry.jpg", "data")
	assert.Error(t, w.Process(ctx, path))

	_, err := os.Stat(path)
	assert.NoError(t, err)
	assert.False(t, w.isHandled("retry.jpg"))

	store.uploadErr = nil
	require.NoError(t, w.Process(ctx, path))
	assert.True(t, fileGone(path)())
	assert.True(t, store.has("images", "retry.jpg"))
}

func TestProcessMissingFile(t *testing.T) {
	w, _, dir := newTestWatcher(t)

	err := w.Process(context.Background(), filepath.Join(dir, "nope.jpg"))
	assert.ErrorIs(t, err, errFileGone)
}
