package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/partimages/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveStream(t *testing.T) {
	root := t.TempDir()
	svc := NewStorageService(&config.Config{UploadStagingDir: root, UploadMaxFileSize: 1024})

	staged, err := svc.SaveStream(context.Background(), "../../etc/shaft.jpg", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "shaft.jpg", filepath.Base(staged.Path))
	assert.True(t, strings.HasPrefix(staged.Path, root))
	assert.EqualValues(t, 3, staged.Size)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", staged.Checksum)

	data, err := os.ReadFile(staged.Path)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	require.NoError(t, staged.Remove())
	_, err = os.Stat(filepath.Dir(staged.Path))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveStreamTooLarge(t *testing.T) {
	root := t.TempDir()
	svc := NewStorageService(&config.Config{UploadStagingDir: root, UploadMaxFileSize: 4})

	_, err := svc.SaveStream(context.Background(), "big.jpg", strings.NewReader("12345"))
	assert.Error(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
