package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/partimages/backend/internal/config"
)

// StorageService stages incoming multipart files on local disk so they can go
// through the same pipeline as watched files.
type StorageService struct {
	root    string
	maxSize int64
}

// StagedFile is a file written by SaveStream. Remove deletes it together with
// its private directory.
type StagedFile struct {
	Path     string
	Size     int64
	Checksum string
}

func NewStorageService(cfg *config.Config) *StorageService {
	_ = os.MkdirAll(cfg.UploadStagingDir, 0o755)
	return &StorageService{root: cfg.UploadStagingDir, maxSize: cfg.UploadMaxFileSize}
}

// SaveStream writes r to <root>/<uuid>/<name>. The original base name is kept
// because it becomes the stored file name.
func (s *StorageService) SaveStream(ctx context.Context, name string, r io.Reader) (*StagedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file name %q", name)
	}

	dir := filepath.Join(s.root, uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	absPath := filepath.Join(dir, base)

	tmp := absPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	defer f.Close()

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, hasher), src)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	if s.maxSize > 0 && n > s.maxSize {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%s exceeds the %d byte limit", base, s.maxSize)
	}

	if err := f.Sync(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return &StagedFile{
		Path:     absPath,
		Size:     n,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (f *StagedFile) Remove() error {
	return os.RemoveAll(filepath.Dir(f.Path))
}
