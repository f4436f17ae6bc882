package services

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/partimages/backend/internal/config"
	"github.com/partimages/backend/internal/logging"
	"github.com/partimages/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultContentType = "application/octet-stream"

// UploadRequest describes one local file to ingest. ObjectName defaults to
// the base name of LocalPath.
type UploadRequest struct {
	LocalPath   string
	ObjectName  string
	PartNumber  string
	CameraID    *uint
	Resolution  string
	CaptureMode string
	Notes       string
	CapturedAt  time.Time
}

type UploadResult struct {
	FileName  string           `json:"file_name"`
	URL       string           `json:"url,omitempty"`
	Key       string           `json:"key,omitempty"`
	Image     *models.Image    `json:"image,omitempty"`
	Metadata  *models.Metadata `json:"metadata,omitempty"`
	Duplicate bool             `json:"duplicate"`
	Error     string           `json:"error,omitempty"`
}

// UploadService moves local files into the object store and records them.
type UploadService struct {
	images        *ImageService
	store         ObjectStore
	bucket        string
	maxConcurrent int
}

func NewUploadService(cfg *config.Config, images *ImageService, store ObjectStore) *UploadService {
	return &UploadService{
		images:        images,
		store:         store,
		bucket:        cfg.MinioBucket,
		maxConcurrent: cfg.UploadMaxConcurrent,
	}
}

func (s *UploadService) Bucket() string {
	return s.bucket
}

// UploadFile runs the pipeline for one file. A file whose name is already
// recorded is reported as a duplicate and nothing is uploaded.
func (s *UploadService) UploadFile(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	name := req.ObjectName
	if name == "" {
		name = filepath.Base(req.LocalPath)
	}
	result := &UploadResult{FileName: name}

	if err := s.images.Ping(ctx); err != nil {
		return nil, err
	}

	existing, err := s.images.FindByFileName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logging.Info("file already recorded, skipping upload", zap.String("file_name", name))
		result.Duplicate = true
		return result, nil
	}

	if err := s.store.EnsureBucket(ctx, s.bucket); err != nil {
		return nil, err
	}

	info, err := os.Stat(req.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", req.LocalPath, err)
	}
	contentType := detectContentType(req.LocalPath)

	key := ObjectKey(req.PartNumber, name)
	if err := s.store.Upload(ctx, s.bucket, key, req.LocalPath, contentType); err != nil {
		return nil, err
	}
	url := s.store.PublicURL(s.bucket, key)

	capturedAt := req.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	saved, err := s.images.SaveImage(ctx, ImageRecord{
		FilePath:    url,
		FileName:    name,
		FileType:    contentType,
		ImageSize:   info.Size(),
		CapturedAt:  capturedAt,
		BucketName:  s.bucket,
		CameraID:    req.CameraID,
		Resolution:  req.Resolution,
		CaptureMode: req.CaptureMode,
		Notes:       req.Notes,
	}, req.PartNumber)
	if err != nil {
		// The row never made it, so the object would be unreachable.
		if delErr := s.store.Delete(context.WithoutCancel(ctx), s.bucket, key); delErr != nil {
			logging.Warn("failed to remove orphaned object", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	if saved.Duplicate {
		// Another writer recorded the same name between the check and the
		// insert. Keep our object only if that row points at it.
		winner, err := s.images.FindByFileName(ctx, name)
		if err != nil {
			logging.Warn("failed to look up duplicate image, keeping object",
				zap.String("file_name", name), zap.String("key", key), zap.Error(err))
		} else if winner == nil || winner.FilePath != url {
			if delErr := s.store.Delete(context.WithoutCancel(ctx), s.bucket, key); delErr != nil {
				logging.Warn("failed to remove duplicate object", zap.String("key", key), zap.Error(delErr))
			}
		}
		result.Duplicate = true
		return result, nil
	}

	logging.Info("uploaded file",
		zap.String("file_name", name), zap.String("key", key), zap.String("part_number", req.PartNumber))

	result.URL = url
	result.Key = key
	result.Image = saved.Image
	result.Metadata = saved.Metadata
	return result, nil
}

// UploadFiles runs the pipeline over a batch with bounded concurrency. Every
// request gets a result in the same position; failures are reported per file.
func (s *UploadService) UploadFiles(ctx context.Context, reqs []UploadRequest) []*UploadResult {
	results := make([]*UploadResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	limit := s.maxConcurrent
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := s.UploadFile(gctx, req)
			if err != nil {
				name := req.ObjectName
				if name == "" {
					name = filepath.Base(req.LocalPath)
				}
				logging.Error("upload failed", zap.String("file_name", name), zap.Error(err))
				res = &UploadResult{FileName: name, Error: err.Error()}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// detectContentType resolves the MIME type from the extension, falling back
// to sniffing the file contents.
func detectContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil || mt == nil {
		return defaultContentType
	}
	return mt.String()
}
