package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/partimages/backend/internal/logging"
	"github.com/partimages/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrPartNotFound  = errors.New("part not found")
	ErrUnknownField  = errors.New("unknown field")
	ErrFileNameTaken = errors.New("file name already in use")
)

// columns accepted by UpdateImage, by table
var (
	imageColumns = map[string]bool{
		"file_path": true, "file_name": true, "file_type": true, "image_size": true,
		"captured_at": true, "bucket_name": true, "part_id": true, "camera_id": true,
	}
	metadataColumns = map[string]bool{
		"resolution": true, "capture_mode": true, "notes": true,
	}
)

const imageDetailColumns = `i.id AS image_id,
	i.file_path, i.file_name, i.file_type, i.image_size, i.captured_at, i.bucket_name,
	p.part_name, p.part_number,
	c.device_model, c.location, c.serial_number,
	m.resolution, m.capture_mode, m.notes`

// ImageRecord is the input of SaveImage.
type ImageRecord struct {
	FilePath    string
	FileName    string
	FileType    string
	ImageSize   int64
	CapturedAt  time.Time
	BucketName  string
	PartID      *uint
	CameraID    *uint
	Resolution  string
	CaptureMode string
	Notes       string
}

// SaveResult is the outcome of SaveImage. Duplicate is set, and both rows are
// nil, when an image with the same file name already exists.
type SaveResult struct {
	Image     *models.Image    `json:"image"`
	Metadata  *models.Metadata `json:"metadata"`
	Duplicate bool             `json:"duplicate"`
}

// ImageService owns every write to images, metadata and parts.
type ImageService struct {
	db *gorm.DB
}

func NewImageService(db *gorm.DB) *ImageService {
	return &ImageService{db: db}
}

// Ping verifies the connection pool can reach the database.
func (s *ImageService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// EnsurePart returns the id of the part, creating it if needed. The insert is
// an upsert on part_number, so concurrent callers end up with the same row.
func (s *ImageService) EnsurePart(ctx context.Context, partNumber string) (uint, error) {
	return ensurePart(s.db.WithContext(ctx), partNumber)
}

func ensurePart(tx *gorm.DB, partNumber string) (uint, error) {
	var part models.Part
	err := tx.Where("part_number = ?", partNumber).First(&part).Error
	if err == nil {
		return part.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to look up part %s: %w", partNumber, err)
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "part_number"}},
		DoNothing: true,
	}).Create(models.NewPart(partNumber)).Error; err != nil {
		return 0, fmt.Errorf("failed to create part %s: %w", partNumber, err)
	}

	// Read back instead of trusting the insert result: on conflict no row
	// was written by us.
	if err := tx.Where("part_number = ?", partNumber).First(&part).Error; err != nil {
		return 0, fmt.Errorf("failed to read part %s: %w", partNumber, err)
	}
	logging.Info("part ensured", logging.SourceStore, zap.String("part_number", partNumber), zap.Uint("id", part.ID))
	return part.ID, nil
}

// FindByFileName returns the image with the given file name, or nil.
func (s *ImageService) FindByFileName(ctx context.Context, fileName string) (*models.Image, error) {
	var image models.Image
	err := s.db.WithContext(ctx).Where("file_name = ?", fileName).First(&image).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", fileName, err)
	}
	return &image, nil
}

// SaveImage inserts an image and its metadata in one transaction, resolving
// partNumber first when given; it takes precedence over rec.PartID.
// Existing file names are reported as duplicates.
func (s *ImageService) SaveImage(ctx context.Context, rec ImageRecord, partNumber string) (*SaveResult, error) {
	if rec.CapturedAt.IsZero() {
		rec.CapturedAt = time.Now().UTC()
	}

	var result SaveResult
	errDuplicate := errors.New("duplicate")

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Image{}).Where("file_name = ?", rec.FileName).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errDuplicate
		}

		image := &models.Image{
			FilePath:   rec.FilePath,
			FileName:   rec.FileName,
			FileType:   rec.FileType,
			ImageSize:  rec.ImageSize,
			CapturedAt: rec.CapturedAt,
			BucketName: rec.BucketName,
			PartID:     rec.PartID,
			CameraID:   rec.CameraID,
		}
		if partNumber != "" {
			partID, err := ensurePart(tx, partNumber)
			if err != nil {
				return err
			}
			image.PartID = &partID
		}

		if err := tx.Create(image).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errDuplicate
			}
			return fmt.Errorf("failed to insert image: %w", err)
		}

		metadata := &models.Metadata{
			ImageID:     image.ID,
			Resolution:  rec.Resolution,
			CaptureMode: rec.CaptureMode,
			Notes:       rec.Notes,
		}
		if err := tx.Create(metadata).Error; err != nil {
			return fmt.Errorf("failed to insert metadata: %w", err)
		}

		result.Image = image
		result.Metadata = metadata
		return nil
	})

	if errors.Is(err, errDuplicate) {
		logging.Info("duplicate detected, skipping", logging.SourceStore, zap.String("file_name", rec.FileName))
		return &SaveResult{Duplicate: true}, nil
	}
	if err != nil {
		logging.Error("failed to save image", logging.SourceStore, zap.String("file_name", rec.FileName), zap.Error(err))
		return nil, err
	}

	logging.Info("saved image", logging.SourceStore,
		zap.Uint("image_id", result.Image.ID), zap.String("file_name", rec.FileName))
	return &result, nil
}

func (s *ImageService) detailQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("images AS i").
		Select(imageDetailColumns).
		Joins("LEFT JOIN parts p ON i.part_id = p.id").
		Joins("LEFT JOIN camera c ON i.camera_id = c.id").
		Joins("LEFT JOIN metadata m ON i.id = m.image_id")
}

// ListImages returns the joined image rows, newest capture first, optionally
// restricted to one part number. Query failures are logged and yield an
// empty list.
func (s *ImageService) ListImages(ctx context.Context, partNumber string) []models.ImageDetail {
	query := s.detailQuery(ctx)
	if partNumber != "" {
		query = query.Where("p.part_number = ?", partNumber)
	}

	rows := []models.ImageDetail{}
	if err := query.Order("i.captured_at DESC").Scan(&rows).Error; err != nil {
		logging.Error("query error", logging.SourceStore, zap.String("part_number", partNumber), zap.Error(err))
		return []models.ImageDetail{}
	}
	return rows
}

func (s *ImageService) GetImage(ctx context.Context, id uint) (*models.ImageDetail, error) {
	var rows []models.ImageDetail
	if err := s.detailQuery(ctx).Where("i.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch image %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrImageNotFound
	}
	return &rows[0], nil
}

// GetImageRow returns the bare images row.
func (s *ImageService) GetImageRow(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	err := s.db.WithContext(ctx).Preload("Part").First(&image, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// UpdateImage patches the given columns of an image and its metadata. An
// empty field map is a no-op and returns nil. A missing image returns nil.
func (s *ImageService) UpdateImage(ctx context.Context, id uint, fields map[string]interface{}) (*models.Image, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	imageUpdates := map[string]interface{}{}
	metadataUpdates := map[string]interface{}{}
	for key, value := range fields {
		switch {
		case imageColumns[key]:
			imageUpdates[key] = value
		case metadataColumns[key]:
			metadataUpdates[key] = value
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
	}

	var image models.Image
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&image, id).Error; err != nil {
			return err
		}
		if len(imageUpdates) > 0 {
			if err := tx.Model(&image).Updates(imageUpdates).Error; err != nil {
				return fmt.Errorf("failed to update image: %w", err)
			}
		}
		if len(metadataUpdates) > 0 {
			res := tx.Model(&models.Metadata{}).Where("image_id = ?", id).Updates(metadataUpdates)
			if res.Error != nil {
				return fmt.Errorf("failed to update metadata: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				metadata := &models.Metadata{ImageID: id}
				if err := tx.Create(metadata).Error; err != nil {
					return err
				}
				if err := tx.Model(metadata).Updates(metadataUpdates).Error; err != nil {
					return err
				}
			}
		}
		return tx.First(&image, id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrFileNameTaken
	}
	if err != nil {
		logging.Error("error updating image", logging.SourceStore, zap.Uint("image_id", id), zap.Error(err))
		return nil, err
	}
	return &image, nil
}

// DeleteImage removes an image and its metadata, returning the deleted row or
// nil when no such image exists.
func (s *ImageService) DeleteImage(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Part").First(&image, id).Error; err != nil {
			return err
		}
		if err := tx.Where("image_id = ?", id).Delete(&models.Metadata{}).Error; err != nil {
			return err
		}
		return tx.Delete(&image).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		logging.Error("error deleting image", logging.SourceStore, zap.Uint("image_id", id), zap.Error(err))
		return nil, err
	}
	return &image, nil
}

// ListParts returns every part with its image count, ordered by part number.
func (s *ImageService) ListParts(ctx context.Context) ([]models.PartSummary, error) {
	parts := []models.PartSummary{}
	err := s.db.WithContext(ctx).
		Table("parts AS p").
		Select("p.id, p.part_number, p.part_name, p.category, COUNT(i.id) AS image_count").
		Joins("LEFT JOIN images i ON i.part_id = p.id").
		Group("p.id, p.part_number, p.part_name, p.category").
		Order("p.part_number").
		Scan(&parts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list parts: %w", err)
	}
	return parts, nil
}

func (s *ImageService) GetPart(ctx context.Context, partNumber string) (*models.PartSummary, error) {
	var parts []models.PartSummary
	err := s.db.WithContext(ctx).
		Table("parts AS p").
		Select("p.id, p.part_number, p.part_name, p.category, COUNT(i.id) AS image_count").
		Joins("LEFT JOIN images i ON i.part_id = p.id").
		Where("p.part_number = ?", strings.TrimSpace(partNumber)).
		Group("p.id, p.part_number, p.part_name, p.category").
		Scan(&parts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch part %s: %w", partNumber, err)
	}
	if len(parts) == 0 {
		return nil, ErrPartNotFound
	}
	return &parts[0], nil
}
