package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/partimages/backend/internal/logging"
	"github.com/partimages/backend/internal/services"
	"github.com/partimages/backend/pkg/validation"
	"go.uber.org/zap"
)

const (
	defaultResolution  = "1920x1080"
	defaultCaptureMode = "Auto"
	manualUploadNotes  = "Manual upload"
	folderUploadNotes  = "Folder upload"

	maxFolderFiles = 50
)

type UploadHandler struct {
	imageService   *services.ImageService
	uploadService  *services.UploadService
	storageService *services.StorageService
	maxMemory      int64
}

func NewUploadHandler(imageService *services.ImageService, uploadService *services.UploadService, storageService *services.StorageService, maxMemory int64) *UploadHandler {
	return &UploadHandler{
		imageService:   imageService,
		uploadService:  uploadService,
		storageService: storageService,
		maxMemory:      maxMemory,
	}
}

// RegisterImageRequest records an object that was stored by someone else.
// The snake_case names are accepted as aliases of filename and blobUrl.
type RegisterImageRequest struct {
	FileName    string     `json:"filename"`
	FileNameAlt string     `json:"file_name"`
	BlobURL     string     `json:"blobUrl"`
	FilePath    string     `json:"file_path"`
	FileType    string     `json:"file_type"`
	ImageSize   int64      `json:"image_size"`
	CapturedAt  *time.Time `json:"captured_at"`
	BucketName  string     `json:"bucket_name"`
	PartID      *uint      `json:"part_id"`
	PartNumber  string     `json:"part_number"`
	CameraID    *uint      `json:"camera_id"`
	Resolution  string     `json:"resolution"`
	CaptureMode string     `json:"capture_mode"`
	Notes       string     `json:"notes"`
}

// RegisterImage persists an image record for an already stored object
// POST /upload
func (h *UploadHandler) RegisterImage(c *gin.Context) {
	var req RegisterImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	fileName := firstNonEmpty(req.FileName, req.FileNameAlt)
	filePath := firstNonEmpty(req.BlobURL, req.FilePath)
	if fileName == "" || filePath == "" {
		abortWithError(c, http.StatusBadRequest, "Missing required fields: filename or blobUrl", nil)
		return
	}

	partNumber, err := validation.ValidatePartNumber(req.PartNumber)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid part number", err)
		return
	}

	capturedAt := time.Now().UTC()
	if req.CapturedAt != nil {
		capturedAt = req.CapturedAt.UTC()
	}

	rec := services.ImageRecord{
		FilePath:    filePath,
		FileName:    validation.SanitizeString(fileName),
		FileType:    firstNonEmpty(req.FileType, "application/octet-stream"),
		ImageSize:   req.ImageSize,
		CapturedAt:  capturedAt,
		BucketName:  firstNonEmpty(req.BucketName, h.uploadService.Bucket()),
		PartID:      req.PartID,
		CameraID:    req.CameraID,
		Resolution:  firstNonEmpty(req.Resolution, defaultResolution),
		CaptureMode: firstNonEmpty(req.CaptureMode, defaultCaptureMode),
		Notes:       firstNonEmpty(validation.SanitizeString(req.Notes), manualUploadNotes),
	}

	saved, err := h.imageService.SaveImage(c.Request.Context(), rec, partNumber)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to save image data", err)
		return
	}
	if saved.Duplicate {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate", "file_name": rec.FileName})
		return
	}

	c.JSON(http.StatusCreated, saved)
}

// UploadFolder runs every posted file through the upload pipeline
// POST /upload-folder
// Multipart form: files[] (required), part_number (optional), notes (optional)
func (h *UploadHandler) UploadFolder(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(h.maxMemory); err != nil {
		abortWithError(c, http.StatusBadRequest, "failed to parse multipart form", err)
		return
	}

	form := c.Request.MultipartForm
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	if len(files) == 0 {
		abortWithError(c, http.StatusBadRequest, "files[] is required", nil)
		return
	}
	if len(files) > maxFolderFiles {
		abortWithError(c, http.StatusBadRequest, "too many files in one request", nil)
		return
	}

	partNumber, err := validation.ValidatePartNumber(c.PostForm("part_number"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid part number", err)
		return
	}
	notes := firstNonEmpty(validation.SanitizeString(c.PostForm("notes")), folderUploadNotes)

	ctx := c.Request.Context()
	var staged []*services.StagedFile
	defer func() {
		for _, f := range staged {
			if err := f.Remove(); err != nil {
				logging.Warn("failed to remove staged file", logging.SourceAPI, zap.String("path", f.Path), zap.Error(err))
			}
		}
	}()

	results := make([]*services.UploadResult, 0, len(files))
	reqs := make([]services.UploadRequest, 0, len(files))
	for _, fh := range files {
		name, err := validation.SanitizeFileName(fh.Filename)
		if err != nil {
			results = append(results, &services.UploadResult{FileName: fh.Filename, Error: err.Error()})
			continue
		}

		src, err := fh.Open()
		if err != nil {
			results = append(results, &services.UploadResult{FileName: name, Error: "failed to open file"})
			continue
		}
		file, err := h.storageService.SaveStream(ctx, name, src)
		src.Close()
		if err != nil {
			results = append(results, &services.UploadResult{FileName: name, Error: err.Error()})
			continue
		}
		staged = append(staged, file)

		reqs = append(reqs, services.UploadRequest{
			LocalPath:   file.Path,
			ObjectName:  name,
			PartNumber:  partNumber,
			Resolution:  defaultResolution,
			CaptureMode: defaultCaptureMode,
			Notes:       notes,
			CapturedAt:  time.Now().UTC(),
		})
	}

	results = append(results, h.uploadService.UploadFiles(ctx, reqs)...)

	var uploaded, duplicates, failed int
	for _, r := range results {
		switch {
		case r.Error != "":
			failed++
		case r.Duplicate:
			duplicates++
		default:
			uploaded++
		}
	}

	logging.Info("folder upload finished", logging.SourceAPI,
		zap.String("part_number", partNumber), zap.Int("uploaded", uploaded),
		zap.Int("duplicates", duplicates), zap.Int("failed", failed))

	c.JSON(http.StatusCreated, gin.H{
		"results":    results,
		"uploaded":   uploaded,
		"duplicates": duplicates,
		"failed":     failed,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
