package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/partimages/backend/internal/logging"
	"github.com/partimages/backend/internal/models"
	"github.com/partimages/backend/internal/services"
	"go.uber.org/zap"
)

type ImageHandler struct {
	imageService *services.ImageService
	objectStore  services.ObjectStore
}

func NewImageHandler(imageService *services.ImageService, objectStore services.ObjectStore) *ImageHandler {
	return &ImageHandler{
		imageService: imageService,
		objectStore:  objectStore,
	}
}

// ListImages returns every image, newest first
// GET /images?part_number=
func (h *ImageHandler) ListImages(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.imageService.Ping(ctx); err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch images", err)
		return
	}

	partNumber := strings.TrimSpace(c.Query("part_number"))
	c.JSON(http.StatusOK, h.imageService.ListImages(ctx, partNumber))
}

// GetImage returns one joined image row
// GET /images/:id
func (h *ImageHandler) GetImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	image, err := h.imageService.GetImage(c.Request.Context(), id)
	if errors.Is(err, services.ErrImageNotFound) {
		abortWithError(c, http.StatusNotFound, "Image not found", err)
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Internal server error", err)
		return
	}

	c.JSON(http.StatusOK, image)
}

// UpdateImage patches image and metadata columns
// PUT /images/:id
func (h *ImageHandler) UpdateImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		abortWithError(c, http.StatusBadRequest, "Invalid update data", err)
		return
	}

	// null behaves like an absent field
	fields := make(map[string]interface{}, len(body))
	for key, value := range body {
		if value != nil {
			fields[key] = value
		}
	}
	if len(fields) == 0 {
		abortWithError(c, http.StatusBadRequest, "No valid fields to update", nil)
		return
	}

	image, err := h.imageService.UpdateImage(c.Request.Context(), id, fields)
	if errors.Is(err, services.ErrUnknownField) {
		abortWithError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	if errors.Is(err, services.ErrFileNameTaken) {
		abortWithError(c, http.StatusConflict, err.Error(), err)
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to update image", err)
		return
	}
	if image == nil {
		abortWithError(c, http.StatusNotFound, "Image not found", nil)
		return
	}

	c.JSON(http.StatusOK, image)
}

// DeleteImage removes the row and, best effort, the stored object
// DELETE /images/:id
func (h *ImageHandler) DeleteImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	image, err := h.imageService.DeleteImage(ctx, id)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to delete image", err)
		return
	}
	if image == nil {
		abortWithError(c, http.StatusNotFound, "Image not found", nil)
		return
	}

	if key, ok := h.objectKey(image); ok {
		if err := h.objectStore.Delete(ctx, image.BucketName, key); err != nil {
			logging.Warn("failed to delete stored object", logging.SourceAPI,
				zap.Uint("image_id", id), zap.String("key", key), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Image deleted successfully"})
}

// DownloadImage streams the stored object as an attachment
// GET /images/download/:id
func (h *ImageHandler) DownloadImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	image, err := h.imageService.GetImageRow(ctx, id)
	if errors.Is(err, services.ErrImageNotFound) {
		abortWithError(c, http.StatusNotFound, "Image not found", err)
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Internal server error", err)
		return
	}

	key, ok := h.objectKey(image)
	if !ok {
		abortWithError(c, http.StatusNotFound, "Image is not stored in the object store", nil)
		return
	}

	object, err := h.objectStore.Open(ctx, image.BucketName, key)
	if err != nil {
		abortWithError(c, http.StatusBadGateway, "Failed to fetch image from storage", err)
		return
	}
	defer object.Body.Close()

	contentType := object.ContentType
	if contentType == "" {
		contentType = image.FileType
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", image.FileName))
	c.Header("Content-Type", contentType)
	if object.ContentLength > 0 {
		c.Header("Content-Length", strconv.FormatInt(object.ContentLength, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, object.Body); err != nil {
		logging.Warn("download interrupted", logging.SourceAPI, zap.Uint("image_id", id), zap.Error(err))
	}
}

// objectKey recovers the storage key from the recorded public URL. Rows
// registered through POST /upload may point elsewhere.
func (h *ImageHandler) objectKey(image *models.Image) (string, bool) {
	if image.BucketName == "" {
		return "", false
	}
	prefix := h.objectStore.PublicURL(image.BucketName, "")
	if strings.HasPrefix(image.FilePath, prefix) && len(image.FilePath) > len(prefix) {
		return strings.TrimPrefix(image.FilePath, prefix), true
	}
	return "", false
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		abortWithError(c, http.StatusBadRequest, "Invalid image id", err)
		return 0, false
	}
	return uint(id), true
}
