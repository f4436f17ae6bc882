package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/partimages/backend/internal/services"
)

const welcomeText = "📷 MinIO + PostgreSQL Image Database Service"

type PublicHandler struct {
	imageService *services.ImageService
}

func NewPublicHandler(imageService *services.ImageService) *PublicHandler {
	return &PublicHandler{imageService: imageService}
}

func (h *PublicHandler) Welcome(c *gin.Context) {
	c.String(http.StatusOK, welcomeText)
}

// Health reports whether the database is reachable.
func (h *PublicHandler) Health(c *gin.Context) {
	if err := h.imageService.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// SampleImage returns a fixed placeholder record.
func (h *PublicHandler) SampleImage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"id":          1,
		"imageUrl":    "https://example.com/image.jpg",
		"description": "Sample image",
	})
}
