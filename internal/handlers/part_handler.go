package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/partimages/backend/internal/services"
	"github.com/partimages/backend/pkg/validation"
)

type PartHandler struct {
	imageService *services.ImageService
	labelService *services.LabelService
}

func NewPartHandler(imageService *services.ImageService, labelService *services.LabelService) *PartHandler {
	return &PartHandler{imageService: imageService, labelService: labelService}
}

// GET /parts
func (h *PartHandler) ListParts(c *gin.Context) {
	parts, err := h.imageService.ListParts(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch parts", err)
		return
	}
	c.JSON(http.StatusOK, parts)
}

// PartLabel renders the printable label of a part
// GET /parts/:partNumber/label.pdf
func (h *PartHandler) PartLabel(c *gin.Context) {
	partNumber, err := validation.ValidatePartNumber(c.Param("partNumber"))
	if err != nil || partNumber == "" {
		abortWithError(c, http.StatusBadRequest, "Invalid part number", err)
		return
	}

	part, err := h.imageService.GetPart(c.Request.Context(), partNumber)
	if errors.Is(err, services.ErrPartNotFound) {
		abortWithError(c, http.StatusNotFound, "Part not found", err)
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch part", err)
		return
	}

	pdf, err := h.labelService.PartLabelPDF(part)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to generate label", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"part-%s-label.pdf\"", part.PartNumber))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
