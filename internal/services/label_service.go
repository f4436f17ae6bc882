package services

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/jung-kurt/gofpdf"
	"github.com/partimages/backend/internal/config"
	"github.com/partimages/backend/internal/models"
	qrcode "github.com/skip2/go-qrcode"
)

// LabelService renders printable part labels that link to the part gallery.
type LabelService struct {
	frontendURL string
}

func NewLabelService(cfg *config.Config) *LabelService {
	return &LabelService{frontendURL: cfg.FrontendURL}
}

func (s *LabelService) GalleryURL(partNumber string) string {
	return fmt.Sprintf("%s/gallery?part_number=%s", s.frontendURL, url.QueryEscape(partNumber))
}

// PartLabelPDF generates an A4 PDF with the part details and a QR code for
// its gallery page.
func (s *LabelService) PartLabelPDF(part *models.PartSummary) ([]byte, error) {
	galleryURL := s.GalleryURL(part.PartNumber)

	png, err := qrcode.Encode(galleryURL, qrcode.Medium, 512)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Part %s", part.PartNumber), true)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, part.PartName)
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 6, fmt.Sprintf("Part number: %s\nCategory: %s\nImages: %d\nURL: %s",
		part.PartNumber, part.Category, part.ImageCount, galleryURL), "", "L", false)

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr", opt, bytes.NewReader(png))

	// A4 is 210mm wide, the code is 100mm
	x := (210.0 - 100.0) / 2.0
	y := pdf.GetY() + 10
	pdf.ImageOptions("qr", x, y, 100, 100, false, opt, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
