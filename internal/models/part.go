package models

import (
	"fmt"
	"time"
)

const (
	DefaultPartDescription = "Auto-created by upload"
	DefaultPartCategory    = "Uncategorized"
)

// Part groups the images of one physical part. PartNumber is the natural key.
type Part struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PartNumber  string    `gorm:"size:128;not null;uniqueIndex" json:"part_number"`
	PartName    string    `gorm:"size:255" json:"part_name"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"size:64" json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Part) TableName() string {
	return "parts"
}

// NewPart builds the row inserted when an upload references an unknown part.
func NewPart(partNumber string) *Part {
	return &Part{
		PartNumber:  partNumber,
		PartName:    DefaultPartName(partNumber),
		Description: DefaultPartDescription,
		Category:    DefaultPartCategory,
	}
}

func DefaultPartName(partNumber string) string {
	return fmt.Sprintf("Part %s", partNumber)
}

// PartSummary is a part together with the number of images filed under it.
type PartSummary struct {
	ID         uint   `json:"id"`
	PartNumber string `json:"part_number"`
	PartName   string `json:"part_name"`
	Category   string `json:"category"`
	ImageCount int64  `json:"image_count"`
}

// Camera is reference data; rows are provisioned outside this service.
type Camera struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DeviceModel  string    `gorm:"size:255" json:"device_model"`
	Location     string    `gorm:"size:255" json:"location"`
	SerialNumber string    `gorm:"size:128" json:"serial_number"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Camera) TableName() string {
	return "camera"
}
