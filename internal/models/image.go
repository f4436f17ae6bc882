package models

import (
	"time"
)

// Image is one stored object. FileName is unique across the store and is the
// de-duplication key for every ingestion path.
type Image struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FilePath   string    `gorm:"type:text;not null" json:"file_path"` // public object URL
	FileName   string    `gorm:"size:512;not null;uniqueIndex" json:"file_name"`
	FileType   string    `gorm:"size:120" json:"file_type"`
	ImageSize  int64     `json:"image_size"`
	CapturedAt time.Time `gorm:"index" json:"captured_at"`
	BucketName string    `gorm:"size:255" json:"bucket_name"`
	PartID     *uint     `gorm:"index" json:"part_id"`
	CameraID   *uint     `json:"camera_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Part     *Part     `gorm:"foreignKey:PartID" json:"-"`
	Camera   *Camera   `gorm:"foreignKey:CameraID" json:"-"`
	Metadata *Metadata `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Image) TableName() string {
	return "images"
}

// Metadata holds the capture details of exactly one image.
type Metadata struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ImageID     uint      `gorm:"not null;uniqueIndex" json:"image_id"`
	Resolution  string    `gorm:"size:32" json:"resolution"`
	CaptureMode string    `gorm:"size:64" json:"capture_mode"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Metadata) TableName() string {
	return "metadata"
}

// ImageDetail is the joined read model returned by the listing endpoints.
// Columns coming from outer joins are nullable.
type ImageDetail struct {
	ImageID      uint      `json:"image_id"`
	FilePath     string    `json:"file_path"`
	FileName     string    `json:"file_name"`
	FileType     string    `json:"file_type"`
	ImageSize    int64     `json:"image_size"`
	CapturedAt   time.Time `json:"captured_at"`
	BucketName   string    `json:"bucket_name"`
	PartName     *string   `json:"part_name"`
	PartNumber   *string   `json:"part_number"`
	DeviceModel  *string   `json:"device_model"`
	Location     *string   `json:"location"`
	SerialNumber *string   `json:"serial_number"`
	Resolution   *string   `json:"resolution"`
	CaptureMode  *string   `json:"capture_mode"`
	Notes        *string   `json:"notes"`
}
