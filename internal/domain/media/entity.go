package media

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"adminpanel/internal/pkg/uuidv7"
)

// Metadata keys written by the upload pipeline. API consumers read them verbatim.
const (
	MetaOriginalWidth  = "original_width"
	MetaOriginalHeight = "original_height"
	MetaWidth          = "width"
	MetaHeight         = "height"
	MetaThumbnailPath  = "thumbnail_path"
	MetaConvertedFrom  = "converted_from"
)

// reservedMetadata lists the keys only the pipeline writes. Callers cannot
// set or remove them through upload options or updates.
var reservedMetadata = map[string]bool{
	MetaOriginalWidth:  true,
	MetaOriginalHeight: true,
	MetaWidth:          true,
	MetaHeight:         true,
	MetaThumbnailPath:  true,
	MetaConvertedFrom:  true,
}

// Media is one stored file. Path and Disk together address exactly one blob.
type Media struct {
	ID         string            `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	Name       string            `gorm:"column:name;not null" json:"name"`
	Path       string            `gorm:"column:path;not null" json:"path"`
	Disk       string            `gorm:"column:disk;not null;default:public" json:"disk"`
	MimeType   string            `gorm:"column:mime_type;not null" json:"mime_type"`
	Extension  string            `gorm:"column:extension" json:"extension"`
	Size       int64             `gorm:"column:size" json:"size"`
	UploadedBy int64             `gorm:"column:uploaded_by;not null;index" json:"uploaded_by"`
	Collection *string           `gorm:"column:collection;index" json:"collection"`
	Alt        *string           `gorm:"column:alt" json:"alt"`
	Title      *string           `gorm:"column:title" json:"title"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
	CreatedAt  time.Time         `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (Media) TableName() string { return "media" }

func (m *Media) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuidv7.New()
	}
	return nil
}

func (m *Media) Category() Category {
	return CategoryFromMime(m.MimeType)
}

// ThumbnailPath returns metadata.thumbnail_path or "".
func (m *Media) ThumbnailPath() string {
	if m.Metadata == nil {
		return ""
	}
	s, _ := m.Metadata[MetaThumbnailPath].(string)
	return s
}

// MetadataInt reads a numeric metadata value regardless of how the JSON
// column decoded it.
func (m *Media) MetadataInt(key string) (int, bool) {
	if m.Metadata == nil {
		return 0, false
	}
	switch v := m.Metadata[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}
