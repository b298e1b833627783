package models

import (
	"time"

	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/angelmondragon/tabletloan-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Contract is an uploaded loan document. AssignmentID nil means unmatched.
type Contract struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AssignmentID *uuid.UUID          `gorm:"column:assignment_id;type:uuid;index" json:"assignment_id,omitempty"`
	AssetTag     string              `gorm:"column:asset_tag;type:text" json:"asset_tag"`
	PersonName   string              `gorm:"column:person_name;type:text" json:"person_name"`
	Filename     string              `gorm:"column:filename;type:text;not null" json:"filename"`
	ContentType  string              `gorm:"column:content_type;type:text" json:"content_type"`
	SizeBytes    int64               `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	StorageKey   string              `gorm:"column:storage_key;type:text" json:"-"`
	Fields       types.FieldMap      `gorm:"column:fields;type:jsonb" json:"fields"`
	MatchedBy    enums.ContractMatch `gorm:"column:matched_by;type:text;not null;default:none" json:"matched_by"`
	IsActive     bool                `gorm:"column:is_active;not null;default:false" json:"is_active"`
	UploadedAt   *time.Time          `gorm:"column:uploaded_at" json:"uploaded_at,omitempty"`
	UploadedBy   *string             `gorm:"column:uploaded_by;type:text" json:"uploaded_by,omitempty"`
}

func (Contract) TableName() string { return "contracts" }

func (c *Contract) BeforeCreate(*gorm.DB) error {
	if err := ensureID(&c.ID); err != nil {
		return err
	}
	if c.MatchedBy == "" {
		c.MatchedBy = enums.ContractMatchNone
	}
	return nil
}
