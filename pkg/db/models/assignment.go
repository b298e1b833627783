package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Assignment is one loan period of one device to one person. Rows are never
// deleted on dissolve; IsActive flips and DissolvedAt is stamped.
type Assignment struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DeviceID         uuid.UUID  `gorm:"column:device_id;type:uuid;not null;index" json:"device_id"`
	PersonID         uuid.UUID  `gorm:"column:person_id;type:uuid;not null;index" json:"person_id"`
	AssetTag         string     `gorm:"column:asset_tag;type:text;not null" json:"asset_tag"`
	PersonName       string     `gorm:"column:person_name;type:text;not null" json:"person_name"`
	IsActive         bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	AssignedAt       time.Time  `gorm:"column:assigned_at;not null" json:"assigned_at"`
	DissolvedAt      *time.Time `gorm:"column:dissolved_at" json:"dissolved_at,omitempty"`
	ContractID       *uuid.UUID `gorm:"column:contract_id;type:uuid" json:"contract_id,omitempty"`
	ContractWarning  bool       `gorm:"column:contract_warning;not null;default:false" json:"contract_warning"`
	WarningDismissed bool       `gorm:"column:warning_dismissed;not null;default:false" json:"warning_dismissed"`
	CreatedBy        *string    `gorm:"column:created_by;type:text" json:"created_by,omitempty"`
	DissolvedBy      *string    `gorm:"column:dissolved_by;type:text" json:"dissolved_by,omitempty"`
	CreatedAt        time.Time  `gorm:"column:created_at;not null" json:"created_at"`
}

func (Assignment) TableName() string { return "assignments" }

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	if err := ensureID(&a.ID); err != nil {
		return err
	}
	return nil
}
