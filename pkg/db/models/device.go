package models

import (
	"time"

	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Device is a loanable tablet identified by its asset tag (ITNr).
type Device struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AssetTag            string             `gorm:"column:asset_tag;type:text;not null;uniqueIndex:uq_devices_asset_tag" json:"asset_tag"`
	SerialNumber        string             `gorm:"column:serial_number;type:text" json:"serial_number"`
	CaseLabel           string             `gorm:"column:case_label;type:text" json:"case_label"`
	Stylus              string             `gorm:"column:stylus;type:text" json:"stylus"`
	Model               string             `gorm:"column:model;type:text" json:"model"`
	PurchaseYear        string             `gorm:"column:purchase_year;type:text" json:"purchase_year"`
	LoanDate            string             `gorm:"column:loan_date;type:text" json:"loan_date"`
	Status              enums.DeviceStatus `gorm:"column:status;type:text;not null;default:available" json:"status"`
	CurrentAssignmentID *uuid.UUID         `gorm:"column:current_assignment_id;type:uuid" json:"current_assignment_id,omitempty"`
	CreatedAt           time.Time          `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Device) TableName() string { return "devices" }

func (d *Device) BeforeCreate(*gorm.DB) error {
	if err := ensureID(&d.ID); err != nil {
		return err
	}
	if d.Status == "" {
		d.Status = enums.DeviceStatusAvailable
	}
	return nil
}
