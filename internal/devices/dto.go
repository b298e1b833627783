package devices

import (
	"strings"

	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/google/uuid"
)

// CreateInput carries the spreadsheet attributes of a new device.
type CreateInput struct {
	AssetTag     string `json:"asset_tag" validate:"required,max=64"`
	SerialNumber string `json:"serial_number" validate:"max=128"`
	CaseLabel    string `json:"case_label" validate:"max=128"`
	Stylus       string `json:"stylus" validate:"max=128"`
	Model        string `json:"model" validate:"max=128"`
	PurchaseYear string `json:"purchase_year" validate:"max=16"`
	LoanDate     string `json:"loan_date" validate:"max=32"`
}

// UpdateInput patches attributes. Nil fields are left unchanged; status is
// never changed here.
type UpdateInput struct {
	AssetTag     *string `json:"asset_tag" validate:"omitempty,max=64"`
	SerialNumber *string `json:"serial_number" validate:"omitempty,max=128"`
	CaseLabel    *string `json:"case_label" validate:"omitempty,max=128"`
	Stylus       *string `json:"stylus" validate:"omitempty,max=128"`
	Model        *string `json:"model" validate:"omitempty,max=128"`
	PurchaseYear *string `json:"purchase_year" validate:"omitempty,max=16"`
	LoanDate     *string `json:"loan_date" validate:"omitempty,max=32"`
}

// Filter narrows List.
type Filter struct {
	Status *enums.DeviceStatus
}

// HistoryEntry is one past or current loan of a device.
type HistoryEntry struct {
	Assignment models.Assignment `json:"assignment"`
	Contracts  []models.Contract `json:"contracts"`
}

// History lists a device's loans, newest first.
type History struct {
	Device  *models.Device `json:"device"`
	Entries []HistoryEntry `json:"entries"`
}

// DeleteResult reports what a device deletion cascaded into.
type DeleteResult struct {
	DeviceID                  uuid.UUID `json:"device_id"`
	DissolvedActiveAssignment bool      `json:"dissolved_active_assignment"`
	AssignmentsDeleted        int64     `json:"assignments_deleted"`
	ContractsDeleted          int64     `json:"contracts_deleted"`
}

func (in UpdateInput) fields() map[string]any {
	fields := map[string]any{}
	set := func(column string, value *string) {
		if value != nil {
			fields[column] = strings.TrimSpace(*value)
		}
	}
	set("asset_tag", in.AssetTag)
	set("serial_number", in.SerialNumber)
	set("case_label", in.CaseLabel)
	set("stylus", in.Stylus)
	set("model", in.Model)
	set("purchase_year", in.PurchaseYear)
	set("loan_date", in.LoanDate)
	return fields
}

func (in CreateInput) model() *models.Device {
	return &models.Device{
		AssetTag:     strings.TrimSpace(in.AssetTag),
		SerialNumber: strings.TrimSpace(in.SerialNumber),
		CaseLabel:    strings.TrimSpace(in.CaseLabel),
		Stylus:       strings.TrimSpace(in.Stylus),
		Model:        strings.TrimSpace(in.Model),
		PurchaseYear: strings.TrimSpace(in.PurchaseYear),
		LoanDate:     strings.TrimSpace(in.LoanDate),
		Status:       enums.DeviceStatusAvailable,
	}
}
