package payloads

import (
	"time"

	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/google/uuid"
)

type AssignmentCreatedEvent struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	DeviceID     uuid.UUID `json:"device_id"`
	PersonID     uuid.UUID `json:"person_id"`
	AssetTag     string    `json:"asset_tag"`
	PersonName   string    `json:"person_name"`
	AssignedAt   time.Time `json:"assigned_at"`
}

type AssignmentDissolvedEvent struct {
	AssignmentID uuid.UUID          `json:"assignment_id"`
	DeviceID     uuid.UUID          `json:"device_id"`
	PersonID     uuid.UUID          `json:"person_id"`
	DeviceStatus enums.DeviceStatus `json:"device_status"`
	DissolvedAt  time.Time          `json:"dissolved_at"`
}

type DeviceStatusChangedEvent struct {
	DeviceID       uuid.UUID          `json:"device_id"`
	AssetTag       string             `json:"asset_tag"`
	PreviousStatus enums.DeviceStatus `json:"previous_status"`
	Status         enums.DeviceStatus `json:"status"`
}

type ContractAttachedEvent struct {
	ContractID      uuid.UUID           `json:"contract_id"`
	AssignmentID    uuid.UUID           `json:"assignment_id"`
	MatchedBy       enums.ContractMatch `json:"matched_by"`
	ContractWarning bool                `json:"contract_warning"`
}

type ContractUnmatchedEvent struct {
	ContractID uuid.UUID `json:"contract_id"`
	Filename   string    `json:"filename"`
}

type PersonDeletedEvent struct {
	PersonID                  uuid.UUID `json:"person_id"`
	DissolvedActiveAssignment bool      `json:"dissolved_active_assignment"`
	AssignmentsDeleted        int64     `json:"assignments_deleted"`
	ContractsDeleted          int64     `json:"contracts_deleted"`
}

type DeviceDeletedEvent struct {
	DeviceID                  uuid.UUID `json:"device_id"`
	AssetTag                  string    `json:"asset_tag"`
	DissolvedActiveAssignment bool      `json:"dissolved_active_assignment"`
	AssignmentsDeleted        int64     `json:"assignments_deleted"`
	ContractsDeleted          int64     `json:"contracts_deleted"`
}

type InventoryImportedEvent struct {
	ImportID           uuid.UUID        `json:"import_id"`
	Mode               enums.ImportMode `json:"mode"`
	ProcessedCount     int              `json:"processed_count"`
	AssignmentsCreated int              `json:"assignments_created"`
	ErrorCount         int              `json:"error_count"`
	Status             string           `json:"status"`
}

type PersonsImportedEvent struct {
	ImportID       uuid.UUID `json:"import_id"`
	ProcessedCount int       `json:"processed_count"`
	PersonsCreated int       `json:"persons_created"`
	PersonsSkipped int       `json:"persons_skipped"`
	ErrorCount     int       `json:"error_count"`
	Status         string    `json:"status"`
}
