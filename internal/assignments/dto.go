package assignments

import (
	"time"

	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/google/uuid"
)

// CreateInput moves a device/person pair from NONE to ACTIVE. A nil
// AssignedAt means now; imports backdate it from the loan date column.
type CreateInput struct {
	DeviceID   uuid.UUID
	PersonID   uuid.UUID
	AssignedAt *time.Time
}

// DissolveOptions picks the device status after dissolving. Nil means available.
type DissolveOptions struct {
	TargetStatus *enums.DeviceStatus
}

// ListFilter narrows List. Only active assignments are returned unless
// IncludeInactive is set.
type ListFilter struct {
	IncludeInactive bool
	DeviceID        *uuid.UUID
	PersonID        *uuid.UUID
}

// StatusChangeResult reports a device status change and whether it ended a loan.
type StatusChangeResult struct {
	Device              *models.Device     `json:"device"`
	PreviousStatus      enums.DeviceStatus `json:"previous_status"`
	DissolvedAssignment *uuid.UUID         `json:"dissolved_assignment_id,omitempty"`
}

// RepairReport summarizes one status-repair sweep.
type RepairReport struct {
	Scanned   int             `json:"scanned"`
	Repaired  int             `json:"repaired"`
	DeviceIDs []uuid.UUID     `json:"device_ids"`
	Failures  []RecordFailure `json:"failures,omitempty"`
}

// RecordFailure is one record a sweep had to skip.
type RecordFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

// AutoAssignResult lists the pairs AutoAssign created or skipped.
type AutoAssignResult struct {
	AssignedCount int      `json:"assigned_count"`
	Details       []string `json:"details"`
}

// PurgeScope selects the history removed by PurgeHistoryTx. Exactly one of
// DeviceID and PersonID is set; PersonName additionally matches contracts by
// their name snapshot.
type PurgeScope struct {
	DeviceID   *uuid.UUID
	PersonID   *uuid.UUID
	PersonName string
}

// PurgeResult counts deleted rows. StorageKeys are the contract documents the
// caller removes from the object store once the transaction commits.
type PurgeResult struct {
	AssignmentsDeleted int64
	ContractsDeleted   int64
	StorageKeys        []string
}
