package imports

import (
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/google/uuid"
)

// maxReportedErrors caps the row errors carried in a report.
const maxReportedErrors = 10

// Kinds of spreadsheet import.
const (
	KindInventory = "inventory"
	KindPersons   = "persons"
)

const (
	StatusOK             = "ok"
	StatusPartialFailure = "partial_failure"
	StatusFailed         = "failed"
)

type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// RowError describes a failed row. Row is the 1-based data row number.
type RowError struct {
	Row      int            `json:"row"`
	AssetTag string         `json:"asset_tag,omitempty"`
	Name     string         `json:"name,omitempty"`
	Code     pkgerrors.Code `json:"code"`
	Message  string         `json:"message"`
}

// Report summarises one import. CreatedCount and UpdatedCount count devices
// for inventory imports and persons for roster imports.
type Report struct {
	ImportID           uuid.UUID        `json:"import_id"`
	Kind               string           `json:"kind"`
	Mode               enums.ImportMode `json:"mode,omitempty"`
	ProcessedCount     int              `json:"processed_count"`
	IgnoredRows        int              `json:"ignored_rows"`
	Devices            Counts           `json:"devices"`
	Persons            Counts           `json:"persons"`
	AssignmentsCreated int              `json:"assignments_created"`
	CreatedCount       int              `json:"created_count"`
	UpdatedCount       int              `json:"updated_count"`
	ErrorCount         int              `json:"error_count"`
	Errors             []RowError       `json:"errors"`
	Status             string           `json:"status"`
}

// rowOutcome is what one committed row contributed to the report.
type rowOutcome struct {
	device           string
	person           string
	assignmentCreate bool
}

const (
	outcomeCreated = "created"
	outcomeUpdated = "updated"
	outcomeSkipped = "skipped"
)

func newReport(kind string) *Report {
	return &Report{ImportID: uuid.New(), Kind: kind, Errors: []RowError{}}
}

func (r *Report) add(o rowOutcome) {
	r.ProcessedCount++
	bump(&r.Devices, o.device)
	bump(&r.Persons, o.person)
	if o.assignmentCreate {
		r.AssignmentsCreated++
	}
}

func (r *Report) fail(e RowError) {
	r.ProcessedCount++
	r.ErrorCount++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, e)
	}
}

func (r *Report) finish() {
	r.CreatedCount = r.Devices.Created
	r.UpdatedCount = r.Devices.Updated
	if r.Kind == KindPersons {
		r.CreatedCount = r.Persons.Created
		r.UpdatedCount = r.Persons.Updated
	}
	switch {
	case r.ErrorCount == 0:
		r.Status = StatusOK
	case r.ErrorCount == r.ProcessedCount:
		r.Status = StatusFailed
	default:
		r.Status = StatusPartialFailure
	}
}

func bump(c *Counts, outcome string) {
	switch outcome {
	case outcomeCreated:
		c.Created++
	case outcomeUpdated:
		c.Updated++
	case outcomeSkipped:
		c.Skipped++
	}
}
