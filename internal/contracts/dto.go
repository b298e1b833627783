package contracts

import (
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/types"
	"github.com/google/uuid"
)

// Document is an uploaded contract file plus the form fields extracted from it.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
	Fields      types.FieldMap
}

type UploadResult struct {
	Contract     *models.Contract    `json:"contract"`
	Matched      bool                `json:"matched"`
	MatchedBy    enums.ContractMatch `json:"matched_by"`
	AssignmentID *uuid.UUID          `json:"assignment_id,omitempty"`
	Warning      bool                `json:"warning"`
}

type FileError struct {
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
}

type FileResult struct {
	Filename string        `json:"filename"`
	Result   *UploadResult `json:"result,omitempty"`
	Error    *FileError    `json:"error,omitempty"`
}

const (
	BatchStatusOK             = "ok"
	BatchStatusPartialFailure = "partial_failure"
	BatchStatusFailed         = "failed"
)

// BatchResult reports a multi-file upload. Failed files never abort the batch.
type BatchResult struct {
	Files    []FileResult `json:"files"`
	Uploaded int          `json:"uploaded"`
	Matched  int          `json:"matched"`
	Failed   int          `json:"failed"`
	Status   string       `json:"status"`
}

// Partial reports whether some, but not all, files failed.
func (b *BatchResult) Partial() bool {
	return b.Status == BatchStatusPartialFailure
}

type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

func fileError(err error) *FileError {
	if typed := pkgerrors.As(err); typed != nil {
		return &FileError{Code: typed.Code(), Message: typed.Message()}
	}
	return &FileError{Code: pkgerrors.CodeInternal, Message: err.Error()}
}
