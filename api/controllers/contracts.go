package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/angelmondragon/tabletloan-backend/api/responses"
	"github.com/angelmondragon/tabletloan-backend/api/validators"
	"github.com/angelmondragon/tabletloan-backend/internal/contracts"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/types"
)

const (
	multipartMemory  = 8 << 20
	maxBatchFiles    = 50
	formFieldFiles   = "files"
	formFieldFile    = "file"
	formFieldMapping = "fields"
)

// ContractUpload accepts multipart "files" parts. An optional "fields" part
// holds a JSON object of form values keyed by filename.
func ContractUpload(svc contracts.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := parseMultipart(w, r, maxUploadBytes*maxBatchFiles)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		headers := form.File[formFieldFiles]
		if len(headers) == 0 {
			headers = form.File[formFieldFile]
		}
		if len(headers) > maxBatchFiles {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "too many files").WithDetails(map[string]any{"max_files": maxBatchFiles}))
			return
		}
		byFile := map[string]types.FieldMap{}
		if raw := firstValue(form, formFieldMapping); raw != "" {
			if err := json.Unmarshal([]byte(raw), &byFile); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "fields must be a JSON object keyed by filename"))
				return
			}
		}

		docs := make([]contracts.Document, 0, len(headers))
		for _, fh := range headers {
			doc, err := readDocument(fh)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			doc.Fields = byFile[fh.Filename]
			docs = append(docs, doc)
		}

		result, err := svc.UploadMany(r.Context(), docs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if result.Partial() {
			status = http.StatusMultiStatus
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// AssignmentUploadContract stores one "file" part and attaches it to the
// assignment. "fields" is a flat JSON object of form values.
func AssignmentUploadContract(svc contracts.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		form, err := parseMultipart(w, r, maxUploadBytes+multipartMemory)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		headers := form.File[formFieldFile]
		if len(headers) != 1 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "exactly one file is required"))
			return
		}
		doc, err := readDocument(headers[0])
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := firstValue(form, formFieldMapping); raw != "" {
			if err := json.Unmarshal([]byte(raw), &doc.Fields); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "fields must be a JSON object"))
				return
			}
		}
		result, err := svc.UploadForAssignment(r.Context(), id, doc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func ContractListUnmatched(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListUnmatched(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, list)
	}
}

func ContractManualAttach(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, err := validators.ParseUUIDParam(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ManualAttach(r.Context(), contractID, assignmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ContractGet(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contract, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contract)
	}
}

func ContractDownload(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		download, err := svc.Download(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteFile(w, download.Filename, download.ContentType, download.Data)
	}
}

func ContractDelete(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "deleted": true})
	}
}

func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) (*multipart.Form, error) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request too large").WithDetails(map[string]any{"max_bytes": tooLarge.Limit})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}
	return r.MultipartForm, nil
}

func readDocument(fh *multipart.FileHeader) (contracts.Document, error) {
	file, err := fh.Open()
	if err != nil {
		return contracts.Document{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable upload")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return contracts.Document{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable upload")
	}
	return contracts.Document{
		Filename:    fh.Filename,
		ContentType: strings.TrimSpace(fh.Header.Get("Content-Type")),
		Data:        data,
	}, nil
}

func firstValue(form *multipart.Form, key string) string {
	if form == nil {
		return ""
	}
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}
