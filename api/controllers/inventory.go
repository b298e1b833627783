package controllers

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/tabletloan-backend/api/responses"
	"github.com/angelmondragon/tabletloan-backend/api/validators"
	"github.com/angelmondragon/tabletloan-backend/internal/exports"
	"github.com/angelmondragon/tabletloan-backend/internal/imports"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/sheet"
)

const exportDateLayout = "2006-01-02"

// InventoryImport reads an xlsx or CSV sheet either as the raw body or as a
// multipart "file" part. ?mode= overrides the configured default.
func InventoryImport(svc imports.Service, defaultMode enums.ImportMode, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := defaultMode
		if raw := strings.TrimSpace(r.URL.Query().Get("mode")); raw != "" {
			parsed, err := enums.ParseImportMode(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mode").WithDetails(map[string]any{"field": "mode"}))
				return
			}
			mode = parsed
		}

		body, format, err := readSheet(w, r, maxUploadBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.ImportFile(r.Context(), body, format, mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeReport(w, report)
	}
}

// PersonImport loads a class roster sheet; rows need SuSVorn and SuSNachn.
func PersonImport(svc imports.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, format, err := readSheet(w, r, maxUploadBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.ImportPersonsFile(r.Context(), body, format)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeReport(w, report)
	}
}

func writeReport(w http.ResponseWriter, report *imports.Report) {
	status := http.StatusOK
	if report.Status == imports.StatusPartialFailure {
		status = http.StatusMultiStatus
	}
	responses.WriteSuccessStatus(w, status, report)
}

// readSheet returns the upload and the format named by its file name or
// content type. An empty format leaves detection to the reader.
func readSheet(w http.ResponseWriter, r *http.Request, limit int64) (io.Reader, sheet.Format, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		form, err := parseMultipart(w, r, limit+multipartMemory)
		if err != nil {
			return nil, "", err
		}
		headers := form.File[formFieldFile]
		if len(headers) != 1 {
			return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "exactly one file is required")
		}
		doc, err := readDocument(headers[0])
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(doc.Data), sheet.FormatFor(doc.Filename, doc.ContentType), nil
	}
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable sheet")
	}
	return bytes.NewReader(data), sheet.FormatFor("", r.Header.Get("Content-Type")), nil
}

// InventoryExport downloads every device as a sheet, xlsx unless
// ?format=csv.
func InventoryExport(svc exports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := exportFormat(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.Inventory(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeExport(w, r, svc, logg, "inventory", format, rows)
	}
}

// AssignmentExport downloads active assignments filtered by ?first_name,
// ?last_name, ?class and ?asset_tag.
func AssignmentExport(svc exports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := exportFormat(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := exports.Filter{
			FirstName: validators.QueryString(r, "first_name", maxFilterLen),
			LastName:  validators.QueryString(r, "last_name", maxFilterLen),
			ClassName: validators.QueryString(r, "class", maxFilterLen),
			AssetTag:  validators.QueryString(r, "asset_tag", maxFilterLen),
		}
		rows, err := svc.Assignments(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeExport(w, r, svc, logg, "assignments", format, rows)
	}
}

func exportFormat(r *http.Request) (sheet.Format, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("format"))
	if raw == "" {
		return sheet.FormatXLSX, nil
	}
	format, err := sheet.ParseFormat(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid format").WithDetails(map[string]any{"field": "format"})
	}
	return format, nil
}

func writeExport(w http.ResponseWriter, r *http.Request, svc exports.Service, logg *logger.Logger, prefix string, format sheet.Format, rows []exports.Row) {
	var buf bytes.Buffer
	if err := svc.Write(&buf, format, rows); err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write export"))
		return
	}
	filename := prefix + "_" + time.Now().UTC().Format(exportDateLayout) + format.Extension()
	responses.WriteFile(w, filename, format.ContentType(), buf.Bytes())
}
