package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/tabletloan-backend/internal/lending"
	"github.com/angelmondragon/tabletloan-backend/pkg/auth"
	"github.com/angelmondragon/tabletloan-backend/pkg/config"
	"github.com/angelmondragon/tabletloan-backend/pkg/db"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/metrics"
	"github.com/angelmondragon/tabletloan-backend/pkg/sheet"
	"github.com/angelmondragon/tabletloan-backend/pkg/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t       *testing.T
	handler http.Handler
	token   string
	blobs   *storage.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := db.NewFromConn(dbtest.Open(t))
	blobs := storage.NewMemory()
	reg := prometheus.NewRegistry()

	svc, err := lending.New(lending.Params{
		DB:             client,
		Blobs:          blobs,
		Logger:         logger.Nop(),
		Metrics:        metrics.NewLendingMetrics(reg),
		RetentionYears: 5,
		MaxUploadBytes: 1 << 20,
	})
	require.NoError(t, err)

	cfg := &config.Config{
		App:     config.AppConfig{Env: "test"},
		JWT:     config.JWTConfig{Secret: "secret", Issuer: "tabletloan", ExpirationMinutes: 10},
		Storage: config.StorageConfig{MaxUploadMB: 1},
		Lending: config.LendingConfig{RetentionYears: 5, DefaultImportMode: "upsert"},
	}
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{Operator: "office"})
	require.NoError(t, err)

	return &harness{
		t:       t,
		handler: NewRouter(cfg, logger.Nop(), Dependencies{DB: client, Storage: blobs, Gatherer: reg}, svc),
		token:   token,
		blobs:   blobs,
	}
}

func (h *harness) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+h.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) doJSON(method, path string, payload any) *httptest.ResponseRecorder {
	h.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(h.t, err)
		body = bytes.NewReader(raw)
	}
	return h.do(method, path, body, "application/json")
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

type idResponse struct {
	ID uuid.UUID `json:"id"`
}

func (h *harness) seedLoan(tag, first, last string) (deviceID, personID, assignmentID uuid.UUID) {
	h.t.Helper()
	rec := h.doJSON(http.MethodPost, "/api/v1/devices", map[string]any{"asset_tag": tag})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	deviceID = decode[idResponse](h.t, rec).Data.ID

	rec = h.doJSON(http.MethodPost, "/api/v1/persons", map[string]any{"first_name": first, "last_name": last})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	personID = decode[idResponse](h.t, rec).Data.ID

	rec = h.doJSON(http.MethodPost, "/api/v1/assignments", map[string]any{"device_id": deviceID, "person_id": personID})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	assignmentID = decode[idResponse](h.t, rec).Data.ID
	return deviceID, personID, assignmentID
}

func multipartBody(t *testing.T, field string, files map[string][]byte, extra map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthIsPublicAndAPIRequiresToken(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAssignmentLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	deviceID, personID, assignmentID := h.seedLoan("IT-001", "Max", "Mustermann")

	rec := h.doJSON(http.MethodPost, "/api/v1/assignments", map[string]any{"device_id": deviceID, "person_id": personID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode[any](t, rec).Error.Code)

	rec = h.do(http.MethodGet, "/api/v1/devices/by-tag/IT-001", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	device := decode[map[string]any](t, rec).Data
	assert.Equal(t, "assigned", device["status"])
	assert.Equal(t, assignmentID.String(), device["current_assignment_id"])

	rec = h.do(http.MethodPut, "/api/v1/devices/"+deviceID.String()+"/status?status=assigned", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.doJSON(http.MethodPost, "/api/v1/assignments/"+assignmentID.String()+"/dissolve", map[string]any{"target_status": "broken"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode[map[string]any](t, rec).Data["is_active"])

	rec = h.do(http.MethodGet, "/api/v1/devices/"+deviceID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "broken", decode[map[string]any](t, rec).Data["status"])

	rec = h.do(http.MethodPost, "/api/v1/assignments/"+assignmentID.String()+"/dissolve", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/devices/"+deviceID.String()+"/history", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		Entries []json.RawMessage `json:"entries"`
	}](t, rec).Data
	assert.Len(t, history.Entries, 1)

	rec = h.do(http.MethodGet, "/api/v1/devices/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(http.MethodGet, "/api/v1/devices/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPersonDeleteReportsDissolvedLoan(t *testing.T) {
	h := newHarness(t)
	_, personID, _ := h.seedLoan("IT-002", "Erika", "Musterfrau")

	rec := h.do(http.MethodDelete, "/api/v1/persons/"+personID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, rec).Data["dissolved_active_assignment"])

	rec = h.do(http.MethodGet, "/api/v1/persons/"+personID.String(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContractUploadMatchesByFilenameAndDownloads(t *testing.T) {
	h := newHarness(t)
	_, _, assignmentID := h.seedLoan("IT-003", "Max", "Mustermann")

	body, contentType := multipartBody(t, "files", map[string][]byte{"Max_Mustermann.pdf": []byte("%PDF-1.4")}, nil)
	rec := h.do(http.MethodPost, "/api/v1/contracts/upload", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	type batch struct {
		Files []struct {
			Result struct {
				Matched      bool       `json:"matched"`
				MatchedBy    string     `json:"matched_by"`
				AssignmentID *uuid.UUID `json:"assignment_id"`
				Contract     struct {
					ID uuid.UUID `json:"id"`
				} `json:"contract"`
			} `json:"result"`
		} `json:"files"`
		Matched int    `json:"matched"`
		Status  string `json:"status"`
	}
	result := decode[batch](t, rec).Data
	require.Len(t, result.Files, 1)
	file := result.Files[0].Result
	assert.True(t, file.Matched)
	assert.Equal(t, "filename", file.MatchedBy)
	require.NotNil(t, file.AssignmentID)
	assert.Equal(t, assignmentID, *file.AssignmentID)
	assert.Equal(t, "ok", result.Status)

	rec = h.do(http.MethodGet, "/api/v1/contracts/"+file.Contract.ID.String()+"/download", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Max_Mustermann.pdf")

	rec = h.do(http.MethodGet, "/api/v1/contracts/unassigned", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]json.RawMessage](t, rec).Data)

	rec = h.do(http.MethodGet, "/api/v1/assignments/available-for-contracts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]json.RawMessage](t, rec).Data)
}

func TestContractBatchReportsPartialFailure(t *testing.T) {
	h := newHarness(t)

	files := map[string][]byte{
		"Unknown_Person.pdf": []byte("%PDF"),
		"empty.pdf":          {},
	}
	body, contentType := multipartBody(t, "files", files, nil)
	rec := h.do(http.MethodPost, "/api/v1/contracts/upload", body, contentType)
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	status := decode[struct {
		Failed int    `json:"failed"`
		Status string `json:"status"`
	}](t, rec).Data
	assert.Equal(t, 1, status.Failed)
	assert.Equal(t, "partial_failure", status.Status)

	rec = h.do(http.MethodGet, "/api/v1/contracts/unassigned", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]json.RawMessage](t, rec).Data, 1)
}

func TestContractUploadForAssignmentFlagsWarning(t *testing.T) {
	h := newHarness(t)
	_, _, assignmentID := h.seedLoan("IT-004", "Max", "Mustermann")

	fields := `{"NutzungEinhaltung":"/Yes","NutzungKenntnisnahme":"","ausgabeNeu":"/Yes","ausgabeGebraucht":"/Off"}`
	body, contentType := multipartBody(t, "file", map[string][]byte{"scan.pdf": []byte("%PDF")}, map[string]string{"fields": fields})
	rec := h.do(http.MethodPost, "/api/v1/assignments/"+assignmentID.String()+"/contract", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode[map[string]any](t, rec).Data["warning"])

	rec = h.do(http.MethodPost, "/api/v1/assignments/"+assignmentID.String()+"/dismiss-warning", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec).Data["warning_dismissed"])
}

func TestInventoryImportAndExport(t *testing.T) {
	h := newHarness(t)

	csv := "ITNr,SNr,Typ,SuSVorn,SuSNachn,SuSKl,AusleiheDatum\n" +
		"IT-100,SN1,iPad 9,Max,Mustermann,7a,01.09.2024\n" +
		" ,,,,,,\n" +
		"IT-101,SN2,,,,,\n"
	rec := h.do(http.MethodPost, "/api/v1/imports/inventory?mode=create_only", strings.NewReader(csv), "text/csv")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[struct {
		ProcessedCount     int    `json:"processed_count"`
		IgnoredRows        int    `json:"ignored_rows"`
		AssignmentsCreated int    `json:"assignments_created"`
		Status             string `json:"status"`
	}](t, rec).Data
	assert.Equal(t, 2, report.ProcessedCount)
	assert.Equal(t, 1, report.IgnoredRows)
	assert.Equal(t, 1, report.AssignmentsCreated)
	assert.Equal(t, "ok", report.Status)

	rec = h.do(http.MethodPost, "/api/v1/imports/inventory?mode=replace", strings.NewReader(csv), "text/csv")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/exports/inventory", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sheet.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	rows, err := sheet.Read(rec.Body)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	tags := []string{rows[0].Get(sheet.ColAssetTag), rows[1].Get(sheet.ColAssetTag)}
	assert.ElementsMatch(t, []string{"IT-100", "IT-101"}, tags)

	rec = h.do(http.MethodGet, "/api/v1/assignments/export?class=7a&format=csv", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, rec.Body.String(), "Mustermann")
	assert.NotContains(t, rec.Body.String(), "IT-101")

	rec = h.do(http.MethodGet, "/api/v1/exports/inventory?format=ods", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPersonRosterImportFromWorkbook(t *testing.T) {
	h := newHarness(t)

	var book bytes.Buffer
	require.NoError(t, sheet.Write(&book, sheet.FormatXLSX,
		[]string{"Sname", "SuSNachn", "SuSVorn", "SuSKl"},
		[][]string{
			{"mm", "Mustermann", "Max", "7a"},
			{"ee", "Example", "Erika", "7b"},
			{"", "", "", ""},
		}))
	body, contentType := multipartBody(t, "file", map[string][]byte{"schueler.xlsx": book.Bytes()}, nil)

	rec := h.do(http.MethodPost, "/api/v1/imports/persons", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[struct {
		Kind           string `json:"kind"`
		ProcessedCount int    `json:"processed_count"`
		CreatedCount   int    `json:"created_count"`
		Status         string `json:"status"`
	}](t, rec).Data
	assert.Equal(t, "persons", report.Kind)
	assert.Equal(t, 2, report.ProcessedCount)
	assert.Equal(t, 2, report.CreatedCount)
	assert.Equal(t, "ok", report.Status)

	rec = h.do(http.MethodGet, "/api/v1/persons?class=7b", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	people := decode[[]map[string]any](t, rec).Data
	require.Len(t, people, 1)
	assert.Equal(t, "Erika", people[0]["first_name"])
}

func TestSettingsAndMaintenanceEndpoints(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/v1/settings/global", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Apple iPad", decode[map[string]any](t, rec).Data["device_model_label"])

	rec = h.doJSON(http.MethodPut, "/api/v1/settings/global", map[string]any{"stylus_label": "Logitech Crayon"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Logitech Crayon", decode[map[string]any](t, rec).Data["stylus_label"])

	rec = h.do(http.MethodPost, "/api/v1/maintenance/repair-statuses", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 0, decode[map[string]any](t, rec).Data["repaired"])

	rec = h.do(http.MethodPost, "/api/v1/maintenance/retention", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 0, decode[map[string]any](t, rec).Data["persons_deleted"])
}

func TestAutoAssignPairsInInsertionOrder(t *testing.T) {
	h := newHarness(t)
	for _, tag := range []string{"IT-201", "IT-202"} {
		rec := h.doJSON(http.MethodPost, "/api/v1/devices", map[string]any{"asset_tag": tag})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := h.doJSON(http.MethodPost, "/api/v1/persons", map[string]any{"first_name": "Max", "last_name": "Mustermann"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/assignments/auto-assign", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[struct {
		AssignedCount int      `json:"assigned_count"`
		Details       []string `json:"details"`
	}](t, rec).Data
	assert.Equal(t, 1, result.AssignedCount)
	require.Len(t, result.Details, 1)
	assert.Contains(t, result.Details[0], "to Max Mustermann")
}
