package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deviceBody struct {
	AssetTag string `json:"asset_tag" validate:"required,max=8"`
}

func TestDecodeJSONBodyReportsJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"asset_tag":""}`))
	var body deviceBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"asset_tag": "is required"}, typed.Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"asset_tag":"A1","status":"assigned"}`))
	var body deviceBody
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("deviceId", id.String())
	rc.URLParams.Add("personId", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseUUIDParam(req, "deviceId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "personId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?all=true&first_name=%20Max%20&limit=x", nil)

	all, err := ParseQueryBool(req, "all", false)
	require.NoError(t, err)
	assert.True(t, all)

	assert.Equal(t, "Max", QueryString(req, "first_name", 64))

	_, err = ParseQueryInt(req, "limit", 10, 1, 100)
	assert.Error(t, err)

	missing, err := ParseOptionalUUIDQuery(req, "device_id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

type dissolveBody struct {
	TargetStatus string `json:"target_status" validate:"omitempty,device_status"`
}

func TestDecodeJSONBodyDeviceStatusTag(t *testing.T) {
	var body dissolveBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"target_status":"Broken"}`))
	require.NoError(t, DecodeJSONBody(req, &body))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"target_status":"lost"}`))
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{"target_status": "must be one of available, assigned, broken, stolen"}, typed.Details())
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	var body deviceBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request body required")
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Jörg Müller", SanitizeString("  Jörg \t  Müller\x00 ", 0))
	assert.Equal(t, "Jö", SanitizeString("Jörg", 2))
	assert.Equal(t, "", SanitizeString("   ", 10))
}
