package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/tabletloan-backend/api/responses"
	"github.com/angelmondragon/tabletloan-backend/api/validators"
	"github.com/angelmondragon/tabletloan-backend/internal/assignments"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/google/uuid"
)

type assignmentCreateRequest struct {
	DeviceID   string     `json:"device_id" validate:"required,uuid"`
	PersonID   string     `json:"person_id" validate:"required,uuid"`
	AssignedAt *time.Time `json:"assigned_at"`
}

func (r assignmentCreateRequest) toInput() (assignments.CreateInput, error) {
	deviceID, err := uuid.Parse(strings.TrimSpace(r.DeviceID))
	if err != nil {
		return assignments.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid device_id")
	}
	personID, err := uuid.Parse(strings.TrimSpace(r.PersonID))
	if err != nil {
		return assignments.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid person_id")
	}
	return assignments.CreateInput{DeviceID: deviceID, PersonID: personID, AssignedAt: r.AssignedAt}, nil
}

type dissolveRequest struct {
	TargetStatus string `json:"target_status" validate:"omitempty,device_status"`
}

// AssignmentList returns active assignments; ?all=true includes dissolved ones.
func AssignmentList(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := validators.ParseQueryBool(r, "all", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deviceID, err := validators.ParseOptionalUUIDQuery(r, "device_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		personID, err := validators.ParseOptionalUUIDQuery(r, "person_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), assignments.ListFilter{IncludeInactive: all, DeviceID: deviceID, PersonID: personID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, list)
	}
}

func AssignmentCreate(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload assignmentCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func AssignmentGet(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignment, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

func AssignmentAutoAssign(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.AutoAssign(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AssignmentsAvailableForContracts(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.AvailableForContracts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, list)
	}
}

// AssignmentDissolve ends a loan. The body is optional; target_status picks
// the device status afterwards.
func AssignmentDissolve(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var opts assignments.DissolveOptions
		if r.ContentLength > 0 {
			var payload dissolveRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if strings.TrimSpace(payload.TargetStatus) != "" {
				status, err := enums.ParseDeviceStatus(payload.TargetStatus)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target_status"))
					return
				}
				opts.TargetStatus = &status
			}
		}
		dissolved, err := svc.Dissolve(r.Context(), id, opts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dissolved)
	}
}

func AssignmentDismissWarning(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignment, err := svc.DismissWarning(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}
