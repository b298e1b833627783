package controllers

import (
	"net/http"

	"github.com/angelmondragon/tabletloan-backend/api/responses"
	"github.com/angelmondragon/tabletloan-backend/api/validators"
	"github.com/angelmondragon/tabletloan-backend/internal/persons"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
)

const maxFilterLen = 128

// PersonList filters by ?first_name, ?last_name (substring) and ?class.
func PersonList(svc persons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := persons.Filter{
			FirstName: validators.QueryString(r, "first_name", maxFilterLen),
			LastName:  validators.QueryString(r, "last_name", maxFilterLen),
			ClassName: validators.QueryString(r, "class", maxFilterLen),
		}
		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, list)
	}
}

func PersonCreate(svc persons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input persons.Input
		if err := validators.DecodeJSONBody(r, &input); err != nil {
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

func PersonGet(svc persons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "personId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		person, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, person)
	}
}

func PersonUpdate(svc persons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "personId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input persons.Input
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		person, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, person)
	}
}

// PersonDelete dissolves any active loan and removes the person's history.
func PersonDelete(svc persons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "personId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Delete(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
