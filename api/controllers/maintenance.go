package controllers

import (
	"net/http"

	"github.com/angelmondragon/tabletloan-backend/api/responses"
	"github.com/angelmondragon/tabletloan-backend/internal/assignments"
	"github.com/angelmondragon/tabletloan-backend/internal/retention"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
)

// MaintenanceRetention runs the data-protection sweep on demand. Skipped
// records are listed in the report rather than failing the request.
func MaintenanceRetention(svc retention.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.Sweep(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func MaintenanceRepairStatuses(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.RepairStatuses(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
