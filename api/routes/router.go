package routes

import (
	"net/http"

	"github.com/angelmondragon/tabletloan-backend/api/controllers"
	"github.com/angelmondragon/tabletloan-backend/api/middleware"
	"github.com/angelmondragon/tabletloan-backend/internal/lending"
	"github.com/angelmondragon/tabletloan-backend/pkg/config"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tabletloan-backend/pkg/redis"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are checked by /health/ready and feed the ambient middleware.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Storage     controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies, svc *lending.Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessChecks(deps)))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	maxUpload := cfg.Storage.MaxUploadBytes()
	importMode, err := enums.ParseImportMode(cfg.Lending.DefaultImportMode)
	if err != nil {
		importMode = enums.ImportModeUpsert
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if deps.Idempotency != nil {
			r.Use(middleware.Idempotency(deps.Idempotency, logg))
		}

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", controllers.DeviceList(svc.Devices, logg))
			r.Post("/", controllers.DeviceCreate(svc.Devices, logg))
			r.Get("/by-tag/{assetTag}", controllers.DeviceByTag(svc.Devices, logg))
			r.Route("/{deviceId}", func(r chi.Router) {
				r.Get("/", controllers.DeviceGet(svc.Devices, logg))
				r.Patch("/", controllers.DeviceUpdate(svc.Devices, logg))
				r.Delete("/", controllers.DeviceDelete(svc.Devices, logg))
				r.Put("/status", controllers.DeviceSetStatus(svc.Devices, logg))
				r.Get("/history", controllers.DeviceHistory(svc.Devices, logg))
			})
		})

		r.Route("/persons", func(r chi.Router) {
			r.Get("/", controllers.PersonList(svc.Persons, logg))
			r.Post("/", controllers.PersonCreate(svc.Persons, logg))
			r.Route("/{personId}", func(r chi.Router) {
				r.Get("/", controllers.PersonGet(svc.Persons, logg))
				r.Patch("/", controllers.PersonUpdate(svc.Persons, logg))
				r.Delete("/", controllers.PersonDelete(svc.Persons, logg))
			})
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", controllers.AssignmentList(svc.Assignments, logg))
			r.Post("/", controllers.AssignmentCreate(svc.Assignments, logg))
			r.Post("/auto-assign", controllers.AssignmentAutoAssign(svc.Assignments, logg))
			r.Get("/available-for-contracts", controllers.AssignmentsAvailableForContracts(svc.Assignments, logg))
			r.Get("/export", controllers.AssignmentExport(svc.Exports, logg))
			r.Route("/{assignmentId}", func(r chi.Router) {
				r.Get("/", controllers.AssignmentGet(svc.Assignments, logg))
				r.Post("/dissolve", controllers.AssignmentDissolve(svc.Assignments, logg))
				r.Post("/dismiss-warning", controllers.AssignmentDismissWarning(svc.Assignments, logg))
				r.Post("/contract", controllers.AssignmentUploadContract(svc.Contracts, maxUpload, logg))
			})
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/upload", controllers.ContractUpload(svc.Contracts, maxUpload, logg))
			r.Get("/unassigned", controllers.ContractListUnmatched(svc.Contracts, logg))
			r.Route("/{contractId}", func(r chi.Router) {
				r.Get("/", controllers.ContractGet(svc.Contracts, logg))
				r.Delete("/", controllers.ContractDelete(svc.Contracts, logg))
				r.Get("/download", controllers.ContractDownload(svc.Contracts, logg))
				r.Post("/assign/{assignmentId}", controllers.ContractManualAttach(svc.Contracts, logg))
			})
		})

		r.Post("/imports/inventory", controllers.InventoryImport(svc.Imports, importMode, maxUpload, logg))
		r.Post("/imports/persons", controllers.PersonImport(svc.Imports, maxUpload, logg))
		r.Get("/exports/inventory", controllers.InventoryExport(svc.Exports, logg))

		r.Get("/settings/global", controllers.SettingsGet(svc.Settings, logg))
		r.Put("/settings/global", controllers.SettingsUpdate(svc.Settings, logg))

		r.Route("/maintenance", func(r chi.Router) {
			r.Post("/retention", controllers.MaintenanceRetention(svc.Retention, logg))
			r.Post("/repair-statuses", controllers.MaintenanceRepairStatuses(svc.Assignments, logg))
		})
	})

	return r
}

func readinessChecks(deps Dependencies) map[string]controllers.Pinger {
	return map[string]controllers.Pinger{
		"database": deps.DB,
		"redis":    deps.Redis,
		"storage":  deps.Storage,
	}
}
