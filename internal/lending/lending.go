// Package lending wires the domain services over one store, one object
// store and one lock table per process.
package lending

import (
	"fmt"

	"github.com/angelmondragon/tabletloan-backend/internal/assignments"
	"github.com/angelmondragon/tabletloan-backend/internal/contracts"
	"github.com/angelmondragon/tabletloan-backend/internal/devices"
	"github.com/angelmondragon/tabletloan-backend/internal/exports"
	"github.com/angelmondragon/tabletloan-backend/internal/imports"
	"github.com/angelmondragon/tabletloan-backend/internal/persons"
	"github.com/angelmondragon/tabletloan-backend/internal/retention"
	"github.com/angelmondragon/tabletloan-backend/internal/settings"
	"github.com/angelmondragon/tabletloan-backend/pkg/db"
	"github.com/angelmondragon/tabletloan-backend/pkg/keylock"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/metrics"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox"
	"github.com/angelmondragon/tabletloan-backend/pkg/storage"
)

type Params struct {
	DB             *db.Client
	Blobs          storage.ObjectStore
	Logger         *logger.Logger
	Metrics        *metrics.LendingMetrics
	RetentionYears int
	MaxUploadBytes int64
}

// Services bundles the domain services the binaries expose.
type Services struct {
	Devices     devices.Service
	Persons     persons.Service
	Assignments assignments.Service
	Contracts   contracts.Service
	Imports     imports.Service
	Exports     exports.Service
	Settings    settings.Service
	Retention   retention.Service
}

func New(params Params) (*Services, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Blobs == nil {
		return nil, fmt.Errorf("object store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	conn := params.DB.DB()
	logg := params.Logger
	locks := keylock.New()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	assignmentSvc, err := assignments.NewService(assignments.NewRepository(conn), params.DB, emitter, locks, params.Metrics, logg)
	if err != nil {
		return nil, fmt.Errorf("assignments service: %w", err)
	}
	deviceSvc, err := devices.NewService(devices.NewRepository(conn), params.DB, assignmentSvc, params.Blobs, emitter, locks, logg)
	if err != nil {
		return nil, fmt.Errorf("devices service: %w", err)
	}
	personSvc, err := persons.NewService(persons.NewRepository(conn), params.DB, assignmentSvc, params.Blobs, emitter, locks, logg)
	if err != nil {
		return nil, fmt.Errorf("persons service: %w", err)
	}
	contractSvc, err := contracts.NewService(contracts.NewRepository(conn), params.DB, params.Blobs, emitter, locks, params.Metrics, params.MaxUploadBytes, logg)
	if err != nil {
		return nil, fmt.Errorf("contracts service: %w", err)
	}
	importSvc, err := imports.NewService(params.DB, deviceSvc, personSvc, assignmentSvc, emitter, params.Metrics, logg)
	if err != nil {
		return nil, fmt.Errorf("imports service: %w", err)
	}
	settingsSvc, err := settings.NewService(settings.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("settings service: %w", err)
	}
	exportSvc, err := exports.NewService(exports.NewRepository(conn), settingsSvc)
	if err != nil {
		return nil, fmt.Errorf("exports service: %w", err)
	}
	retentionSvc, err := retention.NewService(retention.NewRepository(conn), params.DB, assignmentSvc, params.Blobs, locks, params.RetentionYears, logg)
	if err != nil {
		return nil, fmt.Errorf("retention service: %w", err)
	}

	return &Services{
		Devices:     deviceSvc,
		Persons:     personSvc,
		Assignments: assignmentSvc,
		Contracts:   contractSvc,
		Imports:     importSvc,
		Exports:     exportSvc,
		Settings:    settingsSvc,
		Retention:   retentionSvc,
	}, nil
}
