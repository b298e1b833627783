package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tabletloan-backend/internal/assignments"
	"github.com/angelmondragon/tabletloan-backend/internal/retention"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"go.uber.org/multierr"
)

const (
	RetentionSweepJobName = "retention-sweep"
	StatusRepairJobName   = "device-status-repair"
)

type retentionSweeper interface {
	Sweep(ctx context.Context) (*retention.Report, error)
}

type statusRepairer interface {
	RepairStatuses(ctx context.Context) (*assignments.RepairReport, error)
}

// NewRetentionSweepJob wraps the data-protection sweep.
func NewRetentionSweepJob(logg *logger.Logger, sweeper retentionSweeper) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("retention service required")
	}
	return &retentionSweepJob{logg: logg, sweeper: sweeper}, nil
}

type retentionSweepJob struct {
	logg    *logger.Logger
	sweeper retentionSweeper
}

func (j *retentionSweepJob) Name() string { return RetentionSweepJobName }

func (j *retentionSweepJob) Run(ctx context.Context) error {
	report, err := j.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"persons_deleted":   report.PersonsDeleted,
		"contracts_deleted": report.ContractsDeleted,
		"skipped":           len(report.Failures),
	}), "retention sweep complete")
	return combineFailures(report.Failures)
}

// NewStatusRepairJob wraps the device status repair.
func NewStatusRepairJob(logg *logger.Logger, repairer statusRepairer) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repairer == nil {
		return nil, fmt.Errorf("assignment service required")
	}
	return &statusRepairJob{logg: logg, repairer: repairer}, nil
}

type statusRepairJob struct {
	logg     *logger.Logger
	repairer statusRepairer
}

func (j *statusRepairJob) Name() string { return StatusRepairJobName }

func (j *statusRepairJob) Run(ctx context.Context) error {
	report, err := j.repairer.RepairStatuses(ctx)
	if err != nil {
		return fmt.Errorf("status repair: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned":  report.Scanned,
		"repaired": report.Repaired,
		"skipped":  len(report.Failures),
	}), "status repair complete")
	return combineFailures(report.Failures)
}

func combineFailures(failures []assignments.RecordFailure) error {
	var errs error
	for _, f := range failures {
		errs = multierr.Append(errs, fmt.Errorf("%s: %s", f.ID, f.Error))
	}
	return errs
}
