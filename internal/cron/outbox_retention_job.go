package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	OutboxRetentionJobName = "outbox-retention"
	outboxRetentionDays    = 30
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	// Retention is the age in days after which delivered events are removed.
	Retention int
	// TerminalAttempts marks events the publisher gave up on.
	TerminalAttempts int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		retention:        retention,
		terminalAttempts: params.TerminalAttempts,
		now:              time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg             *logger.Logger
	db               txRunner
	repo             outboxRetentionRepo
	retention        int
	terminalAttempts int
	now              func() time.Time
}

func (j *outboxRetentionJob) Name() string { return OutboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.terminalAttempts)
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox retention cleanup complete")
	return nil
}
