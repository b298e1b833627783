package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"gorm.io/gorm"
)

type settingsRepository interface {
	Find(ctx context.Context) (*models.GlobalSettings, error)
	Upsert(ctx context.Context, row *models.GlobalSettings) error
}

// Input updates the export labels. Nil fields keep their current value.
type Input struct {
	DeviceModelLabel *string `json:"device_model_label" validate:"omitempty,max=120"`
	StylusLabel      *string `json:"stylus_label" validate:"omitempty,max=120"`
}

// Service exposes the global export labels.
type Service interface {
	Get(ctx context.Context) (*models.GlobalSettings, error)
	Update(ctx context.Context, input Input) (*models.GlobalSettings, error)
}

type service struct {
	repo settingsRepository
}

func NewService(repo settingsRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &service{repo: repo}, nil
}

// Get returns the stored labels, falling back to the defaults when the row
// has never been written.
func (s *service) Get(ctx context.Context) (*models.GlobalSettings, error) {
	row, err := s.repo.Find(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			defaults := models.DefaultGlobalSettings()
			return &defaults, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load global settings")
	}
	fillDefaults(row)
	return row, nil
}

func (s *service) Update(ctx context.Context, input Input) (*models.GlobalSettings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if input.DeviceModelLabel != nil {
		current.DeviceModelLabel = strings.TrimSpace(*input.DeviceModelLabel)
	}
	if input.StylusLabel != nil {
		current.StylusLabel = strings.TrimSpace(*input.StylusLabel)
	}
	fillDefaults(current)

	if err := s.repo.Upsert(ctx, current); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save global settings")
	}
	return current, nil
}

func fillDefaults(row *models.GlobalSettings) {
	if strings.TrimSpace(row.DeviceModelLabel) == "" {
		row.DeviceModelLabel = models.DefaultDeviceModelLabel
	}
	if strings.TrimSpace(row.StylusLabel) == "" {
		row.StylusLabel = models.DefaultStylusLabel
	}
}
