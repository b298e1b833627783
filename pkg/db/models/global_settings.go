package models

import "time"

const (
	GlobalSettingsID        = "global"
	DefaultDeviceModelLabel = "Apple iPad"
	DefaultStylusLabel      = "Apple Pencil"
)

// GlobalSettings is the singleton row of export labels.
type GlobalSettings struct {
	ID               string    `gorm:"column:id;type:text;primaryKey" json:"-"`
	DeviceModelLabel string    `gorm:"column:device_model_label;type:text;not null" json:"device_model_label"`
	StylusLabel      string    `gorm:"column:stylus_label;type:text;not null" json:"stylus_label"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (GlobalSettings) TableName() string { return "global_settings" }

// DefaultGlobalSettings returns the labels used when no row exists.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		ID:               GlobalSettingsID,
		DeviceModelLabel: DefaultDeviceModelLabel,
		StylusLabel:      DefaultStylusLabel,
	}
}
