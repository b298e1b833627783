package enums

import (
	"fmt"
	"strings"
)

// DeviceStatus maps to devices.status.
type DeviceStatus string

const (
	DeviceStatusAvailable DeviceStatus = "available"
	DeviceStatusAssigned  DeviceStatus = "assigned"
	DeviceStatusBroken    DeviceStatus = "broken"
	DeviceStatusStolen    DeviceStatus = "stolen"
)

var validDeviceStatuses = []DeviceStatus{
	DeviceStatusAvailable,
	DeviceStatusAssigned,
	DeviceStatusBroken,
	DeviceStatusStolen,
}

// IsValid reports whether the value matches a known device status.
func (s DeviceStatus) IsValid() bool {
	for _, candidate := range validDeviceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (s DeviceStatus) String() string {
	return string(s)
}

// ParseDeviceStatus converts raw input into DeviceStatus. Matching ignores case.
func ParseDeviceStatus(value string) (DeviceStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDeviceStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid device status %q", value)
}
