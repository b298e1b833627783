package enums

import (
	"fmt"
	"strings"
)

// ImportMode selects how the inventory import treats devices that already exist.
type ImportMode string

const (
	ImportModeCreateOnly ImportMode = "create_only"
	ImportModeUpsert     ImportMode = "upsert"
)

func (m ImportMode) IsValid() bool {
	return m == ImportModeCreateOnly || m == ImportModeUpsert
}

func ParseImportMode(value string) (ImportMode, error) {
	mode := ImportMode(strings.ToLower(strings.TrimSpace(value)))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid import mode %q", value)
	}
	return mode, nil
}
