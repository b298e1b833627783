package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// FieldMap holds form field values extracted from an uploaded document.
type FieldMap map[string]string

func (m FieldMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (m *FieldMap) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = FieldMap{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("FieldMap: unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		*m = FieldMap{}
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("FieldMap: %w", err)
	}
	*m = out
	return nil
}

// Get returns the trimmed value for key and whether it was non-blank.
func (m FieldMap) Get(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
