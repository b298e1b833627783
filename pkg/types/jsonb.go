package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB is raw JSON bound as text so it round-trips through the pgx simple
// protocol and SQLite alike.
type JSONB json.RawMessage

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "null", nil
	}
	return string(j), nil
}

func (j *JSONB) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case string:
		*j = JSONB(v)
	case []byte:
		*j = append((*j)[:0], v...)
	default:
		return fmt.Errorf("JSONB: unsupported Scan type %T", src)
	}
	return nil
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}
