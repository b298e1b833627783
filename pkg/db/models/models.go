package models

import "github.com/google/uuid"

// All lists every table owned by the service, in creation order.
func All() []any {
	return []any{
		&Device{},
		&Person{},
		&Assignment{},
		&Contract{},
		&GlobalSettings{},
		&OutboxEvent{},
	}
}

// NewID returns a time-ordered UUIDv7 so ordering by id follows insertion
// order within one process, including rows sharing a timestamp.
func NewID() (uuid.UUID, error) {
	return uuid.NewV7()
}

func ensureID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	next, err := NewID()
	if err != nil {
		return err
	}
	*id = next
	return nil
}
