// Package storage keeps contract documents in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/angelmondragon/tabletloan-backend/pkg/config"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"go.uber.org/multierr"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Object is a stored document and its metadata.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Data        []byte
}

// ObjectStore is the narrow surface the lending services use.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Open selects the configured driver.
func Open(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (ObjectStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", config.StorageDriverMemory:
		if logg != nil {
			logg.Warn(ctx, "using in-memory contract storage; documents are lost on restart")
		}
		return NewMemory(), nil
	case config.StorageDriverMinio:
		return NewMinio(ctx, cfg, logg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ContractKey builds the object key of a contract document.
func ContractKey(contractID, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	return path.Join("contracts", contractID, name)
}

// DeleteAll removes every key, continuing past failures. Missing objects are
// not errors.
func DeleteAll(ctx context.Context, store ObjectStore, keys []string) error {
	var errs error
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errs
}
