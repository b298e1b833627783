package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/tabletloan-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	data := []byte("%PDF-1.4")
	require.NoError(t, store.Put(ctx, "contracts/1/a.pdf", data, "application/pdf"))
	data[0] = 'X'

	obj, err := store.Get(ctx, "contracts/1/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(obj.Data))
	assert.Equal(t, int64(8), obj.Size)
	assert.Equal(t, "application/pdf", obj.ContentType)

	require.NoError(t, store.Delete(ctx, "contracts/1/a.pdf"))
	_, err = store.Get(ctx, "contracts/1/a.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, store.Delete(ctx, "missing"))
	assert.Equal(t, 0, store.Len())
}

func TestContractKeyStripsDirectories(t *testing.T) {
	assert.Equal(t, "contracts/c1/Max_Mustermann.pdf", ContractKey("c1", "../../Max_Mustermann.pdf"))
	assert.Equal(t, "contracts/c1/scan.pdf", ContractKey("c1", `C:\scans\scan.pdf`))
	assert.Equal(t, "contracts/c1/document", ContractKey("c1", ""))
}

func TestOpenSelectsDriver(t *testing.T) {
	store, err := Open(context.Background(), config.StorageConfig{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)

	_, err = Open(context.Background(), config.StorageConfig{Driver: "tape"}, nil)
	assert.Error(t, err)
}

func TestNewMinioClientRequiresBucket(t *testing.T) {
	_, err := newMinioClient(config.StorageConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"})
	assert.Error(t, err)

	store, err := newMinioClient(config.StorageConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s", Bucket: "contracts"})
	require.NoError(t, err)
	assert.Equal(t, defaultOpTimeout, store.opTimeout)
}

type failingStore struct {
	*Memory
	fail map[string]bool
}

func (f failingStore) Delete(ctx context.Context, key string) error {
	if f.fail[key] {
		return errors.New("bucket offline")
	}
	return f.Memory.Delete(ctx, key)
}

func TestDeleteAllContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Put(ctx, "a", []byte("1"), "application/pdf"))
	require.NoError(t, mem.Put(ctx, "c", []byte("3"), "application/pdf"))
	store := failingStore{Memory: mem, fail: map[string]bool{"b": true}}

	err := DeleteAll(ctx, store, []string{"a", "b", "", "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete b")
	assert.Equal(t, 0, mem.Len())
}
