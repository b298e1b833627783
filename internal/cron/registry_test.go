package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndDropsNil(t *testing.T) {
	sweep := &stubJob{name: "retention-sweep"}
	repair := &stubJob{name: "device-status-repair"}
	registry := NewRegistry(sweep, nil)
	registry.Register(repair)
	registry.Register(nil)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, sweep, jobs[0])
	assert.Same(t, repair, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "callers get a copy")

	found, ok := registry.Find("device-status-repair")
	require.True(t, ok)
	assert.Same(t, repair, found)
	_, ok = registry.Find("missing")
	assert.False(t, ok)
}
