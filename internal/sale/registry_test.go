package sale

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lojaju/backend/internal/store"
)

func TestRegistryLifecycle(t *testing.T) {
	registry := NewRegistry(catalog{}, 0)

	first := registry.Open()
	second := registry.Open()
	assert.NotEqual(t, first.ID(), second.ID())

	got, err := registry.Get(first.ID())
	require.NoError(t, err)
	assert.Same(t, first, got)

	require.NoError(t, registry.Discard(first.ID()))
	_, err = registry.Get(first.ID())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, registry.Discard(first.ID()), store.ErrNotFound)

	_, err = registry.Get(second.ID())
	assert.NoError(t, err)
	_, err = registry.Get("not-a-draft")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegistryDropsIdleDrafts(t *testing.T) {
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	registry := NewRegistry(catalog{}, time.Hour)
	registry.now = func() time.Time { return clock }

	idle := registry.Open()
	active := registry.Open()

	clock = clock.Add(40 * time.Minute)
	_, err := registry.Get(active.ID())
	require.NoError(t, err)

	clock = clock.Add(40 * time.Minute)
	_, err = registry.Get(idle.ID())
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = registry.Get(active.ID())
	assert.NoError(t, err)

	clock = clock.Add(2 * time.Hour)
	registry.Open()
	assert.Len(t, registry.drafts, 1)
}
