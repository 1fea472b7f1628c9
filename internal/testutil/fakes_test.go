package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinictrack/emgcore/pkg/models"
)

func TestFakeStore_CreateSessionDedupesByHash(t *testing.T) {
	store := NewFakeStore()
	first, created, err := store.CreateSession(context.Background(), "hash-1", &models.Session{})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := store.CreateSession(context.Background(), "hash-1", &models.Session{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestFakeCache_MissReturnsFalseNoError(t *testing.T) {
	cache := NewFakeCache()
	entry, found, err := cache.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, entry)
}

func TestFakeDownloader_ReturnsConfiguredError(t *testing.T) {
	d := &FakeDownloader{Err: assert.AnError}
	_, err := d.Download(context.Background(), "ref")
	assert.ErrorIs(t, err, assert.AnError)
}
