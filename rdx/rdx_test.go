package rdx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "catalog", []byte("v1"), time.Minute))
	got, err := c.Get(ctx, "catalog")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "catalog")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCacheNoTTLAndDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	got[0] = 'x'
	again, _ := c.Get(ctx, "a")
	assert.Equal(t, []byte("1"), again)

	require.NoError(t, c.Del(ctx, "a", "b"))
	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
}
