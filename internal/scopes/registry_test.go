package scopes

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCachedNameHit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := NewRegistry(nil, client, time.Hour, testLogger())

	require.NoError(t, mr.Set("scope:name:12345678", "Fleet One"))

	name, ok := registry.CachedName(context.Background(), "12345678")
	require.True(t, ok)
	assert.Equal(t, "Fleet One", name)
}
