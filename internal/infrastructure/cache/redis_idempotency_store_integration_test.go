//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisIdempotencyStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	store := NewRedisIdempotencyStore(client, "test:idem:")
	defer store.Close()

	resp, err := store.Begin(ctx, "pay-1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, resp)

	_, err = store.Begin(ctx, "pay-1", time.Minute)
	assert.ErrorIs(t, err, ErrInFlight)

	require.NoError(t, store.Finish(ctx, "pay-1", Response{
		Status:      201,
		ContentType: "application/json",
		Body:        []byte(`{"success":true}`),
	}, time.Minute))

	resp, err = store.Begin(ctx, "pay-1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "application/json", resp.ContentType)

	_, err = store.Begin(ctx, "pay-2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Abort(ctx, "pay-2"))
	resp, err = store.Begin(ctx, "pay-2", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, resp)
}
