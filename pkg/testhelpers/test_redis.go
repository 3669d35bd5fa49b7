package testhelpers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRedis is a Redis container with a connected client
type TestRedis struct {
	Container testcontainers.Container
	Client    *redis.Client
}

// NewTestRedis starts a Redis server. Tests using it are skipped under -short.
func NewTestRedis(t *testing.T) *TestRedis {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")

	addr, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err, "failed to get redis endpoint")

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(ctx).Err(), "failed to ping redis")

	return &TestRedis{Container: container, Client: client}
}

// Close closes the client and terminates the container
func (tr *TestRedis) Close() {
	_ = tr.Client.Close()
	_ = tr.Container.Terminate(context.Background())
}
