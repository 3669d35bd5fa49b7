package testhelpers

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// TestRabbitMQ is a RabbitMQ container with an open connection
type TestRabbitMQ struct {
	Container *rabbitmq.RabbitMQContainer
	Conn      *amqp.Connection
}

// NewTestRabbitMQ starts a RabbitMQ broker. Tests using it are skipped under -short.
func NewTestRabbitMQ(t *testing.T) *TestRabbitMQ {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.13-management-alpine")
	require.NoError(t, err, "failed to start rabbitmq container")

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err, "failed to get amqp url")

	conn, err := amqp.Dial(url)
	require.NoError(t, err, "failed to connect to rabbitmq")

	return &TestRabbitMQ{Container: container, Conn: conn}
}

// Close closes the connection and terminates the container
func (tr *TestRabbitMQ) Close() {
	_ = tr.Conn.Close()
	_ = tr.Container.Terminate(context.Background())
}
