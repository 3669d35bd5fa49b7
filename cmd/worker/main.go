package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/commerce/internal/config"
	"github.com/floroz/commerce/internal/infra/database"
	infraevents "github.com/floroz/commerce/internal/infra/events"
	"github.com/floroz/commerce/internal/notifications"
	"github.com/floroz/commerce/internal/users"
	pkgevents "github.com/floroz/commerce/pkg/events"
	"github.com/floroz/commerce/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger := logging.NewLogger("commerce-worker", logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("worker stopped")
		os.Exit(1)
	}
	logger.Info("worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	// 1. Postgres
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("postgres connected")

	txManager := database.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	userService := users.NewService(database.NewPostgresUserRepository(pool), outboxRepo, txManager)

	// 2. RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer amqpConn.Close()
	logger.Info("rabbitmq connected")

	g, gctx := errgroup.WithContext(ctx)

	// 3. Notifications consumer
	notifier := notifications.NewNotifier(userService, logger)
	consumer := infraevents.NewConsumer(
		amqpConn,
		cfg.EventsExchange,
		notifications.QueueName,
		notifications.RoutingKeys,
		notifier.Handle,
		logger,
	)
	g.Go(func() error {
		return consumer.Run(gctx)
	})

	// 4. Outbox relay. Several relays may run at once; pending rows are claimed with SKIP LOCKED.
	if cfg.OutboxRelayEnabled {
		publisher, err := infraevents.NewRabbitMQPublisher(amqpConn, cfg.EventsExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()

		relay := pkgevents.NewOutboxRelay(
			outboxRepo,
			publisher,
			txManager,
			cfg.OutboxBatchSize,
			cfg.OutboxInterval,
			cfg.EventsExchange,
			logger,
		)
		g.Go(func() error {
			logger.Info("starting outbox relay")
			return relay.Run(gctx)
		})
	}

	return g.Wait()
}
