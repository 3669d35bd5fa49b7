package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/commerce/internal/auction"
	"github.com/floroz/commerce/internal/config"
	"github.com/floroz/commerce/internal/infra/database"
	infraevents "github.com/floroz/commerce/internal/infra/events"
	"github.com/floroz/commerce/internal/infra/ratelimit"
	"github.com/floroz/commerce/internal/infra/session"
	"github.com/floroz/commerce/internal/rpc"
	"github.com/floroz/commerce/internal/users"
	"github.com/floroz/commerce/internal/web"
	"github.com/floroz/commerce/pkg/auth"
	pkgevents "github.com/floroz/commerce/pkg/events"
	"github.com/floroz/commerce/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger := logging.NewLogger("commerce-api", logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("api stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	// 1. Postgres
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("postgres connected")

	// 2. Redis for sessions and rate limiting
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	logger.Info("redis connected")

	// 3. Token signing keys
	privatePEM, publicPEM, err := signingKeys(cfg, logger)
	if err != nil {
		return err
	}
	signer, err := auth.NewSigner(privatePEM, publicPEM, cfg.JWTIssuer, cfg.SessionTTL)
	if err != nil {
		return err
	}

	// 4. Repositories and services
	txManager := database.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	auctionService := auction.NewAuctionService(
		txManager,
		database.NewPostgresAuctionRepository(pool),
		database.NewPostgresBidRepository(pool),
		database.NewPostgresCommentRepository(pool),
		database.NewPostgresWatchlistRepository(pool),
		database.NewPostgresCategoryRepository(pool),
		outboxRepo,
	)
	userService := users.NewService(database.NewPostgresUserRepository(pool), outboxRepo, txManager)

	sessions := session.NewRedisStore(rdb, cfg.SessionTTL)
	authn := auth.NewAuthenticator(signer, sessions)

	// 5. HTTP: HTML site plus the RPC procedures under /rpc
	gin.SetMode(cfg.GinMode)
	engine, err := web.NewEngine(logger)
	if err != nil {
		return err
	}

	site := web.NewServer(web.Deps{
		Auctions:     auctionService,
		Users:        userService,
		Sessions:     sessions,
		Tokens:       signer,
		Authn:        authn,
		Limiter:      ratelimit.NewLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow),
		Logger:       logger,
		CookieSecure: cfg.CookieSecure,
	})
	site.Register(engine)

	rpcHandler := rpc.NewAuctionServiceHandler(auctionService, logger)
	rpc.Mount(engine, rpcHandler.Routes(authn), cfg.CORSAllowedOrigins)

	// 6. Outbox relay, unless a separate worker runs it
	var relay *pkgevents.OutboxRelay
	if cfg.OutboxRelayEnabled {
		amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		defer amqpConn.Close()
		logger.Info("rabbitmq connected")

		publisher, err := infraevents.NewRabbitMQPublisher(amqpConn, cfg.EventsExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()

		relay = pkgevents.NewOutboxRelay(
			outboxRepo,
			publisher,
			txManager,
			cfg.OutboxBatchSize,
			cfg.OutboxInterval,
			cfg.EventsExchange,
			logger,
		)
	}

	// h2c serves the connect procedures over HTTP/2 without TLS
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h2c.NewHandler(engine, &http2.Server{}),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if relay != nil {
		g.Go(func() error {
			logger.Info("starting outbox relay")
			return relay.Run(gctx)
		})
	}

	return g.Wait()
}

// signingKeys reads the configured key pair, or generates an ephemeral one.
// Sessions signed with an ephemeral key do not survive a restart.
func signingKeys(cfg *config.Config, logger logrus.FieldLogger) ([]byte, []byte, error) {
	if cfg.HasKeyFiles() {
		return cfg.ReadKeys()
	}
	logger.Warn("no JWT key files configured, generating an ephemeral key pair")
	return auth.GenerateKeyPEM(2048)
}
