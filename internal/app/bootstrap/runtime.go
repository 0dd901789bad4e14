package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/adapters/veriff"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping m04 user service",
		"service", cfg.ServiceID,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
	)

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	closers = append(closers, sqlDB.Close)

	if err := postgres.RunMigrations(ctx, db); err != nil {
		cleanup()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	repos := postgres.NewRepositories(db)

	var coopCache ports.CoopCache
	if cfg.RedisURL != "" {
		redisClient, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, err
		}
		closers = append(closers, redisClient.Close)
		coopCache = cacheadapter.NewRedisCoopCache(redisClient)
	} else {
		logger.Warn("redis not configured; coop cache disabled")
	}

	tokenSigner, err := security.NewJWTSigner(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		if !cfg.AllowEphemeralJWT {
			cleanup()
			return nil, fmt.Errorf("init jwt signer: %w", err)
		}
		logger.Warn("using ephemeral JWT keys for local/dev runtime")
		tokenSigner, err = security.NewEphemeralJWTSigner(cfg.JWTKeyID)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("init ephemeral jwt signer: %w", err)
		}
	}

	provider, err := veriff.NewClient(veriff.Config{
		BaseURL: cfg.VeriffBaseURL,
		APIKey:  cfg.VeriffAPIKey,
		Secret:  cfg.VeriffSecret,
		Timeout: cfg.VeriffTimeout,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init verification provider: %w", err)
	}

	var social ports.SocialIdentityProvider
	if cfg.GoogleClientID != "" {
		google, err := security.NewGoogleIdentityProvider(ctx, cfg.GoogleIssuerURL)
		if err != nil {
			logger.Warn("google identity provider unavailable; social signup disabled", "error", err)
		} else {
			social = google
		}
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			DefaultCoop:            cfg.DefaultCoop,
			FirstUserAdmin:         cfg.FirstUserAdmin,
			MailConfirmationNeeded: cfg.MailConfirmationNeeded,
			MailTokenTTL:           cfg.MailTokenTTL,
			TokenTTL:               cfg.TokenTTL,
			CallbackURLTemplate:    cfg.VeriffCallbackURL,
			CoopCacheTTL:           cfg.CoopCacheTTL,
		},
		Users:       repos.Users,
		UserInfos:   repos.UserInfos,
		MailTokens:  repos.MailTokens,
		Coops:       repos.Coops,
		Sessions:    repos.Sessions,
		Decisions:   repos.Decisions,
		CoopCache:   coopCache,
		Provider:    provider,
		Webhooks:    security.NewWebhookSignatureVerifier(cfg.VeriffAPIKey, cfg.VeriffSecret),
		Social:      social,
		Hasher:      security.NewBcryptHasher(cfg.BcryptCost),
		TokenSigner: tokenSigner,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(httpadapter.NewHandler(svc)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewUserServer(svc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		_ = lis.Close()
		cleanup()
		return nil, err
	}
	if closer, ok := publisher.(interface{ Close() error }); ok {
		closers = append(closers, closer.Close)
	}
	outbox := eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, eventadapter.OutboxWorkerConfig{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		ClaimTTL:   cfg.OutboxClaimTTL,
		MaxRetries: cfg.OutboxMaxRetries,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		cleanupFn: func(context.Context) {
			cleanup()
		},
	}, nil
}

func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	client, err := cacheadapter.Connect(ctx, redisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// newPublisher picks Kafka when brokers are configured and falls back to logging.
func newPublisher(cfg Config, logger *slog.Logger) (ports.EventPublisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("kafka not configured; events are logged only")
		return eventadapter.NewLoggingPublisher(logger), nil
	}
	publisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopics)
	if err != nil {
		return nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	return publisher, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The worker process never serves gRPC.
	_ = r.grpcLis.Close()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
