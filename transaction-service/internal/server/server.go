package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/coffeeandit/transaction/shared/config"
	"github.com/coffeeandit/transaction/shared/events"
	"github.com/coffeeandit/transaction/shared/middleware"
	sharedredis "github.com/coffeeandit/transaction/shared/redis"
	"github.com/coffeeandit/transaction/transaction-service/internal/command"
	"github.com/coffeeandit/transaction/transaction-service/internal/handler"
	"github.com/coffeeandit/transaction/transaction-service/internal/notify"
	"github.com/coffeeandit/transaction/transaction-service/internal/query"
	"github.com/coffeeandit/transaction/transaction-service/internal/repository"
)

// Server runs the HTTP surface and the bus consumer of transaction-service.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      repository.TransactionStore
	db         *sql.DB
	redis      *goredis.Client
	consumer   events.Consumer
	httpServer *http.Server
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	store, err := s.openStore(ctx)
	if err != nil {
		return nil, err
	}
	s.store = store

	redisClient, err := sharedredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, by-id cache disabled", "error", err)
	} else {
		s.redis = redisClient
		s.store = repository.NewCachedStore(store, redisClient, logger, cfg.Cache.TTL())
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Slack.WebhookURL != "" {
		notifier = notify.NewSlackNotifier(cfg.Slack.WebhookURL, logger)
	}

	commands := command.NewTransactionCommandService(s.store, cfg.App.TransitionPolicy(), notifier, logger)
	queries := query.NewTransactionQueryService(s.store, query.Options{
		Limit:           cfg.App.LimitRate,
		CacheSize:       cfg.Cache.MaximumSize,
		CacheTTL:        cfg.Cache.TTL(),
		CacheEmptyLists: cfg.Cache.AllowNullValues,
	}, logger)

	consumer, err := s.newConsumer(commands.HandleSubmitted)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.consumer = consumer

	h := handler.NewTransactionHandler(commands, queries, handler.Options{
		CacheTime:    cfg.App.CacheTime,
		PollInterval: cfg.App.PollInterval(),
		Version:      cfg.App.Version,
	}, logger)

	s.httpServer = &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     SetupRouter(cfg, h, logger),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// no WriteTimeout: event streams stay open
	}
	s.httpServer.RegisterOnShutdown(h.CloseStreams)
	return s, nil
}

// SetupRouter builds the gin engine with the /v1 routes behind bearer auth.
func SetupRouter(cfg *config.Config, h *handler.TransactionHandler, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "transaction-service"})
	})

	h.RegisterRoutes(router.Group("/v1", middleware.AuthMiddleware(cfg.JWT.Secret)))
	return router
}

func (s *Server) openStore(ctx context.Context) (repository.TransactionStore, error) {
	switch s.cfg.Store.Driver {
	case "badger":
		s.logger.Info("opening badger store", "path", s.cfg.Store.Path)
		return repository.OpenBadgerStore(s.cfg.Store.Path)
	default:
		db, err := OpenPostgres(ctx, s.cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		store := repository.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		s.db = db
		return store, nil
	}
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (s *Server) newConsumer(handle events.Handler) (events.Consumer, error) {
	switch s.cfg.Bus.Driver {
	case "redis":
		if s.redis == nil {
			return nil, errors.New("bus.driver redis requires a reachable redis")
		}
		return events.NewStreamSubscriber(s.redis, s.logger, events.SubscriberConfig{
			Group:    s.cfg.Kafka.Group,
			Consumer: "transaction-service",
			Stream:   s.cfg.Kafka.Topic,
			Handler:  handle,
		}), nil
	default:
		return events.NewKafkaConsumer(s.cfg.Kafka.Brokers, s.cfg.Kafka.Topic, s.cfg.Kafka.Group, handle, s.logger), nil
	}
}

// Run serves until ctx is cancelled or a component fails, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("transaction service starting", "port", s.cfg.Server.Port, "store", s.cfg.Store.Driver, "bus", s.cfg.Bus.Driver)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.consumer.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if closeErr := s.Close(); closeErr != nil {
		s.logger.Error("failed to release resources", "error", closeErr)
	}
	return err
}

func (s *Server) Close() error {
	var errs []error
	if s.consumer != nil {
		errs = append(errs, s.consumer.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}
