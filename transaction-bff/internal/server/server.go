package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/coffeeandit/transaction/shared/config"
	"github.com/coffeeandit/transaction/shared/events"
	"github.com/coffeeandit/transaction/shared/middleware"
	sharedredis "github.com/coffeeandit/transaction/shared/redis"
	"github.com/coffeeandit/transaction/transaction-bff/internal/client"
	"github.com/coffeeandit/transaction/transaction-bff/internal/handler"
	"github.com/coffeeandit/transaction/transaction-bff/internal/pipeline"
)

// Server runs the /v2 surface of transaction-bff.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	redis      *goredis.Client
	publisher  events.Publisher
	httpServer *http.Server
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	redisClient, err := sharedredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting disabled", "error", err)
	} else {
		s.redis = redisClient
	}

	publisher, err := s.newPublisher()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.publisher = publisher

	submissions := pipeline.NewSubmissionPipeline(publisher, pipeline.Config{
		Timeout: cfg.App.PublishTimeout(),
		Retries: cfg.App.Retries,
	}, logger)
	service := client.NewTransactionClient(cfg.Service.URL, cfg.Service.Timeout)
	h := handler.NewTransactionHandler(submissions, service, cfg.App.Version)

	var limiter *middleware.RateLimiter
	if s.redis != nil {
		limiter = middleware.NewRateLimiter(s.redis, logger, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	s.httpServer = newHTTPServer(cfg, SetupRouter(cfg, h, limiter, logger))
	return s, nil
}

// writeMargin is the headroom left after the slowest request finishes.
const writeMargin = 5 * time.Second

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}
}

// writeTimeout outlasts a submission that uses every publish attempt, so the
// resulting 504/502 still reaches the client.
func writeTimeout(cfg *config.Config) time.Duration {
	longest := cfg.App.PublishTimeout() * time.Duration(cfg.App.Retries+1)
	if cfg.Service.Timeout > longest {
		longest = cfg.Service.Timeout
	}
	return longest + writeMargin
}

// SetupRouter builds the gin engine. limiter may be nil.
func SetupRouter(cfg *config.Config, h *handler.TransactionHandler, limiter *middleware.RateLimiter, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "transaction-bff"})
	})

	v2 := router.Group("/v2", middleware.AuthMiddleware(cfg.JWT.Secret))
	if limiter != nil {
		v2.Use(limiter.Middleware())
	}
	h.RegisterRoutes(v2)
	return router
}

func (s *Server) newPublisher() (events.Publisher, error) {
	switch s.cfg.Bus.Driver {
	case "redis":
		if s.redis == nil {
			return nil, errors.New("bus.driver redis requires a reachable redis")
		}
		return events.NewStreamPublisher(s.redis, s.cfg.Kafka.Topic), nil
	default:
		return events.NewKafkaPublisher(s.cfg.Kafka.Brokers, s.cfg.Kafka.Topic), nil
	}
}

func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("transaction bff starting", "port", s.cfg.Server.Port, "bus", s.cfg.Bus.Driver, "service_url", s.cfg.Service.URL)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
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
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}
