package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carebridge/webgateway/internal/account"
	"github.com/carebridge/webgateway/internal/config"
	"github.com/carebridge/webgateway/internal/event"
	"github.com/carebridge/webgateway/internal/handler"
	"github.com/carebridge/webgateway/internal/proxy"
	"github.com/carebridge/webgateway/internal/session"
	"github.com/carebridge/webgateway/pkg/database"
	apperrors "github.com/carebridge/webgateway/pkg/errors"
	"github.com/carebridge/webgateway/pkg/health"
	"github.com/carebridge/webgateway/pkg/httpclient"
	"github.com/carebridge/webgateway/pkg/kafka"
	"github.com/carebridge/webgateway/pkg/tracing"
)

// App wires together all dependencies and runs the web gateway.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	redisClient    *redis.Client
	audit          *event.AuditProducer
	tracerShutdown func(context.Context) error
}

// NewApp builds the application: tracing, the Redis session store, the
// Kafka audit producer, the account client behind a circuit breaker, the
// session manager and the HTTP router.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "webgateway",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
		Enabled:        !cfg.TracingDisabled && cfg.OTLPEndpoint != "",
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "init tracer")
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisConfig())
	if err != nil {
		return nil, apperrors.Wrap(err, "connect redis")
	}
	store := session.NewRedisStore(redisClient, cfg.SessionTTL)

	var audit *event.AuditProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		audit = event.NewAuditProducer(producer, logger)
	}

	accountHTTP := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("account"),
		logger,
	)
	accounts := account.NewClient(accountHTTP, cfg.AccountServiceURL)

	manager := session.NewManager(store, accounts, audit, session.ManagerConfig{
		UserCacheTTL: cfg.UserCacheTTL,
	}, logger)
	cookies := session.NewCookieCodec(cfg.SessionSecret, cfg.SessionTTL, cfg.SecureCookies)

	upstreams, err := buildUpstreams(cfg, logger)
	if err != nil {
		return nil, err
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("account", dialCheck(cfg.AccountServiceURL))
	if audit != nil {
		healthHandler.RegisterNonCritical("kafka", audit.Ping)
	}

	router := handler.NewRouter(
		cfg,
		manager,
		cookies,
		handler.NewSessionHandler(manager, cookies, logger),
		handler.NewPageHandler(logger),
		upstreams,
		healthHandler,
		logger,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		httpServer:     httpServer,
		redisClient:    redisClient,
		audit:          audit,
		tracerShutdown: tracerShutdown,
	}, nil
}

func buildUpstreams(cfg *config.Config, logger *slog.Logger) (handler.Upstreams, error) {
	var (
		ups handler.Upstreams
		err error
	)
	if ups.Account, err = proxy.New("account", cfg.AccountServiceURL, "/api/account", logger); err != nil {
		return ups, err
	}
	if ups.Booking, err = proxy.New("booking", cfg.BookingServiceURL, "/api/bookings", logger); err != nil {
		return ups, err
	}
	if ups.Care, err = proxy.New("care", cfg.CareServiceURL, "/api/care", logger); err != nil {
		return ups, err
	}
	if ups.Social, err = proxy.New("social", cfg.SocialServiceURL, "/api/social", logger); err != nil {
		return ups, err
	}
	// Assets keep their /static path on the origin, so no prefix is stripped.
	if ups.Assets, err = proxy.New("assets", cfg.AssetOriginURL, "", logger); err != nil {
		return ups, err
	}
	return ups, nil
}

func dialCheck(rawURL string) health.Checker {
	return func(ctx context.Context) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("parse upstream URL: %w", err)
		}
		d := net.Dialer{Timeout: 2 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return fmt.Errorf("upstream unreachable: %w", err)
		}
		_ = conn.Close()
		return nil
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown drains in-flight requests first, then closes the producers and
// stores those requests may still be using, and flushes spans last.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.audit.Close(); err != nil {
		a.logger.Error("audit producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
