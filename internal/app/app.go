package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/grocery-backoffice/internal/domain/order"
	"github.com/xenking/grocery-backoffice/internal/domain/product"
	"github.com/xenking/grocery-backoffice/internal/handler"
	"github.com/xenking/grocery-backoffice/internal/idempotency"
	"github.com/xenking/grocery-backoffice/internal/storage/memory"
	"github.com/xenking/grocery-backoffice/internal/storage/postgres"
	"github.com/xenking/grocery-backoffice/pkg/health"
	"github.com/xenking/grocery-backoffice/pkg/httpmiddleware"
)

const serviceName = "grocery-api"

// store is an order.Store that can report its own reachability.
type store interface {
	order.Store
	health.Pinger
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	st, closeStore, err := openStore(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck(cfg.Storage, 5*time.Second, health.PingCheck(st))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	var guard idempotency.Guard = idempotency.Nop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()

		redisGuard := idempotency.NewRedisGuard(rdb, cfg.IdempotencyTTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(redisGuard))
		guard = redisGuard
		lg.Info("Idempotent order submission enabled", zap.String("redis", cfg.RedisAddr))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	productService := product.NewService(st.Products())
	orderService := order.NewService(st, order.WithLogger(lg.Named("order")))

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.NewHandler(productService, orderService, guard).Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	metrics, err := httpmiddleware.Metrics(m.MeterProvider().Meter(serviceName), routeFinder)
	if err != nil {
		return errors.Wrap(err, "create http metrics")
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			metrics,
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.HeaderIdempotencyKey, httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   isHealthCheck,
			}),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	return serve(ctx, lg, server, healthSvc, cfg.Graceful)
}

// serve runs server until ctx is done, then flips readiness off, waits for
// load balancers to notice and shuts the server down within the configured
// timeout.
func serve(ctx context.Context, lg *zap.Logger, server *http.Server, healthSvc *health.Health, cfg GracefulConfig) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer healthSvc.Stop()

		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.ReadinessDelay))
			time.Sleep(cfg.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}

// openStore connects the configured storage backend. The returned func
// releases it.
func openStore(ctx context.Context, lg *zap.Logger, cfg *Config) (store, func(), error) {
	if cfg.Storage == StorageMemory {
		lg.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "run migrations")
	}
	return postgres.New(pool), pool.Close, nil
}

func isHealthCheck(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz" || strings.HasSuffix(r.URL.Path, "/health")
}
