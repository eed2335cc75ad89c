package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
	"hrerp/internal/domain/leave"
	"hrerp/internal/domain/notifications"
	"hrerp/internal/platform/cache"
	"hrerp/internal/platform/config"
	"hrerp/internal/platform/db"
	"hrerp/internal/platform/email"
	"hrerp/internal/platform/jobs"
	"hrerp/internal/platform/metrics"
	"hrerp/internal/transport/http/api"
	authhandler "hrerp/internal/transport/http/handlers/auth"
	employeehandler "hrerp/internal/transport/http/handlers/employees"
	leavehandler "hrerp/internal/transport/http/handlers/leave"
	notificationshandler "hrerp/internal/transport/http/handlers/notifications"
	"hrerp/internal/transport/http/middleware"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the router needs. Nil handlers are not mounted.
type Deps struct {
	Config  config.Config
	DB      Pinger
	Redis   *redis.Client
	Metrics *metrics.Collector

	Auth          *authhandler.Handler
	Employees     *employeehandler.Handler
	Leave         *leavehandler.Handler
	Notifications *notificationshandler.Handler
}

type App struct {
	Config config.Config
	Router http.Handler
	Jobs   *jobs.Service

	pool  *pgxpool.Pool
	redis *redis.Client
}

// New connects the stores, prepares the schema and wires every service.
// Background workers are started on ctx.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			slog.Warn("redis unavailable, idempotency keys disabled", "addr", cfg.RedisAddr, "err", err)
			rdb = nil
		}
	}

	collector := metrics.New()
	jobsSvc := jobs.New(pool, collector, jobs.Options{
		Workers:    cfg.DispatchWorkers,
		QueueSize:  cfg.DispatchQueueSize,
		JobTimeout: cfg.JobTimeout,
	})
	jobsSvc.Start(ctx)

	notifySvc := notifications.New(notifications.NewStore(pool), email.New(cfg), cfg.EmailFrom)
	dispatcher := notifications.NewDispatcher(notifySvc, jobsSvc)

	authStore := auth.NewStore(pool)
	authSvc := auth.NewService(authStore, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	employees := employee.NewStore(pool)

	leaveStore := leave.NewStore(pool)
	ledger := leave.NewLedger(leaveStore)
	registry := leave.NewRegistry(leaveStore, ledger, employees)
	leaveSvc := leave.NewService(leaveStore, leaveStore, ledger, employees, authStore, dispatcher)

	jobsSvc.Schedule(ctx, cfg.RolloverInterval, jobs.JobLeaveRollover, func(ctx context.Context) (any, error) {
		return leaveSvc.Rollover(ctx, time.Now().Year())
	})

	router := NewRouter(Deps{
		Config:        cfg,
		DB:            pool,
		Redis:         rdb,
		Metrics:       collector,
		Auth:          authhandler.NewHandler(authSvc),
		Employees:     employeehandler.NewHandler(employees, leaveSvc),
		Leave:         leavehandler.NewHandler(leaveSvc, registry, jobsSvc),
		Notifications: notificationshandler.NewHandler(notifySvc),
	})

	return &App{
		Config: cfg,
		Router: router,
		Jobs:   jobsSvc,
		pool:   pool,
		redis:  rdb,
	}, nil
}

// Close drains the job queue and releases connections.
func (a *App) Close() {
	a.Jobs.Stop()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.pool.Close()
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.New()
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader, middleware.IdempotencyHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "X-Total-Count", "Retry-After", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.Idempotency(deps.Redis, cfg.IdempotencyTTL, collector))

		if deps.Auth != nil {
			deps.Auth.RegisterRoutes(r)
		}
		if deps.Employees != nil {
			deps.Employees.RegisterRoutes(r)
		}
		if deps.Leave != nil {
			deps.Leave.RegisterRoutes(r)
		}
		if deps.Notifications != nil {
			deps.Notifications.RegisterRoutes(r)
		}
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusNotFound, "not_found", "route not found", middleware.GetRequestID(r.Context()))
	})
	return router
}

// Run serves the API until SIGINT or SIGTERM and then shuts
// down gracefully.
func Run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("hrerp server listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
