package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "campusid/internal/http"
	identityhandler "campusid/internal/identity/handler"
	identitymetrics "campusid/internal/identity/metrics"
	identityservice "campusid/internal/identity/service"
	identitystore "campusid/internal/identity/store"
	"campusid/internal/notification"
	"campusid/internal/platform/config"
	"campusid/internal/platform/httpserver"
	"campusid/internal/platform/metrics"
	"campusid/internal/platform/postgres"
	"campusid/internal/platform/redis"
	"campusid/internal/platform/tracing"
	"campusid/internal/ratelimit"
	"campusid/migrations"
)

type infra struct {
	store    identityservice.Store
	db       *sql.DB
	redis    *redis.Client
	kafka    *notification.Kafka
	notifier identityservice.Notifier
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

// serve wires infrastructure, builds the identity module and serves HTTP
// until SIGINT or SIGTERM.
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			log.Warn("flush traces", "error", err)
		}
	}()

	deps, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []identityservice.Option{
		identityservice.WithLogger(log),
		identityservice.WithMetrics(identitymetrics.New(registry)),
		identityservice.WithNotifier(deps.notifier),
		identityservice.WithMaxAllocationAttempts(cfg.Identity.MaxAllocationAttempts),
		identityservice.WithNotifyTimeout(cfg.Identity.NotifyTimeout),
	}
	if deps.redis != nil {
		opts = append(opts, identityservice.WithLocker(deps.redis.Locker()))
	}
	svc := identityservice.New(deps.store, opts...)

	writeLimit, err := deps.writeLimit(cfg, log)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Logger:         log,
		Gatherer:       registry,
		HTTPMetrics:    metrics.New(registry),
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		WriteLimit:     writeLimit,
		HealthChecks:   deps.healthChecks(),
		Modules:        []httpapi.Registrar{identityhandler.New(svc, log)},
	})

	srv := httpserver.New(cfg.Server, router, log)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting campusid", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func buildInfra(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		deps.db = db
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db, migrations.FS, log); err != nil {
				deps.close()
				return nil, err
			}
		}
		deps.store = identitystore.NewPostgres(db)
		log.Info("identity store ready", "backend", "postgres")
	} else {
		deps.store = identitystore.NewInMemory()
		log.Warn("DATABASE_URL not set, identities are kept in memory")
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		deps.close()
		return nil, err
	}
	if client != nil {
		deps.redis = client
		log.Info("allocation lock ready", "backend", "redis")
	}

	channels := []notification.Notifier{notification.NewLog(log)}
	if cfg.SMTPEnabled() {
		smtp, err := notification.NewSMTP(cfg.SMTP)
		if err != nil {
			deps.close()
			return nil, err
		}
		channels = append(channels, smtp)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := notification.NewKafka(ctx, cfg.Kafka)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.kafka = k
		channels = append(channels, k)
	}
	deps.notifier = notification.NewFanout(channels...)
	return deps, nil
}

func (i *infra) healthChecks() map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Health
	}
	if i.kafka != nil {
		checks["kafka"] = i.kafka.Ping
	}
	return checks
}

func (i *infra) writeLimit(cfg *config.Config, log *slog.Logger) (func(http.Handler) http.Handler, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	opts := []ratelimit.Option{ratelimit.WithLogger(log)}
	if i.redis != nil {
		store, err := ratelimit.NewRedisStore(i.redis.Client)
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
		opts = append(opts, ratelimit.WithPrimaryStore(store))
	}
	l, err := ratelimit.New(cfg.RateLimit, opts...)
	if err != nil {
		return nil, err
	}
	return l.Middleware, nil
}

// migrate applies pending migrations against DATABASE_URL.
func migrate(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required to migrate")
	}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return postgres.Migrate(ctx, db, migrations.FS, log)
}
