package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"chronos/internal/audit"
	"chronos/internal/jwttoken"
	"chronos/internal/notification"
	"chronos/internal/permission"
	"chronos/internal/platform/config"
	"chronos/internal/platform/httpserver"
	"chronos/internal/platform/logger"
	"chronos/internal/platform/metrics"
	"chronos/internal/platform/middleware"
	platformredis "chronos/internal/platform/redis"
	"chronos/internal/preference"
	httptransport "chronos/internal/transport/http"
	"chronos/internal/workflow"
)

// main wires stores, services and the HTTP surface. Redis and Postgres are
// optional: without them everything runs on the in-memory stores, which is
// enough for development and tests.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		log.Info("redis connected")
	}

	var db *sql.DB
	auditStore := audit.Store(audit.NewMemoryStore())
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		pg := audit.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		auditStore = pg
		log.Info("postgres connected, audit entries persisted")
	}

	notifStore := notification.Store(notification.NewMemoryStore())
	prefKV := preference.KV(preference.NewMemoryKV())
	if rdb != nil {
		notifStore = notification.NewRedisStore(rdb.Client)
		prefKV = preference.NewRedisKV(rdb.Client)
	}

	permStore := permission.NewMemoryStore()
	if err := permission.Seed(ctx, permStore); err != nil {
		return err
	}
	permSvc, err := permission.New(permStore,
		permission.WithLogger(log), permission.WithMetrics(m))
	if err != nil {
		return err
	}

	recorder, err := audit.New(auditStore, cfg.Audit,
		audit.WithLogger(log), audit.WithMetrics(m))
	if err != nil {
		return err
	}

	notifSvc, err := notification.New(notifStore,
		notification.WithLogger(log), notification.WithMetrics(m))
	if err != nil {
		return err
	}

	wfStore := workflow.NewMemoryStore()
	if err := workflow.Seed(ctx, wfStore); err != nil {
		return err
	}
	engine, err := workflow.New(wfStore,
		workflow.WithLogger(log), workflow.WithMetrics(m),
		workflow.WithNotifier(notification.NewWorkflowNotifier(notifSvc)))
	if err != nil {
		return err
	}

	prefSvc, err := preference.New(prefKV, preference.WithLogger(log))
	if err != nil {
		return err
	}

	jwtSvc := jwttoken.New(cfg.JWTSigningKey, "chronos", "chronos-backoffice")

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        m,
		JWT:            jwtValidator{jwtSvc},
		Auth:           jwttoken.NewHandler(jwtSvc, cfg.AdminKeyHash),
		Permissions:    permission.NewHandler(permSvc, permStore, audit.NewDecisionRecorder(recorder), log),
		Workflows:      workflow.NewHandler(engine, log),
		Audit:          audit.NewHandler(recorder),
		Notifications:  notification.NewHandler(notifSvc),
		Preferences:    preference.NewHandler(prefSvc),
		RedisHealth:    redisProbe(ctx, rdb),
		PostgresHealth: postgresProbe(ctx, db),
	})

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting chronos server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Retention sweeper keeps the audit trail within its configured horizon.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Audit.RetentionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				removed, err := recorder.Sweep(ctx)
				if err != nil {
					log.Error("audit retention sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					log.Info("audit retention sweep", "removed", removed)
				}
			}
		}
	})

	return g.Wait()
}

// jwtValidator adapts the token service to the middleware contract.
type jwtValidator struct {
	svc *jwttoken.Service
}

func (v jwtValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	claims, err := v.svc.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{UserID: claims.UserID, UserName: claims.UserName}, nil
}

func redisProbe(ctx context.Context, rdb *platformredis.Client) func() error {
	if rdb == nil {
		return nil
	}
	return func() error { return rdb.Health(ctx) }
}

func postgresProbe(ctx context.Context, db *sql.DB) func() error {
	if db == nil {
		return nil
	}
	return func() error { return db.PingContext(ctx) }
}
