package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"organograma/internal/audit"
	authhandler "organograma/internal/auth/handler"
	"organograma/internal/auth/lockout"
	authservice "organograma/internal/auth/service"
	lockoutstore "organograma/internal/auth/store/lockout"
	"organograma/internal/auth/store/revocation"
	"organograma/internal/auth/store/user"
	dirhandler "organograma/internal/directory/handler"
	"organograma/internal/directory/notify"
	dirservice "organograma/internal/directory/service"
	dirstore "organograma/internal/directory/store"
	jwttoken "organograma/internal/jwt_token"
	"organograma/internal/layout"
	orghandler "organograma/internal/orgchart/handler"
	orgservice "organograma/internal/orgchart/service"
	"organograma/internal/photos"
	"organograma/internal/platform/config"
	"organograma/internal/platform/metrics"
	"organograma/internal/platform/postgres"
	platformredis "organograma/internal/platform/redis"
	"organograma/pkg/platform/circuit"
	"organograma/pkg/platform/httputil"
	authmw "organograma/pkg/platform/middleware/auth"
	"organograma/pkg/platform/middleware/metadata"
	request "organograma/pkg/platform/middleware/request"
	"organograma/pkg/platform/middleware/requesttime"
	"organograma/pkg/platform/tx"
)

const (
	purgeInterval  = 10 * time.Minute
	auditQueueSize = 256
)

type revocationList interface {
	authmw.TokenRevocationChecker
	authservice.RevocationList
}

type photoStore interface {
	authservice.PhotoStore
	photos.Getter
}

// runner is a background loop that lives as long as the server.
type runner struct {
	name string
	run  func(ctx context.Context) error
}

// app is the fully wired server.
type app struct {
	router  http.Handler
	auth    *authservice.Service
	runners []runner
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// buildApp wires stores, services and the router from cfg. Empty
// DATABASE_URL, REDIS_URL, KAFKA_BROKERS and MINIO_ENDPOINT fall back to
// in-process implementations.
func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer, migrate bool) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var (
		db          *sql.DB
		persons     dirservice.PersonStore
		sectors     dirservice.SectorStore
		orgs        dirservice.OrganizationStore
		users       authservice.UserStore
		txRunner    tx.Runner = tx.NewLocal()
		revocations revocationList
		publisher   notify.Publisher
		subscriber  notify.Subscriber
	)

	if cfg.Database.URL != "" {
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return nil, err
			}
		}
		pg := dirstore.NewPostgres(db)
		persons, sectors, orgs = pg, pg, pg
		users = user.NewPostgres(db)
		txRunner = dirstore.NewTxRunner(db)
	} else {
		mem := dirstore.NewInMemory()
		persons, sectors, orgs = mem, mem, mem
		users = user.New()
		log.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
	}

	switch {
	case rc != nil:
		trl := revocation.NewFallbackTRL(revocation.NewRedisTRL(rc.Client), revocation.NewInMemoryTRL(), circuit.New("redis-trl"), log)
		revocations = trl
		a.runners = append(a.runners, runner{"revocation-purge", purgeLoop(log, "revoked tokens", trl.Purge)})
	case db != nil:
		trl := revocation.NewPostgresTRL(db)
		revocations = trl
		a.runners = append(a.runners, runner{"revocation-purge", purgeLoop(log, "revoked tokens", trl.Purge)})
	default:
		trl := revocation.NewInMemoryTRL()
		revocations = trl
		a.runners = append(a.runners, runner{"revocation-purge", purgeLoop(log, "revoked tokens", func(ctx context.Context) (int64, error) {
			return int64(trl.Purge(ctx)), nil
		})})
	}

	switch {
	case db != nil && cfg.Database.ListenChanges:
		listener, err := notify.NewPGListener(cfg.Database.URL, log)
		if err != nil {
			return nil, err
		}
		subscriber = listener
		a.runners = append(a.runners, runner{"directory-listener", listener.Run})
	case rc != nil:
		rn := notify.NewRedisNotifier(rc.Client, cfg.Redis.Channel, log)
		publisher, subscriber = rn, rn
	default:
		broker := notify.NewBroker()
		publisher, subscriber = broker, broker
	}

	var auditStore audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { sink.Close(); return nil })
		queue := audit.NewAsyncStore(auditQueueSize)
		a.runners = append(a.runners, runner{"audit-worker", audit.NewWorker(sink, queue, log).Run})
		auditStore = queue
	} else {
		auditStore = audit.NewMemoryStore()
	}
	auditPublisher := audit.NewPublisher(auditStore)

	var pics photoStore
	if cfg.Storage.Endpoint != "" {
		pics, err = photos.NewMinIO(cfg.Storage)
		if err != nil {
			return nil, err
		}
	} else {
		pics = photos.NewInMemory(cfg.Storage.PublicBaseURL)
	}

	dirOpts := []dirservice.Option{
		dirservice.WithLogger(log),
		dirservice.WithTx(txRunner),
		dirservice.WithAuditPublisher(auditPublisher),
	}
	if publisher != nil {
		dirOpts = append(dirOpts, dirservice.WithNotifier(publisher))
	}
	directory := dirservice.New(persons, sectors, orgs, dirOpts...)

	orgchart, err := orgservice.New(directory,
		orgservice.WithLogger(log),
		orgservice.WithSubscriber(subscriber),
		orgservice.WithCacheSize(cfg.Layout.CacheSize),
		orgservice.WithLayoutOptions(layout.Options{
			RootSpacing:    cfg.Layout.RootSpacing,
			SiblingSpacing: cfg.Layout.SiblingSpacing,
			LevelHeight:    cfg.Layout.LevelHeight,
		}),
	)
	if err != nil {
		return nil, err
	}
	a.runners = append(a.runners, runner{"orgchart", orgchart.Run})

	lockouts, err := newLockout(db, cfg.Auth, log)
	if err != nil {
		return nil, err
	}
	a.runners = append(a.runners, runner{"lockout-purge", purgeLoop(log, "login lockouts", lockouts.purge)})

	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	a.auth = authservice.New(users, revocations, jwt,
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(auditPublisher),
		authservice.WithDirectory(directory),
		authservice.WithPhotoStore(pics, cfg.Storage.MaxPhotoBytes),
		authservice.WithTokenTTL(cfg.Auth.AccessTokenTTL),
		authservice.WithLockout(lockouts.service),
	)
	if cfg.Auth.BootstrapAdminEmail != "" {
		if _, err := a.auth.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	validator := jwttoken.NewJWTServiceAdapter(jwt)
	authH := authhandler.New(a.auth, log, authhandler.WithMaxPhotoBytes(cfg.Storage.MaxPhotoBytes))

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(log))
	r.Use(request.Timeout(cfg.Server.RequestTimeout))
	r.Use(request.Latency(metrics.New(reg)))

	r.Get("/healthz", healthHandler(db, rc))
	if cfg.Server.MetricsPath != "" {
		r.Handle(cfg.Server.MetricsPath, promhttp.Handler())
	}
	if cfg.Storage.PublicBaseURL == "" {
		photos.NewHandler(pics, log).Register(r)
	}
	authH.RegisterPublic(r, authmw.OptionalAuth(validator, revocations, log))
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, revocations, log))
		authH.Register(r)
		dirhandler.New(directory, log).Register(r)
		orghandler.New(orgchart, log).Register(r)
	})
	a.router = r
	return a, nil
}

// purgeLoop periodically drops expired entries of a store.
func purgeLoop(log *slog.Logger, what string, purge func(ctx context.Context) (int64, error)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := purge(ctx)
				if err != nil {
					log.WarnContext(ctx, "failed to purge expired entries", "store", what, "error", err)
					continue
				}
				if n > 0 {
					log.DebugContext(ctx, "purged expired entries", "store", what, "count", n)
				}
			}
		}
	}
}

type lockoutStore interface {
	lockout.Store
	DeleteExpired(ctx context.Context, now time.Time, window time.Duration) (int, error)
}

type lockoutDeps struct {
	service *lockout.Service
	purge   func(ctx context.Context) (int64, error)
}

func newLockout(db *sql.DB, cfg config.AuthConfig, log *slog.Logger) (*lockoutDeps, error) {
	var store lockoutStore = lockoutstore.NewInMemory()
	if db != nil {
		store = lockoutstore.NewPostgres(db)
	}
	lcfg := lockout.Config{
		MaxAttempts:  cfg.LoginMaxAttempts,
		Window:       cfg.LoginLockoutWindow,
		LockDuration: cfg.LoginLockoutDuration,
	}
	svc, err := lockout.New(store, lockout.WithConfig(lcfg), lockout.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return &lockoutDeps{
		service: svc,
		purge: func(ctx context.Context) (int64, error) {
			n, err := store.DeleteExpired(ctx, time.Now(), lcfg.Window)
			return int64(n), err
		},
	}, nil
}

func healthHandler(db *sql.DB, rc *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				status["database"], code = err.Error(), http.StatusServiceUnavailable
			}
		}
		if rc != nil {
			if err := rc.Health(ctx); err != nil {
				status["redis"], code = err.Error(), http.StatusServiceUnavailable
			}
		}
		if code != http.StatusOK {
			status["status"] = "degraded"
		}
		httputil.WriteJSON(w, code, status)
	}
}
