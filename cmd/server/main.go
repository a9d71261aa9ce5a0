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

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aegis/internal/access"
	accesshandler "aegis/internal/access/handler"
	accessmetrics "aegis/internal/access/metrics"
	accessservice "aegis/internal/access/service"
	"aegis/internal/consent"
	consenthandler "aegis/internal/consent/handler"
	consentmetrics "aegis/internal/consent/metrics"
	consentservice "aegis/internal/consent/service"
	consentstore "aegis/internal/consent/store"
	"aegis/internal/crypto"
	"aegis/internal/crypto/keystore"
	"aegis/internal/directory"
	dircache "aegis/internal/directory/cache"
	dirstore "aegis/internal/directory/store"
	"aegis/internal/fields"
	fieldshandler "aegis/internal/fields/handler"
	fieldsstore "aegis/internal/fields/store"
	"aegis/internal/jwttoken"
	"aegis/internal/platform/config"
	"aegis/internal/platform/httpserver"
	"aegis/internal/platform/logger"
	"aegis/internal/platform/middleware"
	platformredis "aegis/internal/platform/redis"
	"aegis/internal/redact"
	redacthandler "aegis/internal/redact/handler"
	"aegis/pkg/platform/audit"
	"aegis/pkg/platform/audit/outbox"
	auditmemory "aegis/pkg/platform/audit/store/memory"
	auditpostgres "aegis/pkg/platform/audit/store/postgres"
	auditworker "aegis/pkg/platform/audit/worker"
)

const auditInboxSize = 256

// stores groups the persistence backends so wiring below stays flat. All
// fields are interface-typed; memory implementations back them when no
// Postgres URL is configured.
type stores struct {
	directory directory.Reader
	consent   consentstore.Store
	keys      keystore.Store
	fields    fieldsstore.Store
	audit     audit.Store

	// auditPG is non-nil only with Postgres; the Kafka outbox needs its
	// Unpublished/MarkPublished surface.
	auditPG *auditpostgres.Store
	db      *sql.DB
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit pipeline: services emit through the publisher into a buffered
	// inbox; the worker drains it into the store. With Kafka configured the
	// outbox ships persisted rows to the audit topic.
	inbox := make(chan audit.Event, auditInboxSize)
	publisher := audit.NewPublisher(auditworker.NewSink(inbox, st.audit))
	go func() {
		if err := auditworker.New(st.audit, inbox, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()
	if len(cfg.KafkaBrokers) > 0 && st.auditPG != nil {
		shipper, err := outbox.New(st.auditPG, cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("failed to start audit outbox", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := shipper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit outbox stopped", "error", err)
			}
		}()
	}

	provider, err := crypto.NewProvider(cfg.MasterKey, st.keys, log, crypto.WithAudit(publisher))
	if err != nil {
		log.Error("failed to initialize encryption provider", "error", err)
		os.Exit(1)
	}
	fieldManager := fields.NewManager(st.fields, provider, publisher, log)
	if err := registerProtectedFields(ctx, fieldManager); err != nil {
		log.Error("failed to register protected fields", "error", err)
		os.Exit(1)
	}

	loaderOpts := []directory.LoaderOption{}
	if redisClient != nil {
		loaderOpts = append(loaderOpts, directory.WithCache(dircache.New(redisClient.Client, cfg.DirectoryCacheTTL)))
	}
	loader := directory.NewLoader(st.directory, log, loaderOpts...)

	accessSvc := accessservice.NewService(loader, log,
		accessservice.WithMetrics(accessmetrics.New()),
		accessservice.WithAudit(publisher),
	)
	consentSvc := consentservice.NewService(st.consent, publisher, log, consentservice.WithMetrics(consentmetrics.New()))
	resolver := consent.NewScopeResolver(consentSvc)
	redactor := redact.NewRedactor(accessSvc, log)

	router := newRouter(cfg, log, st, redisClient,
		accesshandler.New(accessSvc, log),
		consenthandler.New(consentSvc, log),
		fieldshandler.New(fieldManager, resolver, loader, log),
		redacthandler.New(redactor, loader, log),
	)

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("starting aegis", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

type registrar interface {
	Register(r chi.Router)
}

func newRouter(cfg config.Server, log *slog.Logger, st stores, redisClient *platformredis.Client, handlers ...registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", healthz(st.db, redisClient))
	r.Handle("/metrics", promhttp.Handler())

	validator := jwttoken.NewValidator(cfg.JWTSigningKey)
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.ContentTypeJSON)
		pr.Use(middleware.RequireAuth(validator, log))
		for _, h := range handlers {
			h.Register(pr)
		}
	})
	return r
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func openStores(ctx context.Context, cfg config.Server, log *slog.Logger) (stores, error) {
	if cfg.PostgresURL == "" {
		log.Warn("no POSTGRES_URL configured, using in-memory stores")
		return stores{
			directory: dirstore.NewMemoryStore(),
			consent:   consentstore.NewMemoryStore(),
			keys:      keystore.NewMemoryStore(),
			fields:    fieldsstore.NewMemory(),
			audit:     auditmemory.New(),
		}, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return stores{}, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return stores{}, err
	}

	auditPG := auditpostgres.New(db)
	return stores{
		directory: dirstore.NewPostgres(db),
		consent:   consentstore.NewPostgres(db),
		keys:      keystore.NewPostgres(db),
		fields:    fieldsstore.NewPostgres(db),
		audit:     auditPG,
		auditPG:   auditPG,
		db:        db,
	}, nil
}

// registerProtectedFields seeds the field-encryption registry with the
// platform's standing sensitive fields. Registration is idempotent.
func registerProtectedFields(ctx context.Context, manager *fields.Manager) error {
	registrations := []struct {
		resource      string
		field         string
		alias         string
		deterministic bool
	}{
		{access.ResourceClientProfile, "tax_id", "client-pii", true},
		{access.ResourceClientProfile, "bank_account", "client-financial", false},
		{access.ResourceClientProfile, "annual_revenue", "client-financial", false},
		{access.ResourceAssessment, "assessment_score", "assessment-results", false},
	}
	for _, reg := range registrations {
		if err := manager.RegisterEncryptedField(ctx, reg.resource, reg.field, reg.alias, reg.deterministic); err != nil {
			return err
		}
	}
	return nil
}
