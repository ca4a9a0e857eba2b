package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"custodia/internal/audit"
	"custodia/internal/consent"
	"custodia/internal/notify"
	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/metrics"
	"custodia/internal/platform/postgres"
	platformredis "custodia/internal/platform/redis"
	"custodia/internal/privacy"
	"custodia/internal/ratelimit"
	"custodia/internal/retention"
	"custodia/internal/storage"
	"custodia/internal/subject"
	httptransport "custodia/internal/transport/http"
	"custodia/internal/verification"
	authmw "custodia/pkg/platform/middleware/auth"
	"custodia/pkg/platform/tx"
)

// main wires high-level dependencies, starts the retention runner, and keeps
// the server lifecycle small. Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New(prometheus.DefaultRegisterer)

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}

	var (
		verificationStore verification.Store
		subjectStore      subject.Store
		consentStore      consent.Store
		auditStore        audit.Store
		txr               tx.Runner
	)
	if db != nil {
		verificationStore = verification.NewPostgresStore(db)
		subjectStore = subject.NewPostgresStore(db)
		consentStore = consent.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		txr = tx.NewSQLRunner(db)
	} else {
		// Single-instance fallback for local development.
		log.Warn("DATABASE_URL not set, using in-memory stores")
		vs := verification.NewInMemoryStore()
		ss := subject.NewInMemoryStore()
		cs := consent.NewInMemoryStore()
		as := audit.NewInMemoryStore()
		verificationStore, subjectStore, consentStore, auditStore = vs, ss, cs, as
		txr = tx.NewMemoryRunner(vs, ss, cs, as)
	}

	var counterStore ratelimit.CounterStore
	if redisClient, err := platformredis.New(cfg.RedisURL); err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	} else if redisClient != nil {
		counterStore = ratelimit.NewRedisCounterStore(redisClient.Client)
		defer redisClient.Close()
	} else {
		// In-memory limits hold within one instance only.
		log.Warn("REDIS_URL not set, rate limits are per-instance")
		counterStore = ratelimit.NewInMemoryCounterStore()
	}

	audits := audit.NewPublisher(auditStore)
	notifier := notify.NewLogNotifier(log)
	blobs := storage.NewMemoryBlobStore()
	limiter := ratelimit.NewService(counterStore, ratelimit.Limits{
		HourlyLimit: cfg.RateLimit.HourlyLimit,
		DailyLimit:  cfg.RateLimit.DailyLimit,
	}, log)

	intake := verification.NewIntakeService(verificationStore, subjectStore, blobs, limiter, audits, notifier, txr, log, m)
	reviews := verification.NewReviewService(verificationStore, subjectStore, audits, notifier, txr, log, m)
	consents := consent.NewService(consentStore, audits, txr, log)
	privacySvc := privacy.NewService(subjectStore, verificationStore, consentStore, audits, blobs, txr, log, m)
	scheduler := retention.NewScheduler(verificationStore, subjectStore, blobs, audits, notifier, txr, retention.Policy{
		RetentionDays:   cfg.Retention.RetentionDays,
		WarningLeadDays: cfg.Retention.WarningLeadDays,
	}, log, m)

	handler := httptransport.NewHandler(intake, reviews, consents, privacySvc, scheduler, log)
	router := httptransport.NewRouter(handler, authmw.NewValidator(cfg.JWTSigningKey))
	srv := httpserver.New(cfg.Addr, router)

	runnerCtx, stopRunner := context.WithCancel(context.Background())
	runner := retention.NewRunner(scheduler, cfg.Retention.SweepInterval, log)
	go func() {
		if err := runner.Run(runnerCtx); err != nil && err != context.Canceled {
			log.Error("retention runner stopped", "error", err)
		}
	}()

	log.Info("starting custodia", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	stopRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
