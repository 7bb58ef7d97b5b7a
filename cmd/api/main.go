package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"moldash.org/internal/auth"
	"moldash.org/internal/config"
	"moldash.org/internal/httpapi"
	"moldash.org/internal/jobs"
	"moldash.org/internal/obs"
	"moldash.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log := obs.NewLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	pairs, err := cfg.KeyPairs()
	if err != nil {
		log.Fatal("parse signing keys", zap.Error(err))
	}
	keyring, err := auth.NewKeyring(pairs)
	if err != nil {
		log.Fatal("build keyring", zap.Error(err))
	}

	// Store: postgres when a DSN is configured, in-memory for dev runs.
	var (
		store   auth.Store
		jobStor jobs.Store
		probe   httpapi.ReadyProbe
	)
	if cfg.DSN != "" {
		pgStore, err := pg.Open(cfg.DSN)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer func() { _ = pgStore.Close() }()
		pgStore.DB().SetMaxOpenConns(cfg.DBMaxOpenConns)
		pgStore.DB().SetMaxIdleConns(cfg.DBMaxIdleConns)
		pgStore.DB().SetConnMaxLifetime(cfg.DBConnLifetime)
		store = pgStore
		jobStor = pgStore.Jobs()
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		log.Warn("no MOLDASH_PG_DSN set, using in-memory store")
		store = auth.NewMemoryStore()
		jobStor = jobs.NewMemoryStore()
	}

	codec := auth.NewCodec(keyring, cfg.Issuer, cfg.Audience)
	issuer := auth.NewIssuer(codec, cfg.AccessTTL, cfg.RefreshTTL)
	ledger := auth.NewLedger(store, issuer, log)
	sessions := auth.NewService(store, codec, issuer, ledger, log)
	jobSvc := jobs.NewService(jobStor)

	api := httpapi.New(probe, version, sessions, jobSvc, log)

	handler := httpapi.RequestID(api.Handler())
	handler = httpapi.Logging(log, handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.CORS(handler)
	handler = httpapi.RateLimit(handler, cfg.RateLimitBurst, cfg.RateLimitPerSecond)
	handler = httpapi.MaxBodyBytes(handler, 1<<20)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Retention sweeper: terminal refresh records past retention get purged.
	go sweepLoop(rootCtx, log, ledger, cfg.Retention, cfg.SweepInterval)

	// SIGHUP reloads the signing keys from the environment, so key rotation
	// does not need a restart.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			fresh, err := config.Load()
			if err != nil {
				log.Error("reload config", zap.Error(err))
				continue
			}
			pairs, err := fresh.KeyPairs()
			if err != nil {
				log.Error("reload signing keys", zap.Error(err))
				continue
			}
			if err := keyring.Reload(pairs); err != nil {
				log.Error("reload keyring", zap.Error(err))
				continue
			}
			log.Info("signing keys reloaded", zap.Int("keys", len(pairs)))
		}
	}()

	log.Info("starting moldash-api", zap.String("version", version), zap.String("addr", srv.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info("shutting down")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(ctx)
	log.Info("stopped")
}

func sweepLoop(ctx context.Context, log *zap.Logger, ledger *auth.Ledger, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			purged, err := ledger.PurgeTerminalBefore(ctx, cutoff)
			if err != nil {
				log.Error("refresh sweep failed", zap.Error(err))
				continue
			}
			if purged > 0 {
				log.Info("refresh records purged", zap.Int64("purged", purged))
			}
		}
	}
}
