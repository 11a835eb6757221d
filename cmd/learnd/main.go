package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	api "github.com/mind-engage/mindengage-learn/internal/api/http"
	"github.com/mind-engage/mindengage-learn/internal/apiclient"
	auth "github.com/mind-engage/mindengage-learn/internal/auth/middleware"
	"github.com/mind-engage/mindengage-learn/internal/config"
	"github.com/mind-engage/mindengage-learn/internal/db"
	"github.com/mind-engage/mindengage-learn/internal/executor"
	"github.com/mind-engage/mindengage-learn/internal/journal"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
	"github.com/mind-engage/mindengage-learn/internal/rbac"
	"github.com/mind-engage/mindengage-learn/internal/session"
	"github.com/mind-engage/mindengage-learn/internal/storage"
	"github.com/mind-engage/mindengage-learn/internal/submission"
	"github.com/mind-engage/mindengage-learn/internal/unlock"
)

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup so that a failed start or a server error
// still closes the database and flushes the log.
func run() int {
	// a missing .env is fine; the environment wins either way
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		return 1
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Error("db open failed", "driver", cfg.DBDriver, "error", err)
		return 1
	}
	defer dbh.Close()
	store := journal.NewStore(dbh)
	if pending, err := store.Pending(context.Background()); err != nil {
		log.Warn("journal scan failed", "error", err)
	} else if len(pending) > 0 {
		log.Info("unacknowledged completions in journal", "count", len(pending))
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Error("blob store", "path", cfg.BlobBasePath, "error", err)
		return 1
	}

	// --- upstreams ---
	backend := apiclient.New(apiclient.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.HTTPTimeout}, log)
	exec := executor.New(cfg.ExecAPIURL, cfg.HTTPTimeout)

	// --- sessions ---
	sessions := session.NewManager(session.Deps{
		Backend:     func(token string) session.Backend { return backend.WithToken(token) },
		Exec:        exec,
		Journal:     store,
		Blobs:       bs,
		Checker:     rbac.Default(),
		Policy:      unlock.Policy{StrictEnrollment: cfg.StrictEnrollment},
		Dwell:       cfg.AutocompleteDwell,
		NotifyTTL:   cfg.NotifyTTL,
		CallTimeout: cfg.HTTPTimeout,
		Log:         log,
	}, cfg.SessionIdleTTL)
	if err := sessions.Start(cfg.ReconcileSchedule); err != nil {
		log.Error("bad reconcile schedule", "schedule", cfg.ReconcileSchedule, "error", err)
		return 1
	}
	defer sessions.Stop()

	// --- auth ---
	tokens := auth.NewTokenParser(cfg.AuthHMACSecret)
	if !tokens.Verifying() {
		log.Warn("AUTH_HMAC_SECRET not set; bearer tokens are decoded without signature checks and the journal route is disabled")
	}

	// --- router ---
	r := api.NewRouter(api.Deps{
		Sessions:    sessions,
		Reviews:     func(token string) submission.ReviewAPI { return backend.WithToken(token) },
		Events:      store.Events(),
		Tokens:      tokens,
		CORSOrigins: cfg.CORSOrigins,
		Ready:       dbh.PingContext,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "api", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	code := 0
	select {
	case <-stop:
		log.Info("shutting down")
	case err := <-serveErr:
		log.Error("http server", "error", err)
		code = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	return code
}
