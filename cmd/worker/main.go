package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"learncenter/internal/accesscode"
	"learncenter/internal/config"
	"learncenter/internal/jobs"
	"learncenter/internal/logger"
	"learncenter/internal/store"
	"learncenter/internal/validation"
)

// Worker runs periodic maintenance against the Postgres store.
func main() {
	cfg := config.Load()
	log := logger.New(os.Stderr, logger.Options{
		Token:       cfg.RollbarToken,
		Environment: cfg.Env,
		CodeVersion: cfg.BuildVersion,
	})
	defer log.Close()

	if cfg.StoreBackend == "memory" {
		log.Info("memory store has nothing to maintain; worker exiting")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", err)
	}
	defer db.Close()

	codes := accesscode.NewService(accesscode.NewRepository(db.Client), validation.New())

	log.Info("worker started", logger.Fields{
		"purge_interval": cfg.AccessCodePurgeInterval.String(),
		"retention":      cfg.AccessCodeRetention.String(),
	})
	jobs.CodePurge{
		Codes:     codes,
		Interval:  cfg.AccessCodePurgeInterval,
		Retention: cfg.AccessCodeRetention,
		Log:       log,
	}.Run(ctx)
	log.Info("worker stopped")
}
