package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"newscast/internal/bootstrap"
	"newscast/internal/infra"
)

// reconcile runs one staleness sweep and exits. Schedule it from cron or a
// Kubernetes CronJob.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	timeout := flag.Duration("timeout", cfg.StaleJobTimeout, "reset in_progress jobs untouched for longer than this")
	flag.Parse()

	logger := infra.NewLogger(cfg.AppEnv)
	if cfg.JobStore == infra.JobStoreMemory {
		logger.Fatal().Msg("reconcile: JOB_STORE=memory has nothing to sweep outside the api process")
	}

	ctx := context.Background()
	rt, err := bootstrap.New(ctx, cfg, logger, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("reconcile: bootstrap failed")
	}
	defer rt.Close()

	n, err := rt.Service.ReconcileStale(ctx, *timeout)
	if err != nil {
		logger.Error().Err(err).Msg("reconcile: sweep failed")
		rt.Close()
		os.Exit(1)
	}
	logger.Info().Int("reset", n).Dur("timeout", *timeout).Msg("reconcile: sweep finished")
}
