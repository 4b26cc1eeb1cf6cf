package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"newscast/internal/bootstrap"
	"newscast/internal/domain"
	"newscast/internal/infra"
	"newscast/internal/jobs"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if cfg.JobStore == infra.JobStoreMemory {
		logger.Fatal().Msg("worker: JOB_STORE=memory is only reachable from the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: bootstrap failed")
	}
	defer rt.Close()

	worker := jobs.NewWorker(rt.Service, kindsFromEnv(), cfg.WorkerPoll, logger)
	if err := worker.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: stopped with error")
	}
}

// kindsFromEnv reads WORKER_KINDS, a comma separated subset of job kinds.
func kindsFromEnv() []domain.JobKind {
	var kinds []domain.JobKind
	for _, part := range strings.Split(os.Getenv("WORKER_KINDS"), ",") {
		if kind := domain.JobKind(strings.TrimSpace(part)); kind.Valid() {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
