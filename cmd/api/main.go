package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"newscast/internal/bootstrap"
	"newscast/internal/http/handlers"
	"newscast/internal/http/httpapi"
	"newscast/internal/infra"
	"newscast/internal/jobs"
	"newscast/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: bootstrap failed")
	}
	defer rt.Close()

	app := &handlers.App{
		Jobs:         rt.Service,
		Registry:     rt.Registry,
		Signer:       rt.Signer,
		Logger:       logger,
		StaleTimeout: cfg.StaleJobTimeout,
		Ready:        rt.Ready,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Auth: middleware.AuthOptions{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		},
		InternalToken:   cfg.InternalToken,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       rt.StaticDir,
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)
	if cfg.InternalToken == "" {
		logger.Warn().Msg("api: INTERNAL_TOKEN unset, /internal routes reject every request")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Msg("api: listening")
		return server.Start()
	})
	g.Go(func() error {
		return rt.Registry.KeepAlive(gctx, cfg.KeepAlive)
	})
	if rt.Relay != nil {
		g.Go(func() error {
			return rt.Relay.Run(gctx)
		})
	}
	if cfg.EmbeddedWorker {
		worker := jobs.NewWorker(rt.Service, nil, cfg.WorkerPoll, logger)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		// Streams only end once their sinks close.
		rt.Registry.Close()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("api: stopped with error")
		return
	}
	logger.Info().Msg("api: stopped")
}
