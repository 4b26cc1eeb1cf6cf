// Package bootstrap assembles the job service from configuration. The api,
// worker and reconcile binaries share it so they agree on store, provider
// and event wiring.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"newscast/internal/adapter/memstore"
	"newscast/internal/adapter/repo"
	"newscast/internal/domain"
	"newscast/internal/infra"
	"newscast/internal/jobs"
	"newscast/internal/notify"
	"newscast/internal/providers/speech"
	"newscast/internal/providers/video"
	"newscast/internal/storage"
)

// Runtime is everything a binary needs to serve or process jobs. Close
// releases the connections it opened.
type Runtime struct {
	Service  *jobs.Service
	Registry *notify.Registry
	Signer   *jobs.CallbackSigner
	// Relay is nil without Redis; events then stay inside the process.
	Relay *notify.RedisRelay
	// StaticDir is the file store root, or "" when objects live in S3.
	StaticDir string
	Ready     func(ctx context.Context) error

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// New wires a Runtime. withProcessors is false for binaries that never run
// provider work, such as the reconciler.
func New(ctx context.Context, cfg *infra.Config, logger zerolog.Logger, withProcessors bool) (*Runtime, error) {
	rt := &Runtime{
		Registry: notify.NewRegistry(logger),
		Signer:   jobs.NewCallbackSigner(cfg.CallbackSecret, cfg.PublicBaseURL),
	}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	jobRepo, err := rt.openRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var publisher notify.Publisher = notify.NewLocalPublisher(rt.Registry)
	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
		rt.Relay = notify.NewRedisRelay(redisClient, notify.DefaultRelayChannel, rt.Registry, logger)
		publisher = rt.Relay
	} else if !cfg.EmbeddedWorker {
		logger.Warn().Msg("bootstrap: REDIS_URL unset, events from other processes will not reach this one")
	}

	var processors []jobs.Processor
	if withProcessors {
		processors, err = rt.processors(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	rt.Service, err = jobs.NewService(jobs.Options{
		Repo:       jobRepo,
		Publisher:  publisher,
		Processors: processors,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.Registry.Close)
	ok = true
	return rt, nil
}

func (rt *Runtime) openRepository(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.JobRepository, error) {
	if cfg.JobStore == infra.JobStoreMemory {
		logger.Warn().Msg("bootstrap: using in-memory job store, jobs are lost on restart")
		return memstore.NewJobStore(), nil
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, pool.Close)
	if cfg.DBAutoMigrate {
		if err := infra.Migrate(ctx, pool, logger); err != nil {
			return nil, err
		}
	}
	rt.Ready = pool.Ping
	return repo.NewJobRepository(infra.NewSQLRunner(pool, logger)), nil
}

func (rt *Runtime) processors(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) ([]jobs.Processor, error) {
	store, err := rt.openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var synth speech.Synthesizer
	if cfg.OpenAIAPIKey != "" {
		synth, err = speech.NewOpenAIClient(speech.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAITTSModel,
			Timeout: cfg.ProviderTimeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("configure speech provider: %w", err)
		}
	} else {
		fallbackEvent(cfg, logger).Msg("bootstrap: OPENAI_API_KEY missing, using synthetic speech")
		synth = speech.NewSynthetic()
	}

	videoOpts := jobs.VideoOptions{Logger: logger}
	if cfg.FalAPIKey != "" {
		fal, err := video.NewFalClient(video.FalOptions{
			APIKey:   cfg.FalAPIKey,
			QueueURL: cfg.FalQueueURL,
			Model:    cfg.FalLipSyncModel,
			Timeout:  cfg.ProviderTimeout,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("configure lip-sync provider: %w", err)
		}
		videoOpts.Async = fal
		videoOpts.Callbacks = rt.Signer
	} else {
		fallbackEvent(cfg, logger).Msg("bootstrap: FAL_API_KEY missing, using synthetic lip-sync")
		videoOpts.Sync = video.NewSynthetic(cfg.StorageBaseURL+"/synthetic", 0)
	}
	videoProc, err := jobs.NewVideoProcessor(videoOpts)
	if err != nil {
		return nil, err
	}

	return []jobs.Processor{jobs.NewAudioProcessor(synth, store, logger), videoProc}, nil
}

func (rt *Runtime) openStorage(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (storage.Store, error) {
	if cfg.S3Endpoint != "" {
		store, err := storage.NewObjectStore(storage.ObjectOptions{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("configure object storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info().Str("endpoint", cfg.S3Endpoint).Str("bucket", cfg.S3Bucket).Msg("bootstrap: object storage ready")
		return store, nil
	}

	path := cfg.StoragePath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	store, err := storage.NewFileStore(path, cfg.StorageBaseURL)
	if err != nil {
		return nil, fmt.Errorf("configure file storage: %w", err)
	}
	rt.StaticDir = store.BasePath()
	return store, nil
}

// fallbackEvent is louder outside development, where synthetic output is
// almost certainly a misconfiguration.
func fallbackEvent(cfg *infra.Config, logger zerolog.Logger) *zerolog.Event {
	if cfg.IsDevelopment() {
		return logger.Warn()
	}
	return logger.Error()
}
