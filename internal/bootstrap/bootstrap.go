// Package bootstrap wires the service's dependency graph once, shared by
// cmd/api (REST + degraded-mode inline execution) and cmd/worker (queue
// consumer). Keeping this in one place means both entry points build the
// exact same orchestrator.Deps, never two drifting copies.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/adapters"
	awsconfig "github.com/scenegenhq/sgs/internal/aws"
	"github.com/scenegenhq/sgs/internal/config"
	"github.com/scenegenhq/sgs/internal/orchestrator"
	"github.com/scenegenhq/sgs/internal/pipeline"
	"github.com/scenegenhq/sgs/internal/queue"
	"github.com/scenegenhq/sgs/internal/realtime"
	"github.com/scenegenhq/sgs/internal/repository"
)

// App bundles every long-lived component the two cmd/ entry points share.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Generations  repository.SceneGenerationRepository
	Scenes       repository.SceneRepository
	Storage      repository.AssetRepository
	Hub          *realtime.Hub
	Orchestrator *orchestrator.Orchestrator
	Redis        *redis.Client // nil if unreachable at startup
}

// Build constructs the full dependency graph: database pool + migrations,
// object storage, external AI collaborators, the pipeline registry, the
// realtime hub and the orchestrator. It does not construct a Queue — the
// caller decides between RedisQueue and the InlineQueue degraded mode,
// since that choice differs between cmd/api and cmd/worker.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	generations := repository.NewPostgresSceneGenerationRepository(pool, logger)
	scenes := repository.NewPostgresSceneRepository(pool, logger)

	switch cfg.StorageProvider {
	case "s3", "r2":
	case "cloudinary":
		return nil, fmt.Errorf("STORAGE_PROVIDER=cloudinary is not supported by this build; use s3 or r2")
	default:
		return nil, fmt.Errorf("unknown STORAGE_PROVIDER %q; use s3 or r2", cfg.StorageProvider)
	}

	awsCfg, err := awsconfig.NewConfig(ctx, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	s3Client := awsconfig.NewS3Client(awsCfg, cfg.S3Endpoint)
	storage := repository.NewS3AssetRepository(s3Client, cfg.AssetsBucket, logger)

	llm := adapters.NewReplicateLLMClient(cfg.ReplicateAPIKey, cfg.LLMModelVersion, logger)
	vision := adapters.NewReplicateVisionClient(cfg.ReplicateAPIKey, cfg.VisionModelVersion, logger)
	transcription := adapters.NewReplicateTranscriptionClient(cfg.ReplicateAPIKey, cfg.TranscriptionModelVersion, logger)
	imageGen := adapters.NewReplicateImageGenClient(cfg.ReplicateAPIKey, cfg.ImageGenModelVersion, logger)

	registry := pipeline.NewRegistry()
	registry.Register(pipeline.NewVideoPipeline())
	registry.Register(pipeline.NewOverlayPipeline(logger))
	registry.Register(pipeline.NewPiPPipeline())
	registry.Register(pipeline.NewBannerPipeline(logger))

	hub := realtime.NewHub(logger)
	go hub.Run()

	tempRoot := os.TempDir()

	orch := orchestrator.New(orchestrator.Deps{
		Generations:      generations,
		Scenes:           scenes,
		Storage:          storage,
		Pipelines:        registry,
		LLM:              llm,
		Vision:           vision,
		Transcription:    transcription,
		ImageGen:         imageGen,
		Hub:              hub,
		Logger:           logger,
		TempRoot:         tempRoot,
		SceneConcurrency: cfg.SceneConcurrency,
	})

	var redisClient *redis.Client
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, treating queue as unavailable", zap.Error(err))
	} else {
		candidate := redis.NewClient(opts)
		if err := queue.Ping(ctx, candidate); err != nil {
			logger.Warn("redis unreachable at startup, degrading to inline queue", zap.Error(err))
			_ = candidate.Close()
		} else {
			redisClient = candidate
		}
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		Generations:  generations,
		Scenes:       scenes,
		Storage:      storage,
		Hub:          hub,
		Orchestrator: orch,
		Redis:        redisClient,
	}, nil
}

// NewQueue builds a RedisQueue bound to workerID when Redis was reachable
// at startup, or an InlineQueue running handler synchronously otherwise.
func (a *App) NewQueue(workerID string, handler queue.Handler) queue.Queue {
	if a.Redis != nil {
		return queue.NewRedisQueue(a.Redis, workerID, a.Logger)
	}
	return queue.NewInlineQueue(handler, a.Logger)
}
