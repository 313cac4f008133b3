// Package config loads process configuration shared by cmd/api and
// cmd/worker: a .env file (if present) followed by environment variables.
package config

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the service-wide configuration.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Port        string `envconfig:"PORT" default:"3001"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL" default:"redis://localhost:6379"`

	StorageProvider   string `envconfig:"STORAGE_PROVIDER" default:"s3"`
	AssetsBucket      string `envconfig:"ASSETS_BUCKET" default:"scene-generation"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3Region          string `envconfig:"AWS_REGION" default:"us-east-1"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`

	ReplicateAPIKey string `envconfig:"REPLICATE_API_KEY"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`

	LLMModelVersion           string `envconfig:"LLM_MODEL_VERSION" default:"openai/gpt-4o"`
	VisionModelVersion        string `envconfig:"VISION_MODEL_VERSION" default:"openai/gpt-4o"`
	TranscriptionModelVersion string `envconfig:"TRANSCRIPTION_MODEL_VERSION" default:"openai/whisper"`
	ImageGenModelVersion      string `envconfig:"IMAGEGEN_MODEL_VERSION" default:"black-forest-labs/flux-schnell"`

	WorkerConcurrency  int `envconfig:"WORKER_CONCURRENCY" default:"2"`
	SceneConcurrency   int `envconfig:"SCENE_CONCURRENCY" default:"3"`
	GenerationRateHour int `envconfig:"GENERATION_RATE_PER_HOUR" default:"20"`
	APIRatePer15Min    int `envconfig:"API_RATE_PER_15MIN" default:"500"`
}

// Load reads .env/.env.local (if present, trying a short list of candidate
// paths) and then populates Config from the environment.
func Load() (*Config, error) {
	for _, candidate := range []string{".env.local", ".env", "../.env.local", "../.env"} {
		if _, err := os.Stat(candidate); err == nil {
			_ = godotenv.Load(candidate)
			break
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// CheckFFmpeg fails fast if ffmpeg/ffprobe are not on PATH; every render
// pipeline and Phase 4 shell out to them.
func CheckFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found on PATH: %w", err)
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return fmt.Errorf("ffprobe not found on PATH: %w", err)
	}
	return nil
}
