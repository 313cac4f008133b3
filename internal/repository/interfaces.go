package repository

import (
	"context"
	"time"

	"github.com/scenegenhq/sgs/internal/domain"
)

// SceneGenerationRepository persists SceneGeneration rows and their nested
// Scene rows.
type SceneGenerationRepository interface {
	Create(ctx context.Context, g *domain.SceneGeneration) error
	Get(ctx context.Context, id string) (*domain.SceneGeneration, error)
	List(ctx context.Context, limit int, status string) ([]*domain.SceneGeneration, error)

	UpdatePhaseStatus(ctx context.Context, id, phase, status string, progress int) error
	UpdateEnrichedContext(ctx context.Context, id string, ec *domain.EnrichedContext) error
	UpdateScenario(ctx context.Context, id string, scenario *domain.Scenario) error
	UpdateSceneProjects(ctx context.Context, id string, projects []domain.SceneProject) error
	UpdateResult(ctx context.Context, id, resultPath, resultURL string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	MarkCancelled(ctx context.Context, id string) error

	HealthCheck(ctx context.Context) error
}

// SceneRepository persists the per-timeline-item Scene rows.
type SceneRepository interface {
	CreateBatch(ctx context.Context, scenes []domain.Scene) error
	Get(ctx context.Context, generationID, sceneID string) (*domain.Scene, error)
	ListByGeneration(ctx context.Context, generationID string) ([]domain.Scene, error)

	UpdateProgress(ctx context.Context, generationID, sceneID string, status string, progress int) error
	UpdateRendered(ctx context.Context, generationID, sceneID, assetPath, assetURL string) error
	UpdateFailed(ctx context.Context, generationID, sceneID, errMsg string) error
	UpdateDebugFrames(ctx context.Context, generationID, sceneID string, urls []string) error
}

// AssetRepository abstracts the object store: source media downloads,
// rendered scene uploads, composed-output publication.
type AssetRepository interface {
	GetPresignedURL(ctx context.Context, key string, duration time.Duration) (string, error)
	GetPresignedPutURL(ctx context.Context, key, contentType string, duration time.Duration) (string, error)

	UploadFile(ctx context.Context, key, filePath, contentType string) (string, error)
	DownloadFile(ctx context.Context, key, destPath string) error
	DownloadURL(ctx context.Context, url, destPath string) error
	DeleteFile(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error

	HealthCheck(ctx context.Context) error
}
