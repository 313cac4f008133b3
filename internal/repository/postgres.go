package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
)

// PostgresSceneGenerationRepository persists SceneGeneration rows over a
// pgx connection pool, storing enrichedContext/scenario/sceneProjects as
// JSONB columns.
type PostgresSceneGenerationRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresSceneGenerationRepository(pool *pgxpool.Pool, logger *zap.Logger) *PostgresSceneGenerationRepository {
	return &PostgresSceneGenerationRepository{pool: pool, logger: logger}
}

func (r *PostgresSceneGenerationRepository) Create(ctx context.Context, g *domain.SceneGeneration) error {
	videos, err := json.Marshal(g.Videos)
	if err != nil {
		return fmt.Errorf("failed to marshal videos: %w", err)
	}
	images, err := json.Marshal(g.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}
	refs, err := json.Marshal(g.References)
	if err != nil {
		return fmt.Errorf("failed to marshal references: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO scene_generations
			(id, prompt, aspect_ratio, review_scenario, review_scenes, status, phase,
			 progress, task_id, publication_id, videos, images, "references",
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
	`, g.ID, g.Prompt, g.AspectRatio, g.ReviewScenario, g.ReviewScenes, g.Status, g.Phase,
		g.Progress, nullString(g.TaskID), nullString(g.PublicationID), videos, images, refs, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert scene generation: %w", err)
	}
	return nil
}

func (r *PostgresSceneGenerationRepository) Get(ctx context.Context, id string) (*domain.SceneGeneration, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, prompt, aspect_ratio, review_scenario, review_scenes, status, phase,
		       progress, enriched_context, scenario, scene_projects, result_url, result_path,
		       error, task_id, publication_id, videos, images, "references",
		       created_at, updated_at, completed_at
		FROM scene_generations WHERE id = $1
	`, id)

	g, err := scanSceneGeneration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scene generation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	scenes, err := (&PostgresSceneRepository{pool: r.pool, logger: r.logger}).ListByGeneration(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Scenes = scenes
	return g, nil
}

func (r *PostgresSceneGenerationRepository) List(ctx context.Context, limit int, status string) ([]*domain.SceneGeneration, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error
	if status != "" {
		rows, err = r.pool.Query(ctx, `
			SELECT id, prompt, aspect_ratio, review_scenario, review_scenes, status, phase,
			       progress, enriched_context, scenario, scene_projects, result_url, result_path,
			       error, task_id, publication_id, videos, images, "references",
			       created_at, updated_at, completed_at
			FROM scene_generations WHERE status = $1 ORDER BY created_at DESC LIMIT $2
		`, status, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT id, prompt, aspect_ratio, review_scenario, review_scenes, status, phase,
			       progress, enriched_context, scenario, scene_projects, result_url, result_path,
			       error, task_id, publication_id, videos, images, "references",
			       created_at, updated_at, completed_at
			FROM scene_generations ORDER BY created_at DESC LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scene generations: %w", err)
	}
	defer rows.Close()

	var out []*domain.SceneGeneration
	for rows.Next() {
		g, err := scanSceneGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *PostgresSceneGenerationRepository) UpdatePhaseStatus(ctx context.Context, id, phase, status string, progress int) error {
	var completedAt *time.Time
	if domain.IsTerminal(status) {
		now := time.Now()
		completedAt = &now
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE scene_generations
		SET phase = $2, status = $3, progress = $4, updated_at = now(),
		    completed_at = COALESCE($5, completed_at)
		WHERE id = $1
	`, id, phase, status, progress, completedAt)
	if err != nil {
		return fmt.Errorf("failed to update phase/status: %w", err)
	}
	return nil
}

func (r *PostgresSceneGenerationRepository) UpdateEnrichedContext(ctx context.Context, id string, ec *domain.EnrichedContext) error {
	payload, err := json.Marshal(ec)
	if err != nil {
		return fmt.Errorf("failed to marshal enriched context: %w", err)
	}
	_, err = r.pool.Exec(ctx, `UPDATE scene_generations SET enriched_context = $2, updated_at = now() WHERE id = $1`, id, payload)
	if err != nil {
		return fmt.Errorf("failed to update enriched context: %w", err)
	}
	return nil
}

func (r *PostgresSceneGenerationRepository) UpdateScenario(ctx context.Context, id string, scenario *domain.Scenario) error {
	payload, err := json.Marshal(scenario)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	_, err = r.pool.Exec(ctx, `UPDATE scene_generations SET scenario = $2, updated_at = now() WHERE id = $1`, id, payload)
	if err != nil {
		return fmt.Errorf("failed to update scenario: %w", err)
	}
	return nil
}

func (r *PostgresSceneGenerationRepository) UpdateSceneProjects(ctx context.Context, id string, projects []domain.SceneProject) error {
	payload, err := json.Marshal(projects)
	if err != nil {
		return fmt.Errorf("failed to marshal scene projects: %w", err)
	}
	_, err = r.pool.Exec(ctx, `UPDATE scene_generations SET scene_projects = $2, updated_at = now() WHERE id = $1`, id, payload)
	if err != nil {
		return fmt.Errorf("failed to update scene projects: %w", err)
	}
	return nil
}

func (r *PostgresSceneGenerationRepository) UpdateResult(ctx context.Context, id, resultPath, resultURL string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scene_generations
		SET result_path = $2, result_url = $3, status = $4, phase = $5, progress = 100,
		    updated_at = now(), completed_at = now()
		WHERE id = $1
	`, id, resultPath, resultURL, domain.StatusCompleted, domain.Phase4)
	if err != nil {
		return fmt.Errorf("failed to update result: %w", err)
	}
	return nil
}

func (r *PostgresSceneGenerationRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scene_generations
		SET status = $2, error = $3, updated_at = now(), completed_at = now()
		WHERE id = $1
	`, id, domain.StatusFailed, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark generation failed: %w", err)
	}
	return nil
}

func (r *PostgresSceneGenerationRepository) MarkCancelled(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scene_generations
		SET status = $2, updated_at = now(), completed_at = now()
		WHERE id = $1
	`, id, domain.StatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to mark generation cancelled: %w", err)
	}
	return nil
}

func (r *PostgresSceneGenerationRepository) HealthCheck(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// PostgresSceneRepository persists the per-timeline-item Scene rows.
type PostgresSceneRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresSceneRepository(pool *pgxpool.Pool, logger *zap.Logger) *PostgresSceneRepository {
	return &PostgresSceneRepository{pool: pool, logger: logger}
}

func (r *PostgresSceneRepository) CreateBatch(ctx context.Context, scenes []domain.Scene) error {
	batch := &pgx.Batch{}
	for _, s := range scenes {
		project, err := json.Marshal(s.SceneProject)
		if err != nil {
			return fmt.Errorf("failed to marshal scene project for %s: %w", s.SceneID, err)
		}
		batch.Queue(`
			INSERT INTO scenes
				(id, generation_id, scene_id, kind, order_index, status, progress,
				 scene_project, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		`, s.ID, s.GenerationID, s.SceneID, s.Kind, s.OrderIndex, s.Status, s.Progress, project, s.CreatedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range scenes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert scene batch: %w", err)
		}
	}
	return nil
}

func (r *PostgresSceneRepository) Get(ctx context.Context, generationID, sceneID string) (*domain.Scene, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, generation_id, scene_id, kind, order_index, status, progress,
		       rendered_asset_path, rendered_asset_url, error, scene_project, debug_frame_urls,
		       created_at, updated_at
		FROM scenes WHERE generation_id = $1 AND scene_id = $2
	`, generationID, sceneID)

	s, err := scanScene(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scene %s/%s: %w", generationID, sceneID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresSceneRepository) ListByGeneration(ctx context.Context, generationID string) ([]domain.Scene, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, generation_id, scene_id, kind, order_index, status, progress,
		       rendered_asset_path, rendered_asset_url, error, scene_project, debug_frame_urls,
		       created_at, updated_at
		FROM scenes WHERE generation_id = $1 ORDER BY order_index ASC
	`, generationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	var out []domain.Scene
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *PostgresSceneRepository) UpdateProgress(ctx context.Context, generationID, sceneID string, status string, progress int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scenes SET status = $3, progress = $4, updated_at = now()
		WHERE generation_id = $1 AND scene_id = $2
	`, generationID, sceneID, status, progress)
	if err != nil {
		return fmt.Errorf("failed to update scene progress: %w", err)
	}
	return nil
}

func (r *PostgresSceneRepository) UpdateRendered(ctx context.Context, generationID, sceneID, assetPath, assetURL string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scenes
		SET status = $3, progress = 100, rendered_asset_path = $4, rendered_asset_url = $5, updated_at = now()
		WHERE generation_id = $1 AND scene_id = $2
	`, generationID, sceneID, domain.SceneStatusCompleted, assetPath, assetURL)
	if err != nil {
		return fmt.Errorf("failed to update rendered scene: %w", err)
	}
	return nil
}

func (r *PostgresSceneRepository) UpdateFailed(ctx context.Context, generationID, sceneID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scenes SET status = $3, error = $4, updated_at = now()
		WHERE generation_id = $1 AND scene_id = $2
	`, generationID, sceneID, domain.SceneStatusFailed, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark scene failed: %w", err)
	}
	return nil
}

func (r *PostgresSceneRepository) UpdateDebugFrames(ctx context.Context, generationID, sceneID string, urls []string) error {
	payload, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("failed to marshal debug frame urls: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE scenes SET debug_frame_urls = $3, updated_at = now()
		WHERE generation_id = $1 AND scene_id = $2
	`, generationID, sceneID, payload)
	if err != nil {
		return fmt.Errorf("failed to update debug frame urls: %w", err)
	}
	return nil
}

// row is satisfied by both pgx.Row and pgx.Rows.
type row interface {
	Scan(dest ...interface{}) error
}

func scanSceneGeneration(r row) (*domain.SceneGeneration, error) {
	var g domain.SceneGeneration
	var enrichedContext, scenario, sceneProjects, videos, images, refs []byte
	var resultURL, resultPath, errText, taskID, publicationID *string

	err := r.Scan(
		&g.ID, &g.Prompt, &g.AspectRatio, &g.ReviewScenario, &g.ReviewScenes, &g.Status, &g.Phase,
		&g.Progress, &enrichedContext, &scenario, &sceneProjects, &resultURL, &resultPath,
		&errText, &taskID, &publicationID, &videos, &images, &refs,
		&g.CreatedAt, &g.UpdatedAt, &g.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if resultURL != nil {
		g.ResultURL = *resultURL
	}
	if resultPath != nil {
		g.ResultPath = *resultPath
	}
	if errText != nil {
		g.Error = *errText
	}
	if taskID != nil {
		g.TaskID = *taskID
	}
	if publicationID != nil {
		g.PublicationID = *publicationID
	}

	if len(enrichedContext) > 0 {
		if err := json.Unmarshal(enrichedContext, &g.EnrichedContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal enriched context: %w", err)
		}
	}
	if len(scenario) > 0 {
		if err := json.Unmarshal(scenario, &g.Scenario); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
		}
	}
	if len(sceneProjects) > 0 {
		if err := json.Unmarshal(sceneProjects, &g.SceneProjects); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scene projects: %w", err)
		}
	}
	_ = json.Unmarshal(videos, &g.Videos)
	_ = json.Unmarshal(images, &g.Images)
	_ = json.Unmarshal(refs, &g.References)

	return &g, nil
}

func scanScene(r row) (*domain.Scene, error) {
	var s domain.Scene
	var project, debugFrames []byte
	var renderedPath, renderedURL, errText *string

	err := r.Scan(
		&s.ID, &s.GenerationID, &s.SceneID, &s.Kind, &s.OrderIndex, &s.Status, &s.Progress,
		&renderedPath, &renderedURL, &errText, &project, &debugFrames,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if renderedPath != nil {
		s.RenderedAssetPath = *renderedPath
	}
	if renderedURL != nil {
		s.RenderedAssetURL = *renderedURL
	}
	if errText != nil {
		s.Error = *errText
	}
	if len(project) > 0 {
		if err := json.Unmarshal(project, &s.SceneProject); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scene project: %w", err)
		}
	}
	if len(debugFrames) > 0 {
		if err := json.Unmarshal(debugFrames, &s.SceneProject.DebugFrameURLs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal debug frame urls: %w", err)
		}
	}
	return &s, nil
}

// ErrNotFound is returned by Get for a missing generation or scene. Handlers
// translate it to a 404.
var ErrNotFound = errors.New("not found")

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
