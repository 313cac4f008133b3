package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/internal/repository"
)

// --- in-memory fakes --------------------------------------------------

type memGenerationRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.SceneGeneration
}

func newMemGenerationRepo() *memGenerationRepo {
	return &memGenerationRepo{rows: make(map[string]*domain.SceneGeneration)}
}

func (r *memGenerationRepo) Create(ctx context.Context, g *domain.SceneGeneration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	r.rows[g.ID] = &cp
	return nil
}

func (r *memGenerationRepo) Get(ctx context.Context, id string) (*domain.SceneGeneration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("scene generation %s: %w", id, repository.ErrNotFound)
	}
	cp := *g
	return &cp, nil
}

func (r *memGenerationRepo) List(ctx context.Context, limit int, status string) ([]*domain.SceneGeneration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SceneGeneration
	for _, g := range r.rows {
		if status != "" && g.Status != status {
			continue
		}
		cp := *g
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memGenerationRepo) UpdatePhaseStatus(ctx context.Context, id, phase, status string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.rows[id]
	g.Phase, g.Status, g.Progress = phase, status, progress
	return nil
}

func (r *memGenerationRepo) UpdateEnrichedContext(ctx context.Context, id string, ec *domain.EnrichedContext) error {
	return nil
}

func (r *memGenerationRepo) UpdateScenario(ctx context.Context, id string, scenario *domain.Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id].Scenario = scenario
	return nil
}

func (r *memGenerationRepo) UpdateSceneProjects(ctx context.Context, id string, projects []domain.SceneProject) error {
	return nil
}

func (r *memGenerationRepo) UpdateResult(ctx context.Context, id, resultPath, resultURL string) error {
	return nil
}

func (r *memGenerationRepo) MarkFailed(ctx context.Context, id, errMsg string) error { return nil }

func (r *memGenerationRepo) MarkCancelled(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id].Status = domain.StatusCancelled
	return nil
}

func (r *memGenerationRepo) HealthCheck(ctx context.Context) error { return nil }

type memSceneRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.Scene // sceneID -> scene
}

func newMemSceneRepo() *memSceneRepo { return &memSceneRepo{rows: make(map[string]*domain.Scene)} }

func (r *memSceneRepo) CreateBatch(ctx context.Context, scenes []domain.Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range scenes {
		s := s
		r.rows[s.SceneID] = &s
	}
	return nil
}

func (r *memSceneRepo) Get(ctx context.Context, generationID, sceneID string) (*domain.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[sceneID]
	if !ok || s.GenerationID != generationID {
		return nil, fmt.Errorf("scene %s/%s: %w", generationID, sceneID, repository.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r *memSceneRepo) ListByGeneration(ctx context.Context, generationID string) ([]domain.Scene, error) {
	return nil, nil
}

func (r *memSceneRepo) UpdateProgress(ctx context.Context, generationID, sceneID string, status string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[sceneID]; ok {
		s.Status, s.Progress = status, progress
	}
	return nil
}

func (r *memSceneRepo) UpdateRendered(ctx context.Context, generationID, sceneID, assetPath, assetURL string) error {
	return nil
}

func (r *memSceneRepo) UpdateFailed(ctx context.Context, generationID, sceneID, errMsg string) error {
	return nil
}

func (r *memSceneRepo) UpdateDebugFrames(ctx context.Context, generationID, sceneID string, urls []string) error {
	return nil
}

// recordingQueue records submitted jobs without running anything.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []domain.Job
}

func (q *recordingQueue) Submit(ctx context.Context, job domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Dequeue(ctx context.Context) (*domain.Job, error) { return nil, nil }
func (q *recordingQueue) Ack(ctx context.Context, job domain.Job) error    { return nil }
func (q *recordingQueue) Nack(ctx context.Context, job domain.Job) error   { return nil }

func (q *recordingQueue) Remove(ctx context.Context, generationID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.jobs[:0]
	for _, j := range q.jobs {
		if j.GenerationID != generationID {
			kept = append(kept, j)
		}
	}
	q.jobs = kept
	return nil
}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) submitted() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Job(nil), q.jobs...)
}

// --- harness ------------------------------------------------------------

func newTestRouter(t *testing.T) (*gin.Engine, *memGenerationRepo, *memSceneRepo, *recordingQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	genRepo := newMemGenerationRepo()
	sceneRepo := newMemSceneRepo()
	q := &recordingQueue{}
	h := NewGenerationsHandler(genRepo, sceneRepo, nil, q, zap.NewNop(), "development")

	router := gin.New()
	router.POST("/generate", h.Create)
	router.GET("/:id/scenario", h.GetScenario)
	router.PUT("/:id/scenario", h.PutScenario)
	router.DELETE("/:id", h.Cancel)
	router.POST("/:id/continue", h.Continue)
	router.POST("/:id/scenes/:sceneId/regenerate", h.RegenerateScene)
	return router, genRepo, sceneRepo, q
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, genRepo *memGenerationRepo, id, status string) {
	t.Helper()
	require.NoError(t, genRepo.Create(context.Background(), &domain.SceneGeneration{
		ID:        id,
		Prompt:    "hello",
		Status:    status,
		Phase:     domain.Phase0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}))
}

// --- tests --------------------------------------------------------------

func TestCreate_QueuesGenerateJob(t *testing.T) {
	router, _, _, q := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/generate", domain.GenerationRequest{Prompt: "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, domain.StatusQueued, resp["status"])
	require.NotEmpty(t, resp["id"])

	jobs := q.submitted()
	require.Len(t, jobs, 1)
	require.Equal(t, domain.JobKindGenerate, jobs[0].Kind)
	require.Equal(t, resp["id"], jobs[0].GenerationID)
}

func TestCreate_EmptyPromptRejected(t *testing.T) {
	router, _, _, q := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/generate", map[string]interface{}{"prompt": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, q.submitted())
}

func TestScenario_PutThenGetRoundTrips(t *testing.T) {
	router, genRepo, _, _ := newTestRouter(t)
	seed(t, genRepo, "gen-1", domain.StatusWaitingForReview)

	scenario := domain.Scenario{Timeline: []domain.TimelineItem{{
		ID: "s1", Kind: domain.SceneKindBanner, DurationSeconds: 2,
		DetailedRequest: domain.DetailedRequest{TextContent: "edited"},
	}}}

	rec := doJSON(t, router, http.MethodPut, "/gen-1/scenario", PutScenarioRequest{Scenario: scenario})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/gen-1/scenario", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Scenario domain.Scenario `json:"scenario"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, scenario, resp.Scenario)
}

func TestPutScenario_EmptyTimelineRejected(t *testing.T) {
	router, genRepo, _, _ := newTestRouter(t)
	seed(t, genRepo, "gen-1", domain.StatusWaitingForReview)

	rec := doJSON(t, router, http.MethodPut, "/gen-1/scenario", PutScenarioRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetScenario_NotProducedYetIs404(t *testing.T) {
	router, genRepo, _, _ := newTestRouter(t)
	seed(t, genRepo, "gen-1", domain.StatusProcessing)

	rec := doJSON(t, router, http.MethodGet, "/gen-1/scenario", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancel_IsIdempotentAndRemovesQueuedJobs(t *testing.T) {
	router, genRepo, _, q := newTestRouter(t)
	seed(t, genRepo, "gen-1", domain.StatusQueued)
	require.NoError(t, q.Submit(context.Background(), domain.Job{Kind: domain.JobKindGenerate, GenerationID: "gen-1"}))

	for i := 0; i < 3; i++ {
		rec := doJSON(t, router, http.MethodDelete, "/gen-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	g, err := genRepo.Get(context.Background(), "gen-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, g.Status)
	require.Empty(t, q.submitted())
}

func TestContinue_RequiresReviewState(t *testing.T) {
	router, genRepo, _, q := newTestRouter(t)
	seed(t, genRepo, "gen-1", domain.StatusProcessing)

	rec := doJSON(t, router, http.MethodPost, "/gen-1/continue", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, q.submitted())

	require.NoError(t, genRepo.UpdatePhaseStatus(context.Background(), "gen-1", domain.Phase1, domain.StatusWaitingForReview, 40))

	rec = doJSON(t, router, http.MethodPost, "/gen-1/continue", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	jobs := q.submitted()
	require.Len(t, jobs, 1)
	require.Equal(t, domain.JobKindContinue, jobs[0].Kind)
}

func TestRegenerateScene_ResetsToPendingAndQueues(t *testing.T) {
	router, genRepo, sceneRepo, q := newTestRouter(t)
	seed(t, genRepo, "gen-1", domain.StatusCompleted)
	require.NoError(t, sceneRepo.CreateBatch(context.Background(), []domain.Scene{{
		ID: "row-1", GenerationID: "gen-1", SceneID: "s1", Kind: domain.SceneKindBanner,
		Status: domain.SceneStatusCompleted, Progress: 100,
	}}))

	rec := doJSON(t, router, http.MethodPost, "/gen-1/scenes/s1/regenerate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	s, err := sceneRepo.Get(context.Background(), "gen-1", "s1")
	require.NoError(t, err)
	require.Equal(t, domain.SceneStatusPending, s.Status)

	jobs := q.submitted()
	require.Len(t, jobs, 1)
	require.Equal(t, domain.JobKindRegenerateScene, jobs[0].Kind)
	require.Equal(t, "s1", jobs[0].SceneID)
}

func TestUnknownGenerationIs404(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodDelete, "/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
