package orchestrator

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/internal/pipeline"
	"github.com/scenegenhq/sgs/internal/realtime"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// --- in-memory fakes --------------------------------------------------

type fakeGenerationRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.SceneGeneration
}

func newFakeGenerationRepo() *fakeGenerationRepo {
	return &fakeGenerationRepo{rows: make(map[string]*domain.SceneGeneration)}
}

func (r *fakeGenerationRepo) put(g *domain.SceneGeneration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	r.rows[g.ID] = &cp
}

func (r *fakeGenerationRepo) Create(ctx context.Context, g *domain.SceneGeneration) error {
	r.put(g)
	return nil
}

func (r *fakeGenerationRepo) Get(ctx context.Context, id string) (*domain.SceneGeneration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rows[id]
	if !ok {
		return nil, sgserrors.NewAPIError(sgserrors.ErrGenerationNotFound, "", nil)
	}
	cp := *g
	return &cp, nil
}

func (r *fakeGenerationRepo) List(ctx context.Context, limit int, status string) ([]*domain.SceneGeneration, error) {
	return nil, nil
}

func (r *fakeGenerationRepo) UpdatePhaseStatus(ctx context.Context, id, phase, status string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rows[id]
	if !ok {
		return sgserrors.NewAPIError(sgserrors.ErrGenerationNotFound, "", nil)
	}
	g.Phase, g.Status, g.Progress = phase, status, progress
	return nil
}

func (r *fakeGenerationRepo) UpdateEnrichedContext(ctx context.Context, id string, ec *domain.EnrichedContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id].EnrichedContext = ec
	return nil
}

func (r *fakeGenerationRepo) UpdateScenario(ctx context.Context, id string, scenario *domain.Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id].Scenario = scenario
	return nil
}

func (r *fakeGenerationRepo) UpdateSceneProjects(ctx context.Context, id string, projects []domain.SceneProject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id].SceneProjects = projects
	return nil
}

func (r *fakeGenerationRepo) UpdateResult(ctx context.Context, id, resultPath, resultURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.rows[id]
	g.ResultPath, g.ResultURL, g.Status, g.Phase, g.Progress = resultPath, resultURL, domain.StatusCompleted, domain.Phase4, 100
	return nil
}

func (r *fakeGenerationRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.rows[id]
	g.Status, g.Error = domain.StatusFailed, errMsg
	return nil
}

func (r *fakeGenerationRepo) MarkCancelled(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id].Status = domain.StatusCancelled
	return nil
}

func (r *fakeGenerationRepo) HealthCheck(ctx context.Context) error { return nil }

type fakeSceneRepo struct {
	mu    sync.Mutex
	rows  map[string]map[string]*domain.Scene // generationID -> sceneID -> scene
	order map[string][]string
}

func newFakeSceneRepo() *fakeSceneRepo {
	return &fakeSceneRepo{rows: make(map[string]map[string]*domain.Scene), order: make(map[string][]string)}
}

func (r *fakeSceneRepo) CreateBatch(ctx context.Context, scenes []domain.Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range scenes {
		s := s
		if r.rows[s.GenerationID] == nil {
			r.rows[s.GenerationID] = make(map[string]*domain.Scene)
		}
		r.rows[s.GenerationID][s.SceneID] = &s
		r.order[s.GenerationID] = append(r.order[s.GenerationID], s.SceneID)
	}
	return nil
}

func (r *fakeSceneRepo) Get(ctx context.Context, generationID, sceneID string) (*domain.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[generationID][sceneID]
	if !ok {
		return nil, sgserrors.NewAPIError(sgserrors.ErrSceneNotFound, "", nil)
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSceneRepo) ListByGeneration(ctx context.Context, generationID string) ([]domain.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Scene
	for _, id := range r.order[generationID] {
		out = append(out, *r.rows[generationID][id])
	}
	return out, nil
}

func (r *fakeSceneRepo) UpdateProgress(ctx context.Context, generationID, sceneID string, status string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.rows[generationID][sceneID]
	s.Status, s.Progress = status, progress
	return nil
}

func (r *fakeSceneRepo) UpdateRendered(ctx context.Context, generationID, sceneID, assetPath, assetURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.rows[generationID][sceneID]
	s.Status, s.Progress, s.RenderedAssetPath, s.RenderedAssetURL = domain.SceneStatusCompleted, 100, assetPath, assetURL
	return nil
}

func (r *fakeSceneRepo) UpdateFailed(ctx context.Context, generationID, sceneID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.rows[generationID][sceneID]
	s.Status, s.Error = domain.SceneStatusFailed, errMsg
	return nil
}

func (r *fakeSceneRepo) UpdateDebugFrames(ctx context.Context, generationID, sceneID string, urls []string) error {
	return nil
}

// fakeStorage is an in-memory AssetRepository: "uploading" just records the
// key, "downloading" writes a tiny placeholder file so phase 4's concat step
// has something to read.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: make(map[string][]byte)} }

func (s *fakeStorage) GetPresignedURL(ctx context.Context, key string, d time.Duration) (string, error) {
	return "https://example.test/" + key, nil
}
func (s *fakeStorage) GetPresignedPutURL(ctx context.Context, key, contentType string, d time.Duration) (string, error) {
	return "https://example.test/" + key, nil
}
func (s *fakeStorage) UploadFile(ctx context.Context, key, filePath, contentType string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return "https://example.test/" + key, nil
}
func (s *fakeStorage) DownloadFile(ctx context.Context, key, destPath string) error {
	s.mu.Lock()
	data, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		data = []byte("placeholder")
	}
	return os.WriteFile(destPath, data, 0o644)
}
func (s *fakeStorage) DownloadURL(ctx context.Context, url, destPath string) error {
	return os.WriteFile(destPath, []byte("placeholder"), 0o644)
}
func (s *fakeStorage) DeleteFile(ctx context.Context, key string) error   { return nil }
func (s *fakeStorage) DeletePrefix(ctx context.Context, prefix string) error { return nil }
func (s *fakeStorage) HealthCheck(ctx context.Context) error              { return nil }

// fakeLLM returns a fixed scenario response.
type fakeLLM struct{ response string }

func (f fakeLLM) Complete(ctx context.Context, prompt string) (string, error) { return f.response, nil }

// fakePipeline renders every scene kind it's told to, recording calls and
// optionally failing specific scene ids, without touching ffmpeg.
type fakePipeline struct {
	kind   string
	failOn map[string]bool
}

func (p *fakePipeline) CanHandle(kind string) bool { return kind == p.kind }

func (p *fakePipeline) Render(ctx context.Context, rc pipeline.RenderContext, project domain.SceneProject) (pipeline.RenderResult, error) {
	if p.failOn[project.SceneID] {
		return pipeline.RenderResult{}, sgserrors.NewAPIError(sgserrors.ErrMediaError, "simulated render failure", nil)
	}
	localPath := rc.TempDir + "/" + project.SceneID + ".mp4"
	if err := os.WriteFile(localPath, []byte("fake-video:"+project.SceneID), 0o644); err != nil {
		return pipeline.RenderResult{}, err
	}
	key := "scene-generation/scenes/" + project.SceneID + "/rendered.mp4"
	url, err := rc.Storage.UploadFile(ctx, key, localPath, "video/mp4")
	if err != nil {
		return pipeline.RenderResult{}, err
	}
	return pipeline.RenderResult{AssetPath: key, AssetURL: url}, nil
}

// --- test fixtures ------------------------------------------------------

const bannerScenarioJSON = `{"timeline":[{"id":"s1","kind":"banner","durationSeconds":2,"detailedRequest":{"description":"hello world","textContent":"hello world"}}]}`

func newTestOrchestrator(t *testing.T, failOn map[string]bool) (*Orchestrator, *fakeGenerationRepo, *fakeSceneRepo) {
	t.Helper()
	genRepo := newFakeGenerationRepo()
	sceneRepo := newFakeSceneRepo()
	registry := pipeline.NewRegistry()
	registry.Register(&fakePipeline{kind: domain.SceneKindBanner, failOn: failOn})

	tempRoot := t.TempDir()
	deps := Deps{
		Generations: genRepo,
		Scenes:      sceneRepo,
		Storage:     newFakeStorage(),
		Pipelines:   registry,
		LLM:         fakeLLM{response: bannerScenarioJSON},
		Hub:         realtime.NewHub(zap.NewNop()),
		Logger:      zap.NewNop(),
		TempRoot:    tempRoot,
		Concat:      fakeConcat,
	}
	return New(deps), genRepo, sceneRepo
}

// fakeConcat joins clips by simple byte concatenation so phase 4 runs without
// shelling out to ffmpeg.
func fakeConcat(ctx context.Context, logger *zap.Logger, tmpDir string, clipPaths []string, outPath string) error {
	var joined []byte
	for _, p := range clipPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		joined = append(joined, data...)
	}
	return os.WriteFile(outPath, joined, 0o644)
}

func seedGeneration(genRepo *fakeGenerationRepo, id string, reviewScenario, reviewScenes bool) {
	genRepo.put(&domain.SceneGeneration{
		ID:             id,
		Prompt:         "hello",
		AspectRatio:    1,
		ReviewScenario: reviewScenario,
		ReviewScenes:   reviewScenes,
		Status:         domain.StatusQueued,
		Phase:          domain.Phase0,
	})
}

func TestExecute_SimpleBannerNoReview(t *testing.T) {
	o, genRepo, sceneRepo := newTestOrchestrator(t, nil)
	seedGeneration(genRepo, "gen-1", false, false)

	err := o.Execute(context.Background(), "gen-1")
	require.NoError(t, err)

	g, err := genRepo.Get(context.Background(), "gen-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, g.Status)
	require.Equal(t, 100, g.Progress)
	require.NotEmpty(t, g.ResultURL)
	require.NotEmpty(t, g.ResultPath)

	scenes, err := sceneRepo.ListByGeneration(context.Background(), "gen-1")
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	require.Equal(t, domain.SceneStatusCompleted, scenes[0].Status)
	require.Equal(t, "s1", scenes[0].SceneID)
}

func TestExecute_ScenarioReviewPauseThenContinue(t *testing.T) {
	o, genRepo, _ := newTestOrchestrator(t, nil)
	seedGeneration(genRepo, "gen-2", true, false)

	require.NoError(t, o.Execute(context.Background(), "gen-2"))

	g, err := genRepo.Get(context.Background(), "gen-2")
	require.NoError(t, err)
	require.Equal(t, domain.StatusWaitingForReview, g.Status)
	require.Equal(t, 40, g.Progress)
	require.NotNil(t, g.Scenario)

	// simulate the review edit (PUT /{id}/scenario)
	edited := *g.Scenario
	edited.Timeline[0].DetailedRequest.TextContent = "edited"
	require.NoError(t, genRepo.UpdateScenario(context.Background(), "gen-2", &edited))

	require.NoError(t, o.Continue(context.Background(), "gen-2"))

	g, err = genRepo.Get(context.Background(), "gen-2")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, g.Status)
}

func TestContinue_InvalidStateRejected(t *testing.T) {
	o, genRepo, _ := newTestOrchestrator(t, nil)
	seedGeneration(genRepo, "gen-3", false, false)
	genRepo.UpdatePhaseStatus(context.Background(), "gen-3", domain.Phase0, domain.StatusProcessing, 10)

	err := o.Continue(context.Background(), "gen-3")
	require.Error(t, err)
	apiErr, ok := err.(*sgserrors.APIError)
	require.True(t, ok)
	require.Equal(t, sgserrors.ErrInvalidState.Code, apiErr.Code)
}

func TestExecute_CancelledBeforeStartIsANoOp(t *testing.T) {
	o, genRepo, _ := newTestOrchestrator(t, nil)
	seedGeneration(genRepo, "gen-4", false, false)

	// Mirrors what a DELETE handler would have done before the worker ever
	// picked up the job: Execute's very first status check must honor it
	// rather than starting phase 0 anyway.
	genRepo.mu.Lock()
	genRepo.rows["gen-4"].Status = domain.StatusCancelled
	genRepo.mu.Unlock()

	require.NoError(t, o.Execute(context.Background(), "gen-4"))

	g, err := genRepo.Get(context.Background(), "gen-4")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, g.Status)
}

func TestRunPhase3_PartialFailureStillCompletes(t *testing.T) {
	o, genRepo, sceneRepo := newTestOrchestrator(t, map[string]bool{"s2": true})
	seedGeneration(genRepo, "gen-5", false, false)

	scenario := `{"timeline":[
		{"id":"s1","kind":"banner","durationSeconds":1,"detailedRequest":{"textContent":"a"}},
		{"id":"s2","kind":"banner","durationSeconds":1,"detailedRequest":{"textContent":"b"}},
		{"id":"s3","kind":"banner","durationSeconds":1,"detailedRequest":{"textContent":"c"}}
	]}`
	o.deps.LLM = fakeLLM{response: scenario}

	require.NoError(t, o.Execute(context.Background(), "gen-5"))

	g, err := genRepo.Get(context.Background(), "gen-5")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, g.Status)

	scenes, err := sceneRepo.ListByGeneration(context.Background(), "gen-5")
	require.NoError(t, err)
	require.Len(t, scenes, 3)
	byID := map[string]domain.Scene{}
	for _, s := range scenes {
		byID[s.SceneID] = s
	}
	require.Equal(t, domain.SceneStatusCompleted, byID["s1"].Status)
	require.Equal(t, domain.SceneStatusFailed, byID["s2"].Status)
	require.Equal(t, domain.SceneStatusCompleted, byID["s3"].Status)
}

func TestExecute_NothingToComposeFailsGeneration(t *testing.T) {
	o, genRepo, _ := newTestOrchestrator(t, map[string]bool{"s1": true})
	seedGeneration(genRepo, "gen-6", false, false)

	err := o.Execute(context.Background(), "gen-6")
	require.Error(t, err)

	g, getErr := genRepo.Get(context.Background(), "gen-6")
	require.NoError(t, getErr)
	require.Equal(t, domain.StatusFailed, g.Status)
	require.Contains(t, g.Error, "nothing to compose")
}
