package orchestrator

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/internal/pipeline"
)

// phase0Concurrency bounds the per-resource enrichment fan-out so a request
// with many inputs doesn't probe/transcribe/caption them all at once.
const phase0Concurrency = 3

// runPhase0 enriches the raw request with per-resource metadata, transcripts
// and captions. Each resource is wrapped so one failing collaborator
// never fails the whole phase; failures degrade to documented fallbacks
// instead.
func (o *Orchestrator) runPhase0(ctx context.Context, generationID string, g *domain.SceneGeneration) (*domain.EnrichedContext, error) {
	tempDir, err := os.MkdirTemp(o.deps.TempRoot, "sgs-phase0-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	ec := domain.NewEnrichedContext(g.Prompt)
	var mu sync.Mutex

	if err := o.setProgress(ctx, generationID, domain.Phase0, progressInRange(0.10, progressStart, progressPhase0)); err != nil {
		return nil, err
	}

	// enrichVideo swallows per-resource failures, so the group only carries
	// the fan-out; a failed probe or transcript never aborts the phase.
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(phase0Concurrency)
	for _, video := range g.Videos {
		video := video
		group.Go(func() error {
			meta, transcript := o.enrichVideo(groupCtx, tempDir, video)
			mu.Lock()
			ec.VideoMetadata[video.ID] = meta
			if transcript != "" {
				ec.VideoTranscripts[video.ID] = transcript
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := o.setProgress(ctx, generationID, domain.Phase0, progressInRange(0.50, progressStart, progressPhase0)); err != nil {
		return nil, err
	}

	group, groupCtx = errgroup.WithContext(ctx)
	group.SetLimit(phase0Concurrency)
	for _, image := range g.Images {
		image := image
		group.Go(func() error {
			caption := o.describeImage(groupCtx, image)
			mu.Lock()
			ec.ImageCaptions[image.ID] = caption
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// references stay sequential: their notes aggregate into one ordered
	// string
	var notes []string
	for _, ref := range g.References {
		notes = append(notes, o.analyzeReference(ctx, ref))
	}
	ec.ReferenceNotes = strings.Join(notes, "\n")

	if err := o.setProgress(ctx, generationID, domain.Phase0, progressInRange(0.80, progressStart, progressPhase0)); err != nil {
		return nil, err
	}

	if err := o.deps.Generations.UpdateEnrichedContext(ctx, generationID, ec); err != nil {
		return nil, err
	}
	if err := o.setProgress(ctx, generationID, domain.Phase0, progressInRange(1.0, progressStart, progressPhase0)); err != nil {
		return nil, err
	}

	return ec, nil
}

// enrichVideo probes duration/fps/width/height and submits the extracted
// audio track for transcription. A failing probe or transcription
// collaborator substitutes the documented fallback rather than failing the
// phase.
func (o *Orchestrator) enrichVideo(ctx context.Context, tempDir string, video domain.MediaInput) (domain.VideoMetadata, string) {
	logger := o.deps.Logger.With(zap.String("video_id", video.ID))

	srcPath := filepath.Join(tempDir, video.ID+"-src")
	if err := o.deps.Storage.DownloadURL(ctx, video.URL, srcPath); err != nil {
		logger.Warn("failed to download video for phase 0 enrichment, using fallback metadata", zap.Error(err))
		return domain.FallbackVideoMetadata(), ""
	}

	info, err := pipeline.Probe(ctx, srcPath)
	meta := domain.FallbackVideoMetadata()
	if err != nil {
		logger.Warn("failed to probe video, using fallback metadata", zap.Error(err))
	} else {
		meta = domain.VideoMetadata{Duration: info.Duration, FPS: info.FPS, Width: info.Width, Height: info.Height}
	}

	audioPath := filepath.Join(tempDir, video.ID+"-audio.mp3")
	if err := pipeline.ExtractAudio(ctx, o.deps.Logger, srcPath, audioPath); err != nil {
		logger.Warn("failed to extract audio track, omitting transcript", zap.Error(err))
		return meta, ""
	}

	if o.deps.Transcription == nil {
		return meta, ""
	}
	transcript, err := o.deps.Transcription.Transcribe(ctx, audioPath)
	if err != nil {
		logger.Warn("transcription collaborator failed, omitting transcript", zap.Error(err))
		return meta, ""
	}
	return meta, transcript
}

// describeImage submits image to the vision collaborator, falling back to
// the documented pending sentinel on failure.
func (o *Orchestrator) describeImage(ctx context.Context, image domain.MediaInput) string {
	if o.deps.Vision == nil {
		return domain.ImageDescriptionPending
	}
	caption, err := o.deps.Vision.Describe(ctx, image.URL)
	if err != nil {
		o.deps.Logger.Warn("vision collaborator failed, using pending sentinel",
			zap.String("image_id", image.ID), zap.Error(err))
		return domain.ImageDescriptionPending
	}
	return caption
}

// analyzeReference handles one reference: a stored asset (URL or absolute
// path) is analysed via the vision collaborator, otherwise its raw
// identifier is used verbatim.
func (o *Orchestrator) analyzeReference(ctx context.Context, ref string) string {
	if !looksLikeStoredAsset(ref) {
		return ref
	}
	if o.deps.Vision == nil {
		return ref
	}
	notes, err := o.deps.Vision.Describe(ctx, ref)
	if err != nil {
		o.deps.Logger.Warn("failed to analyse reference asset, using raw identifier", zap.String("reference", ref), zap.Error(err))
		return ref
	}
	return notes
}

func looksLikeStoredAsset(ref string) bool {
	if filepath.IsAbs(ref) {
		return true
	}
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}
