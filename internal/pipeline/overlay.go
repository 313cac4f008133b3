package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// OverlayPipeline renders kind=overlay scenes: a trimmed base clip
// with a composited PNG overlay — either a right-hand text panel or a
// centred dim-layer title.
type OverlayPipeline struct {
	fontPath string
}

func NewOverlayPipeline(logger *zap.Logger) *OverlayPipeline {
	return &OverlayPipeline{fontPath: detectAvailableFont(logger)}
}

func (p *OverlayPipeline) CanHandle(kind string) bool {
	return kind == domain.SceneKindOverlay
}

func (p *OverlayPipeline) Render(ctx context.Context, rc RenderContext, project domain.SceneProject) (RenderResult, error) {
	basePath, err := renderTrimmedClip(ctx, rc, project)
	if err != nil {
		return RenderResult{}, err
	}

	width := project.RenderContext.Width
	height := domain.EvenHeight(float64(project.RenderContext.Height))

	overlayPath := filepath.Join(rc.TempDir, project.SceneID+"-overlay.png")
	if err := p.renderOverlayPNG(project, width, height, overlayPath); err != nil {
		return RenderResult{}, sgserrors.NewAPIError(sgserrors.ErrMediaError, err.Error(), nil)
	}

	compositedPath := filepath.Join(rc.TempDir, project.SceneID+"-composited.mp4")
	if err := Overlay(ctx, rc.Logger, basePath, overlayPath, compositedPath); err != nil {
		return RenderResult{}, sgserrors.NewAPIError(sgserrors.ErrMediaError, err.Error(), nil)
	}

	return uploadRenderedScene(ctx, rc, project.SceneID, compositedPath)
}

func (p *OverlayPipeline) renderOverlayPNG(project domain.SceneProject, width, height int, outPath string) error {
	dc := gg.NewContext(width, height)
	dc.SetColor(color.Transparent)
	dc.Clear()

	text := firstNonEmpty(project.Extra.TextContent, project.ScenarioItem.DetailedRequest.TextContent, project.ScenarioItem.DetailedRequest.Description)

	layoutHint := project.Extra.LayoutHint
	if layoutHint == "" {
		layoutHint = "side_panel_right"
	}

	switch layoutHint {
	case "centered_title", "centered":
		p.drawCenteredDimTitle(dc, text, width, height)
	default:
		p.drawSidePanel(dc, text, width, height)
	}

	if err := dc.SavePNG(outPath); err != nil {
		return fmt.Errorf("failed to write overlay png: %w", err)
	}
	return nil
}

// drawSidePanel renders a right-hand panel (30% width, rgba(0,0,0,0.7)) with
// wrapped white text.
func (p *OverlayPipeline) drawSidePanel(dc *gg.Context, text string, width, height int) {
	panelWidth := float64(width) * 0.3
	panelX := float64(width) - panelWidth

	panelAlpha := 0.7 * 255
	dc.SetColor(color.RGBA{0, 0, 0, uint8(panelAlpha)})
	dc.DrawRectangle(panelX, 0, panelWidth, float64(height))
	dc.Fill()

	if text == "" {
		return
	}

	size := math.Min(panelWidth/10, 36)
	if p.fontPath != "" {
		_ = dc.LoadFontFace(p.fontPath, size)
	}
	maxCharsPerLine := int(panelWidth * 0.8 / (size * 0.55))
	lines := wrapText(text, maxCharsPerLine)

	dc.SetColor(color.White)
	lineHeight := size * 1.3
	startY := float64(height)/2 - lineHeight*float64(len(lines)-1)/2
	for i, line := range lines {
		dc.DrawStringAnchored(line, panelX+panelWidth/2, startY+float64(i)*lineHeight, 0.5, 0.5)
	}
}

// drawCenteredDimTitle dims the whole frame and draws a centred title.
func (p *OverlayPipeline) drawCenteredDimTitle(dc *gg.Context, text string, width, height int) {
	dimAlpha := 0.5 * 255
	dc.SetColor(color.RGBA{0, 0, 0, uint8(dimAlpha)})
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()

	if text == "" {
		return
	}

	size := math.Min(float64(width)/18, 64)
	if p.fontPath != "" {
		_ = dc.LoadFontFace(p.fontPath, size)
	}
	maxCharsPerLine := int(float64(width) * 0.8 / (size * 0.55))
	lines := wrapText(text, maxCharsPerLine)
	if len(lines) > 3 {
		lines = lines[:3]
	}

	dc.SetColor(color.White)
	lineHeight := size * 1.2
	startY := float64(height)/2 - lineHeight*float64(len(lines)-1)/2
	for i, line := range lines {
		dc.DrawStringAnchored(line, float64(width)/2, startY+float64(i)*lineHeight, 0.5, 0.5)
	}
}
