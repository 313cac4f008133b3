package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	"github.com/scenegenhq/sgs/internal/adapters"
	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/internal/repository"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// BannerPipeline renders kind=banner scenes: an offscreen canvas
// sequence of gradient/solid background, optional foreground image and
// animated word-wrapped text, encoded to mp4.
type BannerPipeline struct {
	fontPath string
}

func NewBannerPipeline(logger *zap.Logger) *BannerPipeline {
	return &BannerPipeline{fontPath: detectAvailableFont(logger)}
}

func (p *BannerPipeline) CanHandle(kind string) bool {
	return kind == domain.SceneKindBanner
}

var imageHintWords = []string{"image", "photo", "picture", "illustration"}

func (p *BannerPipeline) Render(ctx context.Context, rc RenderContext, project domain.SceneProject) (RenderResult, error) {
	width := project.RenderContext.Width
	height := domain.EvenHeight(float64(project.RenderContext.Height))
	fps := project.RenderContext.FPS
	if fps <= 0 {
		fps = 30
	}
	duration := project.ScenarioItem.DurationSeconds
	if duration <= 0 {
		return RenderResult{}, sgserrors.NewAPIError(sgserrors.ErrMediaError, "banner scene requires a positive durationSeconds", nil)
	}
	frameCount := int(math.Ceil(duration * float64(fps)))
	if frameCount < 1 {
		frameCount = 1
	}

	text := firstNonEmpty(project.Extra.TextContent, project.ScenarioItem.DetailedRequest.TextContent, project.ScenarioItem.DetailedRequest.Description)
	fgImage, err := p.resolveForegroundImage(ctx, rc, project)
	if err != nil {
		rc.Logger.Warn("banner foreground image unavailable, continuing text-only",
			zap.String("scene_id", project.SceneID), zap.Error(err))
	}

	framesDir := filepath.Join(rc.TempDir, project.SceneID+"-frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return RenderResult{}, sgserrors.NewAPIError(sgserrors.ErrMediaError, fmt.Sprintf("failed to create frames directory: %v", err), nil)
	}

	isDark := strings.Contains(strings.Join(project.Extra.VisualStyle, ","), "blue")
	animation := firstOf(project.Extra.AnimationHints)

	var debugFrameIdx = map[int]bool{0: true, frameCount / 2: true, frameCount - 1: true}
	var debugFrameURLs []string

	for i := 0; i < frameCount; i++ {
		progress := 1.0
		if frameCount > 1 {
			progress = float64(i) / float64(frameCount-1)
		}

		dc := gg.NewContext(width, height)
		p.drawBackground(dc, width, height, project.Extra.VisualStyle)
		if fgImage != nil {
			drawForeground(dc, fgImage, width, height, progress)
		}
		p.drawText(dc, text, width, height, isDark, animation, progress)

		framePath := filepath.Join(framesDir, fmt.Sprintf("frame-%06d.png", i))
		if err := dc.SavePNG(framePath); err != nil {
			return RenderResult{}, sgserrors.NewAPIError(sgserrors.ErrMediaError, fmt.Sprintf("failed to write banner frame %d: %v", i, err), nil)
		}

		if debugFrameIdx[i] {
			key := repository.DebugFrameKey(project.SceneID, i)
			url, err := rc.Storage.UploadFile(ctx, key, framePath, "image/png")
			if err != nil {
				rc.Logger.Warn("failed to upload debug frame", zap.String("scene_id", project.SceneID), zap.Int("frame", i), zap.Error(err))
				continue
			}
			debugFrameURLs = append(debugFrameURLs, url)
		}
	}

	encodedPath := filepath.Join(rc.TempDir, project.SceneID+"-encoded.mp4")
	if err := EncodeFrameSequence(ctx, rc.Logger, framesDir, "frame-%06d.png", fps, encodedPath); err != nil {
		return RenderResult{}, sgserrors.NewAPIError(sgserrors.ErrMediaError, err.Error(), nil)
	}

	result, err := uploadRenderedScene(ctx, rc, project.SceneID, encodedPath)
	if err != nil {
		return RenderResult{}, err
	}
	result.DebugFrameURLs = debugFrameURLs
	return result, nil
}

func (p *BannerPipeline) drawBackground(dc *gg.Context, width, height int, visualStyle []string) {
	joined := strings.Join(visualStyle, ",")
	switch {
	case strings.Contains(joined, "blue"):
		drawDiagonalGradient(dc, width, height, parseHexColor("#1e3a8a"), parseHexColor("#3b82f6"))
	case strings.Contains(joined, "minimal"):
		dc.SetColor(color.White)
		dc.Clear()
	default:
		drawDiagonalGradient(dc, width, height, parseHexColor("#e5e7eb"), parseHexColor("#f9fafb"))
	}
}

func drawDiagonalGradient(dc *gg.Context, width, height int, from, to color.RGBA) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	maxDist := float64(width + height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			t := float64(x+y) / maxDist
			img.Set(x, y, lerpColor(from, to, t))
		}
	}
	dc.DrawImage(img, 0, 0)
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + t*(float64(b.R)-float64(a.R))),
		G: uint8(float64(a.G) + t*(float64(b.G)-float64(a.G))),
		B: uint8(float64(a.B) + t*(float64(b.B)-float64(a.B))),
		A: 255,
	}
}

func parseHexColor(hex string) color.RGBA {
	hex = strings.TrimPrefix(hex, "#")
	r, _ := strconv.ParseUint(hex[0:2], 16, 8)
	g, _ := strconv.ParseUint(hex[2:4], 16, 8)
	b, _ := strconv.ParseUint(hex[4:6], 16, 8)
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}

// resolveForegroundImage returns the first loadable supplied image, or,
// failing that, an image-generation result when imageHints ask for one
//.
func (p *BannerPipeline) resolveForegroundImage(ctx context.Context, rc RenderContext, project domain.SceneProject) (image.Image, error) {
	for _, img := range project.Inputs.Images {
		localPath := filepath.Join(rc.TempDir, project.SceneID+"-fg"+filepath.Ext(img.URL))
		if err := rc.Storage.DownloadURL(ctx, img.URL, localPath); err != nil {
			rc.Logger.Warn("failed to download banner foreground image, trying next", zap.String("image_id", img.ID), zap.Error(err))
			continue
		}
		decoded, err := decodeImageFile(localPath)
		if err != nil {
			rc.Logger.Warn("failed to decode banner foreground image, trying next", zap.String("image_id", img.ID), zap.Error(err))
			continue
		}
		return decoded, nil
	}

	hints := strings.ToLower(strings.Join(project.ScenarioItem.DetailedRequest.ImageHints, " "))
	wantsGenerated := false
	for _, word := range imageHintWords {
		if strings.Contains(hints, word) {
			wantsGenerated = true
			break
		}
	}
	if !wantsGenerated || rc.ImageGen == nil {
		return nil, nil
	}

	aspect := adapters.ClosestPresetAspect(project.RenderContext.Width, project.RenderContext.Height)
	prompt := firstNonEmpty(project.ScenarioItem.DetailedRequest.Description, project.ScenarioItem.DetailedRequest.Goal, project.Extra.TextContent)
	raw, err := rc.ImageGen.Generate(ctx, prompt, aspect)
	if err != nil {
		return nil, fmt.Errorf("image-gen collaborator failed: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated image: %w", err)
	}
	return img, nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// drawForeground scales img to at most 60% of width/height preserving
// aspect, centred, drop-shadowed, at opacity min(1, 2·progress).
func drawForeground(dc *gg.Context, img image.Image, width, height int, progress float64) {
	opacity := math.Min(1, 2*progress)
	if opacity <= 0 {
		return
	}

	bounds := img.Bounds()
	srcW, srcH := float64(bounds.Dx()), float64(bounds.Dy())
	maxW, maxH := float64(width)*0.6, float64(height)*0.6
	scale := math.Min(maxW/srcW, maxH/srcH)
	dstW, dstH := int(srcW*scale), int(srcH*scale)

	scaled := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, xdraw.Over, nil)

	x := (width - dstW) / 2
	y := (height - dstH) / 2

	shadowOffset := 8
	shadow := image.NewUniform(color.RGBA{0, 0, 0, uint8(120 * opacity)})
	dc.DrawImage(imageWithAlpha(shadow, dstW, dstH, opacity*0.5), x+shadowOffset, y+shadowOffset)

	dc.DrawImage(withAlpha(scaled, opacity), x, y)
}

func imageWithAlpha(src *image.Uniform, w, h int, alpha float64) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	c := src.C.(color.RGBA)
	c.A = uint8(float64(c.A) * alpha)
	draw.Draw(out, out.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return out
}

func withAlpha(src *image.RGBA, alpha float64) image.Image {
	if alpha >= 1 {
		return src
	}
	bounds := src.Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := src.At(x, y).RGBA()
			out.Set(x, y, color.RGBA64{
				R: uint16(float64(r) * alpha), G: uint16(float64(g) * alpha), B: uint16(float64(b) * alpha),
				A: uint16(float64(a) * alpha),
			})
		}
	}
	return out
}

// drawText renders the banner text: bold face at min(width/15,72)px, white
// on dark backgrounds else black, drop shadow, wrapped to 80% of width, at
// most 3 lines, with typewriter/fade-in/immediate animation.
func (p *BannerPipeline) drawText(dc *gg.Context, text string, width, height int, isDark bool, animation string, progress float64) {
	if text == "" {
		return
	}

	switch animation {
	case "typewriter":
		reveal := int(float64(len(text)) * progress)
		if reveal < len(text) {
			text = text[:reveal]
		}
	}

	size := math.Min(float64(width)/15, 72)
	if p.fontPath != "" {
		_ = dc.LoadFontFace(p.fontPath, size)
	}

	maxCharsPerLine := int(float64(width) * 0.8 / (size * 0.55))
	lines := wrapText(text, maxCharsPerLine)
	if len(lines) > 3 {
		lines = lines[:3]
	}

	textColor := color.RGBA{0, 0, 0, 255}
	if isDark {
		textColor = color.RGBA{255, 255, 255, 255}
	}

	opacity := 1.0
	if animation == "fade-in" {
		opacity = math.Min(1, 0.1+0.9*math.Min(1, progress*2))
	}

	lineHeight := size * 1.2
	startY := float64(height)/2 - lineHeight*float64(len(lines)-1)/2

	for i, line := range lines {
		y := startY + float64(i)*lineHeight
		shadowColor := color.RGBA{0, 0, 0, uint8(160 * opacity)}
		dc.SetColor(shadowColor)
		dc.DrawStringAnchored(line, float64(width)/2+3, y+3, 0.5, 0.5)

		c := textColor
		c.A = uint8(255 * opacity)
		dc.SetColor(c)
		dc.DrawStringAnchored(line, float64(width)/2, y, 0.5, 0.5)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
