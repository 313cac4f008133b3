// Package pipeline implements the per-scene-kind renderers: video, banner,
// overlay and picture-in-picture. Every pipeline shares the same output
// conventions (mp4, h.264 yuv420p, aac audio, even dimensions, faststart)
// through the helpers in this file.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// VideoInfo is the ffprobe-derived metadata of a media file.
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64
	FPS      float64
}

// Probe reads width/height/duration/fps via ffprobe.
func Probe(ctx context.Context, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	var info VideoInfo
	for _, line := range strings.Split(string(out), "\n") {
		kv := strings.SplitN(strings.TrimSpace(line), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "width":
			fmt.Sscanf(kv[1], "%d", &info.Width)
		case "height":
			fmt.Sscanf(kv[1], "%d", &info.Height)
		case "duration":
			fmt.Sscanf(kv[1], "%f", &info.Duration)
		case "r_frame_rate":
			var num, den float64
			if n, _ := fmt.Sscanf(kv[1], "%f/%f", &num, &den); n == 2 && den != 0 {
				info.FPS = num / den
			}
		}
	}
	if info.Width == 0 || info.Height == 0 {
		return VideoInfo{}, fmt.Errorf("ffprobe returned no stream dimensions for %s", path)
	}
	return info, nil
}

// EvenDim rounds n down to the nearest even integer, matching ffmpeg's
// `trunc(x/2)*2` scale-filter convention used by EncodeFrameSequence.
func EvenDim(n int) int {
	return (n / 2) * 2
}

// TrimAndLetterbox trims [from,to) from srcPath and scales/pads the result
// to width×height, centred. Output is h.264 yuv420p mp4 with
// faststart, audio re-encoded to aac when present.
func TrimAndLetterbox(ctx context.Context, logger *zap.Logger, srcPath, outPath string, from, to float64, width, height int) error {
	vf := fmt.Sprintf(
		"scale=w=%d:h=%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,format=yuv420p",
		width, height, width, height,
	)
	args := []string{
		"-ss", fmt.Sprintf("%.3f", from),
		"-to", fmt.Sprintf("%.3f", to),
		"-i", srcPath,
		"-vf", vf,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-y", outPath,
	}
	return runFFmpeg(ctx, logger, "trim+letterbox", args)
}

// ExtractAudio pulls the audio track from srcPath into a standalone mp3 at
// outPath, for phase 0's transcription step. Videos with no audio
// stream produce a ffmpeg error, which phase 0 treats like any other
// per-resource failure.
func ExtractAudio(ctx context.Context, logger *zap.Logger, srcPath, outPath string) error {
	args := []string{
		"-i", srcPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-y", outPath,
	}
	return runFFmpeg(ctx, logger, "extract-audio", args)
}

// Overlay composites overlayPath (a PNG of the same dimensions as basePath)
// onto basePath for the base clip's full duration.
func Overlay(ctx context.Context, logger *zap.Logger, basePath, overlayPath, outPath string) error {
	args := []string{
		"-i", basePath,
		"-i", overlayPath,
		"-filter_complex", "[0:v][1:v]overlay=0:0:format=auto",
		"-c:a", "copy",
		"-c:v", "libx264",
		"-movflags", "+faststart",
		"-y", outPath,
	}
	return runFFmpeg(ctx, logger, "overlay", args)
}

// PiPOverlay scales secondaryPath to (pipW, pipH) and composites it onto
// basePath at the given corner with insetPx padding.
func PiPOverlay(ctx context.Context, logger *zap.Logger, basePath, secondaryPath, outPath string, pipW, pipH int, corner string, insetPx int) error {
	position := pipPosition(corner, insetPx)
	filter := fmt.Sprintf("[1:v]scale=%d:%d[pip];[0:v][pip]overlay=%s:format=auto", pipW, pipH, position)
	args := []string{
		"-i", basePath,
		"-i", secondaryPath,
		"-filter_complex", filter,
		"-c:a", "copy",
		"-c:v", "libx264",
		"-movflags", "+faststart",
		"-y", outPath,
	}
	return runFFmpeg(ctx, logger, "pip-overlay", args)
}

func pipPosition(corner string, inset int) string {
	switch corner {
	case "top-left":
		return fmt.Sprintf("%d:%d", inset, inset)
	case "bottom-left":
		return fmt.Sprintf("%d:main_h-overlay_h-%d", inset, inset)
	case "bottom-right":
		return fmt.Sprintf("main_w-overlay_w-%d:main_h-overlay_h-%d", inset, inset)
	case "top-right":
		fallthrough
	default:
		return fmt.Sprintf("main_w-overlay_w-%d:%d", inset, inset)
	}
}

// EncodeFrameSequence encodes framePattern (an ffmpeg sprintf-style glob,
// e.g. "frame-%06d.png") at fps into an mp4, forcing even dimensions
//.
func EncodeFrameSequence(ctx context.Context, logger *zap.Logger, frameDir, framePattern string, fps int, outPath string) error {
	args := []string{
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", frameDir + "/" + framePattern,
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2,format=yuv420p",
		"-c:v", "libx264",
		"-movflags", "+faststart",
		"-y", outPath,
	}
	return runFFmpeg(ctx, logger, "frame-sequence-encode", args)
}

// ConcatFiles concatenates clipPaths in order into outPath, re-encoding to
// the shared codec conventions.
func ConcatFiles(ctx context.Context, logger *zap.Logger, tmpDir string, clipPaths []string, outPath string) error {
	concatListPath := tmpDir + "/concat.txt"
	f, err := os.Create(concatListPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	for _, p := range clipPaths {
		if _, err := fmt.Fprintf(f, "file '%s'\n", p); err != nil {
			f.Close()
			return fmt.Errorf("failed to write concat entry: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close concat list: %w", err)
	}

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", concatListPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-y", outPath,
	}
	return runFFmpeg(ctx, logger, "concat", args)
}

// ExtractFrame writes the frame at atSeconds into outPath as a PNG.
func ExtractFrame(ctx context.Context, logger *zap.Logger, videoPath string, atSeconds float64, outPath string) error {
	args := []string{
		"-ss", fmt.Sprintf("%.3f", atSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		"-y", outPath,
	}
	return runFFmpeg(ctx, logger, "extract-frame", args)
}

func runFFmpeg(ctx context.Context, logger *zap.Logger, label string, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		logger.Error("ffmpeg command failed",
			zap.String("stage", label),
			zap.String("output", string(output)),
			zap.Error(err),
		)
		return fmt.Errorf("ffmpeg %s failed: %w", label, err)
	}
	return nil
}

// detectAvailableFont probes the usual container font install locations,
// first hit wins.
func detectAvailableFont(logger *zap.Logger) string {
	fontPaths := []string{
		"/usr/share/fonts/ttf-dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
		"/usr/share/fonts/truetype/liberation2/LiberationSans-Bold.ttf",
	}
	for _, path := range fontPaths {
		if _, err := os.Stat(path); err == nil {
			logger.Info("font detected for text rendering", zap.String("font_path", path))
			return path
		}
	}
	logger.Warn("no preferred fonts found, falling back to gg's default face")
	return ""
}

// wrapText greedily wraps text to fit within maxCharsPerLine
// (word-boundary wrapping, newline-preserving).
func wrapText(text string, maxCharsPerLine int) []string {
	if maxCharsPerLine < 1 {
		maxCharsPerLine = 1
	}
	var lines []string
	for _, rawLine := range strings.Split(text, "\n") {
		words := strings.Fields(rawLine)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		var current []string
		currentLen := 0
		for _, word := range words {
			wordLen := utf8.RuneCountInString(word)
			additional := wordLen
			if currentLen > 0 {
				additional++
			}
			if currentLen+additional > maxCharsPerLine && currentLen > 0 {
				lines = append(lines, strings.Join(current, " "))
				current = []string{word}
				currentLen = wordLen
				continue
			}
			if currentLen > 0 {
				currentLen++
			}
			current = append(current, word)
			currentLen += wordLen
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
	}
	return lines
}
