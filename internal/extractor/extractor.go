package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/CollComm/werewolf-sign/internal/models"
)

const (
	framePrefix  = "frame_"
	frameSuffix  = ".jpg"
	framePattern = "frame_%04d.jpg"
)

// Options configures frame sampling
type Options struct {
	FFmpegPath   string
	Interval     float64 // seconds between sampled frames
	MaxFrames    int
	ProbeTimeout time.Duration
}

// Extractor samples still frames from a video with ffmpeg
type Extractor struct {
	opts   Options
	logger *slog.Logger
	probe  func(videoPath string) (float64, error)
}

// New creates an Extractor
func New(opts Options, logger *slog.Logger) *Extractor {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Extractor{opts: opts, logger: logger}
	e.probe = e.probeDuration
	return e
}

// Extract samples frames from videoPath into outputDir and returns them in extraction order
func (e *Extractor) Extract(ctx context.Context, videoPath, outputDir string) ([]models.FrameFile, error) {
	if e.opts.Interval <= 0 || e.opts.MaxFrames <= 0 {
		return nil, models.NewPipelineError("extract", models.ErrExtraction,
			fmt.Errorf("invalid sampling parameters: interval=%v maxFrames=%d", e.opts.Interval, e.opts.MaxFrames))
	}

	if _, err := os.Stat(videoPath); err != nil {
		return nil, models.NewPipelineError("extract", models.ErrExtraction,
			fmt.Errorf("video file is not readable at path '%s': %w", videoPath, err))
	}

	input, err := filepath.Abs(videoPath)
	if err != nil {
		return nil, models.NewPipelineError("extract", models.ErrExtraction, err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, models.NewPipelineError("extract", models.ErrExtraction,
			fmt.Errorf("failed to create output directory '%s': %w", outputDir, err))
	}

	if duration, err := e.probe(input); err != nil {
		e.logger.Warn("could not probe video duration", "video", videoPath, "error", err)
	} else {
		e.logger.Debug("probed video",
			"duration", duration,
			"expected_frames", expectedFrames(duration, e.opts.Interval, e.opts.MaxFrames),
		)
	}

	e.logger.Debug("extracting frames",
		"video", videoPath,
		"output", outputDir,
		"interval", e.opts.Interval,
		"max_frames", e.opts.MaxFrames,
	)

	if err := e.run(ctx, SampleArgs(input, outputDir, e.opts.Interval, e.opts.MaxFrames)); err != nil {
		return nil, err
	}

	frames, err := collectFrames(outputDir, e.opts.MaxFrames)
	if err != nil {
		return nil, err
	}

	// A clip shorter than one interval can come back empty from the fps filter.
	if len(frames) == 0 {
		e.logger.Debug("no frames at interval, falling back to first frame", "video", videoPath)
		if err := e.run(ctx, FirstFrameArgs(input, outputDir)); err != nil {
			return nil, err
		}
		if frames, err = collectFrames(outputDir, e.opts.MaxFrames); err != nil {
			return nil, err
		}
	}

	if len(frames) == 0 {
		return nil, models.NewPipelineError("extract", models.ErrNoFrames,
			fmt.Errorf("ffmpeg produced no frames for '%s'", videoPath))
	}

	e.logger.Info("extracted frames", "count", len(frames), "output", outputDir)
	return frames, nil
}

func (e *Extractor) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.opts.FFmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.NewPipelineError("extract", models.ErrExtraction, models.Interrupted(ctxErr))
		}
		return models.NewPipelineError("extract", models.ErrExtraction,
			fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, strings.TrimSpace(string(output))))
	}
	return nil
}

// SampleArgs builds the ffmpeg argument list for interval sampling.
// Each value is a discrete argument; nothing passes through a shell.
func SampleArgs(input, outputDir string, interval float64, maxFrames int) []string {
	stream := ffmpeg.Input(inputURL(input)).Output(
		filepath.Join(outputDir, framePattern),
		ffmpeg.KwArgs{
			"vf":           "fps=1/" + strconv.FormatFloat(interval, 'f', -1, 64),
			"frames:v":     strconv.Itoa(maxFrames),
			"start_number": "0",
			"q:v":          "2",
		},
	)
	return withGlobalArgs(stream.GetArgs())
}

// FirstFrameArgs builds the ffmpeg argument list that grabs only the first frame
func FirstFrameArgs(input, outputDir string) []string {
	stream := ffmpeg.Input(inputURL(input)).Output(
		filepath.Join(outputDir, framePattern),
		ffmpeg.KwArgs{
			"frames:v":     "1",
			"start_number": "0",
			"q:v":          "2",
		},
	)
	return withGlobalArgs(stream.GetArgs())
}

// inputURL pins the file protocol so a name can never be read as an option or another protocol
func inputURL(path string) string {
	return "file:" + path
}

func withGlobalArgs(args []string) []string {
	return append([]string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}, args...)
}

// collectFrames lists sampled frames ordered by their numeric suffix and re-indexes them from zero
func collectFrames(dir string, maxFrames int) ([]models.FrameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, models.NewPipelineError("extract", models.ErrExtraction,
			fmt.Errorf("failed to read frames directory '%s': %w", dir, err))
	}

	type numbered struct {
		num  int
		name string
	}
	var found []numbered
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		num, ok := frameNumber(entry.Name())
		if !ok {
			continue
		}
		found = append(found, numbered{num: num, name: entry.Name()})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].num < found[j].num })
	if maxFrames > 0 && len(found) > maxFrames {
		found = found[:maxFrames]
	}

	frames := make([]models.FrameFile, len(found))
	for i, f := range found {
		frames[i] = models.FrameFile{Index: i, Path: filepath.Join(dir, f.name)}
	}
	return frames, nil
}

func frameNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, framePrefix) || !strings.HasSuffix(strings.ToLower(name), frameSuffix) {
		return 0, false
	}
	digits := name[len(framePrefix) : len(name)-len(frameSuffix)]
	if digits == "" {
		return 0, false
	}
	num, err := strconv.Atoi(digits)
	if err != nil || num < 0 {
		return 0, false
	}
	return num, true
}

func expectedFrames(duration, interval float64, maxFrames int) int {
	n := int(math.Ceil(duration / interval))
	if n < 1 {
		n = 1
	}
	if n > maxFrames {
		n = maxFrames
	}
	return n
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (e *Extractor) probeDuration(videoPath string) (float64, error) {
	out, err := ffmpeg.ProbeWithTimeout(inputURL(videoPath), e.opts.ProbeTimeout, ffmpeg.KwArgs{})
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result probeResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if result.Format.Duration == "" {
		return 0, errors.New("ffprobe reported no duration")
	}
	return strconv.ParseFloat(result.Format.Duration, 64)
}
