package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/CollComm/werewolf-sign/internal/classifier"
	"github.com/CollComm/werewolf-sign/internal/cleanup"
	"github.com/CollComm/werewolf-sign/internal/metrics"
	"github.com/CollComm/werewolf-sign/internal/models"
)

// FrameExtractor samples frames from a video into a directory
type FrameExtractor interface {
	Extract(ctx context.Context, videoPath, outputDir string) ([]models.FrameFile, error)
}

// FrameLoader fills in the raw bytes of an extracted frame
type FrameLoader interface {
	Load(ctx context.Context, frame models.FrameFile) (models.FrameFile, error)
}

// Options tunes a Processor
type Options struct {
	// Workers bounds how many frames of one video are classified at once. 1 is strictly sequential.
	Workers           int
	FailurePolicy     FailurePolicy
	DedupFrames       bool
	InvocationTimeout time.Duration
	// RemoveArtifact deletes a transient path when the invocation ends. nil means os.RemoveAll.
	RemoveArtifact func(path string) error
}

// Processor turns an uploaded video into an ordered sequence of gesture labels
type Processor struct {
	extractor  FrameExtractor
	loader     FrameLoader
	classifier classifier.Classifier
	logger     *slog.Logger
	opts       Options
}

// NewProcessor creates a Processor
func NewProcessor(ext FrameExtractor, loader FrameLoader, cls classifier.Classifier, logger *slog.Logger, opts Options) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = PolicyIsolate
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		extractor:  ext,
		loader:     loader,
		classifier: cls,
		logger:     logger,
		opts:       opts,
	}
}

// Interpret runs one invocation and returns one label per sampled frame, in frame order.
// The upload and every derived artifact are removed before it returns, whatever the outcome.
func (p *Processor) Interpret(ctx context.Context, upload models.VideoUpload) (models.InterpretationSequence, error) {
	results, err := p.InterpretDetailed(ctx, upload)
	if err != nil {
		return nil, err
	}
	return models.Labels(results), nil
}

// InterpretDetailed is Interpret returning the per-frame results
func (p *Processor) InterpretDetailed(ctx context.Context, upload models.VideoUpload) (results []models.ClassificationResult, err error) {
	if upload.Path == "" {
		return nil, models.NewPipelineError("interpret", models.ErrUploadMissing, errors.New("upload has no path"))
	}

	invocationID := upload.ID
	if invocationID == "" {
		invocationID = uuid.NewString()
	}
	log := p.logger.With("invocation_id", invocationID)

	ctx, span := otel.Tracer("analyzer").Start(ctx, "Processor.Interpret")
	defer span.End()
	span.SetAttributes(
		attribute.String("invocation.id", invocationID),
		attribute.String("upload.name", upload.OriginalName),
		attribute.Int64("upload.size_bytes", upload.SizeBytes),
	)

	if p.opts.InvocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.InvocationTimeout)
		defer cancel()
	}

	metrics.ActiveInterpretations.Inc()
	defer metrics.ActiveInterpretations.Dec()
	start := time.Now()

	framesDir := upload.FramesDir()
	scope := cleanup.NewScope(log)
	scope.OnFailure(func(string, error) { metrics.CleanupFailuresTotal.Inc() })
	scope.UseRemover(p.opts.RemoveArtifact)
	scope.Track(upload.Path)
	scope.Track(framesDir)

	tracker := newStateTracker(log)
	defer func() {
		if cerr := scope.Release(); cerr != nil {
			log.Warn("cleanup incomplete", "error", cerr)
		}

		status := "completed"
		if err != nil {
			status = models.Code(err)
			tracker.fail(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.InterpretationsTotal.WithLabelValues(status).Inc()
		metrics.StageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	}()

	if _, statErr := os.Stat(upload.Path); statErr != nil {
		return nil, models.NewPipelineError("interpret", models.ErrUploadMissing, statErr)
	}

	log.Info("interpreting video", "upload", upload.OriginalName, "size_bytes", upload.SizeBytes)

	tracker.to(StateExtracting)
	frames, err := p.extract(ctx, upload.Path, framesDir)
	if err != nil {
		log.Error("frame extraction failed", "error", err)
		return nil, err
	}

	results, err = p.classifyAll(ctx, log, tracker, frames)
	if err != nil {
		log.Error("frame classification aborted", "error", err)
		return nil, err
	}

	tracker.to(StateAggregating)
	if len(results) != len(frames) {
		return nil, fmt.Errorf("aggregate: have %d results for %d frames", len(results), len(frames))
	}

	tracker.to(StateDone)
	log.Info("interpretation complete", "frames", len(results), "duration", time.Since(start).Round(time.Millisecond))
	return results, nil
}

func (p *Processor) extract(ctx context.Context, videoPath, framesDir string) ([]models.FrameFile, error) {
	start := time.Now()
	ctx, span := otel.Tracer("analyzer").Start(ctx, "extract_frames")
	defer span.End()

	frames, err := p.extractor.Extract(ctx, videoPath, framesDir)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, models.ErrInterrupted) {
			err = models.NewPipelineError("extract", models.ErrExtraction, models.Interrupted(ctxErr))
		} else if !errors.Is(err, models.ErrExtraction) {
			err = models.NewPipelineError("extract", models.ErrExtraction, err)
		}
		span.RecordError(err)
		return nil, err
	}
	if len(frames) == 0 {
		return nil, models.NewPipelineError("extract", models.ErrNoFrames, errors.New("extractor returned no frames"))
	}
	for i, f := range frames {
		if f.Index != i {
			return nil, models.NewPipelineError("extract", models.ErrExtraction,
				fmt.Errorf("frame at position %d has index %d", i, f.Index))
		}
	}

	span.SetAttributes(attribute.Int("frames.count", len(frames)))
	metrics.FramesExtractedTotal.Add(float64(len(frames)))
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	return frames, nil
}

func (p *Processor) classifyAll(ctx context.Context, log *slog.Logger, tracker *stateTracker, frames []models.FrameFile) ([]models.ClassificationResult, error) {
	start := time.Now()
	results := make([]models.ClassificationResult, len(frames))

	var dedup *frameDedup
	if p.opts.DedupFrames {
		dedup = newFrameDedup()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, frame := range frames {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			tracker.classifying(frame.Index, len(frames))
			res, err := p.classifyFrame(gctx, log, frame, dedup)
			results[frame.Index] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, models.NewPipelineError("classify", models.ErrClassification, models.Interrupted(err))
	}

	metrics.StageDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	return results, nil
}

// classifyFrame returns a non-nil error only when the invocation must stop
func (p *Processor) classifyFrame(ctx context.Context, log *slog.Logger, frame models.FrameFile, dedup *frameDedup) (models.ClassificationResult, error) {
	ctx, span := otel.Tracer("analyzer").Start(ctx, "classify_frame")
	defer span.End()
	span.SetAttributes(attribute.Int("frame.index", frame.Index))

	result := models.ClassificationResult{FrameIndex: frame.Index, Label: models.LabelUnknown}

	label, err := p.loadAndClassify(ctx, frame, dedup)
	if err == nil {
		result.Label = label
		outcome := "labeled"
		if label == models.LabelUnknown {
			outcome = "unknown"
		}
		metrics.ClassificationsTotal.WithLabelValues(outcome).Inc()
		log.Debug("frame classified", "frame", frame.Index, "label", label)
		return result, nil
	}

	result.Err = err
	span.RecordError(err)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, models.NewFrameError("classify", models.ErrClassification, frame.Index, models.Interrupted(ctxErr))
	}

	metrics.ClassificationsTotal.WithLabelValues("failed").Inc()
	if p.opts.FailurePolicy == PolicyAbort {
		return result, models.NewFrameError("classify", models.ErrClassification, frame.Index, err)
	}

	log.Warn("frame classification failed, labeling Unknown", "frame", frame.Index, "error", err)
	return result, nil
}

func (p *Processor) loadAndClassify(ctx context.Context, frame models.FrameFile, dedup *frameDedup) (string, error) {
	loaded, err := p.loader.Load(ctx, frame)
	if err != nil {
		return "", err
	}
	if dedup != nil {
		return dedup.classify(ctx, loaded, p.classifier)
	}
	return p.classifier.Classify(ctx, loaded)
}
