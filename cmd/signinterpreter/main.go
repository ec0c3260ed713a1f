package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/CollComm/werewolf-sign/internal/app"
	"github.com/CollComm/werewolf-sign/internal/config"
	"github.com/CollComm/werewolf-sign/internal/logging"
	"github.com/CollComm/werewolf-sign/internal/models"
	"github.com/CollComm/werewolf-sign/internal/storage"
	"github.com/CollComm/werewolf-sign/internal/taxonomy"
	"github.com/CollComm/werewolf-sign/internal/tracing"
)

type frameOutput struct {
	Frame int    `json:"frame"`
	Label string `json:"label"`
	Error string `json:"error,omitempty"`
}

type output struct {
	Interpretations models.InterpretationSequence `json:"interpretations"`
	Frames          []frameOutput                 `json:"frames,omitempty"`
}

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred shutdowns finish before exiting
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	videoRef := flag.String("video", "", "video file path or s3://bucket/key")
	workers := flag.Int("workers", 0, "frames classified concurrently (overrides CLASSIFY_WORKERS)")
	policy := flag.String("policy", "", "per-frame failure policy: isolate or abort")
	verbose := flag.Bool("verbose", false, "include per-frame results")
	publish := flag.String("publish-taxonomy", "", "publish a taxonomy file to TAXONOMY_DATABASE_URL and exit")
	flag.Parse()

	cfg, err := config.Parse()
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *policy != "" {
		cfg.FailurePolicy = *policy
	}
	validate := cfg.Validate
	if *publish != "" {
		validate = cfg.ValidatePublish
	}
	if err := validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}

	logger, closer, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}
	defer closer.Close()

	if *publish != "" {
		if err := publishTaxonomy(ctx, cfg, *publish); err != nil {
			logger.Error("failed to publish taxonomy", "error", err)
			return 1
		}
		logger.Info("taxonomy published", "file", *publish)
		return 0
	}

	if *videoRef == "" {
		fmt.Fprintln(os.Stderr, "Usage: signinterpreter -video path/to/video.mp4|s3://bucket/key [-workers N] [-policy isolate|abort] [-verbose]")
		return 1
	}

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.TracingEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	pipeline, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return 1
	}

	upload, err := stage(ctx, cfg, pipeline.Staging, *videoRef)
	if err != nil {
		logger.Error("failed to stage video", "video", *videoRef, "error", err)
		return 1
	}

	results, err := pipeline.Processor.InterpretDetailed(ctx, upload)
	if err != nil {
		logger.Error("interpretation failed", "code", models.Code(err), "error", err)
		return 1
	}

	if err := json.NewEncoder(os.Stdout).Encode(render(results, *verbose)); err != nil {
		logger.Error("failed to write output", "error", err)
		return 1
	}
	return 0
}

// stage copies the input into staging so the pipeline can delete it afterwards
func stage(ctx context.Context, cfg *config.Config, staging *storage.Staging, ref string) (models.VideoUpload, error) {
	if !storage.IsS3URI(ref) {
		return staging.SaveFile(ref)
	}

	src, err := storage.NewS3Source(ctx, storage.S3Config{Region: cfg.AWSRegion, UsePathStyle: cfg.S3UsePathStyle})
	if err != nil {
		return models.VideoUpload{}, err
	}
	return src.Fetch(ctx, ref, staging)
}

func render(results []models.ClassificationResult, verbose bool) output {
	out := output{Interpretations: models.Labels(results)}
	if !verbose {
		return out
	}
	out.Frames = make([]frameOutput, len(results))
	for i, r := range results {
		out.Frames[i] = frameOutput{Frame: r.FrameIndex, Label: r.Label}
		if r.Err != nil {
			out.Frames[i].Error = r.Err.Error()
		}
	}
	return out
}

func publishTaxonomy(ctx context.Context, cfg *config.Config, path string) error {
	tax, err := taxonomy.LoadFile(path)
	if err != nil {
		return err
	}

	store, err := taxonomy.NewStore(ctx, cfg.TaxonomyDatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}
	return store.Publish(ctx, tax)
}
