// Package app wires configuration into a ready-to-use interpretation pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CollComm/werewolf-sign/internal/analyzer"
	"github.com/CollComm/werewolf-sign/internal/classifier"
	"github.com/CollComm/werewolf-sign/internal/config"
	"github.com/CollComm/werewolf-sign/internal/extractor"
	"github.com/CollComm/werewolf-sign/internal/storage"
	"github.com/CollComm/werewolf-sign/internal/taxonomy"
)

// Pipeline bundles the long-lived pieces shared by every invocation
type Pipeline struct {
	Processor *analyzer.Processor
	Staging   *storage.Staging
	Taxonomy  *taxonomy.Taxonomy
}

// NewPipeline resolves the taxonomy, builds the classifier chain and the processor
func NewPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tax, err := taxonomy.Resolve(ctx, cfg.TaxonomySource(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load gesture taxonomy: %w", err)
	}

	cls, err := classifier.New(cfg.ClassifierConfig(), tax, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	staging, err := storage.NewStaging(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	proc := analyzer.NewProcessor(
		extractor.New(cfg.ExtractorOptions(), logger),
		extractor.NewLoader(),
		cls,
		logger,
		cfg.ProcessorOptions(),
	)

	logger.Info("pipeline ready",
		"backend", cfg.ClassifierBackend,
		"workers", cfg.Workers,
		"failure_policy", cfg.FailurePolicy,
		"frame_interval", cfg.FrameInterval,
		"max_frames", cfg.MaxFrames,
	)

	return &Pipeline{Processor: proc, Staging: staging, Taxonomy: tax}, nil
}
