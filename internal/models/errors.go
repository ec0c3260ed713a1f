package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUploadMissing is returned when an invocation has no video attached
	ErrUploadMissing = errors.New("no video file uploaded")

	// ErrExtraction is returned when frames could not be sampled from the video
	ErrExtraction = errors.New("frame extraction failed")

	// ErrNoFrames is returned when the sampling tool succeeded but produced nothing
	ErrNoFrames = fmt.Errorf("%w: no frames extracted from video", ErrExtraction)

	// ErrClassification is returned when a classifier call fails and the invocation aborts
	ErrClassification = errors.New("frame classification failed")

	// ErrInterrupted marks failures caused by the invocation's own context ending
	ErrInterrupted = errors.New("interpretation interrupted")

	// ErrCleanup marks failures to remove transient artifacts
	ErrCleanup = errors.New("cleanup failed")
)

// PipelineError ties a failure to the operation and, when known, the frame that caused it
type PipelineError struct {
	Op    string
	Kind  error
	Frame int
	Err   error
}

// Interrupted wraps the error of an ended invocation context
func Interrupted(ctxErr error) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, ctxErr)
}

// NewPipelineError builds a PipelineError that is not tied to a frame
func NewPipelineError(op string, kind, err error) *PipelineError {
	return &PipelineError{Op: op, Kind: kind, Frame: -1, Err: err}
}

// NewFrameError builds a PipelineError for a specific frame
func NewFrameError(op string, kind error, frame int, err error) *PipelineError {
	return &PipelineError{Op: op, Kind: kind, Frame: frame, Err: err}
}

func (e *PipelineError) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("%s: %v (frame %d): %v", e.Op, e.Kind, e.Frame, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Code returns a stable machine-readable identifier for an error kind
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUploadMissing):
		return "upload_missing"
	case errors.Is(err, ErrExtraction):
		return "extraction_failed"
	case errors.Is(err, ErrClassification):
		return "classification_failed"
	case errors.Is(err, ErrCleanup):
		return "cleanup_failed"
	default:
		return "internal"
	}
}
