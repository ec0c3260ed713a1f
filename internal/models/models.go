package models

import (
	"path/filepath"
	"strings"
)

// LabelUnknown is the label used when no gesture could be determined for a frame
const LabelUnknown = "Unknown"

// VideoUpload represents a staged video awaiting interpretation
type VideoUpload struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	OriginalName string `json:"original_name"`
	SizeBytes    int64  `json:"size_bytes"`
}

// FrameFile represents a single extracted frame
type FrameFile struct {
	Index    int
	Path     string
	RawBytes []byte
}

// ClassificationResult represents the outcome of classifying one frame
type ClassificationResult struct {
	FrameIndex int    `json:"frame"`
	Label      string `json:"label"`
	Err        error  `json:"-"`
}

// Failed reports whether the classifier call for this frame failed
func (r ClassificationResult) Failed() bool {
	return r.Err != nil
}

// InterpretationSequence is the ordered list of labels, one per frame
type InterpretationSequence []string

// Labels collects the labels of the results in frame order
func Labels(results []ClassificationResult) InterpretationSequence {
	seq := make(InterpretationSequence, len(results))
	for i, r := range results {
		seq[i] = r.Label
	}
	return seq
}

// FramesDir is the working directory frames for this upload are sampled into
func (u VideoUpload) FramesDir() string {
	return strings.TrimSuffix(u.Path, filepath.Ext(u.Path)) + "_frames"
}
