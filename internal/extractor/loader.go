package extractor

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/CollComm/werewolf-sign/internal/models"
)

// Loader reads extracted frames into memory
type Loader struct{}

// NewLoader creates a Loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load returns the frame with its raw image bytes filled in
func (l *Loader) Load(ctx context.Context, frame models.FrameFile) (models.FrameFile, error) {
	if err := ctx.Err(); err != nil {
		return frame, err
	}

	data, err := os.ReadFile(frame.Path)
	if err != nil {
		return frame, fmt.Errorf("failed to read frame %d: %w", frame.Index, err)
	}
	if len(data) == 0 {
		return frame, fmt.Errorf("frame %d is empty: '%s'", frame.Index, frame.Path)
	}

	frame.RawBytes = data
	return frame, nil
}

// EncodeBase64 is the only transformation applied to frame bytes before they are sent out
func EncodeBase64(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}
