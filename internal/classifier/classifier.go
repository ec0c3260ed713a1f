// Package classifier sends single frames to a vision-language model and turns the
// reply into a gesture label.
package classifier

import (
	"context"
	"log/slog"
	"strings"

	"github.com/CollComm/werewolf-sign/internal/models"
	"github.com/CollComm/werewolf-sign/internal/taxonomy"
)

// Classifier labels a single frame. Implementations return the model's first textual
// reply trimmed, or models.LabelUnknown when there is none.
type Classifier interface {
	Classify(ctx context.Context, frame models.FrameFile) (string, error)
}

// Func adapts a plain function to the Classifier interface
type Func func(ctx context.Context, frame models.FrameFile) (string, error)

func (f Func) Classify(ctx context.Context, frame models.FrameFile) (string, error) {
	return f(ctx, frame)
}

// labelFromText applies the reply rule shared by every backend
func labelFromText(text string, isText bool) string {
	if !isText {
		return models.LabelUnknown
	}
	label := strings.TrimSpace(text)
	if label == "" {
		return models.LabelUnknown
	}
	return label
}

// Labeler canonicalizes backend replies against a taxonomy
type Labeler struct {
	next     Classifier
	taxonomy *taxonomy.Taxonomy
	strict   bool
	logger   *slog.Logger
}

// NewLabeler wraps next. In strict mode replies outside the taxonomy become Unknown.
func NewLabeler(next Classifier, tax *taxonomy.Taxonomy, strict bool, logger *slog.Logger) *Labeler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Labeler{next: next, taxonomy: tax, strict: strict, logger: logger}
}

func (l *Labeler) Classify(ctx context.Context, frame models.FrameFile) (string, error) {
	raw, err := l.next.Classify(ctx, frame)
	if err != nil {
		return "", err
	}

	label, ok := l.taxonomy.Normalize(raw)
	if ok {
		return label, nil
	}

	if l.strict {
		l.logger.Warn("classifier reply is not a taxonomy label",
			"frame", frame.Index,
			"reply", truncate(raw, 80),
			"taxonomy", l.taxonomy.Version,
		)
		return models.LabelUnknown, nil
	}
	return labelFromText(raw, true), nil
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
