package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/CollComm/werewolf-sign/internal/classifier"
	"github.com/CollComm/werewolf-sign/internal/models"
)

// frameDedup classifies byte-identical frames of one invocation once.
// Concurrent requests for the same image share a single in-flight call.
type frameDedup struct {
	group  singleflight.Group
	labels sync.Map
}

func newFrameDedup() *frameDedup {
	return &frameDedup{}
}

func (d *frameDedup) classify(ctx context.Context, frame models.FrameFile, cls classifier.Classifier) (string, error) {
	sum := sha256.Sum256(frame.RawBytes)
	key := hex.EncodeToString(sum[:])

	if label, ok := d.labels.Load(key); ok {
		return label.(string), nil
	}

	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		if label, ok := d.labels.Load(key); ok {
			return label, nil
		}
		label, err := cls.Classify(ctx, frame)
		if err != nil {
			return "", err
		}
		d.labels.Store(key, label)
		return label, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
