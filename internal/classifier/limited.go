package classifier

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/CollComm/werewolf-sign/internal/models"
)

// LimitOptions bounds how classifier calls are issued across the whole process
type LimitOptions struct {
	MaxConcurrent  int64
	RatePerSecond  float64
	Burst          int
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Limited wraps a Classifier with a shared concurrency cap, an optional rate limit,
// a per-call timeout and bounded retries of transient failures.
type Limited struct {
	next    Classifier
	opts    LimitOptions
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewLimited creates a Limited classifier. Share one instance across invocations.
func NewLimited(next Classifier, opts LimitOptions, logger *slog.Logger) *Limited {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	l := &Limited{
		next:   next,
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
		logger: logger,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return l
}

func (l *Limited) Classify(ctx context.Context, frame models.FrameFile) (string, error) {
	var (
		label string
		err   error
	)

	for attempt := 0; attempt <= l.opts.MaxRetries; attempt++ {
		label, err = l.attempt(ctx, frame)
		if err == nil {
			return label, nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt == l.opts.MaxRetries {
			break
		}

		backoff := time.Duration(float64(l.opts.InitialBackoff) * math.Pow(2, float64(attempt)))
		if backoff > l.opts.MaxBackoff {
			backoff = l.opts.MaxBackoff
		}
		backoff += time.Duration(rand.Int63n(int64(backoff/2) + 1))

		l.logger.Warn("classifier call failed, retrying",
			"frame", frame.Index,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", err
}

func (l *Limited) attempt(ctx context.Context, frame models.FrameFile) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	callCtx := ctx
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}
	return l.next.Classify(callCtx, frame)
}

// IsTransient reports whether a classifier failure is worth retrying
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	status, ok := anthropicStatus(err)
	if !ok {
		status, ok = ollamaStatus(err)
	}
	if ok {
		return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
