// Package cleanup removes the transient files an invocation creates.
package cleanup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/CollComm/werewolf-sign/internal/models"
)

// Scope tracks paths that must be removed when an invocation ends.
// Release is meant to be deferred right after the scope is created.
type Scope struct {
	mu       sync.Mutex
	paths    []string
	released bool
	logger   *slog.Logger
	onFail   func(path string, err error)
	remove   func(path string) error
}

// NewScope creates an empty Scope
func NewScope(logger *slog.Logger) *Scope {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scope{logger: logger, remove: os.RemoveAll}
}

// UseRemover replaces os.RemoveAll as the removal function. nil restores the default.
func (s *Scope) UseRemover(fn func(path string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = os.RemoveAll
	}
	s.remove = fn
}

// OnFailure registers a hook called for every path that could not be removed
func (s *Scope) OnFailure(fn func(path string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFail = fn
}

// Track adds a file or directory to the scope
func (s *Scope) Track(path string) {
	if path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

// Release removes every tracked path, newest first. Paths that are already gone are not
// failures. Failures are logged and returned joined; they never stop the other removals.
// Calling Release more than once is a no-op.
func (s *Scope) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	paths := s.paths
	onFail := s.onFail
	remove := s.remove
	s.mu.Unlock()

	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		path := paths[i]
		if err := remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove transient artifact", "path", path, "error", err)
			if onFail != nil {
				onFail(path, err)
			}
			errs = append(errs, fmt.Errorf("%w: %s: %w", models.ErrCleanup, path, err))
			continue
		}
		s.logger.Debug("removed transient artifact", "path", path)
	}
	return errors.Join(errs...)
}
