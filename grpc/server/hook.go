package server

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rainbow-me/rpc-interceptors/common/logger"
)

// ShutdownHook represents a function to be executed during graceful shutdown
type ShutdownHook struct {
	Name     string                      // Human-readable name for logging
	Priority int                         // Lower number = higher priority (executed first)
	Timeout  time.Duration               // Maximum time allowed for this hook; DefaultHookTimeout when zero
	Hook     func(context.Context) error // The actual cleanup function
}

// ShutdownHooks is a sortable slice of shutdown hooks
type ShutdownHooks []ShutdownHook

func (h ShutdownHooks) Len() int           { return len(h) }
func (h ShutdownHooks) Less(i, j int) bool { return h[i].Priority < h[j].Priority }
func (h ShutdownHooks) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

// ExecuteShutdownHooks runs the hooks in priority order, each bounded by its own timeout and by ctx.
// Hooks left when ctx is done are skipped and reported.
func (s *Server) ExecuteShutdownHooks(ctx context.Context) error {
	hooks := make(ShutdownHooks, len(s.hooks))
	copy(hooks, s.hooks)
	sort.Stable(hooks)

	var errs []error
	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, errors.Wrapf(err, "shutdown hook %s skipped", h.Name))
			continue
		}

		start := time.Now()
		err := runHook(ctx, h)
		if err != nil {
			s.log.Error("shutdown hook failed",
				logger.String("hook", h.Name),
				logger.Duration("duration", time.Since(start)),
				logger.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		s.log.Debug("shutdown hook done", logger.String("hook", h.Name), logger.Duration("duration", time.Since(start)))
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func runHook(ctx context.Context, h ShutdownHook) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- h.Hook(hctx)
	}()

	select {
	case err := <-done:
		return errors.Wrapf(err, "shutdown hook %s", h.Name)
	case <-hctx.Done():
		return errors.Wrapf(hctx.Err(), "shutdown hook %s timed out", h.Name)
	}
}
