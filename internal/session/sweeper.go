package session

import (
	"context"
	"log/slog"
	"time"
)

// RunSweeper evicts expired sessions every interval until ctx is done.
// onEvict, when set, receives the number of sessions removed by each sweep
// that removed any.
func RunSweeper(ctx context.Context, store Store, interval time.Duration, logger *slog.Logger, onEvict func(int)) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Session sweeper shutting down")
			return

		case now := <-ticker.C:
			removed := store.Sweep(now)
			if removed == 0 {
				continue
			}
			logger.Info("Expired sessions removed",
				slog.Int("removed", removed),
				slog.Int("active_sessions", store.Len()),
			)
			if onEvict != nil {
				onEvict(removed)
			}
		}
	}
}
