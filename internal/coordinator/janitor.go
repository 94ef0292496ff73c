package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"teleconsult-backend/pkg/logger"
)

// StartJanitor launches the periodic stale-session sweep. It runs until
// the context is cancelled.
func (r *Registry) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.sweep(now)
			}
		}
	}()
}

// sweep evicts sessions that have had zero participants for longer than
// the stale threshold. Sessions with any participant are never touched,
// regardless of age.
func (r *Registry) sweep(now time.Time) {
	r.mu.RLock()
	var stale []string
	for key, s := range r.sessions {
		if s.stale(now, r.cfg.StaleThreshold) {
			stale = append(stale, key)
		}
	}
	r.mu.RUnlock()

	for _, key := range stale {
		logger.Info("evicting stale call session", zap.String("session_key", key))
		r.Remove(key)
	}
}
