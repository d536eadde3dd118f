package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExpiryWorker periodically retires pending swap requests that outlived the
// configured expiry window.
type ExpiryWorker struct {
	swapService *SwapService
	interval    time.Duration
	logger      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker sweeping at the given interval
func NewExpiryWorker(swapService *SwapService, interval time.Duration, logger zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		swapService: swapService,
		interval:    interval,
		logger:      logger,
	}
}

// Run sweeps until the context is cancelled. Intended to run in its own
// goroutine.
func (w *ExpiryWorker) Run(ctx context.Context) {
	w.logger.Info().
		Dur("interval", w.interval).
		Msg("Swap request expiry worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Swap request expiry worker stopped")
			return
		case <-ticker.C:
			if _, err := w.swapService.ExpireStale(ctx); err != nil {
				w.logger.Error().Err(err).Msg("Expiry sweep failed")
			}
		}
	}
}
