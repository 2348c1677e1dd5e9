// Package cleanup runs the background cache maintenance loop.
package cleanup

import (
	"time"

	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/manager"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

// Worker periodically sweeps expired cache entries. The sweep is supplementary
// hygiene only; correctness-critical invalidation happens synchronously in the
// propagation path.
type Worker struct {
	cacheManager *manager.Manager
	logger       *logging.ChanneledLogger
	stop         chan struct{}
}

// NewWorker creates a cleanup worker for the given cache manager.
func NewWorker(cacheManager *manager.Manager, logger *logging.ChanneledLogger) *Worker {
	return &Worker{
		cacheManager: cacheManager,
		logger:       logger,
		stop:         make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Stop terminates the sweep loop.
func (w *Worker) Stop() {
	close(w.stop)
}

func (w *Worker) run() {
	ticker := time.NewTicker(config.CacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			removed := w.cacheManager.SweepExpired()
			if w.logger != nil && removed > 0 {
				w.logger.Cache().Info("Cache sweep completed", "removed", removed, "duration", time.Since(start))
			}
		case <-w.stop:
			if w.logger != nil {
				w.logger.Shutdown().Info("Cache cleanup worker stopped")
			}
			return
		}
	}
}
