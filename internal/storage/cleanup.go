package storage

import (
	"context"
	"time"

	"github.com/dgellow/mailsift/internal/log"
)

// CleanupManager handles periodic pruning of aged extraction artifacts
type CleanupManager struct {
	storage    Storage
	interval   time.Duration
	maxAge     time.Duration
	maxEntries int
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// NewCleanupManager creates a new cleanup manager. A zero maxAge disables
// age-based pruning; a zero maxEntries disables count-based pruning.
func NewCleanupManager(storage Storage, interval, maxAge time.Duration, maxEntries int) *CleanupManager {
	return &CleanupManager{
		storage:    storage,
		interval:   interval,
		maxAge:     maxAge,
		maxEntries: maxEntries,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start begins the cleanup loop in a goroutine
func (cm *CleanupManager) Start(ctx context.Context) {
	log.LogInfoWithFields("cleanup", "Starting extraction retention sweeper", map[string]any{
		"interval":   cm.interval.String(),
		"maxAge":     cm.maxAge.String(),
		"maxEntries": cm.maxEntries,
	})

	go cm.run(ctx)
}

// Stop gracefully stops the cleanup loop
func (cm *CleanupManager) Stop() {
	log.Logf("Stopping extraction retention sweeper...")
	close(cm.stopChan)
	<-cm.doneChan // Wait for cleanup loop to finish
	log.Logf("Extraction retention sweeper stopped")
}

// run is the main cleanup loop
func (cm *CleanupManager) run(ctx context.Context) {
	defer close(cm.doneChan)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run cleanup immediately on start
	cm.cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.cleanup(ctx)
		case <-cm.stopChan:
			// Final cleanup on shutdown
			cm.cleanup(ctx)
			return
		case <-ctx.Done():
			// Context cancelled
			return
		}
	}
}

// cleanup performs the actual pruning operation
func (cm *CleanupManager) cleanup(ctx context.Context) {
	var cutoff time.Time
	if cm.maxAge > 0 {
		cutoff = time.Now().Add(-cm.maxAge)
	}

	count, err := cm.storage.Prune(ctx, cutoff, cm.maxEntries)
	if err != nil {
		log.LogErrorWithFields("cleanup", "Failed to prune extraction artifacts", map[string]any{
			"error": err.Error(),
		})
		return
	}

	if count > 0 {
		log.LogInfoWithFields("cleanup", "Pruned extraction artifacts", map[string]any{
			"count": count,
		})
	}
}
