// Package jobs runs periodic background maintenance.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/signbridge/backend/internal/store"
)

// RetentionJob prunes recorded sessions past their retention window.
// Sessions carry transcripts of what a user signed and said, so stale
// ones must not accumulate indefinitely.
type RetentionJob struct {
	store     *store.Store
	logger    *log.Logger
	retention time.Duration
	interval  time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewRetentionJob creates a new retention job.
func NewRetentionJob(s *store.Store, logger *log.Logger, retention, interval time.Duration) *RetentionJob {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	return &RetentionJob{
		store:     s,
		logger:    logger,
		retention: retention,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background job.
func (j *RetentionJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("RetentionJob: started (retention=%v, interval=%v)", j.retention, j.interval)
}

// Stop gracefully stops the background job.
func (j *RetentionJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("RetentionJob: stopped")
}

func (j *RetentionJob) run() {
	defer j.wg.Done()

	// Run immediately on start
	j.prune()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.prune()
		case <-j.stopCh:
			return
		}
	}
}

func (j *RetentionJob) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-j.retention)
	pruned, err := j.store.PruneSessionsBefore(ctx, cutoff)
	if err != nil {
		j.logger.Printf("RetentionJob: prune failed: %v", err)
		return
	}
	if pruned > 0 {
		j.logger.Printf("RetentionJob: pruned %d sessions ended before %s", pruned, cutoff.Format(time.RFC3339))
	}
}
