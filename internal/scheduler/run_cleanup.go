package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// RunSweeper deletes finished runs older than a cutoff. Implemented by the
// results repository.
type RunSweeper interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// RunCleanupJob removes finished scenario runs past their retention window.
// Unfinished runs are never swept; a run stuck in a non-terminal state is an
// operator problem, not garbage.
type RunCleanupJob struct {
	sweeper RunSweeper
	ttl     time.Duration
	log     zerolog.Logger
}

// NewRunCleanupJob creates a cleanup job with the given retention window.
func NewRunCleanupJob(sweeper RunSweeper, ttl time.Duration, log zerolog.Logger) *RunCleanupJob {
	return &RunCleanupJob{
		sweeper: sweeper,
		ttl:     ttl,
		log:     log.With().Str("job", "run_cleanup").Logger(),
	}
}

// Name returns the job name.
func (j *RunCleanupJob) Name() string {
	return "run_cleanup"
}

// Run deletes runs finished before the retention cutoff.
func (j *RunCleanupJob) Run() error {
	cutoff := time.Now().Add(-j.ttl)
	deleted, err := j.sweeper.DeleteOlderThan(cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Swept old runs")
	}
	return nil
}
