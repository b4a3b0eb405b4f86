package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakeSweeper) DeleteOlderThan(cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func TestRunCleanupJobUsesRetentionCutoff(t *testing.T) {
	sweeper := &fakeSweeper{deleted: 3}
	job := NewRunCleanupJob(sweeper, 30*24*time.Hour, zerolog.Nop())

	require.NoError(t, job.Run())

	expected := time.Now().Add(-30 * 24 * time.Hour)
	assert.WithinDuration(t, expected, sweeper.cutoff, time.Minute)
}

func TestRunCleanupJobPropagatesErrors(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("locked")}
	job := NewRunCleanupJob(sweeper, time.Hour, zerolog.Nop())

	assert.Error(t, job.Run())
}

func TestRunCleanupJobName(t *testing.T) {
	assert.Equal(t, "run_cleanup", NewRunCleanupJob(&fakeSweeper{}, time.Hour, zerolog.Nop()).Name())
}
