// Package tracking records run parameters, metrics and artifacts for
// experiment bookkeeping. Callers depend on the Tracker interface only; the
// factory picks the remote implementation when credentials are available
// and the no-op one otherwise.
package tracking

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Run status values reported through EndRun/Status.
const (
	StatusRunning  = "RUNNING"
	StatusFinished = "FINISHED"
	StatusFailed   = "FAILED"
)

// Tracker is the capability surface for run tracking.
type Tracker interface {
	// RecordParameters attaches run parameters (settings, scope, solver
	// options) to the tracked run.
	RecordParameters(params map[string]string) error
	// RecordMetrics attaches numeric metrics at a step.
	RecordMetrics(metrics map[string]float64, step int) error
	// RecordArtifacts stores named artifact payloads (documents, solution
	// dumps) with the run.
	RecordArtifacts(ctx context.Context, artifacts map[string][]byte) error
	// RecordStructured stores an arbitrary JSON-serializable value at a
	// path within the run's artifact tree.
	RecordStructured(ctx context.Context, value interface{}, path string) error
	// EndRun marks the run finished with a terminal status.
	EndRun(status string) error
	// Status returns the run's current status.
	Status() string
}

// Config selects and configures the tracker implementation.
type Config struct {
	S3Bucket  string // empty disables remote tracking
	S3Prefix  string
	AWSRegion string
}

// New returns a remote tracker when an artifact bucket is configured,
// otherwise a no-op tracker.
func New(ctx context.Context, cfg Config, runID string, log zerolog.Logger) Tracker {
	if cfg.S3Bucket == "" {
		return NewNoopTracker()
	}

	remote, err := NewRemoteTracker(ctx, cfg, runID, log)
	if err != nil {
		log.Warn().Err(err).Msg("Remote tracker unavailable, falling back to no-op")
		return NewNoopTracker()
	}
	return remote
}

// NoopTracker accepts and discards everything. It still tracks run status so
// callers can exercise the full protocol.
type NoopTracker struct {
	mu     sync.Mutex
	status string
}

// NewNoopTracker creates a no-op tracker.
func NewNoopTracker() *NoopTracker {
	return &NoopTracker{status: StatusRunning}
}

// RecordParameters implements Tracker.
func (t *NoopTracker) RecordParameters(map[string]string) error { return nil }

// RecordMetrics implements Tracker.
func (t *NoopTracker) RecordMetrics(map[string]float64, int) error { return nil }

// RecordArtifacts implements Tracker.
func (t *NoopTracker) RecordArtifacts(context.Context, map[string][]byte) error { return nil }

// RecordStructured implements Tracker.
func (t *NoopTracker) RecordStructured(context.Context, interface{}, string) error { return nil }

// EndRun implements Tracker.
func (t *NoopTracker) EndRun(status string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	return nil
}

// Status implements Tracker.
func (t *NoopTracker) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
