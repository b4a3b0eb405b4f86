package tracking

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNoopTrackerProtocol(t *testing.T) {
	tr := NewNoopTracker()
	assert.Equal(t, StatusRunning, tr.Status())

	assert.NoError(t, tr.RecordParameters(map[string]string{"objective": "sellout"}))
	assert.NoError(t, tr.RecordMetrics(map[string]float64{"solve_seconds": 1.5}, 0))
	assert.NoError(t, tr.RecordArtifacts(context.Background(), map[string][]byte{"scenario.json": []byte("{}")}))
	assert.NoError(t, tr.RecordStructured(context.Background(), map[string]int{"vars": 10}, "model/stats.json"))

	assert.NoError(t, tr.EndRun(StatusFinished))
	assert.Equal(t, StatusFinished, tr.Status())
}

func TestFactoryFallsBackWithoutBucket(t *testing.T) {
	tr := New(context.Background(), Config{}, "run-1", zerolog.Nop())
	_, ok := tr.(*NoopTracker)
	assert.True(t, ok, "empty bucket must select the no-op tracker")
}
