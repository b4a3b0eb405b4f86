package tracking

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// RemoteTracker persists run parameters, metrics and artifacts to S3 under
// <prefix>/<run-id>/. Parameters and metrics accumulate in memory and are
// flushed as a manifest document when the run ends.
type RemoteTracker struct {
	bucket   string
	prefix   string
	runID    string
	uploader *manager.Uploader
	log      zerolog.Logger

	mu      sync.Mutex
	status  string
	params  map[string]string
	metrics []metricPoint
}

type metricPoint struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Step  int     `json:"step"`
	At    string  `json:"at"`
}

// NewRemoteTracker builds a tracker backed by S3. Credential resolution
// follows the default AWS chain; a resolution failure is returned so the
// factory can fall back to the no-op tracker.
func NewRemoteTracker(ctx context.Context, cfg Config, runID string, log zerolog.Logger) (*RemoteTracker, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &RemoteTracker{
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
		runID:    runID,
		uploader: manager.NewUploader(client),
		log:      log.With().Str("component", "tracker").Str("run_id", runID).Logger(),
		status:   StatusRunning,
		params:   make(map[string]string),
	}, nil
}

func (t *RemoteTracker) key(parts ...string) string {
	all := append([]string{t.prefix, t.runID}, parts...)
	return path.Join(all...)
}

func (t *RemoteTracker) upload(ctx context.Context, key string, body []byte) error {
	_, err := t.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &t.bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// RecordParameters implements Tracker.
func (t *RemoteTracker) RecordParameters(params map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range params {
		t.params[k] = v
	}
	return nil
}

// RecordMetrics implements Tracker.
func (t *RemoteTracker) RecordMetrics(metrics map[string]float64, step int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	at := time.Now().UTC().Format(time.RFC3339)
	for name, value := range metrics {
		t.metrics = append(t.metrics, metricPoint{Name: name, Value: value, Step: step, At: at})
	}
	return nil
}

// RecordArtifacts implements Tracker.
func (t *RemoteTracker) RecordArtifacts(ctx context.Context, artifacts map[string][]byte) error {
	for name, body := range artifacts {
		if err := t.upload(ctx, t.key("artifacts", name), body); err != nil {
			return err
		}
		t.log.Debug().Str("artifact", name).Int("bytes", len(body)).Msg("Uploaded artifact")
	}
	return nil
}

// RecordStructured implements Tracker.
func (t *RemoteTracker) RecordStructured(ctx context.Context, value interface{}, p string) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal structured record %s: %w", p, err)
	}
	return t.upload(ctx, t.key(p), body)
}

// EndRun implements Tracker. The accumulated manifest (status, parameters,
// metrics) is flushed to S3; flush failures only log, the run outcome is
// already decided.
func (t *RemoteTracker) EndRun(status string) error {
	t.mu.Lock()
	t.status = status
	manifest := struct {
		RunID   string            `json:"run_id"`
		Status  string            `json:"status"`
		Params  map[string]string `json:"params"`
		Metrics []metricPoint     `json:"metrics"`
		EndedAt string            `json:"ended_at"`
	}{
		RunID:   t.runID,
		Status:  status,
		Params:  t.params,
		Metrics: t.metrics,
		EndedAt: time.Now().UTC().Format(time.RFC3339),
	}
	t.mu.Unlock()

	body, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal run manifest: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := t.upload(ctx, t.key("manifest.json"), body); err != nil {
		t.log.Warn().Err(err).Msg("Failed to flush run manifest")
	}
	return nil
}

// Status implements Tracker.
func (t *RemoteTracker) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
