package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-nowcast/internal/domain"
	"github.com/couchcryptid/storm-nowcast/internal/observability"
	"github.com/couchcryptid/storm-nowcast/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	mu      sync.Mutex
	batches [][]domain.RawEvent
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	m.mu.Lock()
	var batch []domain.RawEvent
	if len(m.batches) > 0 {
		batch = m.batches[0]
		m.batches = m.batches[1:]
	}
	m.mu.Unlock()

	if batch == nil {
		// Block until cancelled to simulate waiting for messages.
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return batch, nil
}

type mockTransformer struct {
	err   error
	calls int
}

func (m *mockTransformer) TransformBatch(_ context.Context, storms []domain.StormObject) ([]domain.ImageManifest, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(storms) == 0 {
		return nil, nil
	}
	return []domain.ImageManifest{
		domain.NewImageManifest(storms[0].ValidTime, []domain.ImageRef{
			{StormID: storms[0].StormID, FieldName: "reflectivity_dbz", HeightMetres: 250},
		}),
	}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.OutputEvent
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) all() []domain.OutputEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutputEvent(nil), m.loaded...)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeRawEvent(t, "storm-1", 1516749825)

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	tfm := &mockTransformer{}
	ldr := &mockLoader{}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)

	loaded := ldr.all()
	require.Len(t, loaded, 1)

	var manifest domain.ImageManifest
	require.NoError(t, json.Unmarshal(loaded[0].Value, &manifest))
	assert.Equal(t, "20180123", manifest.SPCDate)
	require.Len(t, manifest.Images, 1)
	assert.Equal(t, "storm-1", manifest.Images[0].StormID)

	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, will block
	tfm := &mockTransformer{}
	ldr := &mockLoader{}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.all())
}

func TestPipeline_Run_SkipsUnparseableMessages(t *testing.T) {
	committed := make(map[string]bool)
	bad := domain.RawEvent{
		Value:  []byte("not json"),
		Commit: commitRecorder(committed, "bad"),
	}
	good := makeRawEvent(t, "storm-2", 1516749825)
	good.Commit = commitRecorder(committed, "good")

	ext := &mockExtractor{batches: [][]domain.RawEvent{{bad, good}}}
	tfm := &mockTransformer{}
	ldr := &mockLoader{}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	assert.Len(t, ldr.all(), 1)
	assert.True(t, committed["bad"], "unparseable message must still be committed")
	assert.True(t, committed["good"])
}

func TestPipeline_Run_TransformError(t *testing.T) {
	raw := makeRawEvent(t, "storm-3", 1516749825)

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	tfm := &mockTransformer{err: errors.New("grid not found")}
	ldr := &mockLoader{}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.all())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	committed := make(map[string]bool)
	raw := makeRawEvent(t, "storm-4", 1516749825)
	raw.Commit = commitRecorder(committed, "storm-4")

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	tfm := &mockTransformer{}
	ldr := &mockLoader{err: errors.New("broker unavailable")}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.False(t, committed["storm-4"], "offsets must not be committed when the load fails")
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	committed := make(map[string]bool)
	raw := makeRawEvent(t, "storm-5", 1516749825)
	raw.Topic = "storm-objects"
	raw.Commit = commitRecorder(committed, "storm-5")

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	tfm := &mockTransformer{}
	ldr := &mockLoader{}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.True(t, committed["storm-5"])
}

// --- helpers ---

func commitRecorder(committed map[string]bool, key string) func(context.Context) error {
	return func(_ context.Context) error {
		committed[key] = true
		return nil
	}
}

func makeRawEvent(t *testing.T, stormID string, validTimeSec int64) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.RawTrackingRecord{
		StormID:      stormID,
		CentroidLat:  35.1,
		CentroidLon:  262.3,
		ValidTimeSec: validTimeSec,
		TrackingKM2:  50.0,
	})
	require.NoError(t, err)
	return domain.RawEvent{
		Key:   []byte(stormID),
		Value: data,
	}
}
