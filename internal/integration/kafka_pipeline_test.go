//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/storm-nowcast/internal/adapter/kafka"
	"github.com/couchcryptid/storm-nowcast/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-nowcast/internal/config"
	"github.com/couchcryptid/storm-nowcast/internal/domain"
	"github.com/couchcryptid/storm-nowcast/internal/observability"
	"github.com/couchcryptid/storm-nowcast/internal/pipeline"
	"github.com/couchcryptid/storm-nowcast/internal/radargrid"
)

const (
	testSourceTopic = "test-storm-objects"
	testSinkTopic   = "test-image-manifests"
)

// --- helpers ---

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("storm-nowcast-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryGridSource serves the same in-memory full grid for every request.
type memoryGridSource struct {
	grid *netcdf.FullGrid
}

func (m *memoryGridSource) LoadGrid(_, _ string) (*netcdf.FullGrid, error) {
	return m.grid, nil
}

func newTestGrid(t *testing.T) *netcdf.FullGrid {
	t.Helper()
	geometry, err := radargrid.NewGeometry(55.0, 230.0, 0.01, 0.01)
	require.NoError(t, err)

	values := make([]float64, 4*6)
	for i := range values {
		values[i] = float64(i)
	}
	field, err := radargrid.NewFieldFromValues(4, 6, values)
	require.NoError(t, err)
	return &netcdf.FullGrid{Geometry: geometry, Field: field}
}

func newTestExtractor(t *testing.T, imageDir string) *pipeline.ImageExtractor {
	t.Helper()
	radar := &config.RadarConfig{
		Grid: config.GridConfig{
			NWLatitudeDeg:  55.0,
			NWLongitudeDeg: 230.0,
			LatSpacingDeg:  0.01,
			LonSpacingDeg:  0.01,
			NumRows:        4,
			NumColumns:     6,
		},
		Image: config.ImageConfig{NumRows: 2, NumColumns: 2},
		Fields: []config.FieldConfig{
			{Name: "reflectivity_dbz", HeightsMASL: []int{250}},
		},
	}
	extractor, err := pipeline.NewImageExtractor(
		&memoryGridSource{grid: newTestGrid(t)}, radar, "/grids", imageDir, 2,
		discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return extractor
}

func makeTrackingPayload(t *testing.T, stormID string, validTimeSec int64) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.RawTrackingRecord{
		StormID:      stormID,
		CentroidLat:  54.98,
		CentroidLon:  230.02,
		ValidTimeSec: validTimeSec,
		TrackingKM2:  50.0,
	})
	require.NoError(t, err)
	return payload
}

// readManifest reads a single manifest from the sink consumer.
func readManifest(ctx context.Context, t *testing.T, consumer *kafkago.Reader) domain.ImageManifest {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	var manifest domain.ImageManifest
	require.NoError(t, json.Unmarshal(msg.Value, &manifest), "unmarshal sink message")
	return manifest
}

// --- tests ---

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (Extractor)
// and kafka.Writer (Loader) correctly round-trip a message through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("test-reader-%d", time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}

	payload := makeTrackingPayload(t, "storm-1", 1516749825)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("storm-1"),
		Value: payload,
	}))

	// Extract via kafka.Reader. The consumer group may need time to
	// rebalance before partitions are assigned.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	batch, err := reader.ExtractBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	raw := batch[0]
	assert.Equal(t, []byte("storm-1"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	// Parse and extract images with an in-memory grid.
	storm, err := domain.ParseRawEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "20180123", storm.SPCDate)

	extractor := newTestExtractor(t, t.TempDir())
	manifests, err := extractor.TransformBatch(ctx, []domain.StormObject{storm})
	require.NoError(t, err)
	require.Len(t, manifests, 1)

	value, err := json.Marshal(manifests[0])
	require.NoError(t, err)

	// Load via kafka.Writer.
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	require.NoError(t, writer.LoadBatch(ctx, []domain.OutputEvent{{
		Key:   []byte(manifests[0].ValidTime.UTC().Format(time.RFC3339)),
		Value: value,
	}}))

	// Read from the sink topic and verify the manifest survived.
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := readManifest(ctx, t, consumer)
	assert.Equal(t, "20180123", got.SPCDate)
	if diff := cmp.Diff(manifests[0].Images, got.Images); diff != "" {
		t.Fatalf("manifest images mismatch (-want +got):\n%s", diff)
	}
}

// TestPipelineEndToEnd wires the full pipeline (Reader, ImageExtractor,
// Writer) with real Kafka and verifies manifests for several storm objects
// across two valid times.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("test-pipeline-%d", time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}

	const earlyTime, lateTime = int64(1516749825), int64(1516750125)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("storm-a"), Value: makeTrackingPayload(t, "storm-a", earlyTime)},
		kafkago.Message{Key: []byte("storm-b"), Value: makeTrackingPayload(t, "storm-b", earlyTime)},
		kafkago.Message{Key: []byte("storm-c"), Value: makeTrackingPayload(t, "storm-c", lateTime)},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	imageDir := t.TempDir()
	p := pipeline.New(reader, newTestExtractor(t, imageDir), writer,
		discardLogger(), observability.NewMetricsForTesting(), 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	// One manifest per valid time. They may arrive across multiple sink
	// messages depending on how the batch was cut.
	stormsByTime := map[int64]map[string]bool{}
	for {
		manifest := readManifest(ctx, t, consumer)
		key := manifest.ValidTime.Unix()
		if stormsByTime[key] == nil {
			stormsByTime[key] = map[string]bool{}
		}
		for _, ref := range manifest.Images {
			assert.Equal(t, "reflectivity_dbz", ref.FieldName)
			assert.Equal(t, 250, ref.HeightMetres)
			stormsByTime[key][ref.StormID] = true

			set, err := netcdf.ReadImageSet(ref.FilePath)
			require.NoError(t, err)
			assert.Contains(t, set.StormIDs, ref.StormID)
		}
		if len(stormsByTime[earlyTime]) == 2 && len(stormsByTime[lateTime]) == 1 {
			break
		}
	}

	assert.True(t, stormsByTime[earlyTime]["storm-a"])
	assert.True(t, stormsByTime[earlyTime]["storm-b"])
	assert.True(t, stormsByTime[lateTime]["storm-c"])

	pipelineCancel()
	require.NoError(t, <-errCh)
}

// TestPipelinePoisonPill verifies that an unparseable message is skipped and
// the pipeline continues processing valid messages.
func TestPipelinePoisonPill(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("test-poison-%d", time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("good"), Value: makeTrackingPayload(t, "storm-ok", 1516749825)},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, newTestExtractor(t, t.TempDir()), writer,
		discardLogger(), observability.NewMetricsForTesting(), 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	manifest := readManifest(ctx, t, consumer)
	require.Len(t, manifest.Images, 1)
	assert.Equal(t, "storm-ok", manifest.Images[0].StormID)

	// Verify no second manifest arrives (the poison pill was skipped).
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
