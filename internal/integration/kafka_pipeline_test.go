//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/mapbox-geocoder/internal/adapter/kafka"
	"github.com/couchcryptid/mapbox-geocoder/internal/config"
	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
	"github.com/couchcryptid/mapbox-geocoder/internal/observability"
	"github.com/couchcryptid/mapbox-geocoder/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-geocode-requests"
	testSinkTopic   = "test-geocode-results"
)

// stubGeocoder answers every lookup with a fixed placemark, or nothing for
// the address "nowhere".
type stubGeocoder struct{}

func (stubGeocoder) ForwardGeocode(_ context.Context, address string) ([]domain.Placemark, error) {
	if address == "nowhere" {
		return []domain.Placemark{}, nil
	}
	return []domain.Placemark{
		domain.NewPlacemark(domain.Coordinate{Latitude: 30.2672, Longitude: -97.7431}, address+", United States"),
	}, nil
}

func (stubGeocoder) ReverseGeocode(_ context.Context, coord domain.Coordinate) ([]domain.Placemark, error) {
	return []domain.Placemark{domain.NewPlacemark(coord, "Congress Avenue, Austin, Texas")}, nil
}

// publishedResult is a lookup result read back from the sink topic.
type publishedResult struct {
	Key     string
	Headers map[string]string
	Result  struct {
		ID         string `json:"id"`
		Kind       string `json:"kind"`
		Status     string `json:"status"`
		Placemarks []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			PlaceName string  `json:"place_name"`
		} `json:"placemarks"`
	}
}

func readResult(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedResult {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	var out publishedResult
	out.Key = string(msg.Key)
	out.Headers = make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out.Headers[h.Key] = string(h.Value)
	}
	require.NoError(t, json.Unmarshal(msg.Value, &out.Result), "unmarshal sink message")
	return out
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func publish(ctx context.Context, t *testing.T, broker string, msgs ...kafkago.Message) {
	t.Helper()
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader and
// kafka.Writer round-trip a lookup through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	payload := []byte(`{"id":"lookup-1","address":"Austin, TX"}`)
	publish(ctx, t, broker, kafkago.Message{Key: []byte("lookup-1"), Value: payload})

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	batch, err := reader.ExtractBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("lookup-1"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	transformer := pipeline.NewTransformer(stubGeocoder{}, clockwork.NewRealClock(), discardLogger())
	out, err := transformer.Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.OutputEvent{out}))

	res := readResult(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "lookup-1", res.Key)
	assert.Equal(t, "forward", res.Headers["lookup_kind"])
	assert.Equal(t, "resolved", res.Headers["status"])
	require.Len(t, res.Result.Placemarks, 1)
	assert.Equal(t, "Austin, TX, United States", res.Result.Placemarks[0].PlaceName)
}

// TestPipelineEndToEnd wires Reader, LookupTransformer and Writer against a
// real broker. The unreadable request is skipped; every other one is
// published with its status.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	publish(ctx, t, broker,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("fwd"), Value: []byte(`{"id":"fwd","address":"Austin, TX"}`)},
		kafkago.Message{Key: []byte("rev"), Value: []byte(`{"id":"rev","coordinate":{"lat":30.2747,"lon":-97.7404}}`)},
		kafkago.Message{Key: []byte("none"), Value: []byte(`{"id":"none","address":"nowhere"}`)},
	)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	transformer := pipeline.NewTransformer(stubGeocoder{}, clockwork.NewRealClock(), discardLogger())
	p := pipeline.New(reader, transformer, writer, discardLogger(), metrics, 50, clockwork.NewRealClock())

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	byID := map[string]publishedResult{}
	for len(byID) < 3 {
		res := readResult(ctx, t, consumer)
		byID[res.Result.ID] = res
	}

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no result for the unreadable request")

	pipelineCancel()
	require.NoError(t, <-errCh)
	require.NoError(t, p.CheckReadiness(ctx))

	assert.Equal(t, "resolved", byID["fwd"].Result.Status)
	assert.Equal(t, "forward", byID["fwd"].Result.Kind)

	rev := byID["rev"]
	assert.Equal(t, "reverse", rev.Headers["lookup_kind"])
	require.Len(t, rev.Result.Placemarks, 1)
	assert.InDelta(t, 30.2747, rev.Result.Placemarks[0].Latitude, 1e-9)
	assert.InDelta(t, -97.7404, rev.Result.Placemarks[0].Longitude, 1e-9)

	assert.Equal(t, "empty", byID["none"].Result.Status)
	assert.Empty(t, byID["none"].Result.Placemarks)
}
