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

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/mbjoseph/floodfreq/internal/adapter/kafka"
	"github.com/mbjoseph/floodfreq/internal/config"
	"github.com/mbjoseph/floodfreq/internal/domain"
)

const testMaximaTopic = "test-annual-maxima"

// startKafka launches a single-node Kafka container and returns its broker
// address. The container is terminated when the test finishes.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve broker addresses")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic on the broker's controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
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

// maximaRecord mirrors the writer's wire format for deserialization.
type maximaRecord struct {
	SiteNo       string                 `json:"site_no"`
	AnnualMaxima []domain.AnnualMaximum `json:"annual_maxima"`
	ComputedAt   time.Time              `json:"computed_at"`
}

// TestPublishMaxima verifies that kafka.Writer round-trips an annual-maxima
// series through a real broker with the expected key, headers, and payload.
func TestPublishMaxima(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testMaximaTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaMaximaTopic: testMaximaTopic,
	}

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	maxima := []domain.AnnualMaximum{
		{Year: 2011, Discharge: 1200},
		{Year: 2012, Discharge: 800},
		{Year: 2013, Discharge: 3680},
	}
	computedAt := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, writer.PublishMaxima(ctx, "06730200", maxima, computedAt))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testMaximaTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from maxima topic")

	assert.Equal(t, "06730200", string(msg.Key))

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "06730200", headers["site_no"])
	parsed, err := time.Parse(time.RFC3339, headers["computed_at"])
	require.NoError(t, err, "computed_at should be valid RFC3339")
	assert.True(t, parsed.Equal(computedAt))

	var record maximaRecord
	require.NoError(t, json.Unmarshal(msg.Value, &record))
	assert.Equal(t, "06730200", record.SiteNo)
	assert.Equal(t, maxima, record.AnnualMaxima)
	assert.True(t, record.ComputedAt.Equal(computedAt))
}

// TestPublishMaximaOrdering verifies that successive publishes for the same
// site land on the same partition in publish order.
func TestPublishMaximaOrdering(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testMaximaTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaMaximaTopic: testMaximaTopic,
	}

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		maxima := []domain.AnnualMaximum{{Year: 2011 + i, Discharge: float64(1000 * (i + 1))}}
		require.NoError(t, writer.PublishMaxima(ctx, "06730200", maxima, base.Add(time.Duration(i)*time.Hour)))
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testMaximaTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	var computedAts []time.Time
	for range 3 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err)

		var record maximaRecord
		require.NoError(t, json.Unmarshal(msg.Value, &record))
		computedAts = append(computedAts, record.ComputedAt)
	}

	require.Len(t, computedAts, 3)
	for i := range 3 {
		assert.True(t, computedAts[i].Equal(base.Add(time.Duration(i)*time.Hour)),
			"message %d out of order", i)
	}
}
