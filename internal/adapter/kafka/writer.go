package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mbjoseph/floodfreq/internal/config"
	"github.com/mbjoseph/floodfreq/internal/domain"
)

// Writer publishes derived annual-maxima series to a Kafka topic.
// It implements domain.MaximaPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured maxima topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaMaximaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// maximaRecord is the wire form of one station's annual-maxima series.
type maximaRecord struct {
	SiteNo       string                 `json:"site_no"`
	AnnualMaxima []domain.AnnualMaximum `json:"annual_maxima"`
	ComputedAt   time.Time              `json:"computed_at"`
}

// PublishMaxima serializes a station's annual-maxima series and writes it to
// the maxima topic, keyed by site number so one partition carries each
// station's history in order.
func (w *Writer) PublishMaxima(ctx context.Context, siteNo string, maxima []domain.AnnualMaximum, computedAt time.Time) error {
	msg, err := serializeToMessage(siteNo, maxima, computedAt)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a maxima series into a Kafka message.
func serializeToMessage(siteNo string, maxima []domain.AnnualMaximum, computedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(maximaRecord{
		SiteNo:       siteNo,
		AnnualMaxima: maxima,
		ComputedAt:   computedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize annual maxima: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(siteNo),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "site_no", Value: []byte(siteNo)},
			{Key: "computed_at", Value: []byte(computedAt.Format(time.RFC3339))},
		},
	}, nil
}
