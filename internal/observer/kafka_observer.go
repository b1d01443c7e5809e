package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/heatmap-inspector/pkg/models"
)

const kafkaWriteTimeout = 10 * time.Second

// messageWriter is the subset of *kafkago.Writer used by KafkaObserver
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaObserver publishes every stored result to a Kafka topic
type KafkaObserver struct {
	writer messageWriter
	logger *logrus.Logger
}

// NewKafkaObserver creates a producer for topic on the given brokers
func NewKafkaObserver(brokers []string, topic string, logger *logrus.Logger) *KafkaObserver {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaObserver{writer: w, logger: logger}
}

// OnEvent publishes ResultStored events and ignores the rest
func (o *KafkaObserver) OnEvent(ctx context.Context, event InspectionEvent) {
	if event.EventType != ResultStored || event.Result == nil {
		return
	}

	msg, err := serializeToMessage(*event.Result)
	if err != nil {
		o.logger.WithError(err).Error("Failed to serialize result")
		return
	}

	// the request context may already be done once the response is sent
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), kafkaWriteTimeout)
	defer cancel()

	if err := o.writer.WriteMessages(writeCtx, msg); err != nil {
		o.logger.WithError(err).WithField("result_id", event.Result.ID).Error("Failed to publish result")
	}
}

// GetObserverName returns the observer name
func (o *KafkaObserver) GetObserverName() string {
	return "kafka_observer"
}

// Close flushes and closes the producer
func (o *KafkaObserver) Close() error {
	return o.writer.Close()
}

// serializeToMessage marshals a result into a Kafka message keyed by place
// so rows for one place stay ordered within a partition.
func serializeToMessage(r models.AggregateResult) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.PlaceName),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "result_id", Value: []byte(r.ID)},
			{Key: "pollutant", Value: []byte(r.Pollutant)},
			{Key: "as_of_date", Value: []byte(r.AsOfDate)},
		},
	}, nil
}
