package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafkago.Writer the publisher depends on.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

var _ MessageWriter = (*kafkago.Writer)(nil)

// NewWriter returns a synchronous kafka-go writer for topic. Messages with the same key
// land on the same partition so events for one record stay ordered.
func NewWriter(brokers []string, topic string, writeTimeout time.Duration) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           writeTimeout,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            1,
		AllowAutoTopicCreation: true,
	}
}

// LogWriter writes events to the log instead of a broker. It is used when no brokers
// are configured so the service can run without Kafka.
type LogWriter struct {
	topic  string
	logger zerolog.Logger
}

func NewLogWriter(topic string, logger zerolog.Logger) *LogWriter {
	return &LogWriter{
		topic:  topic,
		logger: logger.With().Str("component", "kafka_log_writer").Logger(),
	}
}

func (w *LogWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, msg := range msgs {
		w.logger.Info().
			Str("topic", w.topic).
			Bytes("key", msg.Key).
			RawJSON("value", msg.Value).
			Msg("change event")
	}
	return nil
}

func (w *LogWriter) Close() error {
	return nil
}
