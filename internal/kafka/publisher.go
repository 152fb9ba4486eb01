// Package kafka mirrors committed record mutations to a Kafka topic.
//
// Publishing is best effort: events are queued in memory and written by a single
// background worker. A full queue drops the event and a failed write is logged and
// counted. Neither outcome reaches the HTTP caller.
package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/Togather-Foundation/datastudy/internal/domain/records"
	"github.com/Togather-Foundation/datastudy/internal/metrics"
	"github.com/Togather-Foundation/datastudy/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Togather-Foundation/datastudy/internal/kafka"

const (
	DefaultQueueSize    = 1000
	DefaultWriteTimeout = 10 * time.Second
)

var _ records.Notifier = (*Publisher)(nil)

// Publisher queues change events and writes them to a MessageWriter in order.
// It's safe for concurrent use.
type Publisher struct {
	writer       MessageWriter
	queue        chan event
	writeTimeout time.Duration
	logger       zerolog.Logger

	// ctx bounds in-flight writes; Close cancels it when its own deadline passes.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	started  bool
	done     chan struct{}
	wg       sync.WaitGroup
	shutdown sync.Once
}

// NewPublisher creates a Publisher. Call Start to begin the background worker.
func NewPublisher(writer MessageWriter, queueSize int, writeTimeout time.Duration, logger zerolog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		writer:       writer,
		queue:        make(chan event, queueSize),
		writeTimeout: writeTimeout,
		logger:       logger.With().Str("component", "kafka_publisher").Logger(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Start launches the worker. Subsequent calls are no-ops.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run()
	p.logger.Info().Int("queue_size", cap(p.queue)).Msg("publisher started")
}

// RecordUpserted queues an upsert event for record.
func (p *Publisher) RecordUpserted(ctx context.Context, record records.Record) {
	p.enqueue(ctx, upsertEvent(record))
}

// RecordDeleted queues a delete event for id.
func (p *Publisher) RecordDeleted(ctx context.Context, id int64) {
	p.enqueue(ctx, deleteEvent(id))
}

// QueueDepth reports how many events are waiting for the worker.
func (p *Publisher) QueueDepth() int {
	return len(p.queue)
}

// QueueCapacity reports the queue bound.
func (p *Publisher) QueueCapacity() int {
	return cap(p.queue)
}

// Closed reports whether Close has been called.
func (p *Publisher) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Publisher) enqueue(ctx context.Context, e event) {
	logger := p.requestLogger(ctx)

	if p.Closed() {
		metrics.KafkaEventsTotal.WithLabelValues(e.kind, "dropped").Inc()
		logger.Warn().Str("type", e.kind).Bytes("key", e.key).Msg("publisher closed, change event dropped")
		return
	}

	select {
	case p.queue <- e:
		metrics.KafkaQueueDepth.Set(float64(len(p.queue)))
	default:
		metrics.KafkaEventsTotal.WithLabelValues(e.kind, "dropped").Inc()
		logger.Warn().Str("type", e.kind).Bytes("key", e.key).Msg("publish queue full, change event dropped")
	}
}

// requestLogger prefers the request-scoped logger so drops carry the request id.
func (p *Publisher) requestLogger(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &p.logger
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case e := <-p.queue:
			p.write(e)
		case <-p.done:
			p.drain()
			return
		}
	}
}

// drain writes whatever is still queued without blocking for new events.
func (p *Publisher) drain() {
	for {
		select {
		case e := <-p.queue:
			p.write(e)
		default:
			return
		}
	}
}

func (p *Publisher) write(e event) {
	metrics.KafkaQueueDepth.Set(float64(len(p.queue)))

	if p.ctx.Err() != nil {
		metrics.KafkaEventsTotal.WithLabelValues(e.kind, "dropped").Inc()
		return
	}

	msg, err := e.message()
	if err != nil {
		metrics.KafkaEventsTotal.WithLabelValues(e.kind, "failed").Inc()
		p.logger.Error().Err(err).Str("type", e.kind).Bytes("key", e.key).Msg("failed to encode change event")
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.writeTimeout)
	defer cancel()

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "kafka.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("datastudy.event_type", e.kind),
			attribute.String("messaging.kafka.message.key", string(e.key)),
		),
	)
	defer span.End()

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	metrics.KafkaWriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		metrics.KafkaEventsTotal.WithLabelValues(e.kind, "failed").Inc()
		p.logger.Error().Err(err).Str("type", e.kind).Bytes("key", e.key).Msg("failed to publish change event")
		return
	}
	metrics.KafkaEventsTotal.WithLabelValues(e.kind, "published").Inc()
	p.logger.Debug().Str("type", e.kind).Bytes("key", e.key).Msg("change event published")
}

// Close stops accepting events, drains the queue and closes the writer. If ctx ends
// before the queue is empty, in-flight writes are cancelled and the rest is dropped.
// It's safe to call Close multiple times.
func (p *Publisher) Close(ctx context.Context) error {
	var closeErr error
	p.shutdown.Do(func() {
		p.mu.Lock()
		wasStarted := p.started
		p.mu.Unlock()

		close(p.done)

		if wasStarted {
			finished := make(chan struct{})
			go func() {
				p.wg.Wait()
				close(finished)
			}()
			select {
			case <-finished:
			case <-ctx.Done():
				p.logger.Warn().Int("pending", len(p.queue)).Msg("publisher drain deadline exceeded")
				p.cancel()
				<-finished
			}
		} else {
			if ctx.Err() != nil {
				p.cancel()
			}
			p.drain()
		}
		p.cancel()

		if err := p.writer.Close(); err != nil {
			closeErr = err
			p.logger.Error().Err(err).Msg("failed to close kafka writer")
		}
		p.logger.Info().Msg("publisher shutdown")
	})
	return closeErr
}
