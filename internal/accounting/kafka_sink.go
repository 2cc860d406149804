package accounting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mfontes/shortlink/internal/events"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// KafkaSink publishes click events to a Kafka topic, keyed by code so a
// single consumer partition sees each code's events in order.
type KafkaSink struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (s *KafkaSink) Publish(ctx context.Context, batch []events.ClickRecorded) error {
	if len(batch) == 0 {
		return nil
	}

	tracer := otel.Tracer("click-accountant")
	ctx, span := tracer.Start(
		ctx,
		"kafka.publish.click_recorded",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", s.topic),
			attribute.String("messaging.operation", "publish"),
			attribute.Int("messaging.batch.message_count", len(batch)),
		),
	)
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := make([]kafka.Header, 0, len(carrier))
	for key, value := range carrier {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	msgs := make([]kafka.Message, 0, len(batch))
	for _, ev := range batch {
		value, err := json.Marshal(ev)
		if err != nil {
			span.RecordError(err)
			return err
		}
		occurredAt, _ := time.Parse(time.RFC3339Nano, ev.OccurredAt)
		msgs = append(msgs, kafka.Message{
			Key:     []byte(ev.Code),
			Value:   value,
			Time:    occurredAt,
			Headers: headers,
		})
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
