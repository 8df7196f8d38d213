package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic keyed by SKU, so the events of a
// SKU stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	log    zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) *KafkaPublisher {
	log = log.With().Str("component", "kafka_publisher").Str("topic", topic).Logger()
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("messages", len(messages)).Msg("failed to deliver events")
			}
		},
	}
	return newKafkaPublisher(w, log)
}

func newKafkaPublisher(w messageWriter, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.log.Error().Err(err).Str("event_type", string(e.Type)).Msg("failed to marshal event")
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.SkuID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	// The writer is async, so this only queues the message.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Warn().Err(err).Str("event_type", string(e.Type)).Str("sku_id", e.SkuID).Msg("failed to queue event")
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
