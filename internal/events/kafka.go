package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yungbote/bonusfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/envutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	MaxAttempts  int
}

func KafkaConfigFromEnv(log *logger.Logger) KafkaConfig {
	return KafkaConfig{
		Brokers:      envutil.List("KAFKA_BROKERS"),
		Topic:        envutil.String("KAFKA_EVENTS_TOPIC", "bonusfinder.events", log),
		BatchTimeout: envutil.Seconds("KAFKA_BATCH_TIMEOUT_SECONDS", time.Second),
		WriteTimeout: envutil.Seconds("KAFKA_WRITE_TIMEOUT_SECONDS", 10*time.Second),
		MaxAttempts:  envutil.Int("KAFKA_MAX_ATTEMPTS", 3),
	}
}

type kafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	log    *logger.Logger
}

// NewPublisher returns a Kafka-backed publisher, or a no-op one when
// KAFKA_BROKERS is empty.
func NewPublisher(log *logger.Logger) Publisher {
	cfg := KafkaConfigFromEnv(log)
	if len(cfg.Brokers) == 0 {
		log.Info("Kafka brokers not configured; domain events disabled")
		return NewNoopPublisher()
	}
	return NewKafkaPublisher(cfg, log)
}

func NewKafkaPublisher(cfg KafkaConfig, log *logger.Logger) Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		MaxAttempts:            cfg.MaxAttempts,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &kafkaPublisher{
		writer: writer,
		topic:  cfg.Topic,
		log:    log.With("component", "KafkaPublisher"),
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, evs ...Event) error {
	if len(evs) == 0 {
		return nil
	}
	traceID := ctxutil.TraceID(ctx)
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		if ev.TraceID == "" {
			ev.TraceID = traceID
		}
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.topic,
			Key:   []byte(ev.Key),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.Type)},
			},
			Time: ev.OccurredAt,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish events: %w", err)
	}
	p.log.Debug("Published events", "count", len(msgs), "topic", p.topic)
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
