package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fatimatofatima/hyper-factory/internal/dispatch"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes assignment events keyed by task id.
type KafkaPublisher struct {
	w       messageWriter
	timeout time.Duration
}

// NewKafkaPublisher writes to topic on the comma-separated brokers.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(SplitBrokers(brokers)...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		timeout: 5 * time.Second,
	}
}

// PublishAssignment implements dispatch.Publisher.
func (p *KafkaPublisher) PublishAssignment(ctx context.Context, ev dispatch.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode assignment event: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.TaskID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("assignment")},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}
	if err := p.w.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("publish assignment event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
