// Package intake connects the factory to Kafka: it consumes outcome reports
// from executors and publishes assignment events.
package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Consumer reads messages from Kafka topics.
type Consumer interface {
	// Start begins consuming from the configured topics.
	Start(ctx context.Context) error
	// Messages returns a channel of raw messages.
	Messages() <-chan Message
	// Close stops the consumer and closes the message channel.
	Close() error
}

// Message is a raw message from Kafka.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// KafkaConsumer implements Consumer with one kafka-go reader per topic.
type KafkaConsumer struct {
	brokers       []string
	consumerGroup string
	topics        []string
	readers       []*kafka.Reader
	messages      chan Message
	wg            sync.WaitGroup
	mu            sync.Mutex
	closeOnce     sync.Once
}

// NewKafkaConsumer creates a consumer for the given comma-separated brokers.
func NewKafkaConsumer(brokers, consumerGroup string, topics []string) *KafkaConsumer {
	return &KafkaConsumer{
		brokers:       SplitBrokers(brokers),
		consumerGroup: consumerGroup,
		topics:        topics,
		messages:      make(chan Message, 100),
	}
}

// SplitBrokers parses a comma-separated broker list.
func SplitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Start begins consuming from all configured topics.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	if len(c.brokers) == 0 {
		return errors.New("kafka consumer: no brokers configured")
	}
	for _, topic := range c.topics {
		c.startReader(ctx, topic)
	}
	return nil
}

func (c *KafkaConsumer) startReader(ctx context.Context, topic string) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.brokers,
		Topic:    topic,
		GroupID:  c.consumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()

	c.wg.Add(1)
	go func(r *kafka.Reader, t string) {
		defer c.wg.Done()
		for {
			msg, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				slog.Warn("KafkaConsumer: read error", "topic", t, "error", err)
				continue
			}
			select {
			case c.messages <- Message{Topic: t, Key: msg.Key, Value: msg.Value}:
			case <-ctx.Done():
				return
			}
		}
	}(reader, topic)
}

// Messages returns the channel of consumed messages.
func (c *KafkaConsumer) Messages() <-chan Message {
	return c.messages
}

// Close stops all readers, waits for them to exit and closes Messages.
func (c *KafkaConsumer) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		readers := c.readers
		c.mu.Unlock()
		for _, r := range readers {
			if err := r.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.wg.Wait()
		close(c.messages)
	})
	return errors.Join(errs...)
}

// ChannelConsumer is an in-process Consumer backed by a Go channel.
type ChannelConsumer struct {
	ch   chan Message
	once sync.Once
}

func NewChannelConsumer() *ChannelConsumer {
	return &ChannelConsumer{ch: make(chan Message, 100)}
}

// Start is a no-op for the channel consumer.
func (c *ChannelConsumer) Start(ctx context.Context) error { return nil }

func (c *ChannelConsumer) Messages() <-chan Message { return c.ch }

func (c *ChannelConsumer) Close() error {
	c.once.Do(func() { close(c.ch) })
	return nil
}

// Send pushes a message into the consumer.
func (c *ChannelConsumer) Send(msg Message) {
	c.ch <- msg
}
