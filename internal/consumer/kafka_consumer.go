package consumer

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"
)

const (
	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) error
}

// Client is the part of *kafka.Consumer the loop depends on.
type Client interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	Poll(timeoutMs int) kafka.Event
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Seek(partition kafka.TopicPartition, ignoredTimeoutMs int) error
	Close() error
}

// KafkaConsumer feeds messages of one topic to a handler. Offsets are committed only after the
// handler succeeds. A failed message is sought back and handled again after a backoff, so the
// committed offset never moves past it.
type KafkaConsumer struct {
	client     Client
	topic      string
	handler    MessageHandler
	retryDelay time.Duration
	maxDelay   time.Duration
}

func NewKafkaConsumer(client Client, topic string, handler MessageHandler) (*KafkaConsumer, error) {
	if err := client.SubscribeTopics([]string{topic}, nil); err != nil {
		return nil, err
	}
	log.WithField("topic", topic).Info("Subscribed to Kafka topic")
	return &KafkaConsumer{
		client:     client,
		topic:      topic,
		handler:    handler,
		retryDelay: initialRetryDelay,
		maxDelay:   maxRetryDelay,
	}, nil
}

func (c *KafkaConsumer) Start(ctx context.Context) error {
	delay := c.retryDelay
	for {
		select {
		case <-ctx.Done():
			log.Info("Kafka consumer stopping due to context cancellation")
			return ctx.Err()
		default:
			ev := c.client.Poll(100)
			if ev == nil {
				continue
			}

			switch e := ev.(type) {
			case *kafka.Message:
				logCtx := log.WithFields(log.Fields{
					"topic":     c.topic,
					"partition": e.TopicPartition.Partition,
					"offset":    e.TopicPartition.Offset,
				})
				if err := c.handler.HandleMessage(ctx, e.Value); err != nil {
					logCtx.WithError(err).WithField("retry_in", delay).Error("Failed to handle message, will retry")
					if err := c.client.Seek(e.TopicPartition, 0); err != nil {
						logCtx.WithError(err).Error("Failed to seek back to failed message")
					}
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(delay):
					}
					delay = min(delay*2, c.maxDelay)
					continue
				}
				delay = c.retryDelay
				if _, err := c.client.CommitMessage(e); err != nil {
					logCtx.WithError(err).Warn("Failed to commit message offset")
				}
			case kafka.Error:
				log.WithError(e).Error("Kafka error")
				if e.IsFatal() {
					return e
				}
			}
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.client.Close()
}
