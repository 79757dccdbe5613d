package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"
)

// KafkaPublisher publishes InvoicesCreated events as JSON to a Kafka topic, keyed by run id.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *kafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishInvoicesCreated(ctx context.Context, event InvoicesCreated) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal invoices created event: %w", err)
	}

	delivery := make(chan kafka.Event, 1)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.RunID.String()),
		Value:          value,
	}
	if err := p.producer.Produce(msg, delivery); err != nil {
		return fmt.Errorf("failed to produce invoices created event: %w", err)
	}

	select {
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("failed to deliver invoices created event: %w", m.TopicPartition.Error)
		}
		log.WithFields(log.Fields{
			"topic":     p.topic,
			"partition": m.TopicPartition.Partition,
			"offset":    m.TopicPartition.Offset,
			"run_id":    event.RunID,
		}).Info("Published invoices created event")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *KafkaPublisher) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
