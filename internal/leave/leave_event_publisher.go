package leave

import (
	"context"
	"encoding/json"

	"izin-talep/internal/events"
	"izin-talep/internal/messaging/kafka"

	kafkago "github.com/segmentio/kafka-go"
)

type EventPublisher interface {
	PublishLeaveEvent(ctx context.Context, event events.LeaveLifecycleEvent) error
}

type noopEventPublisher struct{}

func NewNoopEventPublisher() EventPublisher {
	return noopEventPublisher{}
}

func (noopEventPublisher) PublishLeaveEvent(context.Context, events.LeaveLifecycleEvent) error {
	return nil
}

type kafkaEventPublisher struct {
	writer kafka.MessageWriter
	topic  string
}

func NewKafkaEventPublisher(writer kafka.MessageWriter, topic string) EventPublisher {
	if topic == "" {
		topic = events.LeaveLifecycleTopic
	}
	return &kafkaEventPublisher{writer: writer, topic: topic}
}

func (p *kafkaEventPublisher) PublishLeaveEvent(ctx context.Context, event events.LeaveLifecycleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: p.topic,
		Key:   []byte(event.LeaveID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "aggregate_type", Value: []byte(events.LeaveAggregateType)},
		},
	})
}
