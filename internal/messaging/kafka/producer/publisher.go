package producer

import (
	"context"
	"strconv"

	"izin-talep/internal/messaging/kafka"

	kafkago "github.com/segmentio/kafka-go"
)

// outboxMessage keys by aggregate so every event of one leave request lands
// on the same partition in order. Empty header values are left out.
func outboxMessage(event kafka.OutboxEvent) kafkago.Message {
	msg := kafkago.Message{
		Topic: event.Topic,
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
	}

	add := func(key, value string) {
		if value != "" {
			msg.Headers = append(msg.Headers, kafkago.Header{Key: key, Value: []byte(value)})
		}
	}
	add("event_type", event.EventType)
	add("aggregate_type", event.AggregateType)
	add("outbox_id", event.ID)
	add("request_id", event.RequestID)
	if event.RetryCount > 0 {
		add("attempt", strconv.Itoa(event.RetryCount+1))
	}
	return msg
}

func publishEvent(ctx context.Context, writer kafka.MessageWriter, event kafka.OutboxEvent) error {
	return writer.WriteMessages(ctx, outboxMessage(event))
}
