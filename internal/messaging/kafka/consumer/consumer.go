package consumer

import (
	"context"
	"encoding/json"
	"strings"

	"izin-talep/internal/bootstrap"
	"izin-talep/internal/events"
	"izin-talep/internal/messaging/kafka"

	"go.uber.org/zap"
)

// ConsumeLeaveLifecycle writes one audit entry per leave event. Messages
// that cannot be decoded are committed and skipped.
func ConsumeLeaveLifecycle(
	ctx context.Context,
	reader kafka.MessageReader,
	audit bootstrap.AuditLogger,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.leave_lifecycle")
	log.Info("leave lifecycle consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("leave lifecycle consumer stopped")
				return
			}
			log.Error("fetch leave lifecycle message failed", zap.Error(err))
			continue
		}

		var event events.LeaveLifecycleEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil || !events.IsLeaveEventType(event.EventType) {
			log.Error("decode leave lifecycle event failed",
				zap.Int64("offset", msg.Offset),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		audit.Log(ctx, bootstrap.AuditLog{
			Action:  strings.ToUpper(event.EventType),
			Message: "leave request " + strings.ToLower(event.Status),
			Meta: map[string]any{
				"leave_id":    event.LeaveID,
				"employee_id": event.EmployeeID,
				"kind":        event.Kind,
				"start_date":  event.StartDate,
				"end_date":    event.EndDate,
				"request_id":  event.RequestID,
				"occurred_at": event.OccurredAt,
			},
		})

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit leave lifecycle message failed", zap.Error(err))
			continue
		}

		log.Debug("leave lifecycle event audited",
			zap.String("leave_id", event.LeaveID),
			zap.String("event_type", event.EventType),
		)
	}
}
