package producer

import (
	"context"
	"fmt"
	"time"

	"izin-talep/internal/messaging/kafka"

	"go.uber.org/zap"
)

const (
	batchSize           = 50
	defaultPollInterval = 3 * time.Second
)

// ProcessOutboxEvents relays pending leave events until ctx is cancelled.
// A full batch is followed by another pass straight away so a backlog does
// not wait a poll interval per batch.
func ProcessOutboxEvents(
	ctx context.Context,
	repo kafka.OutboxRepository,
	writer kafka.MessageWriter,
	logger *zap.Logger,
	pollInterval time.Duration,
) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	log := logger.Named("outbox.relay")
	log.Info("outbox relay started", zap.Duration("poll_interval", pollInterval))

	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("outbox relay stopped")
			return
		case <-timer.C:
		}

		next := pollInterval
		n, err := ProcessPendingEvents(ctx, repo, writer, log)
		switch {
		case err != nil:
			log.Error("outbox batch failed", zap.Error(err))
		case n == batchSize:
			next = 0
		}
		timer.Reset(next)
	}
}

// ProcessPendingEvents relays one batch and returns how many were sent.
// Publish failures are recorded on the row for a later attempt and do not
// stop the batch.
func ProcessPendingEvents(
	ctx context.Context,
	repo kafka.OutboxRepository,
	writer kafka.MessageWriter,
	logger *zap.Logger,
) (int, error) {
	events, err := repo.ListPending(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending outbox events: %w", err)
	}

	sent := 0
	for _, event := range events {
		fields := []zap.Field{
			zap.String("outbox_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.String("aggregate_id", event.AggregateID),
		}

		if err := publishEvent(ctx, writer, event); err != nil {
			logger.Warn("leave event not delivered", append(fields, zap.Int("attempt", event.RetryCount+1), zap.Error(err))...)
			if err := repo.MarkFailed(ctx, event.ID, event.RetryCount, err.Error()); err != nil {
				logger.Error("record outbox failure", append(fields, zap.Error(err))...)
			}
			continue
		}
		if err := repo.MarkSent(ctx, event.ID); err != nil {
			// delivered but still pending: consumers may see it twice
			logger.Error("record outbox delivery", append(fields, zap.Error(err))...)
			continue
		}
		sent++
		logger.Debug("leave event delivered", fields...)
	}

	if sent > 0 {
		logger.Info("outbox batch relayed", zap.Int("sent", sent), zap.Int("pending", len(events)))
	}
	return sent, nil
}
