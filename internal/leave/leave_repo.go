package leave

import (
	"context"
	"encoding/json"
	"fmt"

	"izin-talep/internal/events"
	leaveerrors "izin-talep/internal/leave/errors"
	"izin-talep/internal/messaging/kafka"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists the whole leave collection. Implementations must be
// safe to call again after a failure.
//
//go:generate mockgen -source=leave_repo.go -destination=mock/leave_repo_mock.go -package=mock
type Repository interface {
	Load(ctx context.Context) ([]LeaveRequest, error)
	Save(ctx context.Context, records []LeaveRequest) error
	// Reset removes every stored leave record. It is how corrupt data is
	// discarded, so it must not need to decode what is stored.
	Reset(ctx context.Context) error
}

// EventStore is a Repository that records the lifecycle event of a
// mutation in the same transaction as the collection.
type EventStore interface {
	Repository
	SaveWithEvent(ctx context.Context, records []LeaveRequest, event events.LeaveLifecycleEvent) error
}

type repository struct {
	db     *gorm.DB
	outbox kafka.OutboxRepository
	topic  string
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// NewOutboxRepository returns a gorm repository that writes an outbox row
// for every saved event inside the leave transaction.
func NewOutboxRepository(db *gorm.DB, outbox kafka.OutboxRepository, topic string) EventStore {
	if topic == "" {
		topic = events.LeaveLifecycleTopic
	}
	return &repository{db: db, outbox: outbox, topic: topic}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&LeaveRequest{})
}

func (r *repository) Load(ctx context.Context) ([]LeaveRequest, error) {
	var rows []LeaveRequest
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %q: %v", leaveerrors.ErrCorruptData, rows[i].ID, err)
		}
	}
	return rows, nil
}

// Save upserts every record in one transaction. Records are only removed
// by Reset.
func (r *repository) Save(ctx context.Context, records []LeaveRequest) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsert(tx, records)
	})
}

// SaveWithEvent behaves like Save and, when an outbox is configured, adds
// the event to it before the transaction commits.
func (r *repository) SaveWithEvent(ctx context.Context, records []LeaveRequest, event events.LeaveLifecycleEvent) error {
	if r.outbox == nil {
		return r.Save(ctx, records)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	row := kafka.OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     event.RequestID,
		AggregateType: events.LeaveAggregateType,
		AggregateID:   event.LeaveID,
		EventType:     event.EventType,
		Topic:         r.topic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(records) > 0 {
			if err := upsert(tx, records); err != nil {
				return err
			}
		}
		return r.outbox.WithTx(tx).Create(ctx, row)
	})
}

func (r *repository) Reset(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&LeaveRequest{}).Error
}

func upsert(tx *gorm.DB, records []LeaveRequest) error {
	rows := append([]LeaveRequest(nil), records...)
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
}
