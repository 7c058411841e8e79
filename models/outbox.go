package models

import (
	"context"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"gorm.io/gorm"
)

// PostingEventRecord is the transactional outbox row for a posting event.
// The row is written in the same transaction as the posting group; a
// dispatcher publishes it to Pub/Sub after commit so the ledger write and
// the event can never diverge.
type PostingEventRecord struct {
	ID             int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	TenantId       string     `gorm:"size:64;not null;index" json:"tenant_id"`
	PostingGroupId int        `gorm:"index;not null" json:"posting_group_id"`
	SourceType     string     `gorm:"size:32;not null" json:"source_type"`
	SourceId       int        `gorm:"not null" json:"source_id"`
	EventType      string     `gorm:"size:16;not null" json:"event_type"`
	PostingDate    time.Time  `gorm:"not null" json:"posting_date"`
	CorrelationId  string     `gorm:"size:64;index" json:"correlation_id"`
	PublishStatus  string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt    *time.Time `gorm:"index" json:"published_at"`
	MessageId      *string    `gorm:"size:255" json:"message_id"`
	Attempts       int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt  *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt       *time.Time `gorm:"index" json:"locked_at"`
	LockedBy       *string    `gorm:"size:100" json:"locked_by"`
	LastError      *string    `gorm:"type:text" json:"last_error"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *PostingEventRecord) GetId() int { return r.ID }

// EnqueuePostingEvent writes the outbox row inside the caller's posting
// transaction.
func EnqueuePostingEvent(ctx context.Context, tx *gorm.DB, group *PostingGroup, eventType PostingEventType) error {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	record := PostingEventRecord{
		TenantId:       group.TenantId,
		PostingGroupId: group.ID,
		SourceType:     string(group.SourceType),
		SourceId:       group.SourceId,
		EventType:      string(eventType),
		PostingDate:    group.PostingDate,
		CorrelationId:  correlationId,
		PublishStatus:  OutboxPublishStatusPending,
	}
	return tx.WithContext(ctx).Create(&record).Error
}

// ConvertToPostingEvent builds the wire payload for a record.
func ConvertToPostingEvent(record PostingEventRecord) config.PostingEvent {
	return config.PostingEvent{
		ID:             record.ID,
		TenantId:       record.TenantId,
		PostingGroupId: record.PostingGroupId,
		SourceType:     record.SourceType,
		SourceId:       record.SourceId,
		EventType:      record.EventType,
		PostingDate:    record.PostingDate,
		CorrelationId:  record.CorrelationId,
	}
}

// ClaimPendingPostingEvents marks a batch of due rows PROCESSING under this
// worker's name and returns them. The update-then-select pair keeps two
// dispatchers from publishing the same row.
func ClaimPendingPostingEvents(ctx context.Context, workerId string, batchSize int) ([]PostingEventRecord, error) {
	db := config.GetDB()
	now := time.Now()

	var ids []int
	err := db.WithContext(ctx).Model(&PostingEventRecord{}).
		Where("publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)",
			[]string{OutboxPublishStatusPending, OutboxPublishStatusFailed}, now).
		Order("id asc").
		Limit(batchSize).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	result := db.WithContext(ctx).Model(&PostingEventRecord{}).
		Where("id IN ? AND publish_status IN ?", ids,
			[]string{OutboxPublishStatusPending, OutboxPublishStatusFailed}).
		Updates(map[string]interface{}{
			"publish_status": OutboxPublishStatusProcessing,
			"locked_at":      now,
			"locked_by":      workerId,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	var records []PostingEventRecord
	err = db.WithContext(ctx).
		Where("id IN ? AND publish_status = ? AND locked_by = ?", ids, OutboxPublishStatusProcessing, workerId).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkPostingEventSent finalizes a published row.
func MarkPostingEventSent(ctx context.Context, record *PostingEventRecord, messageId string) error {
	db := config.GetDB()
	now := time.Now()
	return db.WithContext(ctx).Model(record).Updates(map[string]interface{}{
		"publish_status":  OutboxPublishStatusSent,
		"published_at":    now,
		"message_id":      messageId,
		"locked_at":       nil,
		"locked_by":       nil,
		"last_error":      nil,
		"next_attempt_at": nil,
	}).Error
}

// MarkPostingEventFailed records a publish failure and schedules the retry.
// Rows past maxAttempts go DEAD and need manual reprocessing.
func MarkPostingEventFailed(ctx context.Context, record *PostingEventRecord, publishErr error, maxAttempts int, backoff time.Duration) error {
	db := config.GetDB()
	attempts := record.Attempts + 1
	status := OutboxPublishStatusFailed
	if attempts >= maxAttempts {
		status = OutboxPublishStatusDead
	}
	next := time.Now().Add(backoff * time.Duration(attempts))
	errText := publishErr.Error()
	return db.WithContext(ctx).Model(record).Updates(map[string]interface{}{
		"publish_status":  status,
		"attempts":        attempts,
		"next_attempt_at": next,
		"locked_at":       nil,
		"locked_by":       nil,
		"last_error":      errText,
	}).Error
}

// RequeueDeadPostingEvents puts DEAD rows for a tenant back to PENDING.
func RequeueDeadPostingEvents(ctx context.Context, tenantId string) (int64, error) {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&PostingEventRecord{}).
		Where("tenant_id = ? AND publish_status = ?", tenantId, OutboxPublishStatusDead).
		Updates(map[string]interface{}{
			"publish_status":  OutboxPublishStatusPending,
			"attempts":        0,
			"next_attempt_at": nil,
			"last_error":      nil,
		})
	return result.RowsAffected, result.Error
}
