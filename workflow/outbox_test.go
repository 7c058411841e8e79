package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
)

func TestPostingWritesOutboxRow(t *testing.T) {
	f := newFixture(t)
	posted, err := f.postWorkLogOn(t, day("2026-02-10"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	var record models.PostingEventRecord
	err = config.GetDB().WithContext(f.ctx).
		Where("tenant_id = ? AND posting_group_id = ?", f.tenantId, *posted.PostingGroupId).
		First(&record).Error
	if err != nil {
		t.Fatalf("fetch outbox row: %v", err)
	}
	if record.PublishStatus != models.OutboxPublishStatusPending {
		t.Fatalf("publish status = %s, want PENDING", record.PublishStatus)
	}
	if record.EventType != string(models.PostingEventPosted) {
		t.Fatalf("event type = %s, want POSTED", record.EventType)
	}

	if _, err := ReverseWorkLog(f.ctx, posted.ID, nil, "typo"); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	var count int64
	if err := config.GetDB().WithContext(f.ctx).Model(&models.PostingEventRecord{}).
		Where("tenant_id = ? AND event_type = ?", f.tenantId, models.PostingEventReversed).
		Count(&count).Error; err != nil {
		t.Fatalf("count reversed events: %v", err)
	}
	if count != 1 {
		t.Fatalf("reversed event count = %d, want 1", count)
	}
}

func TestClaimPendingPostingEventsLocksBatch(t *testing.T) {
	f := newFixture(t)
	if _, err := f.postWorkLogOn(t, day("2026-02-11")); err != nil {
		t.Fatalf("post: %v", err)
	}

	claimed, err := models.ClaimPendingPostingEvents(f.ctx, "worker-a", 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("claimed %d rows, want 1", len(claimed))
	}
	if claimed[0].PublishStatus != models.OutboxPublishStatusProcessing {
		t.Fatalf("claimed status = %s, want PROCESSING", claimed[0].PublishStatus)
	}
	if claimed[0].LockedBy == nil || *claimed[0].LockedBy != "worker-a" {
		t.Fatalf("claimed row not locked by worker-a")
	}

	// A second worker finds nothing claimable.
	again, err := models.ClaimPendingPostingEvents(f.ctx, "worker-b", 10)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second worker claimed %d rows, want 0", len(again))
	}
}

func TestFailedEventRetriesThenDies(t *testing.T) {
	f := newFixture(t)
	if _, err := f.postWorkLogOn(t, day("2026-02-12")); err != nil {
		t.Fatalf("post: %v", err)
	}
	claimed, err := models.ClaimPendingPostingEvents(f.ctx, "worker-a", 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v (%d rows)", err, len(claimed))
	}

	record := &claimed[0]
	publishErr := errors.New("broker unavailable")
	if err := models.MarkPostingEventFailed(f.ctx, record, publishErr, 2, time.Second); err != nil {
		t.Fatalf("first failure: %v", err)
	}
	var row models.PostingEventRecord
	if err := config.GetDB().First(&row, record.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if row.PublishStatus != models.OutboxPublishStatusFailed || row.Attempts != 1 {
		t.Fatalf("after first failure: status %s attempts %d", row.PublishStatus, row.Attempts)
	}

	if err := models.MarkPostingEventFailed(f.ctx, &row, publishErr, 2, time.Second); err != nil {
		t.Fatalf("second failure: %v", err)
	}
	if err := config.GetDB().First(&row, record.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if row.PublishStatus != models.OutboxPublishStatusDead {
		t.Fatalf("after max attempts: status %s, want DEAD", row.PublishStatus)
	}

	requeued, err := models.RequeueDeadPostingEvents(f.ctx, f.tenantId)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("requeued %d rows, want 1", requeued)
	}
}
