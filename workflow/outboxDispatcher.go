package workflow

import (
	"context"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// OutboxDispatcher drains the posting-event outbox into Pub/Sub. Claiming
// and publishing are separate steps so a crash between them only delays a
// row, never loses it; consumers must already tolerate redelivery.
type OutboxDispatcher struct {
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

// Run polls until the context is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch of due rows and publishes each.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) {
	records, err := models.ClaimPendingPostingEvents(ctx, d.DispatcherID, d.BatchSize)
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithField("field", "OutboxDispatcher").Error("failed to claim outbox batch: " + err.Error())
		}
		return
	}

	for i := range records {
		rec := &records[i]
		event := models.ConvertToPostingEvent(*rec)
		messageId, pubErr := config.PublishPostingEvent(ctx, event)
		if pubErr != nil {
			if markErr := models.MarkPostingEventFailed(ctx, rec, pubErr, d.MaxAttempts, d.InitialBackoff); markErr != nil && d.Logger != nil {
				d.Logger.WithField("field", "OutboxDispatcher").Error("failed to mark outbox row failed: " + markErr.Error())
			}
			if d.Logger != nil {
				d.Logger.WithFields(logrus.Fields{
					"field":     "OutboxDispatcher",
					"tenant_id": rec.TenantId,
					"record_id": rec.ID,
					"attempt":   rec.Attempts + 1,
				}).Error("outbox publish failed: " + pubErr.Error())
			}
			continue
		}
		if err := models.MarkPostingEventSent(ctx, rec, messageId); err != nil && d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":     "OutboxDispatcher",
				"tenant_id": rec.TenantId,
				"record_id": rec.ID,
			}).Error("failed to mark outbox row sent: " + err.Error())
		}
	}
}
