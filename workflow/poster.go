package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/agrifocus/farmbooks_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withPostingTx runs fn in one database transaction serialized per tenant
// by the advisory posting lock. Strict per-tenant ordering is what lets the
// moving average engine and the sequence numbers stay deterministic.
func withPostingTx(ctx context.Context, tenantId string, fn func(tx *gorm.DB) error) error {
	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx.WithContext(ctx), tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx.WithContext(ctx), tenantId)
		return fn(tx)
	})
}

func requireTenant(ctx context.Context) (string, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return "", errors.New("tenant id is required")
	}
	return tenantId, nil
}

// fetchForPosting locks the document row so two posters of the same
// document serialize even without the advisory lock.
func fetchForPosting[T any](ctx context.Context, tx *gorm.DB, tenantId string, id int) (*T, error) {
	var model T
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&model).Error
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// postKey is the idempotency key guarding one document's posting.
func postKey(sourceType models.PostingSourceType, id int) *string {
	key := fmt.Sprintf("%s:%d:post", sourceType, id)
	return &key
}

func resolvePostingDate(requested *time.Time, docDate time.Time) time.Time {
	if requested != nil {
		return *requested
	}
	return docDate
}

func markPosted(ctx context.Context, tx *gorm.DB, model interface{}, group *models.PostingGroup) error {
	now := time.Now()
	return tx.WithContext(ctx).Model(model).Updates(map[string]interface{}{
		"status":           models.DocumentStatusPosted,
		"posting_group_id": group.ID,
		"posting_date":     group.PostingDate,
		"posted_at":        now,
	}).Error
}

func markReversed(ctx context.Context, tx *gorm.DB, model interface{}, reversal *models.PostingGroup) error {
	now := time.Now()
	return tx.WithContext(ctx).Model(model).Updates(map[string]interface{}{
		"status":                    models.DocumentStatusReversed,
		"reversal_posting_group_id": reversal.ID,
		"reversed_at":               now,
	}).Error
}

// assertOpenCycle verifies the crop cycle accepts postings on date.
func assertOpenCycle(ctx context.Context, tx *gorm.DB, tenantId string, cropCycleId int, date time.Time) error {
	var cycle models.CropCycle
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, cropCycleId).
		First(&cycle).Error
	if err != nil {
		return errors.New("crop cycle not found")
	}
	if cycle.Status != models.CropCycleStatusOpen {
		return errors.New("crop cycle is closed")
	}
	if cycle.StartDate != nil && date.Before(*cycle.StartDate) {
		return errors.New("posting date is before the crop cycle start")
	}
	if cycle.EndDate != nil && date.After(*cycle.EndDate) {
		return errors.New("posting date is after the crop cycle end")
	}
	return nil
}

// costAllocationType maps a document's cost class to its allocation tag.
func costAllocationType(class models.CostClass) models.AllocationType {
	if class == models.CostClassHariOnly {
		return models.AllocationTypeHariOnlyCost
	}
	return models.AllocationTypeSharedCost
}
