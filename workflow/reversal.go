package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/models"
	"gorm.io/gorm"
)

var (
	ErrReversalOfReversal  = errors.New("reversal groups cannot be reversed; repost the original instead")
	ErrReversalCycleClosed = errors.New("crop cycle is closed; reverse its settlement to reopen it first")
)

// ReversePostingGroup inserts the exact mirror of original: every ledger
// entry with debit and credit swapped, every allocation row mirrored with a
// reversal_of marker in its snapshot, every stock movement negated. The
// original rows are never touched.
//
// Idempotent per (original, reversal date): a second call returns the
// reversal already posted for that date.
func ReversePostingGroup(ctx context.Context, tx *gorm.DB, tenantId string, original *models.PostingGroup, reversalDate time.Time, reason string) (*models.PostingGroup, error) {
	if original.SourceType == models.SourceTypeReversal {
		return nil, ErrReversalOfReversal
	}

	// Reversal groups are keyed by their original (source_id), so the
	// source lookup doubles as the idempotent re-select.
	existing, err := findExistingGroup(ctx, tx, tenantId, models.SourceTypeReversal, original.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if err := AssertReversalAllowed(ctx, tx, tenantId, reversalDate, original.PostingDate); err != nil {
		return nil, err
	}

	// A settled cycle only changes through settlement reversal, which is
	// itself the act that reopens it. Every other group on the cycle stays
	// frozen until then.
	if original.CropCycleId != nil && original.SourceType != models.SourceTypeSettlement {
		var cycle models.CropCycle
		if err := tx.WithContext(ctx).
			Where("tenant_id = ? AND id = ?", tenantId, *original.CropCycleId).
			First(&cycle).Error; err != nil {
			return nil, err
		}
		if cycle.Status != models.CropCycleStatusOpen {
			return nil, ErrReversalCycleClosed
		}
	}

	var entries []models.LedgerEntry
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND posting_group_id = ?", tenantId, original.ID).
		Order("id").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	var allocations []models.AllocationRow
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND posting_group_id = ?", tenantId, original.ID).
		Order("id").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	var movements []models.StockMovement
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND posting_group_id = ?", tenantId, original.ID).
		Order("id").
		Find(&movements).Error; err != nil {
		return nil, err
	}

	originalId := original.ID
	reasonCopy := reason
	key := fmt.Sprintf("REVERSAL:%d:%s", original.ID, reversalDate.UTC().Format("2006-01-02"))

	plan := &LedgerPlan{
		SourceType:       models.SourceTypeReversal,
		SourceId:         original.ID,
		CropCycleId:      original.CropCycleId,
		PostingDate:      reversalDate,
		IdempotencyKey:   &key,
		ReversalOf:       &originalId,
		CorrectionReason: &reasonCopy,
	}
	for _, e := range entries {
		plan.Lines = append(plan.Lines, LedgerLine{
			AccountId:   e.AccountId,
			Debit:       e.CreditAmount,
			Credit:      e.DebitAmount,
			Description: "Reversal: " + e.Description,
		})
	}
	for _, a := range allocations {
		snapshot := map[string]interface{}{}
		if len(a.RuleSnapshot) > 0 {
			if err := json.Unmarshal(a.RuleSnapshot, &snapshot); err != nil {
				snapshot = map[string]interface{}{}
			}
		}
		snapshot["reversal_of"] = original.ID
		plan.Allocations = append(plan.Allocations, AllocationLine{
			CropCycleId:  a.CropCycleId,
			PartyId:      a.PartyId,
			MachineId:    a.MachineId,
			Type:         a.AllocationType,
			Amount:       a.Amount,
			RuleSnapshot: snapshot,
		})
	}
	for _, m := range movements {
		plan.Movements = append(plan.Movements, MovementLine{
			WarehouseId:  m.WarehouseId,
			ItemId:       m.ItemId,
			MovementType: models.MovementTypeReversal,
			QtyDelta:     m.QtyDelta.Neg(),
			ValueDelta:   m.ValueDelta.Neg(),
			UnitCost:     m.UnitCostSnapshot,
		})
	}

	reversal, _, err := CommitPlan(ctx, tx, tenantId, plan)
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// loadGroup fetches a posting group by id within the tenant.
func loadGroup(ctx context.Context, tx *gorm.DB, tenantId string, groupId int) (*models.PostingGroup, error) {
	var group models.PostingGroup
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, groupId).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// reverseDocumentGroup is the shared tail of every document reversal: load
// the original group, post the mirror, flip the document to REVERSED.
func reverseDocumentGroup(ctx context.Context, tx *gorm.DB, tenantId string, doc interface{}, status models.DocumentStatus, postingGroupId *int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	if status == models.DocumentStatusReversed {
		return nil, ErrAlreadyReversed
	}
	if status != models.DocumentStatusPosted || postingGroupId == nil {
		return nil, ErrNotPosted
	}
	original, err := loadGroup(ctx, tx, tenantId, *postingGroupId)
	if err != nil {
		return nil, err
	}
	date := original.PostingDate
	if reversalDate != nil {
		date = *reversalDate
	}
	reversal, err := ReversePostingGroup(ctx, tx, tenantId, original, date, reason)
	if err != nil {
		return nil, err
	}
	if err := markReversed(ctx, tx, doc, reversal); err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseWorkLog reverses a posted work log.
func ReverseWorkLog(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.WorkLog](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseCropActivity reverses a posted crop activity, putting the consumed
// stock back at its original value.
func ReverseCropActivity(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.CropActivity](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseGoodsReceipt reverses a posted goods receipt. Fails with an
// insufficient stock error when the received quantity was already consumed.
func ReverseGoodsReceipt(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.GoodsReceipt](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseInventoryIssue reverses a posted inventory issue.
func ReverseInventoryIssue(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.InventoryIssue](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseStockTransfer reverses a posted stock transfer.
func ReverseStockTransfer(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.StockTransfer](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseInventoryAdjustment reverses a posted inventory adjustment.
func ReverseInventoryAdjustment(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.InventoryAdjustment](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseHarvest reverses a posted harvest, returning the value to crop WIP.
func ReverseHarvest(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.Harvest](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseMachineryJob reverses a posted machinery job.
func ReverseMachineryJob(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.MachineryJob](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseMachineryService reverses a posted machinery service.
func ReverseMachineryService(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.MachineryService](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseMachineryCharge reverses a posted machinery charge.
func ReverseMachineryCharge(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.MachineryCharge](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseSale reverses a posted sale, restoring the sold produce at its
// original cost. Active payment allocations must be unapplied first.
func ReverseSale(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.Sale](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		allocated, err := models.GetAllocatedAmount(ctx, tenantId, models.AllocatableDocSale, doc.ID)
		if err != nil {
			return err
		}
		if allocated.IsPositive() {
			return errors.New("sale has active payment allocations; unapply them before reversing")
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseAdvance reverses a posted advance. Fails when settlement offsets
// already recovered part of it; reverse the settlement first.
func ReverseAdvance(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.Advance](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		if doc.Status == models.DocumentStatusPosted {
			outstanding, err := models.GetOutstandingAdvance(ctx, tenantId, doc.PartyId)
			if err != nil {
				return err
			}
			if outstanding.LessThan(doc.Amount) {
				return errors.New("advance is partially recovered by settlement; reverse the settlement first")
			}
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReversePayment reverses a posted payment. Active allocations must be
// unapplied first.
func ReversePayment(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.Payment](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		allocated, err := models.GetPaymentAllocatedAmount(ctx, tenantId, doc.ID)
		if err != nil {
			return err
		}
		if allocated.IsPositive() {
			return errors.New("payment has active allocations; unapply them before reversing")
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// ReverseJournalEntry reverses a posted manual journal entry.
func ReverseJournalEntry(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.JournalEntry](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, doc, doc.Status, doc.PostingGroupId, reversalDate, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}
