package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostWorkLog books logged labour into crop WIP against wages payable.
// Posting an already posted work log is a no-op returning the document.
func PostWorkLog(ctx context.Context, id int, postingDate *time.Time) (*models.WorkLog, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.WorkLog
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.WorkLog](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		if doc.Status == models.DocumentStatusPosted {
			result = doc
			return nil
		}
		if doc.Status == models.DocumentStatusReversed {
			return ErrAlreadyReversed
		}

		date := resolvePostingDate(postingDate, doc.WorkDate)
		if err := assertOpenCycle(ctx, tx, tenantId, doc.CropCycleId, date); err != nil {
			return err
		}

		amount := doc.Amount()
		description := fmt.Sprintf("Work log #%d %s", doc.ID, doc.WorkType)
		cycleId := doc.CropCycleId
		partyId := doc.PartyId

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeWorkLog,
			SourceId:       doc.ID,
			CropCycleId:    &cycleId,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeWorkLog, doc.ID),
		}
		plan.addLine(models.AccountCodeWIPCrop, amount, decimal.Zero, description)
		plan.addLine(models.AccountCodePayableWages, decimal.Zero, amount, description)
		plan.Allocations = append(plan.Allocations, AllocationLine{
			CropCycleId: &cycleId,
			PartyId:     &partyId,
			Type:        costAllocationType(doc.CostClass),
			Amount:      amount,
			RuleSnapshot: map[string]interface{}{
				"units":      doc.Units.String(),
				"rate":       doc.Rate.String(),
				"cost_class": string(doc.CostClass),
			},
		})

		group, _, err := CommitPlan(ctx, tx, tenantId, plan)
		if err != nil {
			return err
		}
		if err := markPosted(ctx, tx, doc, group); err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PostCropActivity issues the consumed input at moving average cost and
// books the value into crop WIP.
func PostCropActivity(ctx context.Context, id int, postingDate *time.Time) (*models.CropActivity, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.CropActivity
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.CropActivity](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		if doc.Status == models.DocumentStatusPosted {
			result = doc
			return nil
		}
		if doc.Status == models.DocumentStatusReversed {
			return ErrAlreadyReversed
		}

		date := resolvePostingDate(postingDate, doc.ActivityDate)
		if err := assertOpenCycle(ctx, tx, tenantId, doc.CropCycleId, date); err != nil {
			return err
		}

		value, wac, err := issueValue(ctx, tx, tenantId, doc.WarehouseId, doc.ItemId, doc.Qty)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Crop activity #%d %s", doc.ID, doc.ActivityType)
		cycleId := doc.CropCycleId

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeCropActivity,
			SourceId:       doc.ID,
			CropCycleId:    &cycleId,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeCropActivity, doc.ID),
		}
		plan.addLine(models.AccountCodeWIPCrop, value, decimal.Zero, description)
		plan.addLine(models.AccountCodeInventoryInputs, decimal.Zero, value, description)
		plan.Allocations = append(plan.Allocations, AllocationLine{
			CropCycleId: &cycleId,
			Type:        costAllocationType(doc.CostClass),
			Amount:      value,
			RuleSnapshot: map[string]interface{}{
				"qty":        doc.Qty.String(),
				"wac":        wac.String(),
				"cost_class": string(doc.CostClass),
			},
		})
		plan.Movements = append(plan.Movements, MovementLine{
			WarehouseId:  doc.WarehouseId,
			ItemId:       doc.ItemId,
			MovementType: models.MovementTypeIssue,
			QtyDelta:     doc.Qty.Neg(),
			ValueDelta:   value.Neg(),
			UnitCost:     wac,
		})

		group, _, err := CommitPlan(ctx, tx, tenantId, plan)
		if err != nil {
			return err
		}
		if err := markPosted(ctx, tx, doc, group); err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
