package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// cycleWIPBalance is the WIP value sitting on the cycle as of the given
// date: everything debited in minus everything harvested out, posting_date
// bounded so a back-dated harvest never drains costs booked after its day.
//
// Groups carrying the cycle id directly (work logs, crop activities,
// issues, harvests and their reversals) are summed off their WIP ledger
// entries; reversal groups copy the cycle id, so those pairs cancel
// arithmetically. Machinery charges spread one group over several cycles
// and carry no group-level cycle id, so their per-cycle WIP share comes
// from the cost allocation rows instead, with reversed and reversal groups
// excluded the way settlement aggregation excludes them.
func cycleWIPBalance(ctx context.Context, tx *gorm.DB, tenantId string, cropCycleId int, asOf time.Time) (decimal.Decimal, error) {
	wip, err := models.GetAccountByCode(tx, ctx, tenantId, models.AccountCodeWIPCrop)
	if err != nil {
		return decimal.Zero, err
	}
	type row struct {
		Balance decimal.Decimal
	}

	var direct row
	err = tx.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(le.debit_amount - le.credit_amount), 0) AS balance
		FROM ledger_entries le
		JOIN posting_groups pg ON pg.id = le.posting_group_id
		WHERE le.tenant_id = ? AND le.account_id = ? AND pg.crop_cycle_id = ?
		  AND pg.posting_date <= ?`,
		tenantId, wip.ID, cropCycleId, asOf).Scan(&direct).Error
	if err != nil {
		return decimal.Zero, err
	}

	var spread row
	err = tx.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(ar.amount), 0) AS balance
		FROM allocation_rows ar
		JOIN posting_groups pg ON pg.id = ar.posting_group_id
		WHERE ar.tenant_id = ? AND ar.crop_cycle_id = ?
		  AND ar.allocation_type IN (?, ?)
		  AND pg.crop_cycle_id IS NULL
		  AND pg.posting_date <= ?
		  AND pg.source_type <> ?
		  AND NOT EXISTS (
			SELECT 1 FROM posting_groups rev
			WHERE rev.tenant_id = pg.tenant_id
			  AND rev.reversal_of_posting_group_id = pg.id
			  AND rev.posting_date <= ?
		  )`,
		tenantId, cropCycleId,
		models.AllocationTypeSharedCost, models.AllocationTypeHariOnlyCost,
		asOf, models.SourceTypeReversal, asOf).Scan(&spread).Error
	if err != nil {
		return decimal.Zero, err
	}

	return direct.Balance.Add(spread.Balance), nil
}

// PostHarvest moves the cycle's accumulated WIP into produce inventory and
// receives the harvested quantities at the resulting unit cost. A cycle
// whose WIP already drained (second harvest after full draw-down, or costs
// net to zero) receives the produce at zero cost.
func PostHarvest(ctx context.Context, id int, postingDate *time.Time) (*models.Harvest, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.Harvest
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.Harvest](ctx, tx, tenantId, id)
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
		if err := tx.WithContext(ctx).
			Where("tenant_id = ? AND harvest_id = ?", tenantId, doc.ID).
			Find(&doc.Lines).Error; err != nil {
			return err
		}

		date := resolvePostingDate(postingDate, doc.HarvestDate)
		if err := assertOpenCycle(ctx, tx, tenantId, doc.CropCycleId, date); err != nil {
			return err
		}

		wipBalance, err := cycleWIPBalance(ctx, tx, tenantId, doc.CropCycleId, date)
		if err != nil {
			return err
		}
		// Negative WIP means earlier over-drains; never push negative cost
		// into inventory.
		harvestValue := wipBalance
		if harvestValue.IsNegative() {
			harvestValue = decimal.Zero
		}

		weights := make([]decimal.Decimal, len(doc.Lines))
		for i, line := range doc.Lines {
			weights[i] = line.Qty
		}
		shares, err := AllocateProportionally(harvestValue, weights)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Harvest #%d", doc.ID)
		cycleId := doc.CropCycleId

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeHarvest,
			SourceId:       doc.ID,
			CropCycleId:    &cycleId,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeHarvest, doc.ID),
		}
		plan.addLine(models.AccountCodeInventoryProduce, harvestValue, decimal.Zero, description)
		plan.addLine(models.AccountCodeWIPCrop, decimal.Zero, harvestValue, description)
		for i, line := range doc.Lines {
			unitCost := decimal.Zero
			if line.Qty.IsPositive() {
				unitCost = shares[i].Div(line.Qty).Round(4)
			}
			plan.Movements = append(plan.Movements, MovementLine{
				WarehouseId:  doc.WarehouseId,
				ItemId:       line.ItemId,
				MovementType: models.MovementTypeHarvest,
				QtyDelta:     line.Qty,
				ValueDelta:   shares[i],
				UnitCost:     unitCost,
			})
		}

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
