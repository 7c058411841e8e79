package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrCycleAlreadySettled = errors.New("crop cycle already has a posted settlement")
	ErrLossMakingCycle     = errors.New("cycle distribution is negative; settle a loss with a manual journal entry")
	ErrAdvanceOffsetDrift  = errors.New("advance offset exceeds the current outstanding balance; refresh the preview and retry")
)

// SettlementPreview is the computed waterfall before anything posts. The
// offset bound tells the caller the largest advance offset a post may carry
// right now.
type SettlementPreview struct {
	CropCycleId    int             `json:"crop_cycle_id"`
	KamdariPct     decimal.Decimal `json:"kamdari_pct"`
	LandlordPct    decimal.Decimal `json:"landlord_pct"`
	HariPct        decimal.Decimal `json:"hari_pct"`
	PoolRevenue    decimal.Decimal `json:"pool_revenue"`
	SharedCosts    decimal.Decimal `json:"shared_costs"`
	PoolProfit     decimal.Decimal `json:"pool_profit"`
	KamdariAmount  decimal.Decimal `json:"kamdari_amount"`
	LandlordAmount decimal.Decimal `json:"landlord_amount"`
	HariGross      decimal.Decimal `json:"hari_gross"`
	HariOnlyCosts  decimal.Decimal `json:"hari_only_costs"`
	HariNet        decimal.Decimal `json:"hari_net"`
	MaxOffset      decimal.Decimal `json:"max_offset"`
}

// sumCycleAllocations totals active allocation rows of the given types for
// a cycle. Rows on reversal groups and on groups that have been reversed
// both drop out, so only live economic activity counts.
func sumCycleAllocations(ctx context.Context, tx *gorm.DB, tenantId string, cropCycleId int, types ...models.AllocationType) (decimal.Decimal, error) {
	type row struct {
		Total decimal.Decimal
	}
	var out row
	err := tx.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(ar.amount), 0) AS total
		FROM allocation_rows ar
		JOIN posting_groups pg ON pg.id = ar.posting_group_id
		WHERE ar.tenant_id = ? AND ar.crop_cycle_id = ?
		  AND ar.allocation_type IN ?
		  AND pg.source_type <> ?
		  AND NOT EXISTS (
			SELECT 1 FROM posting_groups rev
			WHERE rev.tenant_id = pg.tenant_id
			  AND rev.reversal_of_posting_group_id = pg.id
		  )`,
		tenantId, cropCycleId, types, models.SourceTypeReversal).Scan(&out).Error
	if err != nil {
		return decimal.Zero, err
	}
	return out.Total, nil
}

var hundred = decimal.NewFromInt(100)

// computeWaterfall runs the fixed-order split. Percentages are whole
// percents (10 means 10%). Landlord takes its rounded share and hari takes
// the exact remainder so the two always sum back to the remaining pool.
func computeWaterfall(ctx context.Context, tx *gorm.DB, tenantId string, project *models.Project, cropCycleId int) (*SettlementPreview, error) {
	revenue, err := sumCycleAllocations(ctx, tx, tenantId, cropCycleId, models.AllocationTypePoolRevenue)
	if err != nil {
		return nil, err
	}
	sharedCosts, err := sumCycleAllocations(ctx, tx, tenantId, cropCycleId, models.AllocationTypeSharedCost)
	if err != nil {
		return nil, err
	}
	hariOnlyCosts, err := sumCycleAllocations(ctx, tx, tenantId, cropCycleId, models.AllocationTypeHariOnlyCost)
	if err != nil {
		return nil, err
	}

	poolProfit := revenue.Sub(sharedCosts)
	kamdari := poolProfit.Mul(project.KamdariPct).Div(hundred).Round(2)
	remaining := poolProfit.Sub(kamdari)
	landlord := remaining.Mul(project.LandlordPct).Div(hundred).Round(2)
	hariGross := remaining.Sub(landlord)
	hariNet := hariGross.Sub(hariOnlyCosts)

	outstanding, err := models.GetOutstandingAdvance(ctx, tenantId, project.HariPartyId)
	if err != nil {
		return nil, err
	}
	maxOffset := decimal.Min(hariNet, outstanding)
	if maxOffset.IsNegative() {
		maxOffset = decimal.Zero
	}

	return &SettlementPreview{
		CropCycleId:    cropCycleId,
		KamdariPct:     project.KamdariPct,
		LandlordPct:    project.LandlordPct,
		HariPct:        project.HariPct,
		PoolRevenue:    revenue,
		SharedCosts:    sharedCosts,
		PoolProfit:     poolProfit,
		KamdariAmount:  kamdari,
		LandlordAmount: landlord,
		HariGross:      hariGross,
		HariOnlyCosts:  hariOnlyCosts,
		HariNet:        hariNet,
		MaxOffset:      maxOffset,
	}, nil
}

// PreviewSettlement computes the waterfall for a cycle without posting
// anything.
func PreviewSettlement(ctx context.Context, cropCycleId int) (*SettlementPreview, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	cycle, err := utils.FetchModel[models.CropCycle](ctx, tenantId, cropCycleId)
	if err != nil {
		return nil, err
	}
	project, err := utils.FetchModel[models.Project](ctx, tenantId, cycle.ProjectId)
	if err != nil {
		return nil, err
	}
	return computeWaterfall(ctx, db, tenantId, project, cropCycleId)
}

// PostSettlementInput captures the caller's choices at post time. The
// advance offset is optional and must not exceed the bound the preview
// reported; it is re-validated against the live advance balance inside the
// posting transaction.
type PostSettlementInput struct {
	CropCycleId    int              `json:"crop_cycle_id" binding:"required"`
	SettlementDate *time.Time       `json:"settlement_date"`
	AdvanceOffset  *decimal.Decimal `json:"advance_offset"`
	CloseCycle     bool             `json:"close_cycle"`
}

// PostSettlement posts the profit-distribution group for a cycle and
// persists the settlement snapshot. One posted settlement per cycle; a
// reversed settlement frees the cycle for a fresh one.
//
// Payables credit per recipient; the optional advance offset immediately
// draws the hari payable down against the outstanding advance, leaving two
// audit allocation rows behind.
func PostSettlement(ctx context.Context, input PostSettlementInput) (*models.Settlement, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	// Serializes settlement posts across instances. The per-tenant posting
	// lock inside the transaction already serializes against document
	// posts on the same database.
	release, err := utils.TenantLock(ctx, tenantId, "settlement")
	if err != nil {
		return nil, err
	}
	defer release()

	var result *models.Settlement
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		cycle, err := utils.FetchModel[models.CropCycle](ctx, tenantId, input.CropCycleId)
		if err != nil {
			return err
		}
		project, err := utils.FetchModel[models.Project](ctx, tenantId, cycle.ProjectId)
		if err != nil {
			return err
		}

		_, err = models.GetActiveSettlementForCycle(ctx, tenantId, cycle.ID)
		if err == nil {
			return ErrCycleAlreadySettled
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		preview, err := computeWaterfall(ctx, tx, tenantId, project, cycle.ID)
		if err != nil {
			return err
		}
		if preview.KamdariAmount.IsNegative() || preview.LandlordAmount.IsNegative() || preview.HariNet.IsNegative() {
			return ErrLossMakingCycle
		}
		if preview.KamdariAmount.IsPositive() && project.KamdariPartyId == nil {
			return errors.New("project has a kamdari percentage but no kamdari party")
		}

		offset := decimal.Zero
		if input.AdvanceOffset != nil {
			offset = *input.AdvanceOffset
			if offset.IsNegative() {
				return errors.New("advance offset must not be negative")
			}
			// Re-check against the live balance; a concurrent advance
			// reversal since preview must fail loudly, never clamp.
			if offset.GreaterThan(preview.MaxOffset) {
				return ErrAdvanceOffsetDrift
			}
		}

		date := time.Now().UTC()
		if input.SettlementDate != nil {
			date = *input.SettlementDate
		}

		// A reversed settlement leaves its group behind; the next run for
		// the same cycle needs a distinct idempotency key.
		var priorRuns int64
		if err := tx.WithContext(ctx).Model(&models.Settlement{}).
			Where("tenant_id = ? AND crop_cycle_id = ?", tenantId, cycle.ID).
			Count(&priorRuns).Error; err != nil {
			return err
		}
		key := fmt.Sprintf("%s:%d:run%d", models.SourceTypeSettlement, cycle.ID, priorRuns+1)

		cycleId := cycle.ID
		plan := &LedgerPlan{
			SourceType:     models.SourceTypeSettlement,
			SourceId:       cycle.ID,
			CropCycleId:    &cycleId,
			PostingDate:    date,
			IdempotencyKey: &key,
		}

		total := preview.KamdariAmount.Add(preview.LandlordAmount).Add(preview.HariNet)
		if total.IsPositive() {
			plan.addLine(models.AccountCodeProfitDistribution, total, decimal.Zero,
				fmt.Sprintf("Profit distribution for %s", cycle.Name))
		}
		if preview.KamdariAmount.IsPositive() {
			plan.addLine(models.AccountCodePayableKamdari, decimal.Zero, preview.KamdariAmount, "Kamdari fee")
			plan.Allocations = append(plan.Allocations, AllocationLine{
				CropCycleId: &cycleId,
				PartyId:     project.KamdariPartyId,
				Type:        models.AllocationTypeKamdari,
				Amount:      preview.KamdariAmount,
				RuleSnapshot: map[string]interface{}{
					"kamdari_pct": preview.KamdariPct.String(),
					"pool_profit": preview.PoolProfit.String(),
				},
			})
		}
		if preview.LandlordAmount.IsPositive() {
			plan.addLine(models.AccountCodePayableLandlord, decimal.Zero, preview.LandlordAmount, "Landlord share")
		}
		landlordParty := project.LandlordPartyId
		plan.Allocations = append(plan.Allocations, AllocationLine{
			CropCycleId: &cycleId,
			PartyId:     &landlordParty,
			Type:        models.AllocationTypePoolShare,
			Amount:      preview.LandlordAmount,
			RuleSnapshot: map[string]interface{}{
				"role": "LANDLORD",
				"pct":  preview.LandlordPct.String(),
			},
		})
		if preview.HariNet.IsPositive() {
			plan.addLine(models.AccountCodePayableHari, decimal.Zero, preview.HariNet, "Hari share net of deductions")
		}
		hariParty := project.HariPartyId
		plan.Allocations = append(plan.Allocations, AllocationLine{
			CropCycleId: &cycleId,
			PartyId:     &hariParty,
			Type:        models.AllocationTypePoolShare,
			Amount:      preview.HariGross,
			RuleSnapshot: map[string]interface{}{
				"role": "HARI",
				"pct":  preview.HariPct.String(),
			},
		})
		if preview.HariOnlyCosts.IsPositive() {
			plan.Allocations = append(plan.Allocations, AllocationLine{
				CropCycleId: &cycleId,
				PartyId:     &hariParty,
				Type:        models.AllocationTypeHariOnly,
				Amount:      preview.HariOnlyCosts,
				RuleSnapshot: map[string]interface{}{
					"deducted_from": "HARI_GROSS",
				},
			})
		}

		if offset.IsPositive() {
			plan.addLine(models.AccountCodePayableHari, offset, decimal.Zero, "Advance offset")
			plan.addLine(models.AccountCodeAdvanceHari, decimal.Zero, offset, "Advance recovered at settlement")
			plan.Allocations = append(plan.Allocations,
				AllocationLine{
					CropCycleId: &cycleId,
					PartyId:     &hariParty,
					Type:        models.AllocationTypeReducePayable,
					Amount:      offset,
				},
				AllocationLine{
					CropCycleId: &cycleId,
					PartyId:     &hariParty,
					Type:        models.AllocationTypeReduceAdvance,
					Amount:      offset,
				})
		}

		group, _, err := CommitPlan(ctx, tx, tenantId, plan)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		settlement := models.Settlement{
			TenantId:       tenantId,
			CropCycleId:    cycle.ID,
			SettlementDate: date,
			KamdariPct:     preview.KamdariPct,
			LandlordPct:    preview.LandlordPct,
			HariPct:        preview.HariPct,
			PoolRevenue:    preview.PoolRevenue,
			SharedCosts:    preview.SharedCosts,
			HariOnlyCosts:  preview.HariOnlyCosts,
			PoolProfit:     preview.PoolProfit,
			KamdariAmount:  preview.KamdariAmount,
			LandlordAmount: preview.LandlordAmount,
			HariGross:      preview.HariGross,
			HariNet:        preview.HariNet,
			AdvanceOffset:  offset,
			Status:         models.DocumentStatusPosted,
			PostingGroupId: &group.ID,
			PostedAt:       &now,
		}
		if err := tx.WithContext(ctx).Create(&settlement).Error; err != nil {
			return err
		}

		if input.CloseCycle {
			if err := tx.WithContext(ctx).Model(&models.CropCycle{}).
				Where("tenant_id = ? AND id = ?", tenantId, cycle.ID).
				Update("status", models.CropCycleStatusClosed).Error; err != nil {
				return err
			}
		}

		result = &settlement
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReverseSettlement reverses a posted settlement and reopens the cycle for
// a fresh settlement run.
func ReverseSettlement(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var reversal *models.PostingGroup
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		settlement, err := fetchForPosting[models.Settlement](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		reversal, err = reverseDocumentGroup(ctx, tx, tenantId, settlement, settlement.Status, settlement.PostingGroupId, reversalDate, reason)
		if err != nil {
			return err
		}
		// Settling again later needs the cycle open.
		return tx.WithContext(ctx).Model(&models.CropCycle{}).
			Where("tenant_id = ? AND id = ? AND status = ?", tenantId, settlement.CropCycleId, models.CropCycleStatusClosed).
			Update("status", models.CropCycleStatusOpen).Error
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}
