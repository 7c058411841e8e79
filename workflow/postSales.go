package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostSale books the revenue against receivables and relieves produce
// inventory at moving average cost into cost of goods sold.
func PostSale(ctx context.Context, id int, postingDate *time.Time) (*models.Sale, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.Sale
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.Sale](ctx, tx, tenantId, id)
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

		date := resolvePostingDate(postingDate, doc.SaleDate)
		if doc.CropCycleId != nil {
			if err := assertOpenCycle(ctx, tx, tenantId, *doc.CropCycleId, date); err != nil {
				return err
			}
		}

		revenue := doc.Total()
		cogs, wac, err := issueValueAtDate(ctx, tx, tenantId, doc.WarehouseId, doc.ItemId, doc.Qty, date)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Sale #%d", doc.ID)
		buyerId := doc.BuyerPartyId

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeSale,
			SourceId:       doc.ID,
			CropCycleId:    doc.CropCycleId,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeSale, doc.ID),
		}
		plan.addLine(models.AccountCodeAR, revenue, decimal.Zero, description)
		plan.addLine(models.AccountCodeSalesRevenue, decimal.Zero, revenue, description)
		plan.addLine(models.AccountCodeCOGS, cogs, decimal.Zero, description)
		plan.addLine(models.AccountCodeInventoryProduce, decimal.Zero, cogs, description)
		plan.Allocations = append(plan.Allocations,
			AllocationLine{
				CropCycleId: doc.CropCycleId,
				PartyId:     &buyerId,
				Type:        models.AllocationTypePoolRevenue,
				Amount:      revenue,
				RuleSnapshot: map[string]interface{}{
					"qty":        doc.Qty.String(),
					"unit_price": doc.UnitPrice.String(),
				},
			},
			AllocationLine{
				CropCycleId: doc.CropCycleId,
				Type:        models.AllocationTypeSaleCOGS,
				Amount:      cogs,
				RuleSnapshot: map[string]interface{}{
					"qty": doc.Qty.String(),
					"wac": wac.String(),
				},
			})
		plan.Movements = append(plan.Movements, MovementLine{
			WarehouseId:  doc.WarehouseId,
			ItemId:       doc.ItemId,
			MovementType: models.MovementTypeSale,
			QtyDelta:     doc.Qty.Neg(),
			ValueDelta:   cogs.Neg(),
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
